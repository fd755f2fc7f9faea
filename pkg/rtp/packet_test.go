package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePacket(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expected    *Packet
		expectError bool
	}{
		{
			name: "valid RTP packet with H.264 payload",
			data: []byte{
				0x80, 0x60, // V=2, P=0, X=0, CC=0, M=0, PT=96
				0x00, 0x01, // Sequence number: 1
				0x00, 0x00, 0x03, 0xe8, // Timestamp: 1000
				0x12, 0x34, 0x56, 0x78, // SSRC
				0x01, 0x02, 0x03, // Payload
			},
			expected: &Packet{
				Version:        2,
				Padding:        false,
				Marker:         false,
				PayloadType:    96,
				SequenceNumber: 1,
				Timestamp:      1000,
				SSRC:           0x12345678,
				Payload:        []byte{0x01, 0x02, 0x03},
			},
		},
		{
			name: "valid RTP packet with marker bit set",
			data: []byte{
				0x80, 0xe0, // V=2, P=0, X=0, CC=0, M=1, PT=96
				0x00, 0x02, // Sequence number: 2
				0x00, 0x00, 0x07, 0xd0, // Timestamp: 2000
				0xaa, 0xbb, 0xcc, 0xdd, // SSRC
				0xaa, 0xbb, // Payload
			},
			expected: &Packet{
				Version:        2,
				Marker:         true,
				PayloadType:    96,
				SequenceNumber: 2,
				Timestamp:      2000,
				SSRC:           0xaabbccdd,
				Payload:        []byte{0xaa, 0xbb},
			},
		},
		{
			name: "two CSRC identifiers",
			data: []byte{
				0x82, 0x60, // V=2, CC=2
				0x00, 0x01,
				0x00, 0x00, 0x03, 0xe8,
				0x12, 0x34, 0x56, 0x78,
				0x11, 0x11, 0x11, 0x11, // CSRC 1
				0x22, 0x22, 0x22, 0x22, // CSRC 2
				0x01, 0x02, // Payload
			},
			expected: &Packet{
				Version:        2,
				PayloadType:    96,
				SequenceNumber: 1,
				Timestamp:      1000,
				SSRC:           0x12345678,
				CSRC:           []uint32{0x11111111, 0x22222222},
				Payload:        []byte{0x01, 0x02},
			},
		},
		{
			name:        "packet too short",
			data:        []byte{0x80, 0x60, 0x00},
			expectError: true,
		},
		{
			name:        "invalid version",
			data:        []byte{0x40, 0x60, 0x00, 0x01, 0x00, 0x00, 0x03, 0xe8, 0x12, 0x34, 0x56, 0x78},
			expectError: true,
		},
		{
			name:        "empty packet",
			data:        []byte{},
			expectError: true,
		},
		{
			name: "truncated CSRC list",
			data: []byte{
				0x83, 0x60, // V=2, CC=3
				0x00, 0x01,
				0x00, 0x00, 0x03, 0xe8,
				0x12, 0x34, 0x56, 0x78,
				0x11, 0x11, 0x11, 0x11, // only one of three CSRCs
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet, err := ParsePacket(tt.data)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, packet)
			} else {
				require.NoError(t, err)
				require.NotNil(t, packet)
				assert.Equal(t, tt.expected.Version, packet.Version)
				assert.Equal(t, tt.expected.Padding, packet.Padding)
				assert.Equal(t, tt.expected.Marker, packet.Marker)
				assert.Equal(t, tt.expected.PayloadType, packet.PayloadType)
				assert.Equal(t, tt.expected.SequenceNumber, packet.SequenceNumber)
				assert.Equal(t, tt.expected.Timestamp, packet.Timestamp)
				assert.Equal(t, tt.expected.SSRC, packet.SSRC)
				assert.Equal(t, tt.expected.CSRC, packet.CSRC)
				assert.Equal(t, tt.expected.Payload, packet.Payload)
			}
		})
	}
}

func TestParsePacket_HeaderSize(t *testing.T) {
	// version=2, two CSRC identifiers, extension off: the header occupies
	// exactly 12 + 8 bytes before the payload.
	data := []byte{
		0x82, 0x60,
		0x12, 0x34, // Sequence number: 0x1234
		0xde, 0xad, 0xbe, 0xef, // Timestamp
		0xca, 0xfe, 0xba, 0xbe, // SSRC
		0x11, 0x11, 0x11, 0x11,
		0x22, 0x22, 0x22, 0x22,
		0x65, 0x01, // Payload
	}

	packet, err := ParsePacket(data)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x1234), packet.SequenceNumber)
	assert.Equal(t, uint32(0xdeadbeef), packet.Timestamp)
	assert.Equal(t, uint32(0xcafebabe), packet.SSRC)
	assert.Equal(t, 20, packet.HeaderSize())
	assert.Equal(t, data[20:], packet.Payload)
}

func TestParsePacket_Extension(t *testing.T) {
	data := []byte{
		0x90, 0x60, // V=2, X=1
		0x00, 0x01,
		0x00, 0x00, 0x03, 0xe8,
		0x12, 0x34, 0x56, 0x78,
		0xbe, 0xde, // extension profile
		0x00, 0x01, // length: one 32-bit word
		0xde, 0xad, 0xbe, 0xef, // extension data
		0x01, 0x02, // Payload
	}

	packet, err := ParsePacket(data)
	require.NoError(t, err)
	require.NotNil(t, packet.Extension)

	assert.Equal(t, uint16(0xbede), packet.Extension.Profile)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, packet.Extension.Data)
	assert.Equal(t, []byte{0x01, 0x02}, packet.Payload)
	assert.Equal(t, 20, packet.HeaderSize())
}

func TestParsePacket_TruncatedExtension(t *testing.T) {
	data := []byte{
		0x90, 0x60,
		0x00, 0x01,
		0x00, 0x00, 0x03, 0xe8,
		0x12, 0x34, 0x56, 0x78,
		0xbe, 0xde,
		0x00, 0x04, // four words advertised, none present
	}

	_, err := ParsePacket(data)
	assert.ErrorIs(t, err, ErrPacketTooShort)
}

func TestParsePacket_Padding(t *testing.T) {
	data := []byte{
		0xa0, 0x60, // V=2, P=1
		0x00, 0x01,
		0x00, 0x00, 0x03, 0xe8,
		0x12, 0x34, 0x56, 0x78,
		0x01, 0x02, 0x00, 0x02, // payload plus two padding octets
	}

	packet, err := ParsePacket(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, packet.Payload)
}
