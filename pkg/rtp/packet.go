// Package rtp parses RTP packets and repackages their H.264 payloads into
// an Annex-B elementary stream.
package rtp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrPacketTooShort indicates the packet is too short to be valid
	ErrPacketTooShort = errors.New("packet too short")
	// ErrInvalidVersion indicates the RTP version is not 2
	ErrInvalidVersion = errors.New("invalid RTP version, expected 2")
)

// Extension is the optional RTP header extension (RFC 3550 section 5.3.1).
// Contents are opaque to this client.
type Extension struct {
	Profile uint16
	Data    []byte
}

// Packet represents an RTP packet
type Packet struct {
	Version        uint8
	Padding        bool
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32
	Extension      *Extension
	Payload        []byte
}

// ParsePacket parses raw bytes into an RTP packet
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < 12 {
		return nil, ErrPacketTooShort
	}

	packet := &Packet{}

	// First byte: V(2), P(1), X(1), CC(4)
	packet.Version = (data[0] >> 6) & 0x03
	if packet.Version != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, packet.Version)
	}

	packet.Padding = (data[0]>>5)&0x01 == 1
	hasExtension := (data[0]>>4)&0x01 == 1
	csrcCount := int(data[0] & 0x0F)

	// Second byte: M(1), PT(7)
	packet.Marker = (data[1]>>7)&0x01 == 1
	packet.PayloadType = data[1] & 0x7F

	packet.SequenceNumber = binary.BigEndian.Uint16(data[2:4])
	packet.Timestamp = binary.BigEndian.Uint32(data[4:8])
	packet.SSRC = binary.BigEndian.Uint32(data[8:12])

	offset := 12

	if csrcCount > 0 {
		if len(data) < offset+4*csrcCount {
			return nil, fmt.Errorf("%w: %d CSRC identifiers advertised", ErrPacketTooShort, csrcCount)
		}
		packet.CSRC = make([]uint32, csrcCount)
		for i := 0; i < csrcCount; i++ {
			packet.CSRC[i] = binary.BigEndian.Uint32(data[offset : offset+4])
			offset += 4
		}
	}

	if hasExtension {
		if len(data) < offset+4 {
			return nil, fmt.Errorf("%w: truncated extension header", ErrPacketTooShort)
		}
		profile := binary.BigEndian.Uint16(data[offset : offset+2])
		words := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		offset += 4
		if len(data) < offset+4*words {
			return nil, fmt.Errorf("%w: extension advertises %d words", ErrPacketTooShort, words)
		}
		packet.Extension = &Extension{
			Profile: profile,
			Data:    data[offset : offset+4*words],
		}
		offset += 4 * words
	}

	payload := data[offset:]

	// The padding count lives in the last octet of the packet.
	if packet.Padding && len(payload) > 0 {
		paddingLength := int(payload[len(payload)-1])
		if paddingLength <= len(payload) {
			payload = payload[:len(payload)-paddingLength]
		}
	}

	packet.Payload = payload

	return packet, nil
}

// HeaderSize returns the number of bytes consumed before the payload.
func (p *Packet) HeaderSize() int {
	size := 12 + 4*len(p.CSRC)
	if p.Extension != nil {
		size += 4 + len(p.Extension.Data)
	}
	return size
}

// String returns a string representation of the packet for debugging
func (p *Packet) String() string {
	return fmt.Sprintf(
		"RTP Packet [Version: %d, PT: %d, Seq: %d, TS: %d, SSRC: 0x%x, Marker: %t, Payload: %d bytes]",
		p.Version, p.PayloadType, p.SequenceNumber, p.Timestamp, p.SSRC, p.Marker, len(p.Payload),
	)
}
