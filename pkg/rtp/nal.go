package rtp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// H.264 packetization types carried over RTP (RFC 6184, table 3).
const (
	nalTypeSTAPA  = 24
	nalTypeSTAPB  = 25
	nalTypeMTAP16 = 26
	nalTypeMTAP24 = 27
	nalTypeFUA    = 28
	nalTypeFUB    = 29
)

// startCode is the Annex-B NAL unit delimiter.
var startCode = []byte{0x00, 0x00, 0x00, 0x01}

var (
	// ErrUnsupportedNALType indicates a packetization mode this client does not handle
	ErrUnsupportedNALType = errors.New("unsupported NAL unit type")
	// ErrEmptyPayload indicates an RTP payload with no NAL data
	ErrEmptyPayload = errors.New("empty NAL payload")
	// ErrShortFragment indicates a fragmentation unit without its fragment header
	ErrShortFragment = errors.New("fragment too short")
	// ErrMalformedAggregate indicates a STAP-A payload with a bad unit length
	ErrMalformedAggregate = errors.New("malformed STAP-A aggregate")
)

// NALHeader is the first byte of an H.264 payload: F(1), NRI(2), Type(5).
type NALHeader struct {
	Forbidden bool
	RefIDC    uint8
	Type      uint8
}

// ParseNALHeader decodes the NAL unit header byte.
func ParseNALHeader(b byte) NALHeader {
	return NALHeader{
		Forbidden: b&0x80 != 0,
		RefIDC:    (b >> 5) & 0x03,
		Type:      b & 0x1F,
	}
}

// FragmentHeader is the second byte of an FU-A payload:
// S(1), E(1), R(1), Type(5).
type FragmentHeader struct {
	Start    bool
	End      bool
	Reserved bool
	Type     uint8
}

// ParseFragmentHeader decodes the FU header byte.
func ParseFragmentHeader(b byte) FragmentHeader {
	return FragmentHeader{
		Start:    b&0x80 != 0,
		End:      b&0x40 != 0,
		Reserved: b&0x20 != 0,
		Type:     b & 0x1F,
	}
}

// DepacketizeH264 converts one RTP payload into Annex-B stream bytes.
//
// Single NAL units (types 1-23, SPS and PPS included) are emitted behind a
// start code. FU-A start fragments get a start code plus a NAL header
// synthesized from the outer F/NRI bits and the fragment type; later
// fragments contribute their data bytes with no prefix. STAP-A aggregates
// are unpacked, each unit behind its own start code. Everything else
// (STAP-B, MTAP16/24, FU-B, reserved types) fails.
func DepacketizeH264(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	nal := ParseNALHeader(payload[0])

	if nal.Type >= 1 && nal.Type <= 23 {
		out := make([]byte, 0, len(startCode)+len(payload))
		out = append(out, startCode...)
		out = append(out, payload...)
		return out, nil
	}

	switch nal.Type {
	case nalTypeFUA:
		return depacketizeFUA(payload)
	case nalTypeSTAPA:
		return depacketizeSTAPA(payload)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedNALType, nal.Type)
	}
}

func depacketizeFUA(payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, ErrShortFragment
	}

	fu := ParseFragmentHeader(payload[1])
	data := payload[2:]

	if !fu.Start {
		// Intermediate and end fragments continue the NAL unit opened by
		// the start fragment, no prefix.
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	// Rebuild the original NAL header from the outer F/NRI bits and the
	// fragmented unit type.
	header := payload[0]&0xE0 | fu.Type
	out := make([]byte, 0, len(startCode)+1+len(data))
	out = append(out, startCode...)
	out = append(out, header)
	out = append(out, data...)
	return out, nil
}

func depacketizeSTAPA(payload []byte) ([]byte, error) {
	var out []byte

	offset := 1 // skip the STAP-A indicator byte
	for offset < len(payload) {
		if offset+2 > len(payload) {
			return nil, fmt.Errorf("%w: truncated unit size at offset %d", ErrMalformedAggregate, offset)
		}
		size := int(binary.BigEndian.Uint16(payload[offset : offset+2]))
		offset += 2
		if size == 0 || offset+size > len(payload) {
			return nil, fmt.Errorf("%w: unit size %d exceeds payload", ErrMalformedAggregate, size)
		}
		out = append(out, startCode...)
		out = append(out, payload[offset:offset+size]...)
		offset += size
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no aggregated units", ErrMalformedAggregate)
	}
	return out, nil
}

// IsKeyFrame reports whether the payload opens an IDR NAL unit,
// directly or as the start fragment of an FU-A.
func (p *Packet) IsKeyFrame() bool {
	if len(p.Payload) == 0 {
		return false
	}
	nal := ParseNALHeader(p.Payload[0])
	if nal.Type == nalTypeFUA && len(p.Payload) >= 2 {
		fu := ParseFragmentHeader(p.Payload[1])
		return fu.Start && fu.Type == 5
	}
	return nal.Type == 5
}
