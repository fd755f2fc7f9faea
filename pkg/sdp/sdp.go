// Package sdp parses the session-description bodies returned by RTSP
// DESCRIBE. Only the record types the camera emits are consumed; unknown
// record letters are ignored.
package sdp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRecord indicates a record that does not fit its grammar
	ErrMalformedRecord = errors.New("malformed SDP record")
	// ErrMissingControl indicates a media descriptor without a control attribute
	ErrMissingControl = errors.New("media descriptor has no control attribute")
)

// MediaDescriptor represents one m= record and its trailing attributes.
type MediaDescriptor struct {
	Name        string // audio or video
	Port        int
	Profile     string // e.g. RTP/AVP
	PayloadType string
	attributes  map[string]string
}

// Attribute returns a media-level attribute by name.
func (m *MediaDescriptor) Attribute(name string) (string, bool) {
	v, ok := m.attributes[name]
	return v, ok
}

// Control returns the track's relative SETUP path.
func (m *MediaDescriptor) Control() (string, error) {
	v, ok := m.attributes["control"]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingControl, m.Name)
	}
	return v, nil
}

// Label renders the descriptor as a filename-safe track label.
func (m *MediaDescriptor) Label() string {
	profile := strings.ReplaceAll(m.Profile, "/", ".")
	return strings.Join([]string{m.Name, profile, m.PayloadType}, "_")
}

func (m *MediaDescriptor) String() string {
	return m.Label()
}

// Description holds the session-level records and the ordered media list.
// Media order equals m= record order, which fixes SETUP iteration order.
type Description struct {
	Version    int
	Originator string
	Name       string
	Connection string
	Time       [2]int64
	Media      []*MediaDescriptor
	attributes map[string]string
}

// Attribute returns a session-level attribute by name.
func (d *Description) Attribute(name string) (string, bool) {
	v, ok := d.attributes[name]
	return v, ok
}

// Parse consumes an SDP body as ordered <letter>=<value> records.
func Parse(body string) (*Description, error) {
	desc := &Description{attributes: make(map[string]string)}

	var current *MediaDescriptor
	flush := func() {
		if current != nil {
			desc.Media = append(desc.Media, current)
			current = nil
		}
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		code, value, found := strings.Cut(line, "=")
		if !found || len(code) != 1 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedRecord, line)
		}

		switch code {
		case "v":
			version, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("%w: version %q", ErrMalformedRecord, value)
			}
			desc.Version = version
		case "o":
			desc.Originator = value
		case "s":
			desc.Name = strings.TrimSpace(value)
		case "c":
			desc.Connection = value
		case "t":
			if err := parseTimeRange(value, desc); err != nil {
				return nil, err
			}
		case "a":
			name, attr, found := strings.Cut(value, ":")
			if !found {
				return nil, fmt.Errorf("%w: attribute %q has no value", ErrMalformedRecord, value)
			}
			if current != nil {
				current.attributes[name] = attr
			} else {
				desc.attributes[name] = attr
			}
		case "m":
			flush()
			media, err := parseMedia(value)
			if err != nil {
				return nil, err
			}
			current = media
		default:
			// Record types outside the consumed subset are ignored.
		}
	}
	flush()

	return desc, nil
}

func parseTimeRange(value string, desc *Description) error {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return fmt.Errorf("%w: time range %q", ErrMalformedRecord, value)
	}
	for i, field := range fields {
		t, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: time range %q", ErrMalformedRecord, value)
		}
		desc.Time[i] = t
	}
	return nil
}

// parseMedia consumes an m=<name> <port> <profile> <payload_type> record.
func parseMedia(value string) (*MediaDescriptor, error) {
	fields := strings.Fields(value)
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: media record %q", ErrMalformedRecord, value)
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: media port %q", ErrMalformedRecord, fields[1])
	}
	return &MediaDescriptor{
		Name:        fields[0],
		Port:        port,
		Profile:     fields[2],
		PayloadType: fields[3],
		attributes:  make(map[string]string),
	}, nil
}
