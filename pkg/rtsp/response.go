package rtsp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// noncePattern matches the 64-hex-character digest nonce the camera issues
// in its WWW-Authenticate challenges.
var noncePattern = regexp.MustCompile(`nonce="([a-f0-9]{64})"`)

// Response is a parsed RTSP response message.
type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	headers    map[string]string
	Body       string
}

// ParseResponse parses the bytes read from the control connection into a
// response. The grammar is explicit per record: a three-part status line,
// one "Name: value" record per header line, a blank-line separator, body.
func ParseResponse(data []byte) (*Response, error) {
	text := string(data)
	head, body, _ := strings.Cut(text, "\r\n\r\n")

	lines := strings.Split(head, "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, &SessionError{Reason: "empty response"}
	}

	resp := &Response{
		headers: make(map[string]string),
		Body:    body,
	}

	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 3 {
		return nil, &SessionError{Reason: fmt.Sprintf("malformed status line %q", lines[0])}
	}
	resp.Proto = parts[0]
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, &SessionError{Reason: fmt.Sprintf("malformed status code %q", parts[1])}
	}
	resp.StatusCode = code
	resp.Reason = parts[2]

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, &SessionError{Reason: fmt.Sprintf("malformed header line %q", line)}
		}
		resp.headers[name] = strings.TrimSpace(value)
	}

	return resp, nil
}

// Header returns a header value by name.
func (r *Response) Header(name string) (string, bool) {
	v, ok := r.headers[name]
	return v, ok
}

// Nonce extracts the digest nonce from the WWW-Authenticate header.
// It reports absence rather than failing when the header or the pattern
// is missing.
func (r *Response) Nonce() (string, bool) {
	challenge, ok := r.headers["WWW-Authenticate"]
	if !ok {
		return "", false
	}
	match := noncePattern.FindStringSubmatch(challenge)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// SessionID returns the Session header value with any trailing parameters
// (e.g. ";timeout=60") removed.
func (r *Response) SessionID() (string, bool) {
	v, ok := r.headers["Session"]
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(v, ";")
	return strings.TrimSpace(id), true
}
