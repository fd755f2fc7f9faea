package rtsp

import (
	"bytes"
	"fmt"
)

// ProtocolVersion is the protocol token sent on every request line.
const ProtocolVersion = "RTSP/1.0"

// RTSP methods used against the camera.
const (
	MethodDescribe = "DESCRIBE"
	MethodSetup    = "SETUP"
	MethodPlay     = "PLAY"
	MethodPause    = "PAUSE"
	MethodTeardown = "TEARDOWN"
	MethodRecord   = "RECORD"
	MethodOptions  = "OPTIONS"
)

type header struct {
	name  string
	value string
}

// Request is an RTSP request message. Header insertion order is preserved
// on the wire. A sent request is never mutated; the digest retry operates
// on a clone carrying the extra Authorization header.
type Request struct {
	Method  string
	URL     string
	Proto   string
	headers []header
}

// NewRequest builds a request for a method and target URI.
func NewRequest(method, url string) *Request {
	return &Request{
		Method: method,
		URL:    url,
		Proto:  ProtocolVersion,
	}
}

// SetHeader sets a header, replacing an existing value in place so the
// original wire position is kept.
func (r *Request) SetHeader(name, value string) {
	for i := range r.headers {
		if r.headers[i].name == name {
			r.headers[i].value = value
			return
		}
	}
	r.headers = append(r.headers, header{name: name, value: value})
}

// Header returns a header value by name.
func (r *Request) Header(name string) (string, bool) {
	for _, h := range r.headers {
		if h.name == name {
			return h.value, true
		}
	}
	return "", false
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	clone := &Request{
		Method: r.Method,
		URL:    r.URL,
		Proto:  r.Proto,
	}
	clone.headers = append([]header(nil), r.headers...)
	return clone
}

// Marshal renders the request in wire form:
// request line, headers in insertion order, terminating blank line.
func (r *Request) Marshal() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s %s\r\n", r.Method, r.URL, r.Proto)
	for _, h := range r.headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.name, h.value)
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func (r *Request) String() string {
	return string(r.Marshal())
}
