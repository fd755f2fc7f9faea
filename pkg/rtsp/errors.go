package rtsp

import (
	"errors"
	"fmt"
)

// ErrNotImplemented marks RTSP methods the camera's server does not support.
var ErrNotImplemented = errors.New("method not implemented")

// ConfigurationError reports missing credentials or malformed session inputs.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// SessionError reports a control-channel failure: an unexpected status code,
// a missing or malformed challenge, or a malformed response.
type SessionError struct {
	Method     string
	URL        string
	StatusCode int
	Reason     string
}

func (e *SessionError) Error() string {
	if e.Method != "" && e.StatusCode != 0 {
		return fmt.Sprintf("RTSP %s %s failed: %d %s", e.Method, e.URL, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("RTSP session error: %s", e.Reason)
}

// DigestChallengeError reports that a request resent with an Authorization
// header still failed. The challenge is attempted exactly once per request.
type DigestChallengeError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *DigestChallengeError) Error() string {
	return fmt.Sprintf("digest challenge for %s %s failed with status %d", e.Method, e.URL, e.StatusCode)
}

// StatusText returns a human-readable message for an RTSP status code
func StatusText(statusCode int) string {
	messages := map[int]string{
		100: "Continue",
		200: "OK",
		301: "Moved Permanently",
		302: "Moved Temporarily",
		400: "Bad Request",
		401: "Unauthorized",
		403: "Forbidden",
		404: "Not Found",
		405: "Method Not Allowed",
		406: "Not Acceptable",
		408: "Request Timeout",
		451: "Parameter Not Understood",
		453: "Not Enough Bandwidth",
		454: "Session Not Found",
		455: "Method Not Valid in This State",
		457: "Invalid Range",
		459: "Aggregate Operation Not Allowed",
		461: "Unsupported Transport",
		462: "Destination Unreachable",
		500: "Internal Server Error",
		501: "Not Implemented",
		503: "Service Unavailable",
		505: "RTSP Version Not Supported",
		551: "Option Not Supported",
	}

	if msg, ok := messages[statusCode]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown Error %d", statusCode)
}
