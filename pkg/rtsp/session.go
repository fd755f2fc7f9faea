// Package rtsp implements the camera's RTSP control protocol: wire
// messages, digest authentication, and the session that negotiates and
// captures media streams.
package rtsp

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crlane/mebo/pkg/logger"
	"github.com/crlane/mebo/pkg/sdp"
	"github.com/crlane/mebo/pkg/storage"
	"github.com/crlane/mebo/pkg/stream"
)

const (
	// DefaultUserAgent identifies this client on the wire.
	DefaultUserAgent = "mebo-stream"

	// DefaultPort is the standard RTSP port.
	DefaultPort = 554

	// DefaultMaxPackets bounds each track's capture loop.
	DefaultMaxPackets = 4000

	// DefaultRange is the playback range requested on PLAY.
	DefaultRange = "npt=0.000-"

	// responseBufferSize bounds a single control-channel read.
	responseBufferSize = 4096

	defaultTimeout = 15 * time.Second
)

// Options configures a Session.
type Options struct {
	Port       int
	Username   string
	Realm      string
	Password   string // falls back to the STREAM_PASSWORD environment variable
	UserAgent  string
	Timeout    time.Duration
	MaxPackets int
	OutputDir  string
	Ports      stream.PortRange
}

// StreamResult reports one track's capture outcome.
type StreamResult struct {
	Track   string
	File    string
	Packets int
}

// Session drives one RTSP negotiation over a single persistent TCP
// connection. The control channel is synchronous: one request in flight at
// a time. Media flows over per-track MediaStreams once PLAY succeeds.
type Session struct {
	url  string
	host string
	port int

	userAgent  string
	timeout    time.Duration
	maxPackets int
	outputDir  string
	ports      stream.PortRange

	username string
	realm    string
	password string
	auth     *AuthContext

	conn      net.Conn
	cseq      int
	sessionID string
}

// NewSession builds a session for an RTSP URL. It performs no I/O;
// call Connect before issuing requests.
func NewSession(rawURL string, opts Options) (*Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("malformed URL %q: %v", rawURL, err)}
	}
	if u.Scheme != "rtsp" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if opts.Realm != "" && opts.Username == "" {
		return nil, &ConfigurationError{Reason: "must supply url, username, and realm"}
	}

	port := opts.Port
	if port == 0 {
		if p := u.Port(); p != "" {
			port, _ = strconv.Atoi(p)
		} else {
			port = DefaultPort
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxPackets := opts.MaxPackets
	if maxPackets <= 0 {
		maxPackets = DefaultMaxPackets
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}

	return &Session{
		url:        rawURL,
		host:       u.Hostname(),
		port:       port,
		userAgent:  userAgent,
		timeout:    timeout,
		maxPackets: maxPackets,
		outputDir:  outputDir,
		ports:      opts.Ports,
		username:   opts.Username,
		realm:      opts.Realm,
		password:   opts.Password,
		cseq:       1,
	}, nil
}

// Connect dials the control connection.
func (s *Session) Connect() error {
	address := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	conn, err := net.DialTimeout("tcp", address, s.timeout)
	if err != nil {
		return &SessionError{Reason: fmt.Sprintf("failed to connect to %s: %v", address, err)}
	}
	s.conn = conn
	return nil
}

// Close shuts the control connection.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// SessionID returns the server-issued session identifier, if pinned.
func (s *Session) SessionID() string {
	return s.sessionID
}

// Describe requests the session description for the session URL.
func (s *Session) Describe() (*Response, error) {
	return s.do(NewRequest(MethodDescribe, s.url))
}

// Setup negotiates transport for one track.
func (s *Session) Setup(trackURL, transport, sessionID string) (*Response, error) {
	req := NewRequest(MethodSetup, trackURL)
	req.SetHeader("Transport", transport)
	if sessionID != "" {
		req.SetHeader("Session", sessionID)
	}
	return s.do(req)
}

// Play starts delivery on every track set up under sessionID.
func (s *Session) Play(sessionID, playRange string) (*Response, error) {
	if playRange == "" {
		playRange = DefaultRange
	}
	req := NewRequest(MethodPlay, s.url)
	req.SetHeader("Session", sessionID)
	req.SetHeader("Range", playRange)
	return s.do(req)
}

// Pause is declared by RFC 2326 but the camera's server does not honor it.
func (s *Session) Pause() error {
	return fmt.Errorf("%w: PAUSE", ErrNotImplemented)
}

// Teardown is declared by RFC 2326 but the camera's server does not honor it.
func (s *Session) Teardown() error {
	return fmt.Errorf("%w: TEARDOWN", ErrNotImplemented)
}

// Record is declared by RFC 2326 but the camera's server does not honor it.
func (s *Session) Record() error {
	return fmt.Errorf("%w: RECORD", ErrNotImplemented)
}

// Options is declared by RFC 2326 but the camera's server does not honor it.
func (s *Session) Options() error {
	return fmt.Errorf("%w: OPTIONS", ErrNotImplemented)
}

// CSeq returns the next command sequence number to be sent.
func (s *Session) CSeq() int {
	return s.cseq
}

// do executes one top-level request. The sequence number advances by
// exactly one per attempt, success or failure. A 401 triggers a single
// authenticated resend under the same CSeq; a second 401 is fatal.
func (s *Session) do(req *Request) (*Response, error) {
	defer func() { s.cseq++ }()

	resp, err := s.roundTrip(req)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case 200:
		return resp, nil
	case 401:
		return s.challenge(req, resp)
	default:
		return nil, &SessionError{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Reason:     StatusText(resp.StatusCode),
		}
	}
}

// challenge answers a digest challenge by resending a clone of the request
// with an Authorization header, exactly once. The nonce count advances once
// per completed challenge.
func (s *Session) challenge(req *Request, resp *Response) (*Response, error) {
	nonce, ok := resp.Nonce()
	if !ok {
		return nil, &SessionError{
			Method: req.Method,
			URL:    req.URL,
			Reason: "challenge response carries no usable nonce",
		}
	}

	if s.auth == nil {
		auth, err := NewAuthContext(s.username, s.realm, s.password)
		if err != nil {
			return nil, err
		}
		s.auth = &auth
	}

	primed := s.auth.WithNonce(nonce)
	retry := req.Clone()
	retry.SetHeader("Authorization", primed.Authorization(req.Method, req.URL))

	result, err := s.roundTrip(retry)
	completed := primed.Completed()
	s.auth = &completed
	if err != nil {
		return nil, fmt.Errorf("unable to complete challenge: %w", err)
	}
	if result.StatusCode != 200 {
		return nil, &DigestChallengeError{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: result.StatusCode,
		}
	}
	return result, nil
}

// roundTrip sends one message and reads one response off the control
// connection.
func (s *Session) roundTrip(req *Request) (*Response, error) {
	if s.conn == nil {
		return nil, &SessionError{Reason: "session is not connected"}
	}

	req.SetHeader("User-Agent", s.userAgent)
	req.SetHeader("CSeq", strconv.Itoa(s.cseq))

	logger.Debug("request sent: %s %s (CSeq %d)", req.Method, req.URL, s.cseq)

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return nil, err
	}
	if _, err := s.conn.Write(req.Marshal()); err != nil {
		return nil, &SessionError{Reason: fmt.Sprintf("write failed: %v", err)}
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, responseBufferSize)
	n, err := s.conn.Read(buf)
	if err != nil {
		return nil, &SessionError{Reason: fmt.Sprintf("read failed: %v", err)}
	}

	resp, err := ParseResponse(buf[:n])
	if err != nil {
		return nil, err
	}
	logger.Debug("response received: %d %s", resp.StatusCode, resp.Reason)
	return resp, nil
}

// StartStreams performs the full negotiation: DESCRIBE, SDP parse, one
// SETUP per media descriptor in m= order, a single PLAY, then one capture
// goroutine per stream. It blocks until every capture finishes or ctx is
// cancelled, and returns one result per negotiated track.
func (s *Session) StartStreams(ctx context.Context) ([]StreamResult, error) {
	desc, err := s.Describe()
	if err != nil {
		return nil, err
	}
	logger.Debug("SDP body: %s", desc.Body)

	description, err := sdp.Parse(desc.Body)
	if err != nil {
		return nil, err
	}

	streams := make([]*stream.MediaStream, 0, len(description.Media))
	defer func() {
		for _, ms := range streams {
			ms.Close()
		}
	}()

	for _, media := range description.Media {
		ms, err := stream.New(media, s.host, stream.Options{Ports: s.ports, Timeout: s.timeout})
		if err != nil {
			return nil, err
		}
		streams = append(streams, ms)

		control, err := media.Control()
		if err != nil {
			return nil, err
		}
		trackURL := joinTrackURL(s.url, control)

		resp, err := s.Setup(trackURL, ms.Transport(), s.sessionID)
		if err != nil {
			return nil, err
		}

		if id, ok := resp.SessionID(); ok {
			switch {
			case s.sessionID == "":
				s.sessionID = id
			case s.sessionID != id:
				// The first SETUP's session id is authoritative.
				logger.Warn("got an extra session id: %s (keeping %s)", id, s.sessionID)
			}
		}

		transport, ok := resp.Header("Transport")
		if !ok {
			return nil, &SessionError{
				Method: MethodSetup,
				URL:    trackURL,
				Reason: "SETUP response carries no Transport header",
			}
		}
		if err := ms.Setup(transport); err != nil {
			return nil, err
		}
		logger.Info("RTP stream established for %s on ports %d-%d", media.Name, ms.MediaPort(), ms.RTCPPort())
	}

	if len(streams) == 0 {
		return nil, nil
	}

	if _, err := s.Play(s.sessionID, DefaultRange); err != nil {
		return nil, err
	}

	results := make([]StreamResult, len(streams))
	group, ctx := errgroup.WithContext(ctx)
	for i, ms := range streams {
		i, ms := i, ms
		sink, err := storage.NewTrackSink(s.outputDir, ms.Descriptor())
		if err != nil {
			return nil, err
		}
		results[i] = StreamResult{Track: ms.Descriptor().Label(), File: sink.Path()}
		group.Go(func() error {
			defer sink.Close()
			count, err := ms.Capture(ctx, sink, s.maxPackets)
			results[i].Packets = count
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// joinTrackURL resolves a track's control attribute against the session URL.
func joinTrackURL(base, control string) string {
	if strings.HasPrefix(strings.ToLower(control), "rtsp://") {
		return control
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return control
	}
	ref, err := url.Parse(control)
	if err != nil {
		return control
	}
	return baseURL.ResolveReference(ref).String()
}
