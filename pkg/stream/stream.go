// Package stream owns the per-track UDP transport: socket pair allocation,
// transport negotiation, and the RTP capture loop.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/crlane/mebo/pkg/logger"
	"github.com/crlane/mebo/pkg/rtp"
	"github.com/crlane/mebo/pkg/sdp"
)

const (
	// maxBindAttempts bounds the random-port bind retry loop.
	maxBindAttempts = 3

	// datagramBufferSize is the receive buffer for one RTP datagram.
	datagramBufferSize = 4096

	// DefaultTimeout is the per-receive socket timeout.
	DefaultTimeout = 15 * time.Second
)

// primingBytes is the magic datagram sent to the server's media port after
// SETUP to open the return path. No response is expected.
var primingBytes = []byte{0xfe, 0xed, 0xfa, 0xce}

// serverPortPattern extracts the remote RTP/RTCP port pair from the
// Transport header returned by SETUP.
var serverPortPattern = regexp.MustCompile(`server_port=(\d+)-(\d+)`)

var (
	// ErrBindExhausted indicates no local port pair could be acquired
	ErrBindExhausted = errors.New("unable to bind media port pair")
	// ErrNoServerPorts indicates a Transport header without server_port
	ErrNoServerPorts = errors.New("no server_port in transport header")
)

// PortRange is the even-numbered range media ports are drawn from.
type PortRange struct {
	Min int
	Max int
}

// DefaultPortRange matches the camera's expected client port window.
var DefaultPortRange = PortRange{Min: 50000, Max: 60000}

// choose picks a random even port in the range.
func (r PortRange) choose() int {
	n := (r.Max - r.Min) / 2
	if n <= 0 {
		return r.Min
	}
	return r.Min + 2*rand.Intn(n)
}

// Options configures a MediaStream.
type Options struct {
	Ports   PortRange
	Timeout time.Duration
}

// MediaStream owns one track's local UDP socket pair. The RTCP socket is
// bound on media port + 1 and kept reserved but inert: the camera never
// drives it and neither do we.
type MediaStream struct {
	desc *sdp.MediaDescriptor
	host string

	media *net.UDPConn
	rtcp  *net.UDPConn

	serverMediaPort int
	serverRTCPPort  int

	timeout time.Duration
}

// New binds a UDP socket pair for the track described by desc, retrying
// with a fresh random port on bind failure. Exhausting the retry bound is
// fatal, not recoverable.
func New(desc *sdp.MediaDescriptor, host string, opts Options) (*MediaStream, error) {
	ports := opts.Ports
	if ports.Max <= ports.Min {
		ports = DefaultPortRange
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &MediaStream{
		desc:    desc,
		host:    host,
		timeout: timeout,
	}

	var lastErr error
	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		port := ports.choose()
		media, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
		if err != nil {
			lastErr = err
			logger.Warn("failed to bind media port %d: %v", port, err)
			continue
		}
		rtcp, err := net.ListenUDP("udp", &net.UDPAddr{Port: port + 1})
		if err != nil {
			lastErr = err
			logger.Warn("failed to bind RTCP port %d: %v", port+1, err)
			media.Close()
			continue
		}
		s.media = media
		s.rtcp = rtcp
		return s, nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrBindExhausted, maxBindAttempts, lastErr)
}

// Descriptor returns the SDP media descriptor this stream was built from.
func (s *MediaStream) Descriptor() *sdp.MediaDescriptor {
	return s.desc
}

// MediaPort returns the bound local RTP port.
func (s *MediaStream) MediaPort() int {
	return s.media.LocalAddr().(*net.UDPAddr).Port
}

// RTCPPort returns the bound local RTCP port, always media port + 1.
func (s *MediaStream) RTCPPort() int {
	return s.MediaPort() + 1
}

// Transport yields the client-side transport offer for SETUP.
func (s *MediaStream) Transport() string {
	return fmt.Sprintf("%s;unicast;client_port=%d-%d", s.desc.Profile, s.MediaPort(), s.RTCPPort())
}

// ServerPorts returns the remote media and RTCP ports recorded by Setup.
func (s *MediaStream) ServerPorts() (int, int) {
	return s.serverMediaPort, s.serverRTCPPort
}

// Setup records the server port pair from the SETUP Transport header and
// sends one priming datagram to the remote media port to open the path.
func (s *MediaStream) Setup(transportHeader string) error {
	match := serverPortPattern.FindStringSubmatch(transportHeader)
	if match == nil {
		return fmt.Errorf("%w: %q", ErrNoServerPorts, transportHeader)
	}
	mediaPort, _ := strconv.Atoi(match[1])
	rtcpPort, _ := strconv.Atoi(match[2])
	s.serverMediaPort = mediaPort
	s.serverRTCPPort = rtcpPort
	logger.Debug("server ports for %s: media=%d rtcp=%d", s.desc.Name, mediaPort, rtcpPort)

	remote := &net.UDPAddr{IP: net.ParseIP(s.host), Port: mediaPort}
	if remote.IP == nil {
		addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(s.host, match[1]))
		if err != nil {
			return fmt.Errorf("failed to resolve media host %s: %w", s.host, err)
		}
		remote = addr
	}
	if _, err := s.media.WriteToUDP(primingBytes, remote); err != nil {
		return fmt.Errorf("failed to send priming datagram: %w", err)
	}
	return nil
}

// Capture receives datagrams until maxPackets have been read, the socket
// times out, or ctx is cancelled, writing reassembled media to sink. Video
// payloads are depacketized to Annex-B, audio payloads pass through
// unchanged. A packet that fails to decode is logged and skipped. Returns
// the count of successfully processed packets.
func (s *MediaStream) Capture(ctx context.Context, sink io.Writer, maxPackets int) (int, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			// Unblock the pending read.
			s.media.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	buf := make([]byte, datagramBufferSize)
	processed := 0

	for received := 0; received < maxPackets; received++ {
		if ctx.Err() != nil {
			break
		}
		if err := s.media.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return processed, err
		}

		n, _, err := s.media.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("capture for %s cancelled after %d packets", s.desc.Name, processed)
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				logger.Info("capture for %s timed out after %d packets", s.desc.Name, processed)
				break
			}
			return processed, fmt.Errorf("receive on %s failed: %w", s.desc.Name, err)
		}

		data, err := s.decode(buf[:n])
		if err != nil {
			logger.Error("unable to decode packet on %s: %v", s.desc.Name, err)
			continue
		}
		if _, err := sink.Write(data); err != nil {
			return processed, fmt.Errorf("sink write for %s failed: %w", s.desc.Name, err)
		}
		processed++
	}

	logger.Debug("captured %d packets on %s", processed, s.desc.Name)
	return processed, nil
}

// decode strips the RTP header and, for video, reassembles the NAL payload.
func (s *MediaStream) decode(datagram []byte) ([]byte, error) {
	packet, err := rtp.ParsePacket(datagram)
	if err != nil {
		return nil, err
	}
	if s.desc.Name == "video" {
		return rtp.DepacketizeH264(packet.Payload)
	}
	return packet.Payload, nil
}

// Close releases both sockets.
func (s *MediaStream) Close() error {
	var errs []error
	if s.media != nil {
		if err := s.media.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.rtcp != nil {
		if err := s.rtcp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing stream sockets: %v", errs)
	}
	return nil
}
