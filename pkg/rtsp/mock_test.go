package rtsp

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
)

// mockServer is a scripted RTSP server for tests. Responses are queued per
// method and consumed in FIFO order; every request head is recorded verbatim.
type mockServer struct {
	listener net.Listener

	mu        sync.Mutex
	responses map[string][]string
	requests  []string
	conns     []net.Conn
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}

	s := &mockServer{
		listener:  listener,
		responses: make(map[string][]string),
	}
	go s.accept()
	t.Cleanup(s.stop)
	return s
}

func (s *mockServer) stop() {
	s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
}

// url builds an rtsp:// URL pointing at the mock server.
func (s *mockServer) url(path string) string {
	port := s.listener.Addr().(*net.TCPAddr).Port
	return fmt.Sprintf("rtsp://127.0.0.1:%d%s", port, path)
}

// enqueue appends one scripted response for a method.
func (s *mockServer) enqueue(method, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method] = append(s.responses[method], response)
}

// requestsFor returns the recorded request heads for a method, in order.
func (s *mockServer) requestsFor(method string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, req := range s.requests {
		if strings.HasPrefix(req, method+" ") {
			out = append(out, req)
		}
	}
	return out
}

func (s *mockServer) accept() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *mockServer) handle(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for {
		request, err := readRequestHead(reader)
		if err != nil {
			return
		}

		method, _, _ := strings.Cut(request, " ")

		s.mu.Lock()
		s.requests = append(s.requests, request)
		queue := s.responses[method]
		var response string
		if len(queue) > 0 {
			response = queue[0]
			s.responses[method] = queue[1:]
		}
		s.mu.Unlock()

		if response == "" {
			response = "RTSP/1.0 500 Internal Server Error\r\n\r\n"
		}
		if _, err := conn.Write([]byte(response)); err != nil {
			return
		}
	}
}

// readRequestHead reads one request through the blank line that ends its
// headers. Client requests never carry a body.
func readRequestHead(reader *bufio.Reader) (string, error) {
	var head strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		head.WriteString(line)
		if line == "\r\n" {
			return head.String(), nil
		}
	}
}

// headerValue extracts a header value from a recorded request head.
func headerValue(request, name string) string {
	for _, line := range strings.Split(request, "\r\n") {
		if v, ok := strings.CutPrefix(line, name+": "); ok {
			return v
		}
	}
	return ""
}

func okResponse(cseq int) string {
	return fmt.Sprintf("RTSP/1.0 200 OK\r\nCSeq: %d\r\n\r\n", cseq)
}

func challengeResponse(cseq int, nonce string) string {
	return fmt.Sprintf("RTSP/1.0 401 Unauthorized\r\n"+
		"CSeq: %d\r\n"+
		`WWW-Authenticate: Digest realm="realm", nonce="%s"`+"\r\n"+
		"\r\n", cseq, nonce)
}

func describeResponse(cseq int, body string) string {
	return fmt.Sprintf("RTSP/1.0 200 OK\r\n"+
		"CSeq: %d\r\n"+
		"Content-Type: application/sdp\r\n"+
		"Content-Length: %d\r\n"+
		"\r\n%s", cseq, len(body), body)
}

func setupResponse(cseq int, session string, serverPort int) string {
	return fmt.Sprintf("RTSP/1.0 200 OK\r\n"+
		"CSeq: %d\r\n"+
		"Session: %s;timeout=60\r\n"+
		"Transport: RTP/AVP;unicast;client_port=50000-50001;server_port=%d-%d\r\n"+
		"\r\n", cseq, session, serverPort, serverPort+1)
}

func playResponse(cseq int, session string) string {
	return fmt.Sprintf("RTSP/1.0 200 OK\r\nCSeq: %d\r\nSession: %s\r\n\r\n", cseq, session)
}
