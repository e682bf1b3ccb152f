package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	residentHost = "127.0.0.1"

	pingRequest      = "PING"
	pongResponse     = "PONG"
	stdoutRequest    = "STDOUT"
	clipboardRequest = "CLIPBOARD"
	successStatus    = "SUCCESS"
	errorStatus      = "ERROR"

	handshakeTimeout = 3 * time.Second
)

type tcpServer struct {
	mu       sync.Mutex
	lis      net.Listener
	port     int
	incoming chan *tcpConn
	closed   chan struct{}
	once     sync.Once
}

func newTCPServer() *tcpServer {
	return &tcpServer{incoming: make(chan *tcpConn, 8), closed: make(chan struct{})}
}

func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	start, end := getPortRange()
	var lastErr error
	for port := start; port <= end; port++ {
		addr := fmt.Sprintf("%s:%d", residentHost, port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		s.lis = lis
		s.port = port
		log.Printf("singleinstance: listening on %s", addr)
		go s.acceptLoop(ctx, lis)
		return nil
	}
	return fmt.Errorf("singleinstance: no free port in %d-%d: %w", start, end, lastErr)
}

func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		go s.serve(ctx, c)
	}
}

// serve runs the handshake off the accept loop so a silent client cannot
// block pings from other processes.
func (s *tcpServer) serve(ctx context.Context, c net.Conn) {
	tc, ok := s.handshake(c)
	if !ok {
		return
	}
	select {
	case s.incoming <- tc:
	case <-ctx.Done():
		_ = c.Close()
	case <-s.closed:
		_ = c.Close()
	}
}

// handshake reads the first line. Pings are answered and closed here; requests
// are handed to Next.
func (s *tcpServer) handshake(c net.Conn) (*tcpConn, bool) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(handshakeTimeout))
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)
	line, err := br.ReadString('\n')
	if err != nil {
		_ = c.Close()
		return nil, false
	}
	switch strings.TrimSpace(line) {
	case pingRequest:
		_, _ = bw.WriteString(pongResponse + "\n")
		_ = bw.Flush()
		_ = c.Close()
		return nil, false
	case stdoutRequest, clipboardRequest:
	default:
		log.Printf("singleinstance: unknown request %q from %s", strings.TrimSpace(line), remote)
		_ = c.Close()
		return nil, false
	}
	// The selection can take as long as the user needs.
	_ = c.SetDeadline(time.Time{})
	req := Request{OutputToStdout: strings.TrimSpace(line) == stdoutRequest}
	log.Printf("singleinstance: request from %s stdout=%v", remote, req.OutputToStdout)
	return &tcpConn{c: c, r: req, w: bw}, true
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, net.ErrClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.once.Do(func() { close(s.closed) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	err := s.lis.Close()
	s.lis = nil
	return err
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(text string) error {
	if _, err := tc.w.WriteString(successStatus + "\n" + text); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(errorStatus + "\n" + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
