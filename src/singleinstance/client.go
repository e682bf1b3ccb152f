package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

const pingTimeout = 300 * time.Millisecond

type tcpClient struct{}

func (tcpClient) TryRunOnce(ctx context.Context, outputToStdout bool) (bool, string, error) {
	port, ok := DetectResidentPort(ctx)
	if !ok {
		return false, "", nil
	}
	addr := net.JoinHostPort(residentHost, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, "", nil
	}
	defer conn.Close()
	// Unblock the read below when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	req := clipboardRequest
	if outputToStdout {
		req = stdoutRequest
	}
	if _, err := io.WriteString(conn, req+"\n"); err != nil {
		return true, "", fmt.Errorf("failed to send request: %w", err)
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		if ctx.Err() != nil {
			return true, "", ctx.Err()
		}
		return true, "", fmt.Errorf("failed to read response: %w", err)
	}
	body, _ := io.ReadAll(br)
	switch strings.TrimSpace(status) {
	case successStatus:
		return true, string(body), nil
	case errorStatus:
		return true, "", errors.New(string(body))
	}
	return true, "", fmt.Errorf("unexpected response %q", strings.TrimSpace(status))
}

// DetectResidentPort scans the port range and returns the first port whose
// listener answers PING.
func DetectResidentPort(ctx context.Context) (int, bool) {
	timeout := pingTimeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < timeout {
			timeout = d
		}
	}
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if ping(net.JoinHostPort(residentHost, strconv.Itoa(port)), timeout) {
			return port, true
		}
	}
	return 0, false
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := io.WriteString(conn, pingRequest+"\n"); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && strings.TrimSpace(resp) == pongResponse
}
