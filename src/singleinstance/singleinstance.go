// Package singleinstance lets a run-once invocation hand its selection request
// to an already running resident over loopback TCP.
//
// The protocol is line based. A client first sends PING and expects PONG, then
// opens a second connection and sends STDOUT or CLIPBOARD. The resident answers
// with SUCCESS followed by the rectangle text (stdout mode only), or ERROR
// followed by a message.
package singleinstance

import (
	"context"
)

// Server owns the TCP endpoint and answers run-once requests.
type Server interface {
	// Start listens on the first free port of the configured range.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next request connection, or the ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one client waiting for a selection result.
type Conn interface {
	Request() Request
	// RespondSuccess reports an accepted selection. text is empty in clipboard mode.
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

// Request is a single run-once client request.
type Request struct {
	OutputToStdout bool
}

// Client delegates a run-once invocation to a resident.
type Client interface {
	// TryRunOnce looks for a resident and, when found, waits for it to finish
	// the selection. delegated is false with a nil error when none answers.
	TryRunOnce(ctx context.Context, outputToStdout bool) (delegated bool, text string, err error)
}

func NewServer() Server { return newTCPServer() }

func NewClient() Client { return tcpClient{} }
