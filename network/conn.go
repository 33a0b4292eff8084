// Package network defines the transport seen by matchmaking sessions.
package network

import (
	"context"
	"errors"
	"net"
	"time"
)

// MessageType mirrors the websocket frame opcodes a Conn can deliver.
type MessageType int

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
)

var (
	// ErrPeerClosed is returned by ReadMessage when the peer closed the
	// connection with a close frame.
	ErrPeerClosed = errors.New("connection closed by peer")
	// ErrReadTimeout is returned by ReadMessage when the read deadline passed.
	ErrReadTimeout = errors.New("read deadline exceeded")
)

type (
	Conn interface {
		// ReadMessage blocks until the next data frame arrives.
		ReadMessage() (MessageType, []byte, error)
		// WriteMessage sends one binary frame.
		WriteMessage(b []byte) error
		// SetReadDeadline bounds pending and future reads. A zero value
		// clears the deadline.
		SetReadDeadline(t time.Time) error
		// LocalAddr returns the local address of the connection.
		LocalAddr() net.Addr
		// RemoteAddr returns the remote address of the connection.
		RemoteAddr() net.Addr
		// Close closes the connection. It unblocks a pending ReadMessage and
		// is safe to call more than once and from another goroutine.
		Close() error
	}
	// Dialer opens a Conn to addr. Implementations honour ctx for the whole
	// handshake.
	Dialer interface {
		Dial(ctx context.Context, addr string) (Conn, error)
	}
	// DialerFunc adapts a function to the Dialer interface.
	DialerFunc func(ctx context.Context, addr string) (Conn, error)
)

// Dial implements Dialer.
func (fn DialerFunc) Dial(ctx context.Context, addr string) (Conn, error) {
	return fn(ctx, addr)
}

var _ Dialer = (DialerFunc)(nil)
