package ws

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/czx-lab/matchbridge/network"
	"github.com/gorilla/websocket"
)

// closeGrace bounds the close frame written by Close.
const closeGrace = time.Second

var (
	// ErrConnClosed is returned when the connection is closed.
	ErrConnClosed      = errors.New("connection closed")
	ErrMessageTooLong  = errors.New("message too long")
	ErrMessageTooShort = errors.New("message too short")
)

type (
	WsConnConf struct {
		MaxMsgSize uint32
		// deadline for each write, 0 disables it
		WriteTimeout time.Duration
	}

	// WsConn wraps a gorilla/websocket.Conn. Writes are serialized by a
	// mutex; Close may be called from any goroutine.
	WsConn struct {
		mu      sync.Mutex
		opt     *WsConnConf
		conn    *websocket.Conn
		closed  atomic.Bool
		metrics network.ClientMetrics
	}
)

var _ network.Conn = (*WsConn)(nil)

func NewConn(conn *websocket.Conn, opt *WsConnConf) *WsConn {
	return &WsConn{
		opt:     opt,
		conn:    conn,
		metrics: &network.NoopClientMetrics{},
	}
}

// WithMetrics counts the bytes moved by the connection into m.
func (w *WsConn) WithMetrics(m network.ClientMetrics) *WsConn {
	if m != nil {
		w.metrics = m
	}
	return w
}

// Close implements Conn. It sends a normal-closure frame on a best effort
// basis and closes the socket.
func (w *WsConn) Close() error {
	if w.closed.Swap(true) {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	return w.conn.Close()
}

// LocalAddr implements Conn.
func (w *WsConn) LocalAddr() net.Addr {
	return w.conn.LocalAddr()
}

// RemoteAddr implements Conn.
func (w *WsConn) RemoteAddr() net.Addr {
	return w.conn.RemoteAddr()
}

// SetReadDeadline implements Conn.
func (w *WsConn) SetReadDeadline(t time.Time) error {
	return w.conn.SetReadDeadline(t)
}

// ReadMessage implements Conn. A close frame from the peer is reported as
// network.ErrPeerClosed and an expired deadline as network.ErrReadTimeout.
func (w *WsConn) ReadMessage() (network.MessageType, []byte, error) {
	typ, b, err := w.conn.ReadMessage()
	if err != nil {
		return 0, nil, w.readError(err)
	}
	w.metrics.AddReceivedBytes(len(b))
	return network.MessageType(typ), b, nil
}

func (w *WsConn) readError(err error) error {
	if w.closed.Load() {
		return fmt.Errorf("%w: %v", ErrConnClosed, err)
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
		return fmt.Errorf("%w: %v", network.ErrPeerClosed, ce)
	}
	// gorilla hides the deadline error behind its own net.Error
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", network.ErrReadTimeout, err)
	}
	return err
}

// WriteMessage implements Conn.
func (w *WsConn) WriteMessage(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed.Load() {
		return ErrConnClosed
	}

	if w.opt.MaxMsgSize > 0 && len(b) > int(w.opt.MaxMsgSize) {
		return ErrMessageTooLong
	}

	if len(b) < 1 {
		return ErrMessageTooShort
	}

	if w.opt.WriteTimeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.opt.WriteTimeout)); err != nil {
			return err
		}
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return err
	}

	w.metrics.AddSentBytes(len(b))
	return nil
}
