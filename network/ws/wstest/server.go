// Package wstest provides an in-process matchmaking server speaking the
// websocket wire protocol, for tests.
package wstest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/czx-lab/matchbridge/protocol"
	"github.com/gorilla/websocket"
)

// waitClient bounds how long a peer waits for the client to hang up.
const waitClient = 5 * time.Second

type (
	// Handler serves one client connection. The connection is closed when
	// it returns.
	Handler func(p *Peer)

	ServerConf struct {
		// Path the upgrade handler is mounted on, default /ws
		Path       string
		MaxMsgSize uint32
	}
	// Server is a fake matchmaking endpoint backed by httptest.
	Server struct {
		conf     ServerConf
		srv      *httptest.Server
		handler  Handler
		upgrader websocket.Upgrader
		mu       sync.Mutex
		wg       sync.WaitGroup
		conns    map[*websocket.Conn]struct{}
		joins    []protocol.JoinRequest
		closed   bool
	}
	// Peer is the server side of one client connection.
	Peer struct {
		server *Server
		conn   *websocket.Conn
		mu     sync.Mutex
	}
)

func NewServer(conf ServerConf, handler Handler) *Server {
	if len(conf.Path) == 0 {
		conf.Path = "/ws"
	}
	if conf.MaxMsgSize == 0 {
		conf.MaxMsgSize = 4096
	}

	s := &Server{
		conf:    conf,
		handler: handler,
		conns:   make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.Handle(conf.Path, s)
	s.srv = httptest.NewServer(mux)
	return s
}

// URL returns the ws:// address of the upgrade handler.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + s.conf.Path
}

// Joins returns the join requests received so far.
func (s *Server) Joins() []protocol.JoinRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]protocol.JoinRequest(nil), s.joins...)
}

// Conns returns the number of open client connections.
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conns)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(int64(s.conf.MaxMsgSize))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.wg.Done()
	}()

	s.handler(&Peer{server: s, conn: conn})
}

// Close drops every client connection and shuts the listener down.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.srv.Close()
}

// ReadJoin reads the next frame as a join request and records it.
func (p *Peer) ReadJoin() (protocol.JoinRequest, error) {
	typ, b, err := p.conn.ReadMessage()
	if err != nil {
		return protocol.JoinRequest{}, err
	}
	if typ != websocket.BinaryMessage {
		return protocol.JoinRequest{}, fmt.Errorf("wstest: expected binary frame, got type %d", typ)
	}
	req, err := protocol.UnmarshalJoin(b)
	if err != nil {
		return protocol.JoinRequest{}, err
	}

	p.server.mu.Lock()
	p.server.joins = append(p.server.joins, req)
	p.server.mu.Unlock()
	return req, nil
}

// WriteBinary writes one binary frame.
func (p *Peer) WriteBinary(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.conn.WriteMessage(websocket.BinaryMessage, b)
}

// WriteText writes one text frame.
func (p *Peer) WriteText(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// WriteMatchFound writes a match-found frame in the given framing.
func (p *Peer) WriteMatchFound(m protocol.MatchFound, framing protocol.Framing) error {
	return p.WriteBinary(protocol.MarshalMatchFound(m, framing))
}

// WriteGameState writes an enveloped game-state frame.
func (p *Peer) WriteGameState(s protocol.GameState) error {
	return p.WriteBinary(protocol.MarshalGameState(s))
}

// CloseNormal sends a normal-closure frame. The client sees an orderly
// close.
func (p *Peer) CloseNormal() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	return p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// Drop closes the socket without a close frame.
func (p *Peer) Drop() error {
	return p.conn.Close()
}

// Wait blocks until the client hangs up, discarding anything it sends.
// It gives up after a few seconds.
func (p *Peer) Wait() {
	_ = p.conn.SetReadDeadline(time.Now().Add(waitClient))
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}
