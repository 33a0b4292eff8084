package session

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/czx-lab/matchbridge/actor"
	"github.com/czx-lab/matchbridge/event"
	"github.com/czx-lab/matchbridge/network"
	"github.com/czx-lab/matchbridge/network/ws/wstest"
	"github.com/czx-lab/matchbridge/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordSink struct {
	mu      sync.Mutex
	results []event.Result
	closed  bool
}

// Send implements event.Sink.
func (r *recordSink) Send(res event.Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	r.results = append(r.results, res)
	return true
}

func (r *recordSink) all() []event.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]event.Result(nil), r.results...)
}

type recordMetrics struct {
	network.NoopClientMetrics
	mu       sync.Mutex
	outcomes []string
	skipped  int
	active   int
}

func (m *recordMetrics) IncActive() { m.mu.Lock(); m.active++; m.mu.Unlock() }
func (m *recordMetrics) DecActive() { m.mu.Lock(); m.active--; m.mu.Unlock() }
func (m *recordMetrics) IncSkippedFrames() {
	m.mu.Lock()
	m.skipped++
	m.mu.Unlock()
}
func (m *recordMetrics) IncOutcome(o string) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, o)
	m.mu.Unlock()
}

// brokenConn fails every write.
type brokenConn struct{ closed bool }

func (c *brokenConn) ReadMessage() (network.MessageType, []byte, error) {
	return 0, nil, errors.New("unused")
}
func (c *brokenConn) WriteMessage([]byte) error { return errors.New("broken pipe") }
func (c *brokenConn) SetReadDeadline(time.Time) error { return nil }
func (c *brokenConn) LocalAddr() net.Addr { return nil }
func (c *brokenConn) RemoteAddr() net.Addr { return nil }
func (c *brokenConn) Close() error { c.closed = true; return nil }

// deadlineConn accepts writes but cannot arm a read deadline.
type deadlineConn struct {
	brokenConn
	sent int
}

func (c *deadlineConn) WriteMessage(b []byte) error { c.sent += len(b); return nil }
func (c *deadlineConn) SetReadDeadline(time.Time) error {
	return errors.New("deadline unsupported")
}

var p1 = protocol.JoinRequest{PlayerID: "p1", Trophies: 100}

type harness struct {
	sink    *recordSink
	metrics *recordMetrics
	session *Session
	actor   actor.Actor
}

func start(t *testing.T, conf SessionConf, req protocol.JoinRequest, build func(*Session)) *harness {
	t.Helper()
	h := &harness{sink: &recordSink{}, metrics: &recordMetrics{}}
	h.session = New(conf, actor.DefaultPID(), req, h.sink).
		WithMetrics(h.metrics).
		WithLogger(zaptest.NewLogger(t))
	if build != nil {
		build(h.session)
	}
	h.actor = actor.New(context.Background(), h.session.Ticket(), h.session)
	h.actor.Start()
	return h
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.actor.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish")
	}
}

func (h *harness) networkError(t *testing.T) event.NetworkError {
	t.Helper()
	results := h.sink.all()
	require.Len(t, results, 1)
	e, ok := results[0].(event.NetworkError)
	require.True(t, ok, "got %T", results[0])
	assert.Equal(t, h.session.Ticket().String(), e.Attempt())
	return e
}

func TestSessionMatchFound(t *testing.T) {
	want := protocol.MatchFound{OpponentID: "p2", OpponentTrophies: 150, RoomID: "room-7"}
	srv := wstest.NewServer(wstest.ServerConf{}, wstest.Respond(want, protocol.FramingBare))
	defer srv.Close()

	h := start(t, SessionConf{URL: srv.URL(), ReportClose: true}, p1, nil)
	h.wait(t)

	results := h.sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, event.MatchFound{
		Ticket:           h.session.Ticket().String(),
		OpponentID:       "p2",
		OpponentTrophies: 150,
		RoomID:           "room-7",
	}, results[0])
	assert.Equal(t, StateSucceeded, h.session.State())
	assert.Equal(t, []protocol.JoinRequest{p1}, srv.Joins())
	assert.Equal(t, []string{OutcomeMatch}, h.metrics.outcomes)
	assert.Equal(t, 0, h.metrics.active)
}

func TestSessionSkipsOtherFrames(t *testing.T) {
	want := protocol.MatchFound{OpponentID: "p2", OpponentTrophies: 150, RoomID: "room-7"}
	state := protocol.MarshalGameState(protocol.GameState{Elixir: 5, Hand: []int32{1, 2, 3, 4}, ServerTick: 1})
	srv := wstest.NewServer(wstest.ServerConf{}, func(p *wstest.Peer) {
		if _, err := p.ReadJoin(); err != nil {
			return
		}
		_ = p.WriteText("queued")
		_ = p.WriteBinary(state)
		_ = p.WriteBinary([]byte{0xff, 0xff})
		_ = p.WriteMatchFound(want, protocol.FramingEnvelope)
		p.Wait()
	})
	defer srv.Close()

	h := start(t, SessionConf{URL: srv.URL()}, p1, func(s *Session) {
		s.WithProcessor(protocol.NewProcessor(protocol.ProcessorConf{Framing: protocol.FramingEnvelope}))
	})
	h.wait(t)

	results := h.sink.all()
	require.Len(t, results, 1)
	got, ok := results[0].(event.MatchFound)
	require.True(t, ok)
	assert.Equal(t, "room-7", got.RoomID)
	assert.Equal(t, 3, h.metrics.skipped)
	assert.Equal(t, 4, h.session.frames)
}

func TestSessionConnectError(t *testing.T) {
	t.Run("Dialer", func(t *testing.T) {
		dialer := network.DialerFunc(func(context.Context, string) (network.Conn, error) {
			return nil, errors.New("connection refused")
		})
		h := start(t, SessionConf{URL: "ws://127.0.0.1:1/ws"}, p1, func(s *Session) { s.WithDialer(dialer) })
		h.wait(t)

		e := h.networkError(t)
		assert.Equal(t, "connect error: connection refused", e.Message)
		assert.ErrorIs(t, e, ErrConnect)
		assert.Equal(t, StateFailed, h.session.State())
		assert.Equal(t, []string{OutcomeConnect}, h.metrics.outcomes)
	})

	t.Run("Refused", func(t *testing.T) {
		srv := wstest.NewServer(wstest.ServerConf{}, wstest.Hold())
		url := srv.URL()
		srv.Close()

		h := start(t, SessionConf{URL: url}, p1, nil)
		h.wait(t)

		e := h.networkError(t)
		assert.True(t, strings.HasPrefix(e.Message, "connect error: "), e.Message)
		assert.ErrorIs(t, e, ErrConnect)
	})
}

func TestSessionSendError(t *testing.T) {
	conn := &brokenConn{}
	dialer := network.DialerFunc(func(context.Context, string) (network.Conn, error) {
		return conn, nil
	})
	h := start(t, SessionConf{URL: "ws://fake"}, p1, func(s *Session) { s.WithDialer(dialer) })
	h.wait(t)

	e := h.networkError(t)
	assert.Equal(t, "send error: broken pipe", e.Message)
	assert.ErrorIs(t, e, ErrSend)
	assert.True(t, conn.closed, "connection released")
}

func TestSessionPeerClose(t *testing.T) {
	t.Run("Reported", func(t *testing.T) {
		srv := wstest.NewServer(wstest.ServerConf{}, wstest.CloseAfterJoin())
		defer srv.Close()

		h := start(t, SessionConf{URL: srv.URL(), ReportClose: true}, p1, nil)
		h.wait(t)

		e := h.networkError(t)
		assert.Equal(t, "connection closed before a match was found", e.Message)
		assert.ErrorIs(t, e, ErrClosed)
		assert.ErrorIs(t, e, network.ErrPeerClosed)
	})

	t.Run("Quiet", func(t *testing.T) {
		srv := wstest.NewServer(wstest.ServerConf{}, wstest.CloseAfterJoin())
		defer srv.Close()

		h := start(t, SessionConf{URL: srv.URL()}, p1, nil)
		h.wait(t)

		assert.Empty(t, h.sink.all())
		assert.Equal(t, StateFailed, h.session.State())
		assert.Equal(t, []string{OutcomeClosed}, h.metrics.outcomes)
	})
}

func TestSessionReadError(t *testing.T) {
	srv := wstest.NewServer(wstest.ServerConf{}, wstest.DropAfterJoin())
	defer srv.Close()

	h := start(t, SessionConf{URL: srv.URL(), ReportClose: true}, p1, nil)
	h.wait(t)

	e := h.networkError(t)
	assert.True(t, strings.HasPrefix(e.Message, "read error: "), e.Message)
	assert.ErrorIs(t, e, ErrRead)
}

func TestSessionMatchTimeout(t *testing.T) {
	srv := wstest.NewServer(wstest.ServerConf{}, wstest.Hold())
	defer srv.Close()

	h := start(t, SessionConf{URL: srv.URL(), MatchTimeout: 50 * time.Millisecond}, p1, nil)
	h.wait(t)

	e := h.networkError(t)
	assert.Equal(t, "match timeout: no match within 50ms", e.Message)
	assert.ErrorIs(t, e, ErrTimeout)
	assert.Equal(t, []string{OutcomeTimeout}, h.metrics.outcomes)
}

func TestSessionReadDeadlineError(t *testing.T) {
	conn := &deadlineConn{}
	dialer := network.DialerFunc(func(context.Context, string) (network.Conn, error) {
		return conn, nil
	})
	h := start(t, SessionConf{URL: "ws://fake", MatchTimeout: time.Second}, p1, func(s *Session) { s.WithDialer(dialer) })
	h.wait(t)

	e := h.networkError(t)
	assert.Equal(t, "read error: deadline unsupported", e.Message)
	assert.ErrorIs(t, e, ErrRead)
	assert.NotErrorIs(t, e, ErrSend)
	assert.Positive(t, conn.sent)
	assert.Equal(t, []string{OutcomeRead}, h.metrics.outcomes)
	assert.True(t, conn.closed, "connection released")
}

func TestSessionCancel(t *testing.T) {
	srv := wstest.NewServer(wstest.ServerConf{}, wstest.Hold())
	defer srv.Close()

	h := start(t, SessionConf{URL: srv.URL(), ReportClose: true}, p1, nil)
	require.Eventually(t, func() bool { return len(srv.Joins()) == 1 }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return h.session.State() == StateAwaiting }, 2*time.Second, time.Millisecond)

	h.actor.Stop()

	assert.Empty(t, h.sink.all())
	assert.Equal(t, []string{OutcomeCancelled}, h.metrics.outcomes)
	assert.Equal(t, 0, h.metrics.active)
}

func TestSessionCancelDuringConnect(t *testing.T) {
	dialer := network.DialerFunc(func(ctx context.Context, _ string) (network.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := start(t, SessionConf{URL: "ws://fake"}, p1, func(s *Session) { s.WithDialer(dialer) })
	time.Sleep(20 * time.Millisecond)
	h.actor.Stop()

	assert.Empty(t, h.sink.all())
	assert.Equal(t, []string{OutcomeCancelled}, h.metrics.outcomes)
}

func TestSessionInvalidRequestPanics(t *testing.T) {
	dialer := network.DialerFunc(func(context.Context, string) (network.Conn, error) {
		return &brokenConn{}, nil
	})
	sink := &recordSink{}
	metrics := &recordMetrics{}
	s := New(SessionConf{URL: "ws://fake"}, actor.DefaultPID(), protocol.JoinRequest{}, sink).
		WithDialer(dialer).
		WithMetrics(metrics).
		WithLogger(zaptest.NewLogger(t))

	a := actor.New(context.Background(), s.Ticket(), s)
	a.Start()
	select {
	case <-a.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish")
	}

	assert.Empty(t, sink.all())
	assert.Equal(t, []string{OutcomeAborted}, metrics.outcomes)
}

func TestSessionSinkClosed(t *testing.T) {
	want := protocol.MatchFound{OpponentID: "p2", RoomID: "r"}
	srv := wstest.NewServer(wstest.ServerConf{}, wstest.Respond(want, protocol.FramingBare))
	defer srv.Close()

	h := start(t, SessionConf{URL: srv.URL()}, p1, func(s *Session) {
		s.sink.(*recordSink).closed = true
	})
	h.wait(t)

	assert.Empty(t, h.sink.all())
	assert.Equal(t, StateSucceeded, h.session.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "awaiting", StateAwaiting.String())
	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateSending.Terminal())
}
