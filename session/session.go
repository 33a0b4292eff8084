// Package session runs one matchmaking attempt: connect, send the join
// request, wait for a match. Every attempt ends with at most one result on
// its sink.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/czx-lab/matchbridge/actor"
	"github.com/czx-lab/matchbridge/event"
	"github.com/czx-lab/matchbridge/network"
	"github.com/czx-lab/matchbridge/network/ws"
	"github.com/czx-lab/matchbridge/protocol"
	"github.com/czx-lab/matchbridge/xlog"
	"go.uber.org/zap"
)

type State int32

const (
	StateConnecting State = iota
	StateSending
	StateAwaiting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSending:
		return "sending"
	case StateAwaiting:
		return "awaiting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

type (
	SessionConf struct {
		// matchmaking endpoint, ws:// or wss://
		URL string
		// how long to wait for a match after the join request went out,
		// 0 waits forever
		MatchTimeout time.Duration
		// report a peer close before any match as a NetworkError instead
		// of ending quietly
		ReportClose bool
	}
	// Session is an actor.Worker driving one attempt through its states.
	// Each Exec call runs exactly one state.
	Session struct {
		conf      SessionConf
		ticket    actor.PID
		req       protocol.JoinRequest
		sink      event.Sink
		dialer    network.Dialer
		processor *protocol.Processor
		metrics   network.ClientMetrics
		logger    *zap.Logger

		state    atomic.Int32
		ctx      context.Context
		conn     network.Conn
		stopConn func() bool
		started  time.Time
		frames   int
		outcome  string
	}
)

var (
	_ actor.Worker          = (*Session)(nil)
	_ actor.StartableWorker = (*Session)(nil)
	_ actor.StopableWorker  = (*Session)(nil)
)

func New(conf SessionConf, ticket actor.PID, req protocol.JoinRequest, sink event.Sink) *Session {
	return &Session{
		conf:      conf,
		ticket:    ticket,
		req:       req,
		sink:      sink,
		dialer:    ws.NewClient(ws.ClientConf{}),
		processor: protocol.NewProcessor(protocol.ProcessorConf{}),
		metrics:   &network.NoopClientMetrics{},
		logger:    xlog.Write(),
	}
}

func (s *Session) WithDialer(d network.Dialer) *Session {
	if d != nil {
		s.dialer = d
	}
	return s
}

func (s *Session) WithProcessor(p *protocol.Processor) *Session {
	if p != nil {
		s.processor = p
	}
	return s
}

func (s *Session) WithMetrics(m network.ClientMetrics) *Session {
	if m != nil {
		s.metrics = m
	}
	return s
}

func (s *Session) WithLogger(l *zap.Logger) *Session {
	if l != nil {
		s.logger = l
	}
	return s
}

// Ticket returns the attempt id stamped on the result.
func (s *Session) Ticket() actor.PID {
	return s.ticket
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// OnStart implements actor.StartableWorker.
func (s *Session) OnStart(ctx context.Context) {
	s.ctx = ctx
	s.started = time.Now()
	s.logger = s.logger.With(
		zap.String("ticket", s.ticket.String()),
		zap.String("player_id", s.req.PlayerID),
	)
	s.metrics.IncAttempts()
	s.metrics.IncActive()
	s.logger.Debug("session: started", zap.String("url", s.conf.URL), zap.Int32("trophies", s.req.Trophies))
}

// Exec implements actor.Worker.
func (s *Session) Exec(ctx context.Context) actor.WorkerState {
	switch s.State() {
	case StateConnecting:
		return s.connect(ctx)
	case StateSending:
		return s.send(ctx)
	case StateAwaiting:
		return s.await(ctx)
	}
	return actor.WorkerStopped
}

// OnStop implements actor.StopableWorker. It releases the connection and
// records the outcome.
func (s *Session) OnStop(string) {
	if s.stopConn != nil {
		s.stopConn()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}

	if len(s.outcome) == 0 {
		s.outcome = OutcomeAborted
		if s.ctx != nil && s.ctx.Err() != nil {
			s.outcome = OutcomeCancelled
		}
	}

	elapsed := time.Since(s.started)
	s.metrics.DecActive()
	s.metrics.IncOutcome(s.outcome)
	s.metrics.ObserveDuration(elapsed)
	s.metrics.ObserveFrames(s.frames)
	s.logger.Info("session: finished",
		zap.String("outcome", s.outcome),
		zap.Stringer("state", s.State()),
		zap.Duration("elapsed", elapsed),
		zap.Int("frames", s.frames),
	)
}

func (s *Session) connect(ctx context.Context) actor.WorkerState {
	conn, err := s.dialer.Dial(ctx, s.conf.URL)
	if err != nil {
		return s.fail(ctx, ErrConnect, OutcomeConnect, err)
	}
	s.conn = conn
	// a cancelled attempt must not stay parked in a read
	s.stopConn = context.AfterFunc(ctx, func() { _ = conn.Close() })

	s.state.Store(int32(StateSending))
	return actor.WorkerRunning
}

func (s *Session) send(ctx context.Context) actor.WorkerState {
	b, err := s.processor.Marshal(s.req)
	if err != nil {
		// requests are validated before a session is built
		panic(fmt.Sprintf("session: encoding join request: %v", err))
	}
	if err := s.conn.WriteMessage(b); err != nil {
		return s.fail(ctx, ErrSend, OutcomeSend, err)
	}

	if s.conf.MatchTimeout > 0 {
		// the request is out; a connection that cannot arm the deadline is
		// unusable for reading
		if err := s.conn.SetReadDeadline(time.Now().Add(s.conf.MatchTimeout)); err != nil {
			return s.fail(ctx, ErrRead, OutcomeRead, err)
		}
	}

	s.state.Store(int32(StateAwaiting))
	return actor.WorkerRunning
}

func (s *Session) await(ctx context.Context) actor.WorkerState {
	typ, b, err := s.conn.ReadMessage()
	if err != nil {
		return s.readFailed(ctx, err)
	}
	s.frames++

	if typ != network.BinaryMessage {
		s.skip("non-binary frame", len(b))
		return actor.WorkerRunning
	}
	m, ok := s.processor.Unmarshal(b)
	if !ok {
		s.skip("not a match result", len(b))
		return actor.WorkerRunning
	}

	s.state.Store(int32(StateSucceeded))
	if ctx.Err() != nil {
		s.outcome = OutcomeCancelled
		return actor.WorkerStopped
	}
	s.outcome = OutcomeMatch
	s.logger.Info("session: match found",
		zap.String("opponent_id", m.OpponentID),
		zap.Int32("opponent_trophies", m.OpponentTrophies),
		zap.String("room_id", m.RoomID),
	)
	s.emit(event.MatchFound{
		Ticket:           s.ticket.String(),
		OpponentID:       m.OpponentID,
		OpponentTrophies: m.OpponentTrophies,
		RoomID:           m.RoomID,
	})
	return actor.WorkerStopped
}

func (s *Session) readFailed(ctx context.Context, err error) actor.WorkerState {
	switch {
	case ctx.Err() != nil:
		return s.fail(ctx, ErrRead, OutcomeRead, err)
	case errors.Is(err, network.ErrPeerClosed):
		if !s.conf.ReportClose {
			s.state.Store(int32(StateFailed))
			s.outcome = OutcomeClosed
			s.logger.Debug("session: closed by peer before a match", zap.Error(err))
			return actor.WorkerStopped
		}
		return s.fail(ctx, ErrClosed, OutcomeClosed, err)
	case errors.Is(err, network.ErrReadTimeout):
		return s.fail(ctx, ErrTimeout, OutcomeTimeout, err)
	}
	return s.fail(ctx, ErrRead, OutcomeRead, err)
}

// fail moves to StateFailed and reports class. Nothing is reported when
// the attempt was cancelled.
func (s *Session) fail(ctx context.Context, class error, outcome string, err error) actor.WorkerState {
	s.state.Store(int32(StateFailed))
	if ctx.Err() != nil {
		s.outcome = OutcomeCancelled
		return actor.WorkerStopped
	}
	s.outcome = outcome

	var msg string
	switch class {
	case ErrClosed:
		msg = ErrClosed.Error()
	case ErrTimeout:
		msg = fmt.Sprintf("%v: no match within %s", ErrTimeout, s.conf.MatchTimeout)
	default:
		msg = fmt.Sprintf("%v: %v", class, err)
	}
	s.logger.Warn("session: attempt failed", zap.String("outcome", outcome), zap.Error(err))
	s.emit(event.NetworkError{
		Ticket:  s.ticket.String(),
		Message: msg,
		Err:     fmt.Errorf("%w: %w", class, err),
	})
	return actor.WorkerStopped
}

func (s *Session) skip(reason string, size int) {
	s.metrics.IncSkippedFrames()
	s.logger.Debug("session: frame skipped", zap.String("reason", reason), zap.Int("size", size))
}

func (s *Session) emit(r event.Result) {
	if !s.sink.Send(r) {
		s.logger.Debug("session: result dropped, nobody is listening")
	}
}
