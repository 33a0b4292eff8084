// Package bridge lets a frame-driven caller start matchmaking attempts
// without blocking and pick up their results once per frame.
package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/czx-lab/matchbridge/actor"
	"github.com/czx-lab/matchbridge/event"
	"github.com/czx-lab/matchbridge/network"
	"github.com/czx-lab/matchbridge/network/ws"
	"github.com/czx-lab/matchbridge/protocol"
	"github.com/czx-lab/matchbridge/session"
	"github.com/czx-lab/matchbridge/xlog"
	"go.uber.org/zap"
)

var (
	ErrClosed   = errors.New("bridge: closed")
	ErrNoPlayer = errors.New("bridge: no player configured")
)

type (
	Conf struct {
		// matchmaking endpoint
		URL              string
		HandshakeTimeout time.Duration
		// deadline for each frame write, 0 disables it
		WriteTimeout time.Duration
		// how long an attempt waits for a match after joining, 0 waits forever
		MatchTimeout   time.Duration
		MaxMessageSize uint32
		Framing        protocol.Framing
		// emit a NetworkError when the server hangs up before a match
		ReportClose bool
		// concurrent attempts, 0 means no limit
		MaxSessions int
		Events      event.ChannelConf
	}
	// Bridge owns the attempt supervisor and the receiving end of the
	// result channel. RequestMatch, Poll and Cancel are safe to call from
	// any goroutine but are meant for the caller's frame loop.
	Bridge struct {
		conf       Conf
		ctx        context.Context
		cancel     context.CancelFunc
		supervisor actor.Supervisor
		channel    *event.Channel
		dialer     network.Dialer
		processor  *protocol.Processor
		metrics    network.ClientMetrics
		logger     *zap.Logger
		player     protocol.JoinRequest
		closed     atomic.Bool
		closeOnce  sync.Once
	}
)

// DefaultConf returns the settings used when no configuration file is
// given.
func DefaultConf() Conf {
	return Conf{
		URL:              "ws://127.0.0.1:8080/ws",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxMessageSize:   4096,
		Framing:          protocol.FramingBare,
		ReportClose:      true,
	}
}

func New(conf Conf, opts ...Option) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		conf:    conf,
		ctx:     ctx,
		cancel:  cancel,
		metrics: &network.NoopClientMetrics{},
		logger:  xlog.Write(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.dialer == nil {
		b.dialer = ws.NewClient(ws.ClientConf{
			WsConnConf: ws.WsConnConf{
				MaxMsgSize:   conf.MaxMessageSize,
				WriteTimeout: conf.WriteTimeout,
			},
			HandshakeTimeout: conf.HandshakeTimeout,
		}).WithMetrics(b.metrics)
	}
	if b.processor == nil {
		b.processor = protocol.NewProcessor(protocol.ProcessorConf{Framing: conf.Framing})
	}

	b.channel = event.NewChannel(ctx, conf.Events)
	b.supervisor = actor.NewSupervisor(ctx, actor.SupervisorConf{MaxChildren: conf.MaxSessions})
	b.supervisor.Start()
	return b
}

// RequestMatch starts an attempt for the given player and returns its
// ticket at once. The outcome arrives later through Poll.
func (b *Bridge) RequestMatch(playerID string, trophies int32) (actor.PID, error) {
	req := protocol.JoinRequest{PlayerID: playerID, Trophies: trophies}
	if err := req.Validate(); err != nil {
		return actor.PID{}, err
	}
	if b.closed.Load() {
		return actor.PID{}, ErrClosed
	}

	pid := actor.DefaultPID()
	s := session.New(session.SessionConf{
		URL:          b.conf.URL,
		MatchTimeout: b.conf.MatchTimeout,
		ReportClose:  b.conf.ReportClose,
	}, pid, req, b.channel).
		WithDialer(b.dialer).
		WithProcessor(b.processor).
		WithMetrics(b.metrics).
		WithLogger(b.logger)

	if err := b.supervisor.SpawnChild(pid, s); err != nil {
		if errors.Is(err, actor.ErrSupervisorStopped) {
			return actor.PID{}, ErrClosed
		}
		return actor.PID{}, err
	}
	b.logger.Debug("bridge: match requested", zap.Stringer("ticket", pid), zap.String("player_id", playerID))
	return pid, nil
}

// FindMatch requests a match for the player given with WithPlayer.
func (b *Bridge) FindMatch() (actor.PID, error) {
	if len(b.player.PlayerID) == 0 {
		return actor.PID{}, ErrNoPlayer
	}
	return b.RequestMatch(b.player.PlayerID, b.player.Trophies)
}

// Poll returns at most one pending result, oldest first. It never blocks
// and reports nothing once the bridge is closed.
func (b *Bridge) Poll() (event.Result, bool) {
	if b.closed.Load() {
		return nil, false
	}
	return b.channel.TryReceive()
}

// Cancel stops the attempt behind pid. A cancelled attempt reports
// nothing. Cancel returns false when the attempt already finished or was
// never known; an attempt finishing concurrently may still deliver its
// result.
func (b *Bridge) Cancel(pid actor.PID) bool {
	return b.supervisor.StopChild(pid)
}

// Pending returns the number of attempts still running.
func (b *Bridge) Pending() int {
	return b.supervisor.Len()
}

// Close cancels every attempt, waits for them to release their
// connections and drops results nobody polled. It is idempotent.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		pending := b.supervisor.Len()

		b.supervisor.Stop()
		b.channel.Close()
		b.cancel()

		b.logger.Info("bridge: closed", zap.Int("cancelled", pending))
	})
}

// Init implements matchbridge.Module.
func (b *Bridge) Init() {
	b.logger.Info("bridge: ready",
		zap.String("url", b.conf.URL),
		zap.String("framing", string(b.processor.Framing())),
	)
}

// Run implements matchbridge.Module. Attempts run on their own goroutines,
// so Run only waits for the shutdown signal.
func (b *Bridge) Run(done chan struct{}) {
	select {
	case <-done:
	case <-b.ctx.Done():
	}
}

// Destroy implements matchbridge.Module.
func (b *Bridge) Destroy() {
	b.Close()
}
