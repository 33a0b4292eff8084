package bridge

import (
	"github.com/czx-lab/matchbridge/network"
	"github.com/czx-lab/matchbridge/protocol"
	"go.uber.org/zap"
)

type Option func(b *Bridge)

// WithDialer replaces the websocket dialer, e.g. with a test double.
func WithDialer(d network.Dialer) Option {
	return func(b *Bridge) {
		b.dialer = d
	}
}

// WithProcessor replaces the codec built from Conf.Framing.
func WithProcessor(p *protocol.Processor) Option {
	return func(b *Bridge) {
		b.processor = p
	}
}

// WithMetrics reports attempts and transfer sizes to m.
func WithMetrics(m network.ClientMetrics) Option {
	return func(b *Bridge) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithPlayer sets the identity FindMatch queues with.
func WithPlayer(playerID string, trophies int32) Option {
	return func(b *Bridge) {
		b.player = protocol.JoinRequest{PlayerID: playerID, Trophies: trophies}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}
