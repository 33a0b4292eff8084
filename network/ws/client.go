package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/czx-lab/matchbridge/network"
	"github.com/gorilla/websocket"
)

type (
	ClientConf struct {
		WsConnConf
		HandshakeTimeout time.Duration
		// extra request headers for the upgrade request
		Header http.Header
	}
	// Client dials websocket connections. It holds no per-connection state
	// and is safe for concurrent use.
	Client struct {
		conf    ClientConf
		dialer  websocket.Dialer
		metrics network.ClientMetrics
	}
)

var _ network.Dialer = (*Client)(nil)

func NewClient(conf ClientConf) *Client {
	defaultClientConf(&conf)

	return &Client{
		conf: conf,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: conf.HandshakeTimeout,
		},
		metrics: &network.NoopClientMetrics{},
	}
}

// WithMetrics sets the metrics every dialed connection reports to.
func (c *Client) WithMetrics(m network.ClientMetrics) *Client {
	if m != nil {
		c.metrics = m
	}
	return c
}

// Dial implements network.Dialer.
func (c *Client) Dial(ctx context.Context, addr string) (network.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, addr, c.conf.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws: dial %s: %w (status %s)", addr, err, resp.Status)
		}
		return nil, fmt.Errorf("ws: dial %s: %w", addr, err)
	}
	conn.SetReadLimit(int64(c.conf.MaxMsgSize))

	return NewConn(conn, &c.conf.WsConnConf).WithMetrics(c.metrics), nil
}

func defaultClientConf(conf *ClientConf) {
	if conf.MaxMsgSize == 0 {
		conf.MaxMsgSize = 4096
	}
	if conf.HandshakeTimeout == 0 {
		conf.HandshakeTimeout = 10 * time.Second
	}
}
