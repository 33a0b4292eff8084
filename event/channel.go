package event

import (
	"context"
	"sync/atomic"
)

type (
	ChannelConf struct {
		Bufsize int // Initial capacity of the overflow ring
		Insize  int // Size of the input channel
		Outsize int // Size of the output channel
	}
	// Channel is an unbounded many-producer/single-consumer queue of results.
	// Producers hand results to a mover goroutine through the input channel;
	// the mover parks them in a ring buffer and feeds the output channel in
	// arrival order, so Send never waits for the consumer.
	Channel struct {
		conf   ChannelConf
		size   atomic.Int64
		in     chan Result
		out    chan Result
		buffer *ring
		ctx    context.Context
		cancel context.CancelFunc
		done   chan struct{}
	}
)

var _ Sink = (*Channel)(nil)

func NewChannel(ctx context.Context, conf ChannelConf) *Channel {
	ctx, cancel := context.WithCancel(ctx)
	c := &Channel{
		conf:   conf,
		in:     make(chan Result, conf.Insize),
		out:    make(chan Result, conf.Outsize),
		buffer: newRing(conf.Bufsize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go c.worker()

	return c
}

// Send enqueues a result. It returns false when the channel is closed, in
// which case the result is dropped.
func (c *Channel) Send(v Result) bool {
	if v == nil {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	select {
	case c.in <- v:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// TryReceive returns the oldest pending result, or false when none is
// ready. It never blocks.
func (c *Channel) TryReceive() (Result, bool) {
	select {
	case v, ok := <-c.out:
		if !ok {
			return nil, false
		}
		return v, true
	default:
		return nil, false
	}
}

// Out returns the output channel for consumers that prefer to select on it.
// It is closed after Close.
func (c *Channel) Out() <-chan Result {
	return c.out
}

// Len returns the number of results waiting in the input channel, the ring
// and the output channel.
func (c *Channel) Len() int {
	return len(c.in) + c.BufferLen() + len(c.out)
}

// BufferLen returns the number of results parked in the ring.
func (c *Channel) BufferLen() int {
	return int(c.size.Load())
}

// Close stops the mover goroutine. Later sends report false. It is safe to
// call more than once.
func (c *Channel) Close() {
	c.cancel()
	<-c.done
}

// worker moves results from the input channel to the output channel.
// While the ring is empty a result goes straight to out if there is room;
// otherwise it is parked behind the ones already waiting, keeping FIFO.
func (c *Channel) worker() {
	defer close(c.done)
	defer close(c.out)

	for {
		head, ok := c.buffer.peek()
		if !ok {
			select {
			case <-c.ctx.Done():
				return
			case v := <-c.in:
				select {
				case c.out <- v:
				default:
					c.park(v)
				}
			}
			continue
		}

		select {
		case <-c.ctx.Done():
			return
		case v := <-c.in:
			c.park(v)
		case c.out <- head:
			c.buffer.pop()
			c.size.Add(-1)
		}
	}
}

func (c *Channel) park(v Result) {
	c.buffer.push(v)
	c.size.Add(1)
}
