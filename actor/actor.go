// Package actor runs workers on their own goroutines under a supervisor.
package actor

import (
	"context"
	"sync"

	"github.com/czx-lab/matchbridge/xlog"
	"go.uber.org/zap"
)

type (
	// Service defines the basic lifecycle methods for an actor.
	Service interface {
		// Start starts the actor in a new goroutine.
		Start()
		// Stop cancels the actor and waits for it to finish.
		Stop()
	}
	// Supervised defines the interface for an actor that can have a parent supervisor.
	Supervised interface {
		WithParent(Supervisor)
	}
	// Actor defines the interface for an actor.
	Actor interface {
		Service
		Supervised
		PID() PID
		// Done is closed once the worker has stopped.
		Done() <-chan struct{}
	}

	// actor is the concrete implementation of the Actor interface.
	// It manages the lifecycle of a Worker.
	actor struct {
		pid         PID
		worker      Worker
		supervision Supervisor // parent actor, nil if root
		ctx         context.Context
		cancel      context.CancelFunc
		done        chan struct{} // closed when the actor has stopped
		started     bool
		mu          sync.Mutex
	}
)

func New(ctx context.Context, pid PID, w Worker) Actor {
	ctx, cancel := context.WithCancel(ctx)
	return &actor{
		pid:    pid,
		worker: w,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// PID implements Actor.
func (a *actor) PID() PID {
	return a.pid
}

// Done implements Actor.
func (a *actor) Done() <-chan struct{} {
	return a.done
}

// WithParent implements Actor.
func (a *actor) WithParent(supervision Supervisor) {
	a.supervision = supervision
}

// Start implements Actor. An actor runs at most once.
func (a *actor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return
	}
	a.started = true

	go a.run()
}

// Stop implements Actor.
func (a *actor) Stop() {
	a.cancel()

	a.mu.Lock()
	started := a.started
	a.mu.Unlock()

	if started {
		<-a.done // wait for actor to stop
	}
}

// run is the main loop of the actor.
func (a *actor) run() {
	defer a.exit()
	defer a.stop() // call OnStop if applicable
	defer a.recovery()

	a.start() // call OnStart if applicable

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
		}
		if a.worker.Exec(a.ctx) == WorkerStopped {
			return
		}
	}
}

func (a *actor) recovery() {
	if r := recover(); r != nil {
		xlog.Write().Error("actor: worker panic",
			zap.String("pid", a.pid.String()),
			zap.Any("panic", r),
		)
	}
}

// exit releases the context, reports to the parent and signals Done.
func (a *actor) exit() {
	a.cancel()
	if a.supervision != nil {
		a.supervision.OnStop(a.pid.String())
	}
	close(a.done)
}

// start calls OnStart if the worker implements StartableWorker.
func (a *actor) start() {
	w, ok := a.worker.(StartableWorker)
	if !ok {
		return
	}
	w.OnStart(a.ctx)
}

// stop calls OnStop if the worker implements StopableWorker.
func (a *actor) stop() {
	w, ok := a.worker.(StopableWorker)
	if !ok {
		return
	}
	defer a.recovery()
	w.OnStop(a.pid.String())
}

var _ Actor = (*actor)(nil)
