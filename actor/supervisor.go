package actor

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrSupervisorStopped = errors.New("actor: supervisor stopped")
	ErrTooManyChildren   = errors.New("actor: too many children")
	ErrDuplicatePID      = errors.New("actor: duplicate pid")
)

type (
	// Supervisor is an interface that extends Service and StopableWorker.
	// It owns child actors and forgets each one as soon as it stops.
	Supervisor interface {
		Service
		StopableWorker
		SpawnChild(pid PID, w Worker) error
		StopChild(pid PID) bool
		Len() int
	}

	// SupervisorConf holds configuration for a Supervisor.
	SupervisorConf struct {
		// maximum number of live children
		// if 0, no limit
		MaxChildren int
	}
	// supervisor is the concrete implementation of the Supervisor interface.
	supervisor struct {
		conf    SupervisorConf
		ctx     context.Context
		cancel  context.CancelFunc
		mu      sync.Mutex
		child   map[PID]Actor
		wg      sync.WaitGroup
		running bool
		stopped bool
	}
)

func NewSupervisor(ctx context.Context, conf SupervisorConf) Supervisor {
	ctx, cancel := context.WithCancel(ctx)
	return &supervisor{
		conf:   conf,
		ctx:    ctx,
		cancel: cancel,
		child:  make(map[PID]Actor),
	}
}

// SpawnChild implements Supervisor. The child starts right away when the
// supervisor is running, otherwise on Start.
func (s *supervisor) SpawnChild(pid PID, w Worker) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSupervisorStopped
	}
	if _, ok := s.child[pid]; ok {
		s.mu.Unlock()
		return ErrDuplicatePID
	}
	if s.conf.MaxChildren > 0 && len(s.child) >= s.conf.MaxChildren {
		s.mu.Unlock()
		return ErrTooManyChildren
	}

	child := New(s.ctx, pid, w)
	child.WithParent(s)
	s.child[pid] = child
	s.wg.Add(1)
	running := s.running
	s.mu.Unlock()

	if running {
		child.Start()
	}
	return nil
}

// Start implements Supervisor.
func (s *supervisor) Start() {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	children := s.snapshot()
	s.mu.Unlock()

	for _, a := range children {
		a.Start()
	}
}

// Stop implements Supervisor. It cancels every child and waits for all of
// them to report back.
func (s *supervisor) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.stopped = true
	wasRunning := s.running
	children := s.snapshot()
	s.mu.Unlock()

	s.cancel()
	for _, a := range children {
		a.Stop()
		if !wasRunning {
			// never started, nothing will report back
			s.OnStop(a.PID().String())
		}
	}
	s.wg.Wait()
}

// StopChild implements Supervisor. It reports false when pid is unknown,
// which includes children that already finished.
func (s *supervisor) StopChild(pid PID) bool {
	s.mu.Lock()
	child, ok := s.child[pid]
	running := s.running
	s.mu.Unlock()

	if !ok {
		return false
	}
	child.Stop()
	if !running {
		s.OnStop(pid.String())
	}
	return true
}

// OnStop implements Supervisor. Children call it when they exit.
func (s *supervisor) OnStop(pid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.child[NewPID(pid)]; !ok {
		return
	}
	delete(s.child, NewPID(pid))
	s.wg.Done()
}

// Len implements Supervisor.
func (s *supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.child)
}

func (s *supervisor) snapshot() []Actor {
	children := make([]Actor, 0, len(s.child))
	for _, a := range s.child {
		children = append(children, a)
	}
	return children
}

var _ Supervisor = (*supervisor)(nil)
