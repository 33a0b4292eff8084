package actor

import "context"

type (
	// state returned by Worker.Exec
	WorkerState int8
	// Worker is the interface that wraps the Exec method.
	// Exec is called repeatedly by the actor until it returns WorkerStopped
	// or the actor's context is cancelled.
	Worker interface {
		Exec(context.Context) WorkerState
	}
	// StartableWorker is the interface that wraps the OnStart method.
	// OnStart is called when the actor starts.
	StartableWorker interface {
		OnStart(context.Context)
	}
	// StopableWorker is the interface that wraps the OnStop method.
	// OnStop is called once when the actor stops, including after a panic.
	StopableWorker interface {
		OnStop(pid string)
	}
	// WorkerFunc is a function that implements the Worker interface.
	WorkerFunc func(context.Context) WorkerState
)

const (
	WorkerIdle WorkerState = iota
	WorkerRunning
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerStopped:
		return "stopped"
	}
	return "unknown"
}

// Exec implements Worker.
func (fn WorkerFunc) Exec(ctx context.Context) WorkerState {
	return fn(ctx)
}

var _ Worker = (WorkerFunc)(nil)
