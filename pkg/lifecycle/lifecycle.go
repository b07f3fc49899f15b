package lifecycle

import "time"

// State is where a Gateway is in its start/stop cycle. A Gateway accepts
// notifications only while Running.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// EventEmitter receives every transition; the pushgate facade forwards them
// to its EventHandler and the CLI logs them.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager guards the Gateway state machine and counts the background
// workers, such as the goroutine that drains the queue on shutdown, that
// Stop must wait for.
type Manager interface {
	State() State
	CanStart() bool
	CanStop() bool

	// TransitionTo moves to newState, or fails if the move is not allowed
	// from the current state. reason is passed to the EventEmitter.
	TransitionTo(newState State, reason string) error

	// WaitWithTimeout returns ErrShutdownTimeout if workers are still
	// running after timeout.
	WaitWithTimeout(timeout time.Duration) error

	AddWorker()
	WorkerDone()
}
