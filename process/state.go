package process

// State is the lifecycle position of one run.
//
//	Idle -> Starting -> Running -> Completed | TimedOut | Canceled
//	                 \-> LaunchFailed
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateCompleted
	StateTimedOut
	StateLaunchFailed
	// StateCanceled is reached when the caller's context ends first.
	StateCanceled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateLaunchFailed:
		return "launch_failed"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateTimedOut, StateLaunchFailed, StateCanceled:
		return true
	}
	return false
}
