package tracking

// State is the lifecycle state of a tracking session.
type State int

const (
	// StateIdle is the state before any local position has been observed.
	StateIdle State = iota
	// StateActive means the write and read loops are running.
	StateActive
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason records what moved a session to StateStopped.
type StopReason string

const (
	StopReasonArrived  StopReason = "arrived"
	StopReasonTeardown StopReason = "teardown"
)
