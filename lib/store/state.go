package store

// State is the lifecycle state of a Controller
type State int32

const (
	StateUninitialized State = iota
	StateStopped
	StateStarting
	StateStarted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateStarted:
		return "Started"
	default:
		return "Unknown"
	}
}

// Health is the local health of a Controller. It is reset on every start and
// degraded if a start fails.
type Health int32

const (
	HealthOK Health = iota
	HealthDegraded
)

func (h Health) String() string {
	switch h {
	case HealthOK:
		return "OK"
	case HealthDegraded:
		return "Degraded"
	default:
		return "Unknown"
	}
}
