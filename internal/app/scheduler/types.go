package scheduler

// Phase represents the scheduler lifecycle phase.
type Phase int

const (
	PhaseStopped Phase = iota // Not running
	PhaseIdle                 // Waiting for the next run
	PhaseRunning              // A run is in progress
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "stopped"
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	default:
		return "unknown"
	}
}
