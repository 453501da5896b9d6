package session

// Phase represents the session lifecycle phase.
type Phase int

const (
	PhaseIdle       Phase = iota // Not started
	PhaseStarting                // Creating players and loading media
	PhaseRunning                 // Dispatcher and watchdog active
	PhaseStopping                // Exit requested, joining workers
	PhaseTerminated              // Players released
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
