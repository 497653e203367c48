package agent

type State uint8

const (
	Idle State = iota
	Stopped
	Moving
	Jumping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Stopped:
		return "stopped"
	case Moving:
		return "moving"
	case Jumping:
		return "jumping"
	}
	return "unknown"
}

// Stats counts what an agent has done since it was created.
type Stats struct {
	Replans        int
	StuckReplans   int
	LandingReplans int
	AsyncRequests  int
	PathsAdopted   int
	Jumps          int
	// Abandoned counts goals dropped after repeated landings off the same connection.
	Abandoned int
}
