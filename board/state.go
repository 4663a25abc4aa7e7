package board

// RaceState is the race lifecycle state. The race controller owns the
// authoritative copy; the model keeps a projection of it.
type RaceState int32

const (
	Idle RaceState = iota
	Running
	Paused
	Ended
)

func (s RaceState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}
