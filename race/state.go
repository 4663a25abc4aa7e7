package race

import "github.com/vx-labs/botrace/board"

type State = board.RaceState

const (
	Idle    = board.Idle
	Running = board.Running
	Paused  = board.Paused
	Ended   = board.Ended
)

var transitions = map[State]map[Command]State{
	Idle: {
		StartRace: Running,
	},
	Running: {
		Pause:       Paused,
		End:         Ended,
		AdvanceTick: Running,
	},
	Paused: {
		Resume: Running,
		End:    Ended,
	},
}

// Transition looks cmd up in the lifecycle table. ok is false when no
// transition is defined, in which case the state is returned unchanged.
func Transition(from State, cmd Command) (to State, ok bool) {
	to, ok = transitions[from][cmd]
	if !ok {
		return from, false
	}
	return to, true
}

// Fold applies cmds in order, treating undefined transitions as no-ops.
func Fold(from State, cmds ...Command) State {
	for _, cmd := range cmds {
		from, _ = Transition(from, cmd)
	}
	return from
}
