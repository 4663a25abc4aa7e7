package race

import (
	"strings"

	"github.com/pkg/errors"
)

// Command is a zero-payload control message sent to the race controller.
type Command int

const (
	StartRace Command = iota
	Pause
	Resume
	End
	AdvanceTick
)

var commandNames = map[Command]string{
	StartRace:   "start",
	Pause:       "pause",
	Resume:      "resume",
	End:         "end",
	AdvanceTick: "tick",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCommand decodes the textual form used on the wire and on the command line.
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start", "startrace", "start_race":
		return StartRace, nil
	case "pause":
		return Pause, nil
	case "resume":
		return Resume, nil
	case "end", "stop":
		return End, nil
	case "tick", "advance", "advancetick", "advance_tick":
		return AdvanceTick, nil
	}
	return 0, errors.Errorf("unknown race command %q", s)
}
