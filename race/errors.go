package race

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidCommand    = errors.New("invalid command")
	ErrMailboxFull       = errors.New("race controller mailbox is full")
	ErrControllerStopped = errors.New("race controller stopped")
)

// InvalidCommandError reports a command received in a state with no transition for it.
type InvalidCommandError struct {
	Command Command
	State   State
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command %s in state %s", e.Command, e.State)
}

func (e *InvalidCommandError) Cause() error {
	return ErrInvalidCommand
}
