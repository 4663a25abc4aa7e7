package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
	"github.com/vx-labs/botrace/board"
	"github.com/vx-labs/botrace/race"
)

const (
	menuStart   = "Start race"
	menuPause   = "Pause race"
	menuResume  = "Resume race"
	menuAdvance = "Advance one step"
	menuShow    = "Show board"
	menuEnd     = "End race"
	menuExit    = "Exit"
)

var menuCommands = map[string]race.Command{
	menuStart:   race.StartRace,
	menuPause:   race.Pause,
	menuResume:  race.Resume,
	menuAdvance: race.AdvanceTick,
	menuEnd:     race.End,
}

func menuItems(state race.State) []string {
	switch state {
	case race.Idle:
		return []string{menuStart, menuShow, menuExit}
	case race.Ended:
		return nil
	}
	return []string{menuPause, menuResume, menuAdvance, menuShow, menuEnd}
}

// send delivers a menu choice and reports the outcome to the user.
func send(out io.Writer, handle race.Handle, cmd race.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := handle.Ask(ctx, cmd)
	if err != nil {
		if errors.Cause(err) == race.ErrInvalidCommand {
			fmt.Fprintf(out, "Cannot %s while the race is %s.\n", cmd, state)
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "Race is now %s.\n", state)
	return nil
}

func runMenu(out io.Writer, handle race.Handle, model *board.Model) {
	for {
		items := menuItems(handle.State())
		if items == nil {
			fmt.Fprintln(out, "Race ended.")
			return
		}
		prompt := promptui.Select{
			Label: fmt.Sprintf("Race is %s, select an option", handle.State()),
			Items: items,
		}
		_, choice, err := prompt.Run()
		if err != nil {
			return
		}
		switch choice {
		case menuExit:
			return
		case menuShow:
			printBoard(out, model.Snapshot())
			continue
		}
		if err := send(out, handle, menuCommands[choice]); err != nil {
			fmt.Fprintf(out, "Failed to %s: %v\n", choice, err)
			return
		}
		if choice == menuPause || choice == menuResume {
			printBoard(out, model.Snapshot())
		}
	}
}
