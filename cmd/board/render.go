package main

import (
	"fmt"
	"io"

	"github.com/vx-labs/botrace/board"
)

// renderer prints the board on every update. It never drives the race.
type renderer struct {
	out      io.Writer
	model    *board.Model
	reported bool
}

func newRenderer(out io.Writer, model *board.Model) *renderer {
	return &renderer{out: out, model: model}
}

func (r *renderer) BoardUpdated() {
	snapshot := r.model.Snapshot()
	if snapshot.Step <= 1 {
		r.reported = false
	}
	printBoard(r.out, snapshot)
	if !r.reported && r.model.Finished() {
		r.reported = true
		fmt.Fprintf(r.out, "All bots reached the goal, finish order: %s\n", string(snapshot.Finished))
	}
}

func printBoard(out io.Writer, snapshot board.Snapshot) {
	fmt.Fprintf(out, "\nBoard %s, step %d (%s)\n", snapshot.Layout, snapshot.Step, snapshot.State)
	for _, row := range snapshot.Grid {
		for _, c := range row {
			fmt.Fprintf(out, "%c ", c)
		}
		fmt.Fprintln(out)
	}
}
