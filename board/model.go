package board

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/vx-labs/botrace/metrics"
	"go.uber.org/zap"
)

// exploreOdds is the 1-in-n chance a bot ignores the goal and picks any open neighbour.
const exploreOdds = 5

var directions = []Position{
	{Row: -1, Col: 0},
	{Row: 0, Col: 1},
	{Row: 1, Col: 0},
	{Row: 0, Col: -1},
}

type bot struct {
	id       byte
	pos      Position
	finished bool
}

// Snapshot is a point in time copy of the board.
type Snapshot struct {
	Layout   string
	Grid     [][]byte
	Step     int
	Finished []byte
	State    RaceState
}

func (s Snapshot) String() string {
	out := make([]byte, 0, len(s.Grid)*(len(s.Grid[0])+1))
	for _, row := range s.Grid {
		out = append(out, row...)
		out = append(out, '\n')
	}
	return string(out)
}

// Model owns the grid and the projected race state. Mutations are expected
// from a single goroutine (the race controller); reads may come from anywhere.
type Model struct {
	logger    *zap.Logger
	layout    *Layout
	seed      int64
	observers *registry

	mtx      sync.RWMutex
	rng      *rand.Rand
	bots     []*bot
	step     int
	finished []byte
	state    RaceState
}

func NewModel(logger *zap.Logger, layout *Layout, seed int64) *Model {
	m := &Model{
		logger:    logger.WithOptions(zap.Fields(zap.String("emitter", "board"), zap.String("layout", layout.Name))),
		layout:    layout,
		seed:      seed,
		observers: newRegistry(),
	}
	m.reset()
	return m
}

func (m *Model) reset() {
	m.rng = rand.New(rand.NewSource(m.seed))
	ids := m.layout.BotIDs()
	m.bots = make([]*bot, len(ids))
	for idx, id := range ids {
		m.bots[idx] = &bot{id: id, pos: m.layout.bots[id]}
	}
	m.step = 0
	m.finished = nil
}

// Register adds a listener. Listeners are notified in registration order.
func (m *Model) Register(l Listener) CancelFunc {
	return m.observers.add(l)
}

func (m *Model) ObserverCount() int {
	return m.observers.len()
}

// Reset restores the starting configuration and reseeds the random source.
// Observers are not notified.
func (m *Model) Reset() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.state == Ended {
		return ErrRaceEnded
	}
	m.reset()
	return nil
}

// Advance moves every unfinished bot once, then notifies all observers before returning.
func (m *Model) Advance() error {
	m.mtx.Lock()
	if m.state == Ended {
		m.mtx.Unlock()
		return ErrRaceEnded
	}
	m.advance()
	step := m.step
	m.mtx.Unlock()
	metrics.BoardAdvances.Inc()
	m.logger.Debug("board advanced", zap.Int("step", step))
	m.notify()
	return nil
}

func (m *Model) advance() {
	for _, b := range m.bots {
		if b.finished {
			continue
		}
		next, ok := m.chooseMove(b)
		if !ok {
			continue
		}
		b.pos = next
		if m.layout.terrain[next.Row][next.Col] == Goal {
			b.finished = true
			m.finished = append(m.finished, b.id)
		}
	}
	m.step++
}

func (m *Model) chooseMove(b *bot) (Position, bool) {
	open := make([]Position, 0, len(directions))
	for _, d := range directions {
		p := Position{Row: b.pos.Row + d.Row, Col: b.pos.Col + d.Col}
		if m.isOpen(p) {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		return b.pos, false
	}
	if m.rng.Intn(exploreOdds) == 0 {
		return open[m.rng.Intn(len(open))], true
	}
	best := make([]Position, 0, len(open))
	bestDistance := math.MaxInt32
	for _, p := range open {
		d := m.goalDistance(p)
		switch {
		case d < bestDistance:
			bestDistance = d
			best = append(best[:0], p)
		case d == bestDistance:
			best = append(best, p)
		}
	}
	return best[m.rng.Intn(len(best))], true
}

func (m *Model) isOpen(p Position) bool {
	if p.Row < 0 || p.Row >= m.layout.Rows() || p.Col < 0 || p.Col >= m.layout.Cols() {
		return false
	}
	if m.layout.terrain[p.Row][p.Col] == Wall {
		return false
	}
	for _, b := range m.bots {
		if !b.finished && b.pos == p {
			return false
		}
	}
	return true
}

func (m *Model) goalDistance(p Position) int {
	best := math.MaxInt32
	for rowIdx, row := range m.layout.terrain {
		for colIdx, c := range row {
			if c != Goal {
				continue
			}
			d := abs(rowIdx-p.Row) + abs(colIdx-p.Col)
			if d < best {
				best = d
			}
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (m *Model) notify() {
	m.observers.walk(func(reg *registration) {
		defer func() {
			if r := recover(); r != nil {
				metrics.ObserverFaults.Inc()
				m.logger.Error("observer failed",
					zap.Uint64("observer_id", reg.id),
					zap.String("panic_log", fmt.Sprint(r)))
			}
		}()
		reg.listener.BoardUpdated()
	})
}

// CurrentGrid returns a copy of the terrain with unfinished bots drawn on it.
func (m *Model) CurrentGrid() [][]byte {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.grid()
}

func (m *Model) grid() [][]byte {
	out := make([][]byte, len(m.layout.terrain))
	for idx, row := range m.layout.terrain {
		out[idx] = append([]byte(nil), row...)
	}
	for _, b := range m.bots {
		if !b.finished {
			out[b.pos.Row][b.pos.Col] = b.id
		}
	}
	return out
}

func (m *Model) Snapshot() Snapshot {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return Snapshot{
		Layout:   m.layout.Name,
		Grid:     m.grid(),
		Step:     m.step,
		Finished: append([]byte(nil), m.finished...),
		State:    m.state,
	}
}

// Finished reports whether every bot reached a goal.
func (m *Model) Finished() bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return len(m.finished) == len(m.bots)
}

func (m *Model) State() RaceState {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.state
}

// SetState updates the race state projection. Ended is final.
func (m *Model) SetState(state RaceState) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.state == Ended && state != Ended {
		return ErrRaceEnded
	}
	m.state = state
	return nil
}
