package board

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func mustLoad(t *testing.T, name string) *Layout {
	layout, err := Load(name)
	require.NoError(t, err)
	return layout
}

func TestModelReplay(t *testing.T) {
	for _, name := range Layouts() {
		t.Run(name, func(t *testing.T) {
			a := NewModel(zap.NewNop(), mustLoad(t, name), 42)
			b := NewModel(zap.NewNop(), mustLoad(t, name), 42)
			for i := 0; i < 25; i++ {
				require.NoError(t, a.Advance())
				require.NoError(t, b.Advance())
				require.Equal(t, a.CurrentGrid(), b.CurrentGrid(), "step %d", i+1)
			}
			assert.Equal(t, a.Snapshot(), b.Snapshot())
		})
	}
	t.Run("reset replays", func(t *testing.T) {
		m := NewModel(zap.NewNop(), mustLoad(t, "board2"), 7)
		initial := m.CurrentGrid()
		steps := [][][]byte{}
		for i := 0; i < 10; i++ {
			require.NoError(t, m.Advance())
			steps = append(steps, m.CurrentGrid())
		}
		require.NoError(t, m.Reset())
		require.Equal(t, initial, m.CurrentGrid())
		assert.Equal(t, 0, m.Snapshot().Step)
		for i := 0; i < 10; i++ {
			require.NoError(t, m.Advance())
			require.Equal(t, steps[i], m.CurrentGrid())
		}
	})
}

func TestModelGrid(t *testing.T) {
	m := NewModel(zap.NewNop(), mustLoad(t, "board1"), 1)
	grid := m.CurrentGrid()
	assert.Equal(t, byte('1'), grid[1][2])
	grid[1][2] = 'X'
	assert.Equal(t, byte('1'), m.CurrentGrid()[1][2])
	assert.True(t, strings.HasPrefix(m.Snapshot().String(), "####################\n#S1"))
}

func TestModelFinish(t *testing.T) {
	layout, err := Parse("tiny", strings.NewReader("####\n#1G#\n####\n"))
	require.NoError(t, err)
	m := NewModel(zap.NewNop(), layout, 1)
	require.False(t, m.Finished())
	require.NoError(t, m.Advance())
	require.True(t, m.Finished())
	snapshot := m.Snapshot()
	assert.Equal(t, []byte{'1'}, snapshot.Finished)
	assert.Equal(t, "#.G#", string(snapshot.Grid[1]))
	require.NoError(t, m.Advance())
	assert.Equal(t, 2, m.Snapshot().Step)
}

func TestModelObservers(t *testing.T) {
	t.Run("registration order", func(t *testing.T) {
		m := NewModel(zap.NewNop(), mustLoad(t, "board1"), 1)
		calls := []int{}
		for i := 0; i < 5; i++ {
			i := i
			m.Register(ListenerFunc(func() { calls = append(calls, i) }))
		}
		require.NoError(t, m.Advance())
		assert.Equal(t, []int{0, 1, 2, 3, 4}, calls)
	})
	t.Run("cancel", func(t *testing.T) {
		m := NewModel(zap.NewNop(), mustLoad(t, "board1"), 1)
		count := 0
		cancel := m.Register(ListenerFunc(func() { count++ }))
		require.Equal(t, 1, m.ObserverCount())
		cancel()
		cancel()
		require.Equal(t, 0, m.ObserverCount())
		require.NoError(t, m.Advance())
		assert.Equal(t, 0, count)
	})
	t.Run("notified after mutation", func(t *testing.T) {
		m := NewModel(zap.NewNop(), mustLoad(t, "board1"), 1)
		seen := -1
		m.Register(ListenerFunc(func() { seen = m.Snapshot().Step }))
		require.NoError(t, m.Advance())
		assert.Equal(t, 1, seen)
	})
	t.Run("reset does not notify", func(t *testing.T) {
		m := NewModel(zap.NewNop(), mustLoad(t, "board1"), 1)
		count := 0
		m.Register(ListenerFunc(func() { count++ }))
		require.NoError(t, m.Reset())
		assert.Equal(t, 0, count)
	})
	t.Run("fault isolation", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		m := NewModel(zap.New(core), mustLoad(t, "board3"), 3)
		reference := NewModel(zap.NewNop(), mustLoad(t, "board3"), 3)
		calls := []string{}
		m.Register(ListenerFunc(func() { calls = append(calls, "first") }))
		m.Register(ListenerFunc(func() { panic("boom") }))
		m.Register(ListenerFunc(func() { calls = append(calls, "third") }))
		require.NoError(t, m.Advance())
		require.NoError(t, reference.Advance())
		assert.Equal(t, []string{"first", "third"}, calls)
		assert.Equal(t, reference.CurrentGrid(), m.CurrentGrid())
		failures := logs.FilterMessage("observer failed").All()
		require.Len(t, failures, 1)
		assert.Equal(t, zap.ErrorLevel, failures[0].Level)
		fields := failures[0].ContextMap()
		assert.Equal(t, uint64(2), fields["observer_id"])
		assert.Equal(t, "boom", fields["panic_log"])
	})
}

func TestModelEnded(t *testing.T) {
	m := NewModel(zap.NewNop(), mustLoad(t, "board1"), 1)
	count := 0
	m.Register(ListenerFunc(func() { count++ }))
	require.NoError(t, m.SetState(Running))
	require.NoError(t, m.Advance())
	before := m.Snapshot()
	require.NoError(t, m.SetState(Ended))
	assert.Equal(t, ErrRaceEnded, m.Advance())
	assert.Equal(t, ErrRaceEnded, m.Reset())
	assert.Equal(t, ErrRaceEnded, m.SetState(Running))
	assert.Equal(t, Ended, m.State())
	after := m.Snapshot()
	assert.Equal(t, before.Grid, after.Grid)
	assert.Equal(t, before.Step, after.Step)
	assert.Equal(t, 1, count)
}
