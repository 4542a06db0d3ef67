package experience

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/testutil"
)

func createTestTransition(t *testing.T, id string) *Transition {
	t.Helper()
	tr, err := NewTransition("test-game", core.Grid{{1, 1, 0}}, core.Left, core.RewardMove, core.Grid{{2, 0, 1}}, false)
	require.NoError(t, err)
	tr.ID = id
	return tr
}

func ids(transitions []*Transition) []string {
	out := make([]string, len(transitions))
	for i, tr := range transitions {
		out[i] = tr.ID
	}
	return out
}

func TestNewTransition(t *testing.T) {
	state := core.Grid{{1, 1, 0}, {0, 0, 0}, {0, 0, 0}}
	next := core.Grid{{2, 0, 0}, {0, 0, 1}, {0, 0, 0}}

	tr, err := NewTransition("g1", state, core.Left, core.RewardMove, next, false)
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "g1", tr.GameID)
	assert.Equal(t, state.MustPack(), tr.StateKey)
	assert.Equal(t, next.MustPack(), tr.NextKey)
	assert.Equal(t, core.Left, tr.Action)
	assert.False(t, tr.Done)
	assert.False(t, tr.CollectedAt.IsZero())

	_, err = NewTransition("g1", core.Grid{{16}}, core.Left, core.RewardMove, next, false)
	assert.ErrorIs(t, err, core.ErrExponentOverflow)
}

func TestBuffer_Creation(t *testing.T) {
	buffer := NewBuffer(100, zerolog.Nop())

	assert.Equal(t, 100, buffer.Capacity())
	assert.Equal(t, 0, buffer.Size())

	assert.Equal(t, defaultCapacity, NewBuffer(0, zerolog.Nop()).Capacity())
}

func TestBuffer_AddAndGet(t *testing.T) {
	buffer := NewBuffer(10, zerolog.Nop())

	for i := 0; i < 5; i++ {
		require.NoError(t, buffer.Add(createTestTransition(t, fmt.Sprint(i))))
	}
	assert.Equal(t, 5, buffer.Size())

	got := buffer.Get(3)
	assert.Equal(t, []string{"0", "1", "2"}, ids(got), "transitions come out oldest first")
	assert.Equal(t, 2, buffer.Size())

	assert.Equal(t, []string{"3", "4"}, ids(buffer.Get(10)), "Get stops at the stored count")
	assert.Empty(t, buffer.Get(1))
}

func TestBuffer_CircularBehavior(t *testing.T) {
	buffer := NewBuffer(3, zerolog.Nop())

	for i := 0; i < 5; i++ {
		require.NoError(t, buffer.Add(createTestTransition(t, fmt.Sprint(i))))
	}

	assert.Equal(t, 3, buffer.Size())
	assert.Equal(t, buffer.Capacity(), buffer.Size())
	assert.Equal(t, []string{"2", "3", "4"}, ids(buffer.Drain()))
	assert.Equal(t, 0, buffer.Size())

	stats := buffer.Stats()
	assert.Equal(t, int64(5), stats.TotalAdded)
	assert.Equal(t, int64(2), stats.TotalDropped)
}

func TestBuffer_Sample(t *testing.T) {
	buffer := NewBuffer(10, zerolog.Nop())
	for i := 0; i < 7; i++ {
		require.NoError(t, buffer.Add(createTestTransition(t, fmt.Sprint(i))))
	}
	rng := testutil.NewTestRNG(5)

	sample := buffer.Sample(3, rng)
	assert.Len(t, sample, 3)
	assert.Equal(t, 7, buffer.Size(), "sampling does not remove")

	seen := map[string]bool{}
	for _, tr := range sample {
		assert.False(t, seen[tr.ID], "samples are distinct")
		seen[tr.ID] = true
	}

	assert.Len(t, buffer.Sample(10, rng), 7)
	assert.Empty(t, buffer.Sample(0, rng))
	assert.Equal(t, int64(10), buffer.Stats().TotalSampled)
}

func TestBuffer_SampleCoversBuffer(t *testing.T) {
	buffer := NewBuffer(4, zerolog.Nop())
	for i := 0; i < 6; i++ {
		require.NoError(t, buffer.Add(createTestTransition(t, fmt.Sprint(i))))
	}
	rng := testutil.NewTestRNG(11)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		for _, tr := range buffer.Sample(1, rng) {
			seen[tr.ID] = true
		}
	}
	assert.Equal(t, map[string]bool{"2": true, "3": true, "4": true, "5": true}, seen)
}

func TestBuffer_Close(t *testing.T) {
	buffer := NewBuffer(10, zerolog.Nop())
	require.NoError(t, buffer.Add(createTestTransition(t, "a")))

	require.NoError(t, buffer.Close())
	require.NoError(t, buffer.Close(), "closing twice is a no-op")

	assert.ErrorIs(t, buffer.Add(createTestTransition(t, "b")), ErrBufferClosed)
	assert.Equal(t, []string{"a"}, ids(buffer.Drain()), "stored transitions stay readable")
}

func TestBuffer_ConcurrentAccess(t *testing.T) {
	buffer := NewBuffer(100, zerolog.Nop())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := testutil.NewTestRNG(int64(w))
			for i := 0; i < 100; i++ {
				_ = buffer.Add(createTestTransition(t, fmt.Sprintf("%d-%d", w, i)))
				buffer.Sample(5, rng)
			}
		}(w)
	}
	wg.Wait()

	stats := buffer.Stats()
	assert.Equal(t, int64(800), stats.TotalAdded)
	assert.Equal(t, int64(700), stats.TotalDropped)
	assert.Equal(t, 100, stats.CurrentSize)
}
