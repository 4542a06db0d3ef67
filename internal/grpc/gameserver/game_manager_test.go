package gameserver

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
	"github.com/mitchelldurbincs/Game2048RL/internal/testutil"
)

func newTestManager(t *testing.T, cfg ManagerConfig) *GameManager {
	t.Helper()
	gm := NewGameManager(cfg)
	t.Cleanup(gm.Close)
	return gm
}

func TestGameManager_MaxGames(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{MaxGames: 3})

	for i := 0; i < 3; i++ {
		_, err := gm.CreateGame(nil, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, gm.GetActiveGames())

	_, err := gm.CreateGame(nil, nil)
	assert.ErrorIs(t, err, ErrServerAtCapacity)
	assert.Equal(t, 3, gm.GetActiveGames())
}

func TestGameManager_UnlimitedGames(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{})

	for i := 0; i < 50; i++ {
		_, err := gm.CreateGame(nil, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 50, gm.GetActiveGames())
}

func TestGameManager_SlotFreedAfterRemove(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{MaxGames: 1})

	game, err := gm.CreateGame(nil, nil)
	require.NoError(t, err)
	require.True(t, gm.removeInstance(game))

	_, err = gm.CreateGame(nil, nil)
	assert.NoError(t, err)
}

func TestGameManager_ConcurrentCreation(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{MaxGames: 10})

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, rejected := 0, 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gm.CreateGame(nil, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rejected++
			} else {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, created)
	assert.Equal(t, 15, rejected)
	assert.Equal(t, 10, gm.GetActiveGames())
}

func TestGameManager_CreateFromState(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{})

	state := testutil.TerminalGrid()
	game, err := gm.CreateGame(nil, &state)
	require.NoError(t, err)
	assert.Equal(t, state, game.engine.State())
	assert.True(t, game.engine.IsTerminal())
	assert.Equal(t, core.RewardTerminal, game.engine.Reward())
}

func TestGameManager_SeedIsReproducible(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{})

	seed := int64(99)
	a, err := gm.CreateGame(&seed, nil)
	require.NoError(t, err)
	b, err := gm.CreateGame(&seed, nil)
	require.NoError(t, err)
	assert.Equal(t, a.engine.State(), b.engine.State())
	assert.NotEqual(t, a.id, b.id)
}

func TestGameManager_ManagerSeedIsReproducible(t *testing.T) {
	first := newTestManager(t, ManagerConfig{Seed: 5})
	second := newTestManager(t, ManagerConfig{Seed: 5})

	for i := 0; i < 3; i++ {
		a, err := first.CreateGame(nil, nil)
		require.NoError(t, err)
		b, err := second.CreateGame(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, a.engine.State(), b.engine.State())
	}
}

func TestGameManager_GetAndRemove(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{})

	game, err := gm.CreateGame(nil, nil)
	require.NoError(t, err)

	got, err := gm.GetGame(game.id)
	require.NoError(t, err)
	assert.Same(t, game, got)

	require.True(t, gm.removeInstance(game))
	_, err = gm.GetGame(game.id)
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.False(t, gm.removeInstance(game))
}

func TestGameManager_RemoveInstanceKeepsReplacement(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{})

	old, err := gm.CreateGame(nil, nil)
	require.NoError(t, err)
	require.True(t, gm.removeInstance(old))
	replacement, err := gm.AddGame(old.engine)
	require.NoError(t, err)

	assert.False(t, gm.removeInstance(old), "stale reference must not evict the new instance")
	got, err := gm.GetGame(old.id)
	require.NoError(t, err)
	assert.Same(t, replacement, got)
}

func TestGameInstance_LockAfterClose(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{})

	game, err := gm.CreateGame(nil, nil)
	require.NoError(t, err)

	require.NoError(t, game.lock())
	game.closed = true
	game.mu.Unlock()

	assert.ErrorIs(t, game.lock(), ErrGameNotFound)
	// The failed lock leaves the mutex free.
	require.True(t, game.mu.TryLock())
	game.mu.Unlock()
}

func TestGameManager_AddGameAttachesEventBus(t *testing.T) {
	bus := events.NewEventBus(testutil.NopLogger())
	gm := newTestManager(t, ManagerConfig{EventBus: bus})

	start := core.Grid{{1, 1, 0}, {0, 0, 0}, {0, 0, 0}}
	source, err := gm.CreateGame(nil, &start)
	require.NoError(t, err)
	clone, err := gm.AddGame(source.engine.Copy())
	require.NoError(t, err)

	var mu sync.Mutex
	applied := map[string]int{}
	bus.SubscribeFunc(events.TypeActionApplied, func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		applied[e.GameID()]++
	})

	clone.mu.Lock()
	_, err = clone.engine.Step(core.Left)
	clone.mu.Unlock()
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, applied[clone.id])
	assert.Zero(t, applied[source.id])
}

func TestGameManager_AddGameRejectsDuplicate(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{})

	game, err := gm.CreateGame(nil, nil)
	require.NoError(t, err)

	_, err = gm.AddGame(game.engine)
	assert.ErrorIs(t, err, ErrGameExists)

	_, err = gm.AddGame(game.engine.Copy())
	assert.NoError(t, err)
	assert.Equal(t, 2, gm.GetActiveGames())
}

func TestGameManager_CleanupFinishedGames(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{
		CleanupInterval:      time.Hour,
		FinishedGameTTL:      10 * time.Minute,
		AbandonedGameTimeout: time.Hour,
	})

	terminal := testutil.TerminalGrid()
	finished, err := gm.CreateGame(nil, &terminal)
	require.NoError(t, err)
	active, err := gm.CreateGame(nil, nil)
	require.NoError(t, err)

	now := time.Now()
	assert.Empty(t, gm.cleanupGames(now.Add(5*time.Minute)), "finished game still within TTL")

	removed := gm.cleanupGames(now.Add(11 * time.Minute))
	assert.Equal(t, []string{finished.id}, removed)

	_, err = gm.GetGame(active.id)
	assert.NoError(t, err)
	assert.Equal(t, 1, gm.GetActiveGames())
}

func TestGameManager_CleanupAbandonedGames(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{
		CleanupInterval:      time.Hour,
		FinishedGameTTL:      10 * time.Minute,
		AbandonedGameTimeout: 30 * time.Minute,
	})

	idle, err := gm.CreateGame(nil, nil)
	require.NoError(t, err)
	busy, err := gm.CreateGame(nil, nil)
	require.NoError(t, err)

	later := time.Now().Add(20 * time.Minute)
	busy.mu.Lock()
	busy.lastActivity = later
	busy.mu.Unlock()

	removed := gm.cleanupGames(later.Add(15 * time.Minute))
	assert.Equal(t, []string{idle.id}, removed)
	_, err = gm.GetGame(busy.id)
	assert.NoError(t, err)
}

func TestGameManager_CleanupSkipsReplacedGame(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{
		CleanupInterval:      time.Hour,
		FinishedGameTTL:      time.Hour,
		AbandonedGameTimeout: 30 * time.Minute,
	})

	stale, err := gm.CreateGame(nil, nil)
	require.NoError(t, err)
	kept, err := gm.CreateGame(nil, nil)
	require.NoError(t, err)

	expired := gm.expiredGames(time.Now().Add(time.Hour))
	require.Len(t, expired, 2)

	// Close and restore stale under the same ID between the scan and the prune.
	require.True(t, gm.removeInstance(stale))
	restored, err := gm.AddGame(stale.engine)
	require.NoError(t, err)

	removed := gm.prune(expired)
	assert.Equal(t, []string{kept.id}, removed)

	got, err := gm.GetGame(stale.id)
	require.NoError(t, err)
	assert.Same(t, restored, got)
	assert.Equal(t, 1, gm.GetActiveGames())
}

func TestGameManager_CleanupLoopRuns(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{
		CleanupInterval:      5 * time.Millisecond,
		FinishedGameTTL:      time.Nanosecond,
		AbandonedGameTimeout: time.Hour,
	})

	terminal := testutil.TerminalGrid()
	_, err := gm.CreateGame(nil, &terminal)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return gm.GetActiveGames() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestGameManager_CloseIsIdempotent(t *testing.T) {
	gm := NewGameManager(ManagerConfig{CleanupInterval: time.Millisecond})
	gm.Close()
	gm.Close()

	select {
	case <-gm.done:
	default:
		t.Fatal("cleanup loop still running after Close")
	}
}

func TestGameManager_Defaults(t *testing.T) {
	gm := newTestManager(t, ManagerConfig{})
	assert.Equal(t, defaultCleanupInterval, gm.cleanupInterval)
	assert.Equal(t, defaultFinishedGameTTL, gm.finishedGameTTL)
	assert.Equal(t, defaultAbandonedGameTimeout, gm.abandonedGameTimeout)
	assert.Equal(t, 0, gm.maxGames)
}

func ExampleGameManager() {
	gm := NewGameManager(ManagerConfig{MaxGames: 2, Seed: 1})
	defer gm.Close()

	state := core.Grid{{1, 1, 0}, {0, 0, 0}, {0, 0, 0}}
	game, _ := gm.CreateGame(nil, &state)
	reward, _ := game.engine.Step(core.Left)
	fmt.Println(reward, game.engine.State()[0][0])
	// Output: -1 2
}
