package gameserver

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	gameengine "github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
)

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameExists       = errors.New("game already exists")
	ErrServerAtCapacity = errors.New("server at capacity")
)

// Default cleanup settings, used when ManagerConfig leaves them zero.
const (
	defaultCleanupInterval      = 5 * time.Minute
	defaultFinishedGameTTL      = 10 * time.Minute
	defaultAbandonedGameTimeout = 30 * time.Minute
)

type gameInstance struct {
	id     string
	engine *gameengine.Engine
	mu     sync.Mutex // Guards engine and activity tracking

	createdAt    time.Time
	lastActivity time.Time
	// closed is set by CloseGame. A request that looked the game up before
	// the close must not act on it once it gets the lock.
	closed bool

	idempotencyManager *IdempotencyManager
}

func newGameInstance(engine *gameengine.Engine) *gameInstance {
	now := time.Now()
	return &gameInstance{
		id:                 engine.GameID(),
		engine:             engine,
		createdAt:          now,
		lastActivity:       now,
		idempotencyManager: NewIdempotencyManager(),
	}
}

// lock acquires g.mu, failing with ErrGameNotFound if the game was closed
// while the caller waited.
func (g *gameInstance) lock() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGameNotFound, g.id)
	}
	return nil
}

// touch records activity. Must be called with g.mu held.
func (g *gameInstance) touch() {
	g.lastActivity = time.Now()
}

// ManagerConfig configures a GameManager.
type ManagerConfig struct {
	// MaxGames caps live games; 0 means unlimited.
	MaxGames             int
	CleanupInterval      time.Duration
	FinishedGameTTL      time.Duration
	AbandonedGameTimeout time.Duration
	// Seed derives per-game seeds when a request does not supply one; 0 seeds from the clock.
	Seed int64
	// EventBus receives the events of every game; nil disables publishing.
	EventBus events.Publisher
}

// GameManager owns all live games.
type GameManager struct {
	mu    sync.RWMutex
	games map[string]*gameInstance

	maxGames             int
	cleanupInterval      time.Duration
	finishedGameTTL      time.Duration
	abandonedGameTimeout time.Duration
	eventBus             events.Publisher

	rngMu sync.Mutex
	rng   *rand.Rand

	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewGameManager creates a manager and starts its cleanup loop. Call Close to stop it.
func NewGameManager(cfg ManagerConfig) *GameManager {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	if cfg.FinishedGameTTL <= 0 {
		cfg.FinishedGameTTL = defaultFinishedGameTTL
	}
	if cfg.AbandonedGameTimeout <= 0 {
		cfg.AbandonedGameTimeout = defaultAbandonedGameTimeout
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	gm := &GameManager{
		games:                make(map[string]*gameInstance),
		maxGames:             cfg.MaxGames,
		cleanupInterval:      cfg.CleanupInterval,
		finishedGameTTL:      cfg.FinishedGameTTL,
		abandonedGameTimeout: cfg.AbandonedGameTimeout,
		eventBus:             cfg.EventBus,
		rng:                  rand.New(rand.NewSource(seed)),
		stopCh:               make(chan struct{}),
		done:                 make(chan struct{}),
	}

	go gm.runCleanup()
	return gm
}

// nextSeed draws a game seed from the manager's RNG.
func (gm *GameManager) nextSeed() int64 {
	gm.rngMu.Lock()
	defer gm.rngMu.Unlock()
	return gm.rng.Int63()
}

// CreateGame builds an engine and registers it. A nil seed draws one from
// the manager; a nil state starts a seeded board. The terminal check runs
// once so a supplied terminal board is reported as done right away.
func (gm *GameManager) CreateGame(seed *int64, state *core.Grid) (*gameInstance, error) {
	s := gm.nextSeed()
	if seed != nil {
		s = *seed
	}

	engine := gameengine.NewEngine(gameengine.GameConfig{
		Rng:          rand.New(rand.NewSource(s)),
		Logger:       log.Logger,
		EventBus:     gm.eventBus,
		InitialState: state,
	})
	engine.GameOver()

	game, err := gm.register(engine, false)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("game_id", game.id).
		Int64("seed", s).
		Bool("from_state", state != nil).
		Msg("Created game")
	return game, nil
}

// AddGame registers an engine built elsewhere, such as a copy or a restored
// snapshot, and attaches it to the manager's event bus.
func (gm *GameManager) AddGame(engine *gameengine.Engine) (*gameInstance, error) {
	return gm.register(engine, true)
}

// register enforces the capacity limit and stores the game.
func (gm *GameManager) register(engine *gameengine.Engine, attachBus bool) (*gameInstance, error) {
	game := newGameInstance(engine)

	gm.mu.Lock()
	defer gm.mu.Unlock()

	if gm.maxGames > 0 && len(gm.games) >= gm.maxGames {
		log.Warn().
			Int("current_games", len(gm.games)).
			Int("max_games", gm.maxGames).
			Msg("Rejecting game creation - server at capacity")
		return nil, fmt.Errorf("%w: %d/%d games active", ErrServerAtCapacity, len(gm.games), gm.maxGames)
	}
	if _, exists := gm.games[game.id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrGameExists, game.id)
	}

	// The engine is not reachable by other requests until it is stored below.
	if attachBus && gm.eventBus != nil {
		engine.SetEventBus(gm.eventBus)
	}
	gm.games[game.id] = game
	return game, nil
}

// GetGame retrieves a game by ID
func (gm *GameManager) GetGame(gameID string) (*gameInstance, error) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	game, exists := gm.games[gameID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return game, nil
}

// removeInstance drops game only if it is still the instance registered
// under its ID.
func (gm *GameManager) removeInstance(game *gameInstance) bool {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	if gm.games[game.id] != game {
		return false
	}
	delete(gm.games, game.id)
	return true
}

// GetActiveGames returns the number of live games
func (gm *GameManager) GetActiveGames() int {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return len(gm.games)
}

// Close stops the cleanup loop and waits for it to exit. Games stay registered.
func (gm *GameManager) Close() {
	gm.closeOnce.Do(func() {
		close(gm.stopCh)
		<-gm.done
	})
}

// runCleanup periodically removes finished and abandoned games
func (gm *GameManager) runCleanup() {
	defer close(gm.done)

	ticker := time.NewTicker(gm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			gm.safeCleanup(now)
		case <-gm.stopCh:
			return
		}
	}
}

func (gm *GameManager) safeCleanup(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Msg("Game cleanup panicked")
		}
	}()
	gm.cleanupGames(now)
}

// cleanupGames removes finished games after their TTL and any game idle past
// the abandoned timeout. It returns the removed IDs.
func (gm *GameManager) cleanupGames(now time.Time) []string {
	return gm.prune(gm.expiredGames(now))
}

// expiredGames scans for games due for removal. References are collected
// first so game locks are never taken under gm.mu.
func (gm *GameManager) expiredGames(now time.Time) []*gameInstance {
	gm.mu.RLock()
	gameRefs := make([]*gameInstance, 0, len(gm.games))
	for _, game := range gm.games {
		gameRefs = append(gameRefs, game)
	}
	gm.mu.RUnlock()

	var expired []*gameInstance
	for _, game := range gameRefs {
		game.mu.Lock()
		idle := now.Sub(game.lastActivity)
		finished := game.engine.IsTerminal()
		createdAt := game.createdAt
		game.mu.Unlock()

		reason := ""
		switch {
		case finished && idle > gm.finishedGameTTL:
			reason = "finished game TTL expired"
		case idle > gm.abandonedGameTimeout:
			reason = "game abandoned (no activity)"
		default:
			continue
		}

		expired = append(expired, game)
		log.Info().
			Str("game_id", game.id).
			Str("reason", reason).
			Dur("age", now.Sub(createdAt)).
			Dur("inactive", idle).
			Msg("Cleaning up game")
	}
	return expired
}

// prune deletes the given instances. An ID that was closed and re-registered
// since the scan maps to a different instance and is left alone.
func (gm *GameManager) prune(expired []*gameInstance) []string {
	if len(expired) == 0 {
		return nil
	}

	var removed []string
	gm.mu.Lock()
	for _, game := range expired {
		if gm.games[game.id] == game {
			delete(gm.games, game.id)
			removed = append(removed, game.id)
		}
	}
	remaining := len(gm.games)
	gm.mu.Unlock()

	log.Info().
		Int("removed", len(removed)).
		Int("remaining", remaining).
		Msg("Game cleanup completed")
	return removed
}
