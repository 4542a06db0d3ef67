package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/states"
)

// FourProbability is the chance that a spawned tile has exponent 2 (value 4)
// instead of exponent 1 (value 2).
const FourProbability = 0.1

// GameConfig configures a new Engine. The zero value is usable.
type GameConfig struct {
	GameID   string
	Rng      *rand.Rand
	Logger   zerolog.Logger
	EventBus events.Publisher

	// InitialState, when set, is copied onto the board and no tiles are seeded.
	InitialState  *core.Grid
	InitialReward int
}

// Engine is one 3x3 game: the board, the last reward and the lifecycle phase.
// An Engine is not safe for concurrent use; concurrent simulations should
// each own their own Engine.
type Engine struct {
	id      string
	board   *core.Board
	reward  int
	moves   int
	rng     *rand.Rand
	root    zerolog.Logger
	logger  zerolog.Logger
	bus     events.Publisher
	machine *states.StateMachine
}

// NewEngine creates a game from cfg. Without an initial state the board
// starts empty and two random tiles are added.
func NewEngine(cfg GameConfig) *Engine {
	if cfg.Rng == nil {
		cfg.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.GameID == "" {
		cfg.GameID = uuid.NewString()
	}

	e := &Engine{
		id:     cfg.GameID,
		board:  core.NewBoard(),
		reward: cfg.InitialReward,
		rng:    cfg.Rng,
		root:   cfg.Logger,
		logger: engineLogger(cfg.Logger, cfg.GameID),
		bus:    cfg.EventBus,
	}
	e.machine = states.NewStateMachine(e.id, e.bus, e.logger)

	seeded := cfg.InitialState == nil
	if seeded {
		e.AddRandomTile()
		e.AddRandomTile()
	} else {
		e.board.G = *cfg.InitialState
	}

	e.publish(events.NewGameStartedEvent(e.id, e.board.G, seeded))
	e.logger.Debug().Bool("seeded", seeded).Interface("state", e.board.G).Msg("Engine created")
	return e
}

func (e *Engine) GameID() string { return e.id }

// State returns a copy of the grid; 0 marks an empty cell.
func (e *Engine) State() core.Grid { return e.board.G }

// Reward returns the reward of the last action, or RewardTerminal after a
// terminal check found no legal direction. It is not a running score.
func (e *Engine) Reward() int { return e.reward }

// Moves returns the number of actions applied so far.
func (e *Engine) Moves() int { return e.moves }

func (e *Engine) Phase() states.GamePhase { return e.machine.CurrentPhase() }

// IsTerminal reports whether a previous GameOver call found the game over.
// Unlike GameOver it never changes the reward.
func (e *Engine) IsTerminal() bool { return e.machine.CurrentPhase().IsTerminal() }

// SetEventBus replaces the publisher used for this game's events; nil disables publishing.
func (e *Engine) SetEventBus(bus events.Publisher) {
	e.bus = bus
	e.machine = e.machine.Clone(e.id, bus, e.logger)
}

func (e *Engine) IsActionAvailable(d core.Direction) bool {
	return core.IsActionAvailable(e.board.G, d)
}

// AvailableActions returns the legal directions in canonical order.
func (e *Engine) AvailableActions() []core.Direction {
	actions := make([]core.Direction, 0, core.NumDirections)
	for _, d := range core.Directions {
		if e.IsActionAvailable(d) {
			actions = append(actions, d)
		}
	}
	return actions
}

// DoAction applies d, records the reward, spawns one random tile and returns
// the reward. Legality is the caller's job: an unavailable direction leaves
// the tiles in place and still spawns. Use Step for a checked variant.
func (e *Engine) DoAction(d core.Direction) int {
	if !d.Valid() {
		panic(fmt.Errorf("%w: %d", core.ErrInvalidDirection, int(d)))
	}

	before := e.board.G
	after, reward := core.ApplyMove(before, d)
	e.board.G = after
	e.reward = reward
	e.moves++

	e.publish(events.NewActionAppliedEvent(e.id, e.moves, d, reward, after != before))
	e.logger.Debug().
		Int("move", e.moves).
		Str("direction", d.String()).
		Int("reward", reward).
		Msg("Action applied")

	e.AddRandomTile()
	return reward
}

// Step is DoAction guarded by the legality check. It returns
// ErrInvalidDirection, ErrGameOver or ErrActionUnavailable instead of
// applying a move that would not change the board.
func (e *Engine) Step(d core.Direction) (int, error) {
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %d", core.ErrInvalidDirection, int(d))
	}
	if e.IsTerminal() {
		return 0, core.ErrGameOver
	}
	if !e.IsActionAvailable(d) {
		return 0, fmt.Errorf("%w: %s", core.ErrActionUnavailable, d)
	}
	return e.DoAction(d), nil
}

// GameOver checks the directions in order and returns false at the first legal
// one. When none is legal it sets the reward to RewardTerminal, overwriting the
// last action's reward, and returns true. Callers rely on that side effect.
func (e *Engine) GameOver() bool {
	for _, d := range core.Directions {
		if e.IsActionAvailable(d) {
			return false
		}
	}

	e.reward = core.RewardTerminal
	if e.machine.CanTransitionTo(states.PhaseTerminal) {
		if err := e.machine.TransitionTo(states.PhaseTerminal, "no legal direction"); err != nil {
			e.logger.Error().Err(err).Msg("Failed to enter terminal phase")
		}
		e.publish(events.NewGameEndedEvent(e.id, e.moves, e.board.G.MaxExponent()))
		e.logger.Debug().
			Int("moves", e.moves).
			Uint8("max_exponent", e.board.G.MaxExponent()).
			Msg("Game over")
	}
	return true
}

// AddRandomTile puts exponent 1 (p=0.9) or 2 (p=0.1) on a uniformly chosen
// empty cell. Calling it on a full board is a programming error and panics
// with ErrNoEmptyCell.
func (e *Engine) AddRandomTile() {
	if !e.board.HasEmpty() {
		panic(core.ErrNoEmptyCell)
	}

	cells := e.board.EmptyCells()

	cell := cells[e.rng.Intn(len(cells))]
	exp := uint8(1)
	if e.rng.Float64() < FourProbability {
		exp = 2
	}
	e.board.Set(cell[0], cell[1], exp)

	e.publish(events.NewTileSpawnedEvent(e.id, cell[0], cell[1], exp))
}

// Copy returns an independent game with the same grid, reward, move count and
// phase. The copy gets a new ID, its own RNG seeded from this game's RNG, and
// no event bus.
func (e *Engine) Copy() *Engine {
	id := uuid.NewString()
	c := &Engine{
		id:     id,
		board:  core.NewBoardFromGrid(e.board.G),
		reward: e.reward,
		moves:  e.moves,
		rng:    rand.New(rand.NewSource(e.rng.Int63())),
		root:   e.root,
		logger: engineLogger(e.root, id),
	}
	c.machine = e.machine.Clone(id, nil, c.logger)
	return c
}

func engineLogger(root zerolog.Logger, gameID string) zerolog.Logger {
	return root.With().Str("component", "GameEngine").Str("game_id", gameID).Logger()
}

func (e *Engine) publish(event events.Event) {
	if e.bus != nil {
		e.bus.Publish(event)
	}
}
