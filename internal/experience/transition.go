package experience

import (
	"time"

	"github.com/google/uuid"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// Transition is one (state, action, reward, next state) step of a game.
// Reward is the value observed after the terminal check, so a move that
// ends the game carries core.RewardTerminal.
type Transition struct {
	ID          string         `json:"id"`
	GameID      string         `json:"game_id"`
	State       core.Grid      `json:"state"`
	StateKey    uint64         `json:"state_key"`
	Action      core.Direction `json:"action"`
	Reward      int            `json:"reward"`
	Next        core.Grid      `json:"next"`
	NextKey     uint64         `json:"next_key"`
	Done        bool           `json:"done"`
	CollectedAt time.Time      `json:"collected_at"`
}

// NewTransition builds a Transition with packed keys for both grids. It fails
// only when a grid holds an exponent too large to pack.
func NewTransition(gameID string, state core.Grid, action core.Direction, reward int, next core.Grid, done bool) (*Transition, error) {
	stateKey, err := state.Pack()
	if err != nil {
		return nil, err
	}
	nextKey, err := next.Pack()
	if err != nil {
		return nil, err
	}

	return &Transition{
		ID:          uuid.NewString(),
		GameID:      gameID,
		State:       state,
		StateKey:    stateKey,
		Action:      action,
		Reward:      reward,
		Next:        next,
		NextKey:     nextKey,
		Done:        done,
		CollectedAt: time.Now().UTC(),
	}, nil
}
