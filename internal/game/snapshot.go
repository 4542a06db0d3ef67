package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/states"
)

// Snapshot is the serializable view of an Engine, used by snapshot stores
// and the environment server.
type Snapshot struct {
	GameID    string    `json:"game_id"`
	State     core.Grid `json:"state"`
	Reward    int       `json:"reward"`
	Moves     int       `json:"moves"`
	Phase     string    `json:"phase"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		GameID:    e.id,
		State:     e.board.G,
		Reward:    e.reward,
		Moves:     e.moves,
		Phase:     e.Phase().String(),
		UpdatedAt: time.Now().UTC(),
	}
}

// RestoreEngine rebuilds a game from s under the same ID. The phase is
// restored as recorded; the terminal check is not re-run.
func RestoreEngine(s Snapshot, rng *rand.Rand, logger zerolog.Logger) (*Engine, error) {
	phase, err := states.ParsePhase(s.Phase)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", s.GameID, err)
	}

	state := s.State
	e := NewEngine(GameConfig{
		GameID:        s.GameID,
		Rng:           rng,
		Logger:        logger,
		InitialState:  &state,
		InitialReward: s.Reward,
	})
	e.moves = s.Moves
	if phase == states.PhaseTerminal {
		if err := e.machine.TransitionTo(states.PhaseTerminal, "restored from snapshot"); err != nil {
			return nil, fmt.Errorf("restore %s: %w", s.GameID, err)
		}
	}
	return e, nil
}
