package events

import (
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
)

// Event type constants
const (
	TypeGameStarted     = "game.started"
	TypeActionApplied   = "game.action_applied"
	TypeTileSpawned     = "game.tile_spawned"
	TypeGameEnded       = "game.ended"
	TypeStateTransition = "state.transition"
)

// GameStartedEvent is published once a game holds its initial board.
type GameStartedEvent struct {
	BaseEvent
	Initial core.Grid `json:"initial"`
	Seeded  bool      `json:"seeded"`
}

func NewGameStartedEvent(gameID string, initial core.Grid, seeded bool) *GameStartedEvent {
	return &GameStartedEvent{
		BaseEvent: newBase(TypeGameStarted, gameID),
		Initial:   initial,
		Seeded:    seeded,
	}
}

// ActionAppliedEvent is published after the merge step of an action, before the spawn.
type ActionAppliedEvent struct {
	BaseEvent
	Move      int            `json:"move"`
	Direction core.Direction `json:"direction"`
	Reward    int            `json:"reward"`
	Changed   bool           `json:"changed"`
}

func NewActionAppliedEvent(gameID string, move int, d core.Direction, reward int, changed bool) *ActionAppliedEvent {
	return &ActionAppliedEvent{
		BaseEvent: newBase(TypeActionApplied, gameID),
		Move:      move,
		Direction: d,
		Reward:    reward,
		Changed:   changed,
	}
}

// TileSpawnedEvent is published for every random tile placed on the board.
type TileSpawnedEvent struct {
	BaseEvent
	Row      int   `json:"row"`
	Col      int   `json:"col"`
	Exponent uint8 `json:"exponent"`
}

func NewTileSpawnedEvent(gameID string, row, col int, exp uint8) *TileSpawnedEvent {
	return &TileSpawnedEvent{
		BaseEvent: newBase(TypeTileSpawned, gameID),
		Row:       row,
		Col:       col,
		Exponent:  exp,
	}
}

// GameEndedEvent is published the first time a terminal check finds no legal direction.
type GameEndedEvent struct {
	BaseEvent
	Moves       int   `json:"moves"`
	MaxExponent uint8 `json:"max_exponent"`
}

func NewGameEndedEvent(gameID string, moves int, maxExp uint8) *GameEndedEvent {
	return &GameEndedEvent{
		BaseEvent:   newBase(TypeGameEnded, gameID),
		Moves:       moves,
		MaxExponent: maxExp,
	}
}

// StateTransitionEvent is published by the phase state machine.
type StateTransitionEvent struct {
	BaseEvent
	FromPhase string `json:"from_phase"`
	ToPhase   string `json:"to_phase"`
	Reason    string `json:"reason"`
}

func NewStateTransitionEvent(gameID, from, to, reason string) *StateTransitionEvent {
	return &StateTransitionEvent{
		BaseEvent: newBase(TypeStateTransition, gameID),
		FromPhase: from,
		ToPhase:   to,
		Reason:    reason,
	}
}
