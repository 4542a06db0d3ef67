package states

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
)

// Transition represents a state transition in the history
type Transition struct {
	From      GamePhase
	To        GamePhase
	Timestamp time.Time
	Reason    string
}

// StateMachine tracks the phase of one game. Like the game that owns it,
// it is not safe for concurrent use.
type StateMachine struct {
	gameID       string
	currentPhase GamePhase
	history      []Transition
	publisher    events.Publisher
	logger       zerolog.Logger
}

// NewStateMachine starts in PhaseActive. publisher may be nil.
func NewStateMachine(gameID string, publisher events.Publisher, logger zerolog.Logger) *StateMachine {
	return &StateMachine{
		gameID:       gameID,
		currentPhase: PhaseActive,
		publisher:    publisher,
		logger:       logger.With().Str("component", "state_machine").Str("game_id", gameID).Logger(),
	}
}

func (sm *StateMachine) CurrentPhase() GamePhase { return sm.currentPhase }

func (sm *StateMachine) CanTransitionTo(target GamePhase) bool {
	return sm.currentPhase.CanTransitionTo(target)
}

// TransitionTo moves to targetPhase, records it and publishes a StateTransitionEvent.
func (sm *StateMachine) TransitionTo(targetPhase GamePhase, reason string) error {
	if !sm.currentPhase.CanTransitionTo(targetPhase) {
		return fmt.Errorf("invalid transition from %s to %s", sm.currentPhase, targetPhase)
	}

	previous := sm.currentPhase
	sm.currentPhase = targetPhase
	sm.history = append(sm.history, Transition{
		From:      previous,
		To:        targetPhase,
		Timestamp: time.Now(),
		Reason:    reason,
	})

	if sm.publisher != nil {
		sm.publisher.Publish(events.NewStateTransitionEvent(sm.gameID, previous.String(), targetPhase.String(), reason))
	}

	sm.logger.Debug().
		Str("from_phase", previous.String()).
		Str("to_phase", targetPhase.String()).
		Str("reason", reason).
		Msg("State transition completed")

	return nil
}

// GetHistory returns a copy of the transition history
func (sm *StateMachine) GetHistory() []Transition {
	history := make([]Transition, len(sm.history))
	copy(history, sm.history)
	return history
}

// Clone returns an independent machine for gameID in the same phase, with a copied history.
func (sm *StateMachine) Clone(gameID string, publisher events.Publisher, logger zerolog.Logger) *StateMachine {
	c := NewStateMachine(gameID, publisher, logger)
	c.currentPhase = sm.currentPhase
	c.history = sm.GetHistory()
	return c
}
