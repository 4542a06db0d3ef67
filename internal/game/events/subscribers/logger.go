package subscribers

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
)

// LoggerSubscriber logs events to structured logs
type LoggerSubscriber struct {
	id              string
	logger          zerolog.Logger
	logLevel        zerolog.Level
	eventTypeFilter map[string]bool // nil means every type
	devMode         bool            // log the full event as JSON
}

func NewLoggerSubscriber(id string, logger zerolog.Logger, logLevel zerolog.Level) *LoggerSubscriber {
	return &LoggerSubscriber{
		id:       id,
		logger:   logger.With().Str("subscriber", "event_logger").Logger(),
		logLevel: logLevel,
	}
}

func (ls *LoggerSubscriber) ID() string { return ls.id }

// SetEventFilter sets which event types to log (empty means log all)
func (ls *LoggerSubscriber) SetEventFilter(eventTypes []string) {
	if len(eventTypes) == 0 {
		ls.eventTypeFilter = nil
		return
	}
	ls.eventTypeFilter = make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		ls.eventTypeFilter[eventType] = true
	}
}

func (ls *LoggerSubscriber) SetDevMode(enabled bool) { ls.devMode = enabled }

func (ls *LoggerSubscriber) InterestedIn(eventType string) bool {
	if ls.eventTypeFilter == nil {
		return true
	}
	return ls.eventTypeFilter[eventType]
}

// HandleEvent writes one log line per event with type-specific fields.
func (ls *LoggerSubscriber) HandleEvent(event events.Event) {
	logEvent := ls.logger.WithLevel(ls.logLevel).
		Str("event_type", event.Type()).
		Str("game_id", event.GameID()).
		Time("event_time", event.Timestamp())

	switch e := event.(type) {
	case *events.GameStartedEvent:
		logEvent.Bool("seeded", e.Seeded).Interface("initial", e.Initial)
	case *events.ActionAppliedEvent:
		logEvent.
			Int("move", e.Move).
			Str("direction", e.Direction.String()).
			Int("reward", e.Reward).
			Bool("changed", e.Changed)
	case *events.TileSpawnedEvent:
		logEvent.Int("row", e.Row).Int("col", e.Col).Uint8("exponent", e.Exponent)
	case *events.GameEndedEvent:
		logEvent.Int("moves", e.Moves).Uint8("max_exponent", e.MaxExponent)
	case *events.StateTransitionEvent:
		logEvent.Str("from_phase", e.FromPhase).Str("to_phase", e.ToPhase).Str("reason", e.Reason)
	}

	if ls.devMode {
		if jsonData, err := json.Marshal(event); err == nil {
			logEvent.RawJSON("event_data", jsonData)
		}
	}

	logEvent.Msg("Game event")
}
