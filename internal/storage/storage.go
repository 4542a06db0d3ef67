// Package storage defines the persistence contracts for training runs and
// live game snapshots.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mitchelldurbincs/Game2048RL/internal/game"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// EpisodeRecord is the outcome of one training episode.
type EpisodeRecord struct {
	ID          int64
	RunID       string
	Episode     int
	Score       int
	Moves       int
	Won         bool
	MaxExponent int
	CreatedAt   time.Time
}

// RunSummary aggregates the episodes of one run.
type RunSummary struct {
	RunID     string
	Episodes  int
	Wins      int
	BestScore int
}

// EpisodeStore persists training episode results.
type EpisodeStore interface {
	RecordEpisode(ctx context.Context, record EpisodeRecord) error
	ListEpisodes(ctx context.Context, runID string, limit int) ([]EpisodeRecord, error)
	Summary(ctx context.Context, runID string) (RunSummary, error)
}

// SnapshotStore keeps the latest snapshot of each live game.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot game.Snapshot) error
	Load(ctx context.Context, gameID string) (game.Snapshot, error)
	Delete(ctx context.Context, gameID string) error
}
