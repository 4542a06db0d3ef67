// Package redis keeps the latest snapshot of each live game in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/storage"
)

// DefaultKeyPrefix namespaces snapshot keys when no prefix is configured.
const DefaultKeyPrefix = "game2048:snapshot:"

// Connect opens a client for addr and checks it with PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// SnapshotStore stores game snapshots as JSON under prefix+gameID.
type SnapshotStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSnapshotStore wraps client. A zero ttl keeps snapshots until deleted.
func NewSnapshotStore(client *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) *SnapshotStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SnapshotStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "redis_snapshot_store").Logger(),
	}
}

func (s *SnapshotStore) key(gameID string) string {
	return s.prefix + gameID
}

// Save writes snapshot, replacing any previous one for the same game.
func (s *SnapshotStore) Save(ctx context.Context, snapshot game.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("could not marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.key(snapshot.GameID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snapshot.GameID, err)
	}

	s.logger.Debug().Str("game_id", snapshot.GameID).Int("moves", snapshot.Moves).Msg("Snapshot saved")
	return nil
}

// Load returns the stored snapshot or storage.ErrNotFound.
func (s *SnapshotStore) Load(ctx context.Context, gameID string) (game.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return game.Snapshot{}, fmt.Errorf("snapshot %s: %w", gameID, storage.ErrNotFound)
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("failed to load snapshot %s: %w", gameID, err)
	}

	var snapshot game.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return game.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot %s: %w", gameID, err)
	}
	return snapshot, nil
}

// Delete removes the snapshot; deleting a missing game is not an error.
func (s *SnapshotStore) Delete(ctx context.Context, gameID string) error {
	if err := s.client.Del(ctx, s.key(gameID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", gameID, err)
	}
	return nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
