// Package sqlite stores training episode results in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mitchelldurbincs/Game2048RL/internal/storage"
	"github.com/mitchelldurbincs/Game2048RL/internal/storage/sqlite/migrations"
)

// Store provides SQLite-backed episode persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordEpisode persists one episode result. Recording the same run and
// episode twice fails.
func (s *Store) RecordEpisode(ctx context.Context, record storage.EpisodeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.RunID = strings.TrimSpace(record.RunID)
	if record.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if record.Episode < 0 {
		return fmt.Errorf("episode must be non-negative")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO episodes (
	run_id,
	episode,
	score,
	moves,
	won,
	max_exponent,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		record.RunID,
		record.Episode,
		record.Score,
		record.Moves,
		record.Won,
		record.MaxExponent,
		record.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record episode: %w", err)
	}
	return nil
}

// ListEpisodes returns up to limit episodes of runID, most recent episode first.
func (s *Store) ListEpisodes(ctx context.Context, runID string, limit int) ([]storage.EpisodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	run_id,
	episode,
	score,
	moves,
	won,
	max_exponent,
	created_at
FROM episodes
WHERE run_id = ?
ORDER BY episode DESC
LIMIT ?
`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	records := make([]storage.EpisodeRecord, 0, limit)
	for rows.Next() {
		var record storage.EpisodeRecord
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.Episode,
			&record.Score,
			&record.Moves,
			&record.Won,
			&record.MaxExponent,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return records, nil
}

// Summary aggregates every episode recorded for runID. It returns
// storage.ErrNotFound when the run has no episodes.
func (s *Store) Summary(ctx context.Context, runID string) (storage.RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return storage.RunSummary{}, err
	}

	summary := storage.RunSummary{RunID: runID}
	var best sql.NullInt64
	var wins sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*), SUM(won), MAX(score)
FROM episodes
WHERE run_id = ?
`, runID).Scan(&summary.Episodes, &wins, &best)
	if err != nil {
		return storage.RunSummary{}, fmt.Errorf("summarize run: %w", err)
	}
	if summary.Episodes == 0 {
		return storage.RunSummary{}, storage.ErrNotFound
	}
	summary.Wins = int(wins.Int64)
	summary.BestScore = int(best.Int64)
	return summary, nil
}

var _ storage.EpisodeStore = (*Store)(nil)
