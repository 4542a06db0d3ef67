// Package trainer plays games against the engine and learns a tabular
// Q-function keyed by the packed grid.
package trainer

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/storage"
)

// Config holds the learning parameters.
type Config struct {
	Episodes       int
	LearningRate   float64
	Discount       float64
	Epsilon        float64
	ReportInterval int
	// StopOnWin ends an episode right after the winning merge.
	StopOnWin bool
	// Seed for the trainer's RNG; 0 seeds from the clock.
	Seed int64
}

// Recorder receives one record per finished episode.
type Recorder interface {
	RecordEpisode(ctx context.Context, record storage.EpisodeRecord) error
}

// EpisodeResult summarizes one played game.
type EpisodeResult struct {
	Episode     int
	Score       int
	FinalReward int
	Moves       int
	Won         bool
	MaxExponent uint8
}

// Summary describes a finished or cancelled run.
type Summary struct {
	RunID         string
	Episodes      int
	Wins          int
	HighestReward int
	BestScore     int
	States        int
	Duration      time.Duration
}

// Trainer runs episodes sequentially and owns its Q-table.
type Trainer struct {
	cfg      Config
	q        *QTable
	rng      *rand.Rand
	runID    string
	logger   zerolog.Logger
	recorder Recorder
	buffer   *experience.Buffer
}

// Option configures optional collaborators.
type Option func(*Trainer)

// WithRecorder stores each episode result.
func WithRecorder(r Recorder) Option {
	return func(t *Trainer) { t.recorder = r }
}

// WithExperience adds every transition to buf.
func WithExperience(buf *experience.Buffer) Option {
	return func(t *Trainer) { t.buffer = buf }
}

// WithQTable continues learning from an existing table.
func WithQTable(q *QTable) Option {
	return func(t *Trainer) { t.q = q }
}

func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Trainer, error) {
	if cfg.Episodes < 0 {
		return nil, fmt.Errorf("episodes must be non-negative, got %d", cfg.Episodes)
	}
	if cfg.LearningRate <= 0 || cfg.LearningRate > 1 {
		return nil, fmt.Errorf("learning rate must be in (0, 1], got %g", cfg.LearningRate)
	}
	if cfg.Discount < 0 || cfg.Discount > 1 {
		return nil, fmt.Errorf("discount must be in [0, 1], got %g", cfg.Discount)
	}
	if cfg.Epsilon < 0 || cfg.Epsilon > 1 {
		return nil, fmt.Errorf("epsilon must be in [0, 1], got %g", cfg.Epsilon)
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = 10000
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	runID := uuid.NewString()
	t := &Trainer{
		cfg:    cfg,
		q:      NewQTable(),
		rng:    rand.New(rand.NewSource(seed)),
		runID:  runID,
		logger: logger.With().Str("component", "trainer").Str("run_id", runID).Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Trainer) RunID() string { return t.runID }

func (t *Trainer) QTable() *QTable { return t.q }

// Run plays cfg.Episodes episodes, logging progress every ReportInterval
// episodes. On cancellation it returns the summary so far with ctx.Err().
func (t *Trainer) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: t.runID}
	window := newWindow(t.cfg.ReportInterval)

	t.logger.Info().
		Int("episodes", t.cfg.Episodes).
		Float64("learning_rate", t.cfg.LearningRate).
		Float64("discount", t.cfg.Discount).
		Float64("epsilon", t.cfg.Epsilon).
		Bool("stop_on_win", t.cfg.StopOnWin).
		Msg("Training started")

	finish := func(err error) (Summary, error) {
		summary.States = t.q.Len()
		summary.Duration = time.Since(start)
		t.logger.Info().
			Int("episodes", summary.Episodes).
			Int("wins", summary.Wins).
			Int("best_score", summary.BestScore).
			Int("states", summary.States).
			Dur("duration", summary.Duration).
			Msg("Training finished")
		return summary, err
	}

	for episode := 0; episode < t.cfg.Episodes; episode++ {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		result, err := t.PlayEpisode(ctx, episode)
		if err != nil {
			return finish(err)
		}

		if summary.Episodes == 0 || result.FinalReward > summary.HighestReward {
			summary.HighestReward = result.FinalReward
		}
		if summary.Episodes == 0 || result.Score > summary.BestScore {
			summary.BestScore = result.Score
		}
		summary.Episodes++
		if result.Won {
			summary.Wins++
		}
		window.add(result.Won)

		if summary.Episodes%t.cfg.ReportInterval == 0 {
			t.logger.Info().
				Int("episodes", summary.Episodes).
				Int("highest_reward", summary.HighestReward).
				Int("wins", summary.Wins).
				Float64("window_win_rate", window.rate()).
				Int("states", t.q.Len()).
				Msg("Training progress")
		}
	}

	return finish(nil)
}

// PlayEpisode plays one game to the end, updating the Q-table after every
// action. The reward used for an update is the one observed after the
// terminal check, so the losing move is credited with RewardTerminal.
func (t *Trainer) PlayEpisode(ctx context.Context, episode int) (EpisodeResult, error) {
	g := game.NewEngine(game.GameConfig{
		Rng:    rand.New(rand.NewSource(t.rng.Int63())),
		Logger: t.logger,
	})
	result := EpisodeResult{Episode: episode}

	over := g.GameOver()
	for !over {
		state := g.State()
		key := state.MustPack()

		action := t.chooseAction(key, g.AvailableActions())
		moveReward := g.DoAction(action)
		over = g.GameOver()
		reward := g.Reward()

		next := g.State()
		nextKey := next.MustPack()
		target := float64(reward)
		if !over {
			target += t.cfg.Discount * t.q.Max(nextKey)
		}
		t.q.Update(key, action, target, t.cfg.LearningRate)

		result.Score += reward
		result.Moves++
		result.FinalReward = reward
		if moveReward == core.RewardWin {
			result.Won = true
		}

		if t.buffer != nil {
			tr, err := experience.NewTransition(g.GameID(), state, action, reward, next, over)
			if err != nil {
				return result, fmt.Errorf("episode %d: %w", episode, err)
			}
			if err := t.buffer.Add(tr); err != nil {
				return result, fmt.Errorf("episode %d: %w", episode, err)
			}
		}

		if t.cfg.StopOnWin && result.Won {
			break
		}
	}
	result.MaxExponent = g.State().MaxExponent()

	t.logger.Debug().
		Int("episode", episode).
		Int("score", result.Score).
		Int("moves", result.Moves).
		Bool("won", result.Won).
		Msg("Episode finished")

	if t.recorder != nil {
		err := t.recorder.RecordEpisode(ctx, storage.EpisodeRecord{
			RunID:       t.runID,
			Episode:     episode,
			Score:       result.Score,
			Moves:       result.Moves,
			Won:         result.Won,
			MaxExponent: int(result.MaxExponent),
		})
		if err != nil {
			return result, fmt.Errorf("record episode %d: %w", episode, err)
		}
	}
	return result, nil
}

// chooseAction is greedy over available, exploring uniformly with
// probability Epsilon.
func (t *Trainer) chooseAction(key uint64, available []core.Direction) core.Direction {
	if t.cfg.Epsilon > 0 && t.rng.Float64() < t.cfg.Epsilon {
		return available[t.rng.Intn(len(available))]
	}
	d, _ := t.q.Best(key, available)
	return d
}

// window counts wins over the most recent n episodes.
type window struct {
	results []bool
	next    int
	filled  int
	wins    int
}

func newWindow(n int) *window {
	return &window{results: make([]bool, n)}
}

func (w *window) add(won bool) {
	if w.filled == len(w.results) && w.results[w.next] {
		w.wins--
	}
	w.results[w.next] = won
	if won {
		w.wins++
	}
	w.next = (w.next + 1) % len(w.results)
	if w.filled < len(w.results) {
		w.filled++
	}
}

func (w *window) rate() float64 {
	if w.filled == 0 {
		return 0
	}
	return float64(w.wins) / float64(w.filled)
}
