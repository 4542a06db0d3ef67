package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/mitchelldurbincs/Game2048RL/internal/config"
	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	"github.com/mitchelldurbincs/Game2048RL/internal/storage/sqlite"
	"github.com/mitchelldurbincs/Game2048RL/internal/trainer"
)

func main() {
	cmd := &cli.Command{
		Name:  "trainer",
		Usage: "Learn a tabular Q-function for the 3x3 tile-merging game",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to config file"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Log level: debug, info, warn, error"},
			&cli.IntFlag{Name: "episodes", Usage: "Number of episodes (overrides config)"},
			&cli.FloatFlag{Name: "learning-rate", Usage: "Q-learning step size (overrides config)"},
			&cli.FloatFlag{Name: "discount", Usage: "Discount factor (overrides config)"},
			&cli.FloatFlag{Name: "epsilon", Usage: "Exploration rate (overrides config)"},
			&cli.IntFlag{Name: "report-interval", Usage: "Episodes between progress reports (overrides config)"},
			&cli.Int64Flag{Name: "seed", Usage: "RNG seed, 0 for clock (overrides config)"},
			&cli.BoolFlag{Name: "stop-on-win", Usage: "End an episode at the winning merge"},
			&cli.StringFlag{Name: "results", Usage: "SQLite file for per-episode results (overrides config)"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd.String("log-level"))

	if err := config.Init(cmd.String("config")); err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}

	// Flags override config values
	overrides := map[string]string{
		"episodes":        "trainer.episodes",
		"learning-rate":   "trainer.learning_rate",
		"discount":        "trainer.discount",
		"epsilon":         "trainer.epsilon",
		"report-interval": "trainer.report_interval",
		"seed":            "game.seed",
		"results":         "trainer.results_path",
	}
	for flag, key := range overrides {
		if !cmd.IsSet(flag) {
			continue
		}
		switch flag {
		case "episodes", "report-interval":
			config.Set(key, int(cmd.Int(flag)))
		case "seed":
			config.Set(key, cmd.Int64(flag))
		case "results":
			config.Set(key, cmd.String(flag))
		default:
			config.Set(key, cmd.Float(flag))
		}
	}
	if cmd.Bool("stop-on-win") {
		config.Set("trainer.stop_on_win", true)
	}

	cfg := config.Get()
	if err := config.Validate(cfg); err != nil {
		return err
	}

	buffer := experience.NewBuffer(cfg.Experience.BufferCapacity, log.Logger)
	opts := []trainer.Option{trainer.WithExperience(buffer)}

	var store *sqlite.Store
	if path := cfg.Trainer.ResultsPath; path != "" {
		var err error
		store, err = sqlite.Open(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close results store")
			}
		}()
		opts = append(opts, trainer.WithRecorder(store))
		log.Info().Str("path", path).Msg("Recording episode results")
	}

	t, err := trainer.New(trainer.Config{
		Episodes:       cfg.Trainer.Episodes,
		LearningRate:   cfg.Trainer.LearningRate,
		Discount:       cfg.Trainer.Discount,
		Epsilon:        cfg.Trainer.Epsilon,
		ReportInterval: cfg.Trainer.ReportInterval,
		StopOnWin:      cfg.Trainer.StopOnWin,
		Seed:           cfg.Game.Seed,
	}, log.Logger, opts...)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := t.Run(runCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := buffer.Stats()
	terminal := 0
	for _, tr := range buffer.Drain() {
		if tr.Done {
			terminal++
		}
	}

	event := log.Info().
		Str("run_id", summary.RunID).
		Int("episodes", summary.Episodes).
		Int("wins", summary.Wins).
		Int("highest_reward", summary.HighestReward).
		Int("states", summary.States).
		Interface("experience", stats).
		Int("terminal_transitions", terminal)
	if store != nil {
		if stored, err := store.Summary(context.Background(), summary.RunID); err == nil {
			event = event.Int("stored_episodes", stored.Episodes).Int("stored_best_score", stored.BestScore)
		}
	}
	event.Bool("interrupted", err != nil).Msg("Training finished")
	return nil
}

func setupLogging(level string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if os.Getenv("APP_ENV") == "production" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}
