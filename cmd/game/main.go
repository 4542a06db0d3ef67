package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events/subscribers"
)

// Plays games with a uniformly random legal policy and logs every engine event.
func main() {
	cmd := &cli.Command{
		Name:  "game",
		Usage: "Play random 3x3 games and log the engine's events",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "games", Value: 1, Usage: "Number of games to play"},
			&cli.Int64Flag{Name: "seed", Usage: "RNG seed, 0 for clock"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log every action and spawn"},
		},
		Action: play,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Demo failed")
	}
}

func play(ctx context.Context, cmd *cli.Command) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	seed := cmd.Int64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	bus := events.NewEventBus(logger)
	sub := subscribers.NewLoggerSubscriber("demo-logger", logger, zerolog.InfoLevel)
	sub.SetDevMode(true)
	if !cmd.Bool("verbose") {
		sub.SetEventFilter([]string{events.TypeGameStarted, events.TypeGameEnded, events.TypeStateTransition})
	}
	bus.Subscribe(sub)

	games := int(cmd.Int("games"))
	wins := 0
	for i := 0; i < games; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		engine := game.NewEngine(game.GameConfig{
			Rng:      rand.New(rand.NewSource(rng.Int63())),
			Logger:   logger,
			EventBus: bus,
		})
		won := false
		for !engine.GameOver() {
			actions := engine.AvailableActions()
			if engine.DoAction(actions[rng.Intn(len(actions))]) == core.RewardWin {
				won = true
			}
		}
		if won {
			wins++
		}

		fmt.Printf("game %d: moves=%d max_tile=%d won=%t final=%v\n",
			i+1, engine.Moves(), 1<<engine.State().MaxExponent(), won, engine.State().Rows())
	}

	logger.Info().Int("games", games).Int("wins", wins).Int64("seed", seed).Msg("Demo finished")
	return nil
}
