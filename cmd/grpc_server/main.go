package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/mitchelldurbincs/Game2048RL/internal/config"
	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/events/subscribers"
	"github.com/mitchelldurbincs/Game2048RL/internal/grpc/gameserver"
	"github.com/mitchelldurbincs/Game2048RL/internal/monitoring"
	redisstore "github.com/mitchelldurbincs/Game2048RL/internal/storage/redis"
)

func main() {
	cmd := &cli.Command{
		Name:  "grpc_server",
		Usage: "Serve 3x3 game environments to remote trainers over gRPC",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to config file"},
			&cli.StringFlag{Name: "env", Usage: "Merge config.<env>.yaml over the base config"},
			&cli.IntFlag{Name: "port", Usage: "The server port (overrides config)"},
			&cli.StringFlag{Name: "host", Usage: "The server host (overrides config)"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error (overrides config)"},
			&cli.IntFlag{Name: "max-games", Usage: "Maximum concurrent games (overrides config)"},
			&cli.StringFlag{Name: "redis-addr", Usage: "Redis address for game snapshots (overrides config)"},
			&cli.BoolFlag{Name: "enable-reflection", Usage: "Enable gRPC reflection for debugging"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("gRPC server failed")
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if err := config.Init(cmd.String("config")); err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}
	if err := config.LoadEnvironmentConfig(cmd.String("env")); err != nil {
		return err
	}

	// Flags override config values
	if cmd.IsSet("port") {
		config.Set("server.grpc_server.port", int(cmd.Int("port")))
	}
	if cmd.IsSet("host") {
		config.Set("server.grpc_server.host", cmd.String("host"))
	}
	if cmd.IsSet("log-level") {
		config.Set("server.grpc_server.log_level", cmd.String("log-level"))
	}
	if cmd.IsSet("max-games") {
		config.Set("server.grpc_server.max_games", int(cmd.Int("max-games")))
	}
	if cmd.IsSet("redis-addr") {
		config.Set("storage.redis.addr", cmd.String("redis-addr"))
	}
	if cmd.Bool("enable-reflection") {
		config.Set("server.grpc_server.enable_reflection", true)
	}

	cfg := config.Get()
	if err := config.Validate(cfg); err != nil {
		return err
	}
	serverCfg := cfg.Server.GRPCServer
	setupLogging(serverCfg.LogLevel)

	log.Info().
		Int("port", serverCfg.Port).
		Str("host", serverCfg.Host).
		Int("max_games", serverCfg.MaxGames).
		Str("config_file", config.ConfigFilePath()).
		Msg("Starting gRPC game server")

	// Hot-reload the log level when the config file changes.
	if config.ConfigFilePath() != "" {
		config.WatchConfig(func() {
			level := config.Get().Server.GRPCServer.LogLevel
			setupLogging(level)
			log.Info().Str("log_level", level).Msg("Config reloaded")
		})
	}

	// Game events are logged at debug level; they fire on every step.
	bus := events.NewEventBus(log.Logger)
	bus.Subscribe(subscribers.NewLoggerSubscriber("game-events", log.Logger, zerolog.DebugLevel))

	manager := gameserver.NewGameManager(gameserver.ManagerConfig{
		MaxGames:             serverCfg.MaxGames,
		CleanupInterval:      time.Duration(serverCfg.CleanupIntervalSeconds) * time.Second,
		FinishedGameTTL:      time.Duration(serverCfg.FinishedGameTTLSeconds) * time.Second,
		AbandonedGameTimeout: time.Duration(serverCfg.AbandonedGameTimeoutSeconds) * time.Second,
		Seed:                 cfg.Game.Seed,
		EventBus:             bus,
	})
	defer manager.Close()

	buffer := experience.NewBuffer(cfg.Experience.BufferCapacity, log.Logger)
	defer func() {
		if unread := buffer.Drain(); len(unread) > 0 {
			log.Info().Int("transitions", len(unread)).Msg("Discarding unsampled transitions")
		}
		if err := buffer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close experience buffer")
		}
	}()

	opts := []gameserver.Option{gameserver.WithExperienceBuffer(buffer)}
	if addr := cfg.Storage.Redis.Addr; addr != "" {
		client, err := redisstore.Connect(ctx, addr)
		if err != nil {
			return err
		}
		defer client.Close()

		ttl := time.Duration(cfg.Storage.Redis.TTLSeconds) * time.Second
		opts = append(opts, gameserver.WithSnapshotStore(
			redisstore.NewSnapshotStore(client, cfg.Storage.Redis.KeyPrefix, ttl, log.Logger),
		))
		log.Info().Str("addr", addr).Msg("Redis snapshot store enabled")
	}

	monitor := monitoring.NewMonitor(monitoring.Config{}, log.Logger)
	monitor.Register("active_games", manager.GetActiveGames)
	monitor.Register("buffered_transitions", buffer.Size)
	monitor.Start()
	defer monitor.Stop()

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			gameserver.LoggingInterceptor,
			gameserver.RecoveryInterceptor,
		),
	)
	gameserver.RegisterEnvironmentServiceServer(grpcServer, gameserver.NewServer(manager, opts...))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(gameserver.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if serverCfg.EnableReflection {
		reflection.Register(grpcServer)
		log.Info().Msg("gRPC reflection enabled")
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", lis.Addr().String()).Msg("gRPC server listening")
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-sigCtx.Done():
	}

	log.Info().Msg("Received shutdown signal")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(gameserver.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Give ongoing requests time to complete
	time.Sleep(time.Duration(serverCfg.GracefulShutdownDelay) * time.Second)

	log.Info().Msg("Gracefully stopping gRPC server")
	grpcServer.GracefulStop()
	log.Info().
		Int("games", manager.GetActiveGames()).
		Interface("buffer", buffer.Stats()).
		Msg("Server shutdown complete")
	return nil
}

func setupLogging(level string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if os.Getenv("APP_ENV") == "production" {
		// JSON output for production
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}
