package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Game       GameConfig       `mapstructure:"game"`
	Trainer    TrainerConfig    `mapstructure:"trainer"`
	Experience ExperienceConfig `mapstructure:"experience"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
}

// GameConfig holds game construction settings
type GameConfig struct {
	// Seed for new games; 0 means seed from the clock.
	Seed int64 `mapstructure:"seed"`
}

// TrainerConfig holds tabular Q-learning settings
type TrainerConfig struct {
	Episodes       int     `mapstructure:"episodes"`
	LearningRate   float64 `mapstructure:"learning_rate"`
	Discount       float64 `mapstructure:"discount"`
	Epsilon        float64 `mapstructure:"epsilon"`
	ReportInterval int     `mapstructure:"report_interval"`
	StopOnWin      bool    `mapstructure:"stop_on_win"`
	ResultsPath    string  `mapstructure:"results_path"`
}

// ExperienceConfig holds transition buffer settings
type ExperienceConfig struct {
	BufferCapacity int `mapstructure:"buffer_capacity"`
}

// StorageConfig holds external store settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the game snapshot store. An empty Addr disables it.
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	GRPCServer GRPCServerConfig `mapstructure:"grpc_server"`
}

// GRPCServerConfig holds gRPC server configuration
type GRPCServerConfig struct {
	Host                        string `mapstructure:"host"`
	Port                        int    `mapstructure:"port"`
	LogLevel                    string `mapstructure:"log_level"`
	MaxGames                    int    `mapstructure:"max_games"`
	EnableReflection            bool   `mapstructure:"enable_reflection"`
	GracefulShutdownDelay       int    `mapstructure:"graceful_shutdown_delay"`
	CleanupIntervalSeconds      int    `mapstructure:"cleanup_interval_seconds"`
	FinishedGameTTLSeconds      int    `mapstructure:"finished_game_ttl_seconds"`
	AbandonedGameTimeoutSeconds int    `mapstructure:"abandoned_game_timeout_seconds"`
}

var (
	// Global config instance
	cfg *Config
	v   *viper.Viper
)

// setViperDefaults sets all default values using Viper's SetDefault
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("game.seed", 0)

	// Trainer defaults
	v.SetDefault("trainer.episodes", 1000000)
	v.SetDefault("trainer.learning_rate", 0.8)
	v.SetDefault("trainer.discount", 0.95)
	v.SetDefault("trainer.epsilon", 0.0)
	v.SetDefault("trainer.report_interval", 10000)
	v.SetDefault("trainer.stop_on_win", false)
	v.SetDefault("trainer.results_path", "")

	v.SetDefault("experience.buffer_capacity", 10000)

	// Storage defaults
	v.SetDefault("storage.redis.addr", "")
	v.SetDefault("storage.redis.key_prefix", "game2048:snapshot:")
	v.SetDefault("storage.redis.ttl_seconds", 3600)

	// gRPC server defaults
	v.SetDefault("server.grpc_server.host", "0.0.0.0")
	v.SetDefault("server.grpc_server.port", 50051)
	v.SetDefault("server.grpc_server.log_level", "info")
	v.SetDefault("server.grpc_server.max_games", 1000)
	v.SetDefault("server.grpc_server.enable_reflection", true)
	v.SetDefault("server.grpc_server.graceful_shutdown_delay", 5)
	v.SetDefault("server.grpc_server.cleanup_interval_seconds", 300)
	v.SetDefault("server.grpc_server.finished_game_ttl_seconds", 600)
	v.SetDefault("server.grpc_server.abandoned_game_timeout_seconds", 1800)
}

// Init initializes the configuration
func Init(configPath string) error {
	v = viper.New()
	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/game2048-rl")
	}

	v.SetEnvPrefix("G2048")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file falls back to defaults. Anything else, such as a
		// YAML syntax error, is reported.
		if !isMissingFile(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		if err := Init(""); err != nil {
			panic("failed to initialize config with defaults: " + err.Error())
		}
	}
	return cfg
}

// LoadEnvironmentConfig merges config.<env>.yaml over the loaded configuration.
func LoadEnvironmentConfig(env string) error {
	if env == "" {
		return nil
	}

	envFile := fmt.Sprintf("config.%s.yaml", env)
	v.SetConfigFile(envFile)
	if err := v.MergeInConfig(); err != nil && !isMissingFile(err) {
		return fmt.Errorf("error merging environment config %s: %w", envFile, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode merged config into struct: %w", err)
	}
	return Validate(cfg)
}

// Set allows runtime config updates
func Set(key string, value interface{}) {
	v.Set(key, value)
	_ = v.Unmarshal(cfg)
}

// ConfigFilePath returns the path of the loaded config file
func ConfigFilePath() string {
	return v.ConfigFileUsed()
}

// WatchConfig enables hot-reloading of config file
func WatchConfig(onChange func()) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		_ = v.Unmarshal(cfg)
		if onChange != nil {
			onChange()
		}
	})
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate validates the configuration values
func Validate(c *Config) error {
	if c.Trainer.Episodes < 0 {
		return fmt.Errorf("trainer.episodes must be non-negative")
	}
	if c.Trainer.LearningRate <= 0 || c.Trainer.LearningRate > 1 {
		return fmt.Errorf("trainer.learning_rate must be in (0, 1]")
	}
	if c.Trainer.Discount < 0 || c.Trainer.Discount > 1 {
		return fmt.Errorf("trainer.discount must be between 0 and 1")
	}
	if c.Trainer.Epsilon < 0 || c.Trainer.Epsilon > 1 {
		return fmt.Errorf("trainer.epsilon must be between 0 and 1")
	}
	if c.Trainer.ReportInterval <= 0 {
		return fmt.Errorf("trainer.report_interval must be positive")
	}

	if c.Experience.BufferCapacity <= 0 {
		return fmt.Errorf("experience.buffer_capacity must be positive")
	}

	if c.Storage.Redis.TTLSeconds < 0 {
		return fmt.Errorf("storage.redis.ttl_seconds must be non-negative")
	}

	s := c.Server.GRPCServer
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server.grpc_server.port must be between 1 and 65535")
	}
	if s.MaxGames <= 0 {
		return fmt.Errorf("server.grpc_server.max_games must be positive")
	}
	if s.GracefulShutdownDelay < 0 {
		return fmt.Errorf("server.grpc_server.graceful_shutdown_delay must be non-negative")
	}
	if s.CleanupIntervalSeconds <= 0 {
		return fmt.Errorf("server.grpc_server.cleanup_interval_seconds must be positive")
	}
	if s.FinishedGameTTLSeconds < 0 || s.AbandonedGameTimeoutSeconds < 0 {
		return fmt.Errorf("server.grpc_server game timeouts must be non-negative")
	}

	return nil
}
