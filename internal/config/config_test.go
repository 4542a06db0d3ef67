package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobals() {
	cfg = nil
	v = nil
}

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
game:
  seed: 42
trainer:
  episodes: 500
  learning_rate: 0.2
  stop_on_win: true
server:
  grpc_server:
    port: 8080
    max_games: 10
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	resetGlobals()
	require.NoError(t, Init(configFile))

	c := Get()
	assert.Equal(t, int64(42), c.Game.Seed)
	assert.Equal(t, 500, c.Trainer.Episodes)
	assert.Equal(t, 0.2, c.Trainer.LearningRate)
	assert.True(t, c.Trainer.StopOnWin)
	assert.Equal(t, 8080, c.Server.GRPCServer.Port)
	assert.Equal(t, 10, c.Server.GRPCServer.MaxGames)
	assert.Equal(t, configFile, ConfigFilePath())

	// Untouched keys keep their defaults.
	assert.Equal(t, 0.95, c.Trainer.Discount)
	assert.Equal(t, 10000, c.Trainer.ReportInterval)
}

func TestInitWithDefaults(t *testing.T) {
	resetGlobals()

	err := Init("/non/existent/path/config.yaml")
	require.NoError(t, err)

	c := Get()
	assert.Equal(t, int64(0), c.Game.Seed)
	assert.Equal(t, 1000000, c.Trainer.Episodes)
	assert.Equal(t, 0.8, c.Trainer.LearningRate)
	assert.Equal(t, 10000, c.Experience.BufferCapacity)
	assert.Equal(t, "", c.Storage.Redis.Addr)
	assert.Equal(t, "game2048:snapshot:", c.Storage.Redis.KeyPrefix)
	assert.Equal(t, "0.0.0.0", c.Server.GRPCServer.Host)
	assert.Equal(t, 50051, c.Server.GRPCServer.Port)
	assert.True(t, c.Server.GRPCServer.EnableReflection)
}

func TestEnvironmentVariables(t *testing.T) {
	resetGlobals()
	t.Setenv("G2048_TRAINER_EPISODES", "77")
	t.Setenv("G2048_SERVER_GRPC_SERVER_PORT", "9090")
	t.Setenv("G2048_STORAGE_REDIS_ADDR", "localhost:6379")

	require.NoError(t, Init(""))

	c := Get()
	assert.Equal(t, 77, c.Trainer.Episodes)
	assert.Equal(t, 9090, c.Server.GRPCServer.Port)
	assert.Equal(t, "localhost:6379", c.Storage.Redis.Addr)
}

func TestInitRejectsInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("trainer:\n  discount: 1.5\n"), 0644))

	resetGlobals()
	err := Init(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trainer.discount")
}

func TestInitRejectsMalformedFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("trainer:\n  episodes: [oops\n"), 0644))

	resetGlobals()
	err := Init(configFile)
	require.Error(t, err, "a syntax error must not fall back to defaults")
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestSet(t *testing.T) {
	resetGlobals()
	require.NoError(t, Init(""))

	Set("trainer.epsilon", 0.05)
	Set("server.grpc_server.max_games", 3)

	c := Get()
	assert.Equal(t, 0.05, c.Trainer.Epsilon)
	assert.Equal(t, 3, c.Server.GRPCServer.MaxGames)
}

func TestSetOverridesAreValidated(t *testing.T) {
	resetGlobals()
	require.NoError(t, Init(""))

	Set("server.grpc_server.max_games", 0)
	err := Validate(Get())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_games")

	Set("server.grpc_server.max_games", 5)
	Set("server.grpc_server.port", 70000)
	err = Validate(Get())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestLoadEnvironmentConfig(t *testing.T) {
	tmpDir := t.TempDir()

	baseConfig := filepath.Join(tmpDir, "config.yaml")
	baseContent := `
trainer:
  episodes: 20
server:
  grpc_server:
    port: 50051
`
	require.NoError(t, os.WriteFile(baseConfig, []byte(baseContent), 0644))

	envContent := `
trainer:
  episodes: 30
server:
  grpc_server:
    port: 8080
    log_level: "error"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.prod.yaml"), []byte(envContent), 0644))

	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldWd) }()

	resetGlobals()
	require.NoError(t, Init(baseConfig))
	require.NoError(t, LoadEnvironmentConfig("prod"))

	c := Get()
	assert.Equal(t, 30, c.Trainer.Episodes)
	assert.Equal(t, 8080, c.Server.GRPCServer.Port)
	assert.Equal(t, "error", c.Server.GRPCServer.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		resetGlobals()
		require.NoError(t, Init(""))
		c := *Get()
		return &c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"negative episodes", func(c *Config) { c.Trainer.Episodes = -1 }, "trainer.episodes"},
		{"zero learning rate", func(c *Config) { c.Trainer.LearningRate = 0 }, "trainer.learning_rate"},
		{"epsilon above one", func(c *Config) { c.Trainer.Epsilon = 1.1 }, "trainer.epsilon"},
		{"zero report interval", func(c *Config) { c.Trainer.ReportInterval = 0 }, "trainer.report_interval"},
		{"zero buffer", func(c *Config) { c.Experience.BufferCapacity = 0 }, "experience.buffer_capacity"},
		{"negative ttl", func(c *Config) { c.Storage.Redis.TTLSeconds = -5 }, "storage.redis.ttl_seconds"},
		{"bad port", func(c *Config) { c.Server.GRPCServer.Port = 70000 }, "server.grpc_server.port"},
		{"zero max games", func(c *Config) { c.Server.GRPCServer.MaxGames = 0 }, "server.grpc_server.max_games"},
		{"zero cleanup interval", func(c *Config) { c.Server.GRPCServer.CleanupIntervalSeconds = 0 }, "cleanup_interval_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := Validate(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
