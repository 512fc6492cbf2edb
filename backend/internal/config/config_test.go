package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, Config{
		ListenAddr:      DefaultListenAddr,
		LogLevel:        slog.LevelInfo,
		LogFormat:       DefaultLogFormat,
		SweepInterval:   DefaultSweepInterval,
		StaleThreshold:  DefaultStaleThreshold,
		ShutdownTimeout: DefaultShutdownTimeout,
		AllowedOrigin:   DefaultAllowedOrigin,
	}, cfg)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("WARPDROP_LISTEN", "127.0.0.1:9000")
	t.Setenv("WARPDROP_SWEEP_INTERVAL", "30s")
	t.Setenv("WARPDROP_LOG_LEVEL", "debug")

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	t.Setenv("WARPDROP_LISTEN", "127.0.0.1:9000")

	cfg, err := Load(newFlags(t, "--listen", ":7000", "--stale-threshold", "90s"))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, 90*time.Second, cfg.StaleThreshold)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":6000\"\nlog-format: json\nsweep-interval: 1m\n"), 0o600))

	cfg, err := Load(newFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.ListenAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"--log-format", "xml"}},
		{"sweep", []string{"--sweep-interval", "0s"}},
		{"threshold", []string{"--stale-threshold", "-1s"}},
		{"missing file", []string{"--config", "/nonexistent/server.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newFlags(t, tt.args...))
			assert.Error(t, err)
		})
	}
}
