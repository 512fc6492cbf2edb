package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/BioHazard786/Warpdrop/internal/logging"
)

// Default configuration values.
const (
	DefaultListenAddr      = ":8080"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = logging.FormatText
	DefaultSweepInterval   = 5 * time.Minute
	DefaultStaleThreshold  = 5 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second
	DefaultAllowedOrigin   = "*"

	EnvPrefix = "WARPDROP"
)

// Flag and key names. Environment variables are WARPDROP_ + upper snake case,
// e.g. WARPDROP_SWEEP_INTERVAL.
const (
	KeyConfig          = "config"
	KeyListen          = "listen"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeySweepInterval   = "sweep-interval"
	KeyStaleThreshold  = "stale-threshold"
	KeyShutdownTimeout = "shutdown-timeout"
	KeyAllowedOrigin   = "allowed-origin"
)

type Config struct {
	ListenAddr      string
	LogLevel        slog.Level
	LogFormat       string
	SweepInterval   time.Duration
	StaleThreshold  time.Duration
	ShutdownTimeout time.Duration

	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string
}

// RegisterFlags adds the server flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfig, "", "Path to a config file (yaml, json or toml)")
	fs.String(KeyListen, DefaultListenAddr, "Address to listen on")
	fs.String(KeyLogLevel, DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, DefaultLogFormat, "Log format (text, json)")
	fs.Duration(KeySweepInterval, DefaultSweepInterval, "How often stale peers are swept")
	fs.Duration(KeyStaleThreshold, DefaultStaleThreshold, "Silence after which a peer is evicted")
	fs.Duration(KeyShutdownTimeout, DefaultShutdownTimeout, "Grace period for in-flight requests on shutdown")
	fs.String(KeyAllowedOrigin, DefaultAllowedOrigin, "Value of Access-Control-Allow-Origin")
}

// Load resolves the configuration with the following priority:
// 1. Flags that were set explicitly
// 2. WARPDROP_* environment variables
// 3. The config file, when --config or WARPDROP_CONFIG names one
// 4. Defaults
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()

	v.SetDefault(KeyListen, DefaultListenAddr)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeySweepInterval, DefaultSweepInterval)
	v.SetDefault(KeyStaleThreshold, DefaultStaleThreshold)
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)
	v.SetDefault(KeyAllowedOrigin, DefaultAllowedOrigin)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		ListenAddr:      v.GetString(KeyListen),
		LogLevel:        logging.ParseLevel(v.GetString(KeyLogLevel), slog.LevelInfo),
		LogFormat:       strings.ToLower(v.GetString(KeyLogFormat)),
		SweepInterval:   v.GetDuration(KeySweepInterval),
		StaleThreshold:  v.GetDuration(KeyStaleThreshold),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
		AllowedOrigin:   v.GetString(KeyAllowedOrigin),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval))
	}
	if c.StaleThreshold <= 0 {
		errs = append(errs, fmt.Errorf("stale threshold must be positive, got %s", c.StaleThreshold))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must not be negative, got %s", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}
