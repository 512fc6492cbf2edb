package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BioHazard786/Warpdrop/cli/internal/config"
	"github.com/BioHazard786/Warpdrop/cli/internal/negotiator"
	"github.com/BioHazard786/Warpdrop/cli/internal/session"
	"github.com/BioHazard786/Warpdrop/cli/internal/signaling"
)

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// dialTransport connects to one signaling endpoint. The push transport is
// preferred; when its socket cannot be opened the same endpoint is polled
// over HTTP instead, and the fallback controller takes over from there.
func dialTransport(ctx context.Context, cfg *config.Config, httpURL, wsURL string, logger *slog.Logger) signaling.Transport {
	if cfg.Transport == config.TransportWebSocket {
		push, err := signaling.DialPush(ctx, wsURL, logger)
		if err == nil {
			return push
		}
		logger.Debug("push transport unavailable, polling instead", "url", wsURL, "error", err)
	}
	return signaling.NewHTTPClient(httpURL, logger)
}

// NewSession wires the transports, the fallback tiers and the negotiator
// configuration for one room session.
func NewSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) *session.Session {
	primary := dialTransport(ctx, cfg, cfg.SignalingURL, cfg.WebSocketURL, logger)

	var mirror signaling.Transport
	if cfg.MirrorEnabled() {
		mirror = dialTransport(ctx, cfg, cfg.MirrorSignalingURL(), cfg.MirrorWebSocketURL(), logger)
	}

	return session.New(ctx, session.Options{
		DeviceType: cfg.DeviceType,
		Primary:    primary,
		Mirror:     mirror,
		Negotiator: negotiator.Options{
			API:           negotiator.NewAPI(logger),
			Configuration: negotiator.Configuration(cfg),
		},
		PollInterval:      cfg.PollInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Logger:            logger,
	})
}
