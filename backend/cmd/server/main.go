package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BioHazard786/Warpdrop/backend/internal/config"
	"github.com/BioHazard786/Warpdrop/backend/internal/metrics"
	"github.com/BioHazard786/Warpdrop/backend/internal/server"
	"github.com/BioHazard786/Warpdrop/backend/internal/signaling"
	"github.com/BioHazard786/Warpdrop/internal/clock"
	"github.com/BioHazard786/Warpdrop/internal/logging"
	"github.com/BioHazard786/Warpdrop/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "warpdrop-server",
	Short:   "Rendezvous server for WarpDrop peers",
	Long:    `warpdrop-server lets peers that share a room id find each other and exchange WebRTC offers, answers and ICE candidates. It keeps everything in memory and never carries application data.`,
	Version: version.Version,
	RunE:    run,
}

func init() {
	config.RegisterFlags(rootCmd.Flags())
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	m := metrics.New()
	store := signaling.NewStore(clock.Real{})
	dispatcher := signaling.NewDispatcher(store, logger, m)
	hub := signaling.NewHub(dispatcher, logger, m)
	sweeper := signaling.NewSweeper(store, cfg.SweepInterval, cfg.StaleThreshold, logger, m)
	srv := server.New(cfg, logger, dispatcher, hub, m)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, server.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", "error", err)
			return srv.Close()
		}
		return nil
	})

	logger.Info("warpdrop-server starting",
		"version", version.Version,
		"listen", cfg.ListenAddr,
		"sweep_interval", cfg.SweepInterval,
		"stale_threshold", cfg.StaleThreshold,
	)

	return g.Wait()
}
