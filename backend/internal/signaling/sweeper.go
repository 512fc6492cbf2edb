package signaling

import (
	"context"
	"log/slog"
	"time"
)

// Reference eviction cadence.
const (
	DefaultSweepInterval  = 5 * time.Minute
	DefaultStaleThreshold = 5 * time.Minute
)

// Sweeper periodically evicts peers that stopped sending heartbeats. It is
// the only path that removes an unresponsive peer.
type Sweeper struct {
	store     *Store
	interval  time.Duration
	threshold time.Duration
	log       *slog.Logger
	metrics   Counter
}

func NewSweeper(store *Store, interval, threshold time.Duration, logger *slog.Logger, metrics Counter) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		interval:  interval,
		threshold: threshold,
		log:       logger,
		metrics:   metrics,
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("stale peer sweeper started", "interval", s.interval, "threshold", s.threshold)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs a single eviction pass and returns the evicted peer ids.
func (s *Sweeper) SweepOnce() []string {
	evicted := s.store.EvictStale(s.threshold)
	for _, id := range evicted {
		s.log.Info("removed stale peer", "peer_id", id)
		if s.metrics != nil {
			s.metrics.Inc("peers_evicted")
		}
	}
	return evicted
}
