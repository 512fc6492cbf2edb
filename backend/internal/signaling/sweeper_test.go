package signaling

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestSweeper_EvictsOnlyStalePeers(t *testing.T) {
	s, clk := newTestStore(t)
	m := &countingMetrics{}
	sw := NewSweeper(s, DefaultSweepInterval, DefaultStaleThreshold, slog.New(slog.NewTextHandler(io.Discard, nil)), m)

	s.Register("stale", "desktop", "")
	s.Register("fresh", "desktop", "")
	if _, err := s.JoinRoom("stale", "R1", "desktop"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := s.JoinRoom("fresh", "R1", "desktop"); err != nil {
		t.Fatalf("join: %v", err)
	}

	clk.Advance(3 * time.Minute)
	if err := s.Heartbeat("fresh"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	clk.Advance(3 * time.Minute)

	evicted := sw.SweepOnce()
	if len(evicted) != 1 || evicted[0] != "stale" {
		t.Fatalf("evicted=%v, want [stale]", evicted)
	}
	if _, ok := s.Peer("stale"); ok {
		t.Fatalf("stale peer still registered")
	}
	if got := s.Members("R1"); len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("members=%v, want [fresh]", got)
	}
	if err := s.Heartbeat("stale"); err == nil {
		t.Fatalf("heartbeat after eviction succeeded, want ErrPeerNotFound")
	}
	if got := m.counts["peers_evicted"]; got != 1 {
		t.Fatalf("peers_evicted=%d, want 1", got)
	}

	// A second pass inside the threshold evicts nothing.
	if evicted := sw.SweepOnce(); len(evicted) != 0 {
		t.Fatalf("evicted=%v, want none", evicted)
	}
}

func TestSweeper_LastMemberEvictionDropsRoom(t *testing.T) {
	s, clk := newTestStore(t)
	sw := NewSweeper(s, time.Minute, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	s.Register("A", "desktop", "")
	if _, err := s.JoinRoom("A", "R1", "desktop"); err != nil {
		t.Fatalf("join: %v", err)
	}
	clk.Advance(2 * time.Minute)
	sw.SweepOnce()

	if _, err := s.RoomInfo("R1"); err == nil {
		t.Fatalf("room survived eviction of its last member")
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	s, _ := newTestStore(t)
	sw := NewSweeper(s, 10*time.Millisecond, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop after cancel")
	}
}
