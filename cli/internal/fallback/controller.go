// Package fallback keeps a session talking to something: the primary
// rendezvous endpoint, then a mirror endpoint, then a local simulation.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/BioHazard786/Warpdrop/cli/internal/signaling"
)

// Tier is the transport currently serving requests.
type Tier int

const (
	TierPrimary Tier = iota
	TierMirror
	TierSimulation
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierMirror:
		return "mirror"
	case TierSimulation:
		return "simulation"
	}
	return "unknown"
}

type Options struct {
	Primary signaling.Transport
	// Mirror is skipped when nil.
	Mirror     signaling.Transport
	Simulation *Simulation
	Logger     *slog.Logger

	// OnTierChange is called after the controller moves down a tier.
	OnTierChange func(from, to Tier)
}

type tier struct {
	tier      Tier
	transport signaling.Transport
}

// Controller implements signaling.Transport over a cascade of tiers. Only
// Register, JoinRoom and DiscoverPeers move the controller down: when one of
// them fails with signaling.ErrUnreachable it is retried on the next tier.
// Every other call goes to the active tier and its errors, unreachable or
// not, are returned to the caller to retry. The simulation tier never fails
// and is never left.
type Controller struct {
	tiers        []tier
	log          *slog.Logger
	onTierChange func(from, to Tier)

	mu      sync.Mutex
	current int
}

var _ signaling.Transport = (*Controller)(nil)

func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var tiers []tier
	if opts.Primary != nil {
		tiers = append(tiers, tier{TierPrimary, opts.Primary})
	}
	if opts.Mirror != nil {
		tiers = append(tiers, tier{TierMirror, opts.Mirror})
	}
	sim := opts.Simulation
	if sim == nil {
		sim = NewSimulation(SimulationOptions{})
	}
	tiers = append(tiers, tier{TierSimulation, sim})

	return &Controller{
		tiers:        tiers,
		log:          logger,
		onTierChange: opts.OnTierChange,
	}
}

// Tier reports the active tier.
func (c *Controller) Tier() Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tiers[c.current].tier
}

// Simulation returns the simulation transport if it is the active tier.
func (c *Controller) Simulation() (*Simulation, bool) {
	_, t := c.active()
	sim, ok := t.(*Simulation)
	return sim, ok
}

// Ready forwards the active transport's readiness signal. It returns nil
// when the active transport cannot push.
func (c *Controller) Ready() <-chan struct{} {
	_, t := c.active()
	if n, ok := t.(signaling.Notifier); ok {
		return n.Ready()
	}
	return nil
}

func (c *Controller) active() (int, signaling.Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.tiers[c.current].transport
}

// advance moves past tier index from. Concurrent callers that saw the same
// failure move the controller only once.
func (c *Controller) advance(from int, cause error) (int, signaling.Transport) {
	c.mu.Lock()
	if c.current == from && c.current < len(c.tiers)-1 {
		c.current++
		prev, next := c.tiers[from].tier, c.tiers[c.current].tier
		idx, t := c.current, c.tiers[c.current].transport
		c.mu.Unlock()

		c.log.Warn("signaling unreachable, falling back", "from", prev, "to", next, "error", cause)
		if err := c.tiers[from].transport.Close(); err != nil {
			c.log.Debug("close transport", "tier", prev, "error", err)
		}
		if c.onTierChange != nil {
			c.onTierChange(prev, next)
		}
		return idx, t
	}
	idx, t := c.current, c.tiers[c.current].transport
	c.mu.Unlock()
	return idx, t
}

func call[T any](c *Controller, fn func(t signaling.Transport) (T, error)) (T, error) {
	idx, t := c.active()
	for {
		v, err := fn(t)
		if err == nil || !errors.Is(err, signaling.ErrUnreachable) {
			return v, err
		}
		next, nt := c.advance(idx, err)
		if next == idx {
			return v, err
		}
		idx, t = next, nt
	}
}

// pass runs fn on the active tier without falling back.
func pass[T any](c *Controller, fn func(t signaling.Transport) (T, error)) (T, error) {
	_, t := c.active()
	return fn(t)
}

func exec(c *Controller, fn func(t signaling.Transport) error) error {
	_, t := c.active()
	return fn(t)
}

func (c *Controller) Register(ctx context.Context, peerID, deviceType string) error {
	_, err := call(c, func(t signaling.Transport) (struct{}, error) {
		return struct{}{}, t.Register(ctx, peerID, deviceType)
	})
	return err
}

func (c *Controller) JoinRoom(ctx context.Context, peerID, roomID, deviceType string) ([]string, error) {
	return call(c, func(t signaling.Transport) ([]string, error) {
		return t.JoinRoom(ctx, peerID, roomID, deviceType)
	})
}

func (c *Controller) LeaveRoom(ctx context.Context, peerID, roomID string) error {
	return exec(c, func(t signaling.Transport) error {
		return t.LeaveRoom(ctx, peerID, roomID)
	})
}

func (c *Controller) DiscoverPeers(ctx context.Context, peerID, roomID string) ([]string, error) {
	return call(c, func(t signaling.Transport) ([]string, error) {
		return t.DiscoverPeers(ctx, peerID, roomID)
	})
}

func (c *Controller) Heartbeat(ctx context.Context, peerID string) error {
	return exec(c, func(t signaling.Transport) error {
		return t.Heartbeat(ctx, peerID)
	})
}

func (c *Controller) SendOffer(ctx context.Context, peerID, targetPeerID, roomID string, offer json.RawMessage) error {
	return exec(c, func(t signaling.Transport) error {
		return t.SendOffer(ctx, peerID, targetPeerID, roomID, offer)
	})
}

func (c *Controller) SendAnswer(ctx context.Context, peerID, targetPeerID, roomID string, answer json.RawMessage) error {
	return exec(c, func(t signaling.Transport) error {
		return t.SendAnswer(ctx, peerID, targetPeerID, roomID, answer)
	})
}

func (c *Controller) SendICECandidate(ctx context.Context, peerID, targetPeerID, roomID string, candidate json.RawMessage) error {
	return exec(c, func(t signaling.Transport) error {
		return t.SendICECandidate(ctx, peerID, targetPeerID, roomID, candidate)
	})
}

func (c *Controller) PendingSignaling(ctx context.Context, peerID string) ([]signaling.Signal, error) {
	return pass(c, func(t signaling.Transport) ([]signaling.Signal, error) {
		return t.PendingSignaling(ctx, peerID)
	})
}

func (c *Controller) Notifications(ctx context.Context, peerID string) ([]signaling.Notification, error) {
	return pass(c, func(t signaling.Transport) ([]signaling.Notification, error) {
		return t.Notifications(ctx, peerID)
	})
}

func (c *Controller) RoomInfo(ctx context.Context, roomID string) (signaling.RoomInfo, error) {
	return pass(c, func(t signaling.Transport) (signaling.RoomInfo, error) {
		return t.RoomInfo(ctx, roomID)
	})
}

// Close closes every tier's transport.
func (c *Controller) Close() error {
	var errs []error
	for _, t := range c.tiers {
		if err := t.transport.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
