package negotiator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/BioHazard786/Warpdrop/cli/internal/signaling"
)

// Manager keeps one Negotiator per remote peer. Negotiators that reach a
// terminal state are dropped from the active set.
type Manager struct {
	ctx     context.Context
	localID string
	opts    Options
	log     *slog.Logger

	mu     sync.Mutex
	active map[string]*Negotiator
}

// NewManager returns a manager for the local peer localID. opts is used for
// every negotiator it creates; its OnStateChange callback is still invoked.
func NewManager(ctx context.Context, localID string, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		ctx:     ctx,
		localID: localID,
		opts:    opts,
		log:     logger,
		active:  make(map[string]*Negotiator),
	}
}

// Initiates reports whether we make the offer to remoteID. Exactly one side of
// any pair initiates: the one with the smaller peer id.
func (m *Manager) Initiates(remoteID string) bool {
	return m.localID < remoteID
}

// Connect starts a handshake with remoteID. It does nothing for ourselves or
// for a peer we already have a live negotiator for.
func (m *Manager) Connect(remoteID string) error {
	if remoteID == m.localID {
		return nil
	}

	n, created, err := m.getOrCreate(remoteID, false)
	if err != nil || !created {
		return err
	}
	m.log.Info("connecting to peer", "remote_peer", remoteID)
	return n.Offer()
}

// HandleSignal routes a relayed offer, answer or candidate to the negotiator
// for its sender.
func (m *Manager) HandleSignal(sig signaling.Signal) error {
	if sig.FromPeerID == "" || sig.FromPeerID == m.localID {
		return NewError("handle signal", sig.FromPeerID, ErrBadSignal)
	}

	switch sig.Type {
	case signaling.TypeOffer:
		n, created, err := m.getOrCreate(sig.FromPeerID, true)
		if err != nil {
			return err
		}
		if !created {
			m.log.Debug("ignoring offer for existing connection", "remote_peer", sig.FromPeerID, "state", n.State())
			return nil
		}
		return n.HandleOffer(sig.Offer)

	case signaling.TypeAnswer:
		n := m.Get(sig.FromPeerID)
		if n == nil {
			return NewError("handle answer", sig.FromPeerID, ErrInvalidState)
		}
		return n.HandleAnswer(sig.Answer)

	case signaling.TypeICECandidate:
		n := m.Get(sig.FromPeerID)
		if n == nil {
			m.log.Debug("dropping candidate for unknown peer", "remote_peer", sig.FromPeerID)
			return nil
		}
		err := n.HandleCandidate(sig.Candidate)
		if errors.Is(err, ErrCandidateDropped) {
			return nil
		}
		return err
	}

	return NewError("handle signal", sig.FromPeerID, ErrBadSignal)
}

// getOrCreate returns the live negotiator for remoteID or creates one. With
// replace set, a terminal negotiator is swapped for a fresh one.
func (m *Manager) getOrCreate(remoteID string, replace bool) (*Negotiator, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n, ok := m.active[remoteID]; ok {
		if !n.State().Terminal() || !replace {
			return n, false, nil
		}
	}

	opts := m.opts
	opts.OnStateChange = m.stateChanged
	n, err := New(m.ctx, remoteID, opts)
	if err != nil {
		return nil, false, err
	}
	m.active[remoteID] = n
	return n, true, nil
}

func (m *Manager) stateChanged(n *Negotiator, from, to State) {
	if to.Terminal() {
		m.mu.Lock()
		if m.active[n.PeerID()] == n {
			delete(m.active, n.PeerID())
		}
		m.mu.Unlock()
	}
	if to == StateConnected {
		m.log.Info("peer connected", "remote_peer", n.PeerID())
	}
	if cb := m.opts.OnStateChange; cb != nil {
		cb(n, from, to)
	}
}

// Remove closes the connection to remoteID, if any.
func (m *Manager) Remove(remoteID string) {
	m.mu.Lock()
	n, ok := m.active[remoteID]
	delete(m.active, remoteID)
	m.mu.Unlock()

	if ok {
		if err := n.Close(); err != nil {
			m.log.Debug("close peer connection", "remote_peer", remoteID, "error", err)
		}
	}
}

// CloseAll closes every active connection.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	active := m.active
	m.active = make(map[string]*Negotiator)
	m.mu.Unlock()

	for id, n := range active {
		if err := n.Close(); err != nil {
			m.log.Debug("close peer connection", "remote_peer", id, "error", err)
		}
	}
}

// Broadcast sends data to every connected peer and returns how many
// accepted it.
func (m *Manager) Broadcast(data []byte) int {
	sent := 0
	for _, n := range m.snapshot() {
		if n.State() != StateConnected {
			continue
		}
		if err := n.Send(data); err != nil {
			m.log.Debug("send to peer", "remote_peer", n.PeerID(), "error", err)
			continue
		}
		sent++
	}
	return sent
}

func (m *Manager) Get(remoteID string) *Negotiator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[remoteID]
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// States reports the state of every active negotiator.
func (m *Manager) States() map[string]State {
	out := make(map[string]State)
	for _, n := range m.snapshot() {
		out[n.PeerID()] = n.State()
	}
	return out
}

// Peers returns the ids of the active negotiators in sorted order.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (m *Manager) snapshot() []*Negotiator {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Negotiator, 0, len(m.active))
	for _, n := range m.active {
		out = append(out, n)
	}
	return out
}
