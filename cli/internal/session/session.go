// Package session runs one peer's stay in a room: it registers with the
// rendezvous service, joins the room, keeps the registration alive, drains
// the mailbox and hands relayed signals to the negotiators.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/BioHazard786/Warpdrop/cli/internal/chat"
	"github.com/BioHazard786/Warpdrop/cli/internal/config"
	"github.com/BioHazard786/Warpdrop/cli/internal/fallback"
	"github.com/BioHazard786/Warpdrop/cli/internal/negotiator"
	"github.com/BioHazard786/Warpdrop/cli/internal/signaling"
	"github.com/BioHazard786/Warpdrop/internal/clock"
)

const (
	leaveTimeout = 5 * time.Second

	// maxUnreachableBeats consecutive unreachable heartbeats count as the
	// service being down; the rejoin that follows may move down a tier.
	maxUnreachableBeats = 3
)

var ErrNotJoined = errors.New("not in a room")

// NewPeerID returns a fresh peer id of the form peer_<9 chars>_<unix ms>.
func NewPeerID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("peer_%s_%d", random, now.UnixMilli())
}

type Options struct {
	// PeerID is generated when empty.
	PeerID     string
	DeviceType string

	Primary signaling.Transport
	Mirror  signaling.Transport
	// Simulation is created with defaults when nil.
	Simulation *fallback.Simulation

	// Negotiator configures peer connections. Relay and the callbacks are
	// set by the session.
	Negotiator negotiator.Options

	PollInterval      time.Duration
	HeartbeatInterval time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Peer is another member of the room as this session sees it.
type Peer struct {
	ID         string
	DeviceType string
	State      negotiator.State
	Simulated  bool
}

type Session struct {
	id         string
	deviceType string
	opts       Options
	log        *slog.Logger
	clock      clock.Clock

	ctrl   *fallback.Controller
	mgr    *negotiator.Manager
	events chan Event

	// ctx bounds everything the session starts; Leave cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	rejoin chan struct{}

	mu     sync.Mutex
	roomID string
	peers  map[string]*Peer
}

// New prepares a session. Nothing touches the network until Join.
func New(ctx context.Context, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultPollInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = config.DefaultHeartbeatInterval
	}
	if opts.DeviceType == "" {
		opts.DeviceType = config.DefaultDeviceType
	}
	if opts.PeerID == "" {
		opts.PeerID = NewPeerID(opts.Clock.Now())
	}

	s := &Session{
		id:         opts.PeerID,
		deviceType: opts.DeviceType,
		opts:       opts,
		log:        opts.Logger.With("peer_id", opts.PeerID),
		clock:      opts.Clock,
		events:     make(chan Event, 64),
		rejoin:     make(chan struct{}, 1),
		peers:      make(map[string]*Peer),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	sim := opts.Simulation
	if sim == nil {
		sim = fallback.NewSimulation(fallback.SimulationOptions{Clock: opts.Clock, Logger: opts.Logger})
	}
	s.ctrl = fallback.New(fallback.Options{
		Primary:      opts.Primary,
		Mirror:       opts.Mirror,
		Simulation:   sim,
		Logger:       opts.Logger,
		OnTierChange: s.tierChanged,
	})

	nopts := opts.Negotiator
	nopts.Relay = &relay{session: s}
	nopts.Logger = s.log
	nopts.OnStateChange = s.stateChanged
	nopts.OnMessage = s.received
	s.mgr = negotiator.NewManager(s.ctx, s.id, nopts)

	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) Tier() fallback.Tier {
	return s.ctrl.Tier()
}

// Events delivers what happens in the room. Events are dropped once the
// session has left.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Peers returns the room members we know about, sorted by id.
func (s *Session) Peers() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Join registers, joins roomID and starts the heartbeat and mailbox loops.
func (s *Session) Join(ctx context.Context, roomID string) error {
	s.mu.Lock()
	s.roomID = roomID
	s.mu.Unlock()

	if err := s.enter(ctx); err != nil {
		return err
	}
	// A fallback during the first join needs no second one.
	select {
	case <-s.rejoin:
	default:
	}

	g, gctx := errgroup.WithContext(s.ctx)
	g.Go(func() error { return s.heartbeatLoop(gctx) })
	g.Go(func() error { return s.pollLoop(gctx) })
	s.group = g
	return nil
}

// enter registers and joins the current room, then connects to the members
// already there.
func (s *Session) enter(ctx context.Context) error {
	roomID := s.RoomID()
	if err := s.ctrl.Register(ctx, s.id, s.deviceType); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	peers, err := s.ctrl.JoinRoom(ctx, s.id, roomID, s.deviceType)
	if err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}

	s.log.Info("joined room", "room_id", roomID, "peers", len(peers), "tier", s.ctrl.Tier())
	for _, peerID := range peers {
		s.peerJoined(peerID, "")
	}
	return nil
}

// Wait blocks until the session's loops stop.
func (s *Session) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// Leave stops the loops, closes every peer connection and tells the
// rendezvous service we are gone. In-flight negotiation is abandoned.
func (s *Session) Leave(ctx context.Context) error {
	s.cancel()
	if s.group != nil {
		if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Debug("session loop", "error", err)
		}
	}
	s.mgr.CloseAll()

	roomID := s.RoomID()
	var err error
	if roomID != "" {
		ctx, cancel := context.WithTimeout(ctx, leaveTimeout)
		defer cancel()
		if err = s.ctrl.LeaveRoom(ctx, s.id, roomID); err != nil {
			s.log.Debug("leave room", "room_id", roomID, "error", err)
		}
	}

	s.mu.Lock()
	s.roomID = ""
	s.peers = make(map[string]*Peer)
	s.mu.Unlock()

	return errors.Join(err, s.ctrl.Close())
}

// Send broadcasts a chat message to every connected peer and returns it. In
// simulation the message is accepted and goes nowhere.
func (s *Session) Send(text string) (chat.Message, error) {
	if s.RoomID() == "" {
		return chat.Message{}, ErrNotJoined
	}

	msg := chat.NewMessage(text, chat.SenderName(s.id), s.deviceType, s.clock.Now())
	if s.ctrl.Tier() == fallback.TierSimulation {
		return msg, nil
	}

	data, err := chat.Encode(msg)
	if err != nil {
		return chat.Message{}, err
	}
	sent := s.mgr.Broadcast(data)
	s.log.Debug("chat message sent", "peers", sent)
	return msg, nil
}

func (s *Session) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	unreachable := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := s.ctrl.Heartbeat(ctx, s.id)
		if !errors.Is(err, signaling.ErrUnreachable) {
			unreachable = 0
		}
		switch {
		case err == nil:
		case errors.Is(err, signaling.ErrPeerNotFound):
			s.log.Info("registration expired, rejoining")
			s.requestRejoin()
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, signaling.ErrUnreachable):
			unreachable++
			s.log.Warn("heartbeat failed", "attempt", unreachable, "error", err)
			if unreachable >= maxUnreachableBeats {
				unreachable = 0
				s.requestRejoin()
			}
		default:
			s.log.Warn("heartbeat failed", "error", err)
		}
	}
}

func (s *Session) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.rejoin:
			if err := s.enter(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Warn("rejoin failed", "error", err)
				s.requestRejoin()
				continue
			}
			s.emit(Event{Kind: EventRejoined, Tier: s.ctrl.Tier()})
		case <-ticker.C:
		case <-s.ctrl.Ready():
		}

		if err := s.poll(ctx); err != nil && ctx.Err() == nil {
			s.log.Debug("poll", "error", err)
		}
	}
}

// poll drains notifications and relayed signals once. Chat from simulated
// peers is picked up here too.
func (s *Session) poll(ctx context.Context) error {
	notes, err := s.ctrl.Notifications(ctx, s.id)
	if err != nil {
		return err
	}
	for _, n := range notes {
		s.handleNotification(n)
	}

	signals, err := s.ctrl.PendingSignaling(ctx, s.id)
	if err != nil {
		return err
	}
	for _, sig := range signals {
		if err := s.mgr.HandleSignal(sig); err != nil {
			s.log.Debug("signal", "type", sig.Type, "from", sig.FromPeerID, "error", err)
		}
	}

	if sim, ok := s.ctrl.Simulation(); ok {
		for _, msg := range sim.Messages() {
			s.emit(Event{Kind: EventMessage, Message: msg})
		}
	}
	return nil
}

func (s *Session) handleNotification(n signaling.Notification) {
	if n.PeerID == s.id {
		return
	}
	switch n.Type {
	case signaling.TypePeerJoined:
		s.peerJoined(n.PeerID, n.DeviceType)
	case signaling.TypePeerLeft:
		s.peerLeft(n.PeerID)
	default:
		s.log.Debug("unknown notification", "type", n.Type)
	}
}

func (s *Session) peerJoined(peerID, deviceType string) {
	if peerID == s.id {
		return
	}
	simulated := s.ctrl.Tier() == fallback.TierSimulation

	s.mu.Lock()
	p, ok := s.peers[peerID]
	if !ok {
		p = &Peer{ID: peerID}
		s.peers[peerID] = p
	}
	if deviceType != "" {
		p.DeviceType = deviceType
	}
	p.Simulated = simulated
	peer := *p
	s.mu.Unlock()

	if !ok {
		s.emit(Event{Kind: EventPeerJoined, PeerID: peerID, DeviceType: peer.DeviceType})
	}
	if simulated || !s.mgr.Initiates(peerID) {
		return
	}
	if err := s.mgr.Connect(peerID); err != nil {
		s.log.Warn("connect to peer", "remote_peer", peerID, "error", err)
	}
}

func (s *Session) peerLeft(peerID string) {
	s.mu.Lock()
	_, ok := s.peers[peerID]
	delete(s.peers, peerID)
	s.mu.Unlock()

	s.mgr.Remove(peerID)
	if ok {
		s.emit(Event{Kind: EventPeerLeft, PeerID: peerID})
	}
}

func (s *Session) stateChanged(n *negotiator.Negotiator, _, to negotiator.State) {
	s.mu.Lock()
	if p, ok := s.peers[n.PeerID()]; ok {
		p.State = to
	} else if !to.Terminal() {
		// An offer can arrive before the peer_joined notification.
		s.peers[n.PeerID()] = &Peer{ID: n.PeerID(), State: to}
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventPeerState, PeerID: n.PeerID(), State: to})
}

func (s *Session) received(n *negotiator.Negotiator, data []byte) {
	msg, err := chat.Decode(data)
	if err != nil {
		s.log.Debug("bad chat message", "remote_peer", n.PeerID(), "error", err)
		return
	}
	s.emit(Event{Kind: EventMessage, PeerID: n.PeerID(), Message: msg})
}

func (s *Session) tierChanged(from, to fallback.Tier) {
	s.log.Warn("signaling tier changed", "from", from, "to", to)
	if to == fallback.TierSimulation {
		// Nothing real can be negotiated any more.
		s.mgr.CloseAll()
	}
	s.requestRejoin()
	s.emit(Event{Kind: EventTierChanged, Tier: to})
}

func (s *Session) requestRejoin() {
	select {
	case s.rejoin <- struct{}{}:
	default:
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// relay sends our negotiation messages through the fallback controller.
type relay struct {
	session *Session
}

func (r *relay) SendOffer(ctx context.Context, targetPeerID string, offer json.RawMessage) error {
	return r.session.ctrl.SendOffer(ctx, r.session.id, targetPeerID, r.session.RoomID(), offer)
}

func (r *relay) SendAnswer(ctx context.Context, targetPeerID string, answer json.RawMessage) error {
	return r.session.ctrl.SendAnswer(ctx, r.session.id, targetPeerID, r.session.RoomID(), answer)
}

func (r *relay) SendICECandidate(ctx context.Context, targetPeerID string, candidate json.RawMessage) error {
	return r.session.ctrl.SendICECandidate(ctx, r.session.id, targetPeerID, r.session.RoomID(), candidate)
}
