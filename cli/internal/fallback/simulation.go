package fallback

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/BioHazard786/Warpdrop/cli/internal/chat"
	"github.com/BioHazard786/Warpdrop/cli/internal/signaling"
	"github.com/BioHazard786/Warpdrop/internal/clock"
)

const (
	simulatedPeers   = 2
	simPeerPrefix    = "peer_sim_"
	simJoinDelay     = time.Second
	simMessageMin    = 2 * time.Second
	simMessageSpread = 5 * time.Second
)

var simMessages = []string{
	"Hello from simulated peer!",
	"This is a test message",
	"WebRTC connection working!",
	"Cross-platform chat is awesome!",
	"R1 device detected!",
}

var simDeviceTypes = []string{"desktop", "mobile"}

type EventKind int

const (
	EventPeerJoined EventKind = iota
	EventMessage
)

// Event is one scheduled piece of simulated room activity.
type Event struct {
	At         time.Time
	Kind       EventKind
	PeerID     string
	DeviceType string
	Text       string
}

type SimulationOptions struct {
	Clock  clock.Clock
	Rand   *rand.Rand
	Logger *slog.Logger
}

// Simulation stands in for the rendezvous service when nothing real can be
// reached. Joining a room schedules synthetic peers and their messages; the
// events become visible once the clock passes their time. Everything sent is
// accepted and discarded, and no network is touched.
type Simulation struct {
	clock clock.Clock
	log   *slog.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	roomID   string
	joins    []Event
	messages []Event
	joined   []Event
}

var _ signaling.Transport = (*Simulation)(nil)

func NewSimulation(opts SimulationOptions) *Simulation {
	s := &Simulation{
		clock: opts.Clock,
		rng:   opts.Rand,
		log:   opts.Logger,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Schedule returns every event still pending, in time order.
func (s *Simulation) Schedule() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append(append([]Event(nil), s.joins...), s.messages...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func (s *Simulation) Register(context.Context, string, string) error {
	return nil
}

// JoinRoom starts the simulated room. It returns no peers; the synthetic ones
// arrive later as peer_joined notifications.
func (s *Simulation) JoinRoom(_ context.Context, _ string, roomID, _ string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roomID == roomID && (len(s.joins) > 0 || len(s.joined) > 0) {
		return s.joinedIDs(), nil
	}

	s.roomID = roomID
	s.joins, s.messages, s.joined = nil, nil, nil

	start := s.clock.Now()
	for range simulatedPeers {
		peerID := simPeerPrefix + s.randomString(9)
		device := simDeviceTypes[s.rng.IntN(len(simDeviceTypes))]
		s.joins = append(s.joins, Event{
			At:         start.Add(simJoinDelay),
			Kind:       EventPeerJoined,
			PeerID:     peerID,
			DeviceType: device,
		})

		delay := simMessageMin + time.Duration(s.rng.Int64N(int64(simMessageSpread)+1))
		s.messages = append(s.messages, Event{
			At:         start.Add(simJoinDelay + delay),
			Kind:       EventMessage,
			PeerID:     peerID,
			DeviceType: device,
			Text:       simMessages[s.rng.IntN(len(simMessages))],
		})
	}
	sort.SliceStable(s.messages, func(i, j int) bool { return s.messages[i].At.Before(s.messages[j].At) })

	s.log.Info("simulation started", "room_id", roomID, "peers", simulatedPeers)
	return []string{}, nil
}

func (s *Simulation) LeaveRoom(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = ""
	s.joins, s.messages, s.joined = nil, nil, nil
	return nil
}

func (s *Simulation) DiscoverPeers(context.Context, string, string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinedIDs(), nil
}

func (s *Simulation) Heartbeat(context.Context, string) error {
	return nil
}

func (s *Simulation) SendOffer(context.Context, string, string, string, json.RawMessage) error {
	return nil
}

func (s *Simulation) SendAnswer(context.Context, string, string, string, json.RawMessage) error {
	return nil
}

func (s *Simulation) SendICECandidate(context.Context, string, string, string, json.RawMessage) error {
	return nil
}

func (s *Simulation) PendingSignaling(context.Context, string) ([]signaling.Signal, error) {
	return nil, nil
}

// Notifications returns the peer_joined events that have come due.
func (s *Simulation) Notifications(context.Context, string) ([]signaling.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var out []signaling.Notification
	for len(s.joins) > 0 && !s.joins[0].At.After(now) {
		ev := s.joins[0]
		s.joins = s.joins[1:]
		s.joined = append(s.joined, ev)
		out = append(out, signaling.Notification{
			Type:       signaling.TypePeerJoined,
			PeerID:     ev.PeerID,
			DeviceType: ev.DeviceType,
			RoomID:     s.roomID,
			Timestamp:  ev.At.UnixMilli(),
		})
	}
	return out, nil
}

// Messages returns the chat messages from simulated peers that have come due.
func (s *Simulation) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var out []chat.Message
	for len(s.messages) > 0 && !s.messages[0].At.After(now) {
		ev := s.messages[0]
		s.messages = s.messages[1:]
		out = append(out, chat.NewMessage(ev.Text, chat.SenderName(ev.PeerID), ev.DeviceType, ev.At))
	}
	return out
}

func (s *Simulation) RoomInfo(_ context.Context, roomID string) (signaling.RoomInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if roomID != s.roomID || s.roomID == "" {
		return signaling.RoomInfo{}, signaling.NewError(string(signaling.TypeGetRoomInfo), signaling.ErrRoomNotFound)
	}
	info := signaling.RoomInfo{RoomID: roomID, PeerCount: len(s.joined), Peers: []signaling.PeerSummary{}}
	for _, ev := range s.joined {
		info.Peers = append(info.Peers, signaling.PeerSummary{PeerID: ev.PeerID, DeviceType: ev.DeviceType, LastSeen: ev.At.UnixMilli()})
	}
	return info, nil
}

func (s *Simulation) Close() error {
	return nil
}

func (s *Simulation) joinedIDs() []string {
	ids := make([]string, 0, len(s.joined))
	for _, ev := range s.joined {
		ids = append(ids, ev.PeerID)
	}
	return ids
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func (s *Simulation) randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[s.rng.IntN(len(idAlphabet))]
	}
	return string(b)
}
