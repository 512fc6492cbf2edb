package negotiator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpdrop/cli/internal/chat"
	"github.com/BioHazard786/Warpdrop/cli/internal/signaling"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRelay delivers signals to the remote manager in send order, one at a
// time, the way a mailbox drain would.
type memRelay struct {
	from  string
	queue chan signaling.Signal
	done  chan struct{}

	mu     sync.Mutex
	remote *Manager
}

func newMemRelay(t *testing.T, from string) *memRelay {
	r := &memRelay{
		from:  from,
		queue: make(chan signaling.Signal, 256),
		done:  make(chan struct{}),
	}
	go r.run()
	t.Cleanup(func() { close(r.done) })
	return r
}

func (r *memRelay) connect(m *Manager) {
	r.mu.Lock()
	r.remote = m
	r.mu.Unlock()
}

func (r *memRelay) run() {
	for {
		select {
		case sig := <-r.queue:
			r.mu.Lock()
			m := r.remote
			r.mu.Unlock()
			if m != nil {
				_ = m.HandleSignal(sig)
			}
		case <-r.done:
			return
		}
	}
}

func (r *memRelay) push(ctx context.Context, sig signaling.Signal) error {
	sig.FromPeerID = r.from
	select {
	case r.queue <- sig:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *memRelay) SendOffer(ctx context.Context, _ string, offer json.RawMessage) error {
	return r.push(ctx, signaling.Signal{Type: signaling.TypeOffer, Offer: offer})
}

func (r *memRelay) SendAnswer(ctx context.Context, _ string, answer json.RawMessage) error {
	return r.push(ctx, signaling.Signal{Type: signaling.TypeAnswer, Answer: answer})
}

func (r *memRelay) SendICECandidate(ctx context.Context, _ string, candidate json.RawMessage) error {
	return r.push(ctx, signaling.Signal{Type: signaling.TypeICECandidate, Candidate: candidate})
}

type failingRelay struct{}

func (failingRelay) SendOffer(context.Context, string, json.RawMessage) error {
	return signaling.NewError("offer", signaling.ErrUnreachable)
}

func (failingRelay) SendAnswer(context.Context, string, json.RawMessage) error {
	return signaling.NewError("answer", signaling.ErrUnreachable)
}

func (failingRelay) SendICECandidate(context.Context, string, json.RawMessage) error {
	return nil
}

// recorder keeps the transitions and messages seen by one manager.
type recorder struct {
	mu       sync.Mutex
	states   map[string][]State
	messages [][]byte
}

func newRecorder() *recorder {
	return &recorder{states: make(map[string][]State)}
}

func (r *recorder) onState(n *Negotiator, _, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[n.PeerID()] = append(r.states[n.PeerID()], to)
}

func (r *recorder) onMessage(_ *Negotiator, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, append([]byte(nil), data...))
}

func (r *recorder) sequence(peerID string) []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states[peerID]...)
}

func (r *recorder) received() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.messages...)
}

type vnetPair struct {
	a, b       *Manager
	recA, recB *recorder
}

// newVNetPair wires managers for peers A and B onto a virtual network.
func newVNetPair(t *testing.T) *vnetPair {
	t.Helper()

	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = router.Stop() })

	netA, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.1"}})
	require.NoError(t, err)
	netB, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.2"}})
	require.NoError(t, err)
	require.NoError(t, router.AddNet(netA))
	require.NoError(t, router.AddNet(netB))
	require.NoError(t, router.Start())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	relayA := newMemRelay(t, "A")
	relayB := newMemRelay(t, "B")
	p := &vnetPair{recA: newRecorder(), recB: newRecorder()}

	p.a = NewManager(ctx, "A", Options{
		API:           NewAPI(discardLogger(), func(se *webrtc.SettingEngine) { se.SetNet(netA) }),
		Relay:         relayA,
		Logger:        discardLogger(),
		OnStateChange: p.recA.onState,
		OnMessage:     p.recA.onMessage,
	})
	p.b = NewManager(ctx, "B", Options{
		API:           NewAPI(discardLogger(), func(se *webrtc.SettingEngine) { se.SetNet(netB) }),
		Relay:         relayB,
		Logger:        discardLogger(),
		OnStateChange: p.recB.onState,
		OnMessage:     p.recB.onMessage,
	})
	relayA.connect(p.b)
	relayB.connect(p.a)

	t.Cleanup(p.a.CloseAll)
	t.Cleanup(p.b.CloseAll)
	return p
}

func (p *vnetPair) waitConnected(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.a.States()["B"] == StateConnected && p.b.States()["A"] == StateConnected
	}, 10*time.Second, 20*time.Millisecond, "A=%v B=%v", p.a.States(), p.b.States())
}

func TestManager_Handshake(t *testing.T) {
	p := newVNetPair(t)

	require.True(t, p.a.Initiates("B"))
	require.False(t, p.b.Initiates("A"))

	require.NoError(t, p.a.Connect("B"))
	p.waitConnected(t)

	seqA := p.recA.sequence("B")
	require.GreaterOrEqual(t, len(seqA), 4)
	assert.Equal(t, []State{StateOfferCreated, StateOfferSent, StateAnswerReceived}, seqA[:3])
	assert.Equal(t, StateConnected, seqA[len(seqA)-1])

	seqB := p.recB.sequence("A")
	require.GreaterOrEqual(t, len(seqB), 3)
	assert.Equal(t, []State{StateOfferReceived, StateAnswerSent}, seqB[:2])
	assert.Equal(t, StateConnected, seqB[len(seqB)-1])
}

func TestManager_BroadcastChat(t *testing.T) {
	p := newVNetPair(t)
	require.NoError(t, p.a.Connect("B"))
	p.waitConnected(t)

	payload, err := chat.Encode(chat.NewMessage("hi", chat.SenderName("A"), "desktop", time.UnixMilli(1700000000000)))
	require.NoError(t, err)

	// The answering side sees the channel a moment after the connection is up.
	require.Eventually(t, func() bool {
		p.a.Broadcast(payload)
		return len(p.recB.received()) > 0
	}, 10*time.Second, 50*time.Millisecond)

	msg, err := chat.Decode(p.recB.received()[0])
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "Peer_A", msg.Sender)

	require.Eventually(t, func() bool {
		return p.b.Broadcast(payload) == 1 && len(p.recA.received()) > 0
	}, 10*time.Second, 50*time.Millisecond)
}

func TestManager_DuplicateOfferIgnored(t *testing.T) {
	p := newVNetPair(t)
	require.NoError(t, p.a.Connect("B"))
	p.waitConnected(t)

	before := p.b.Get("A")
	require.NotNil(t, before)

	err := p.b.HandleSignal(signaling.Signal{Type: signaling.TypeOffer, FromPeerID: "A", Offer: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)})
	require.NoError(t, err)
	assert.Same(t, before, p.b.Get("A"))
	assert.Equal(t, StateConnected, before.State())

	// A second Connect to a live peer does nothing.
	require.NoError(t, p.a.Connect("B"))
	assert.Equal(t, StateConnected, p.a.States()["B"])
}

func TestManager_OfferRestartsFailedConnection(t *testing.T) {
	p := newVNetPair(t)

	err := p.b.HandleSignal(signaling.Signal{Type: signaling.TypeOffer, FromPeerID: "A", Offer: json.RawMessage(`not json`)})
	require.ErrorIs(t, err, ErrBadSignal)
	assert.Nil(t, p.b.Get("A"))
	seq := p.recB.sequence("A")
	require.NotEmpty(t, seq)
	assert.Equal(t, StateFailed, seq[len(seq)-1])

	require.NoError(t, p.a.Connect("B"))
	p.waitConnected(t)
}

func TestManager_OfferRestartsClosedConnection(t *testing.T) {
	p := newVNetPair(t)
	require.NoError(t, p.a.Connect("B"))
	p.waitConnected(t)

	oldA, oldB := p.a.Get("B"), p.b.Get("A")
	p.a.Remove("B")
	p.b.Remove("A")
	assert.Equal(t, StateClosed, oldA.State())
	assert.Equal(t, StateClosed, oldB.State())
	assert.Equal(t, 0, p.b.Len())

	require.NoError(t, p.a.Connect("B"))
	p.waitConnected(t)
	assert.NotSame(t, oldB, p.b.Get("A"))
	assert.NotSame(t, oldA, p.a.Get("B"))
}

func TestManager_CloseAll(t *testing.T) {
	p := newVNetPair(t)
	require.NoError(t, p.a.Connect("B"))
	p.waitConnected(t)

	n := p.a.Get("B")
	p.a.CloseAll()

	assert.Equal(t, 0, p.a.Len())
	assert.Equal(t, StateClosed, n.State())
	assert.Equal(t, 0, p.a.Broadcast([]byte("x")))

	require.Eventually(t, func() bool {
		return p.b.Len() == 0
	}, 30*time.Second, 50*time.Millisecond)
}

func TestManager_RelayFailure(t *testing.T) {
	var seen []State
	var mu sync.Mutex
	m := NewManager(context.Background(), "A", Options{
		Relay:  failingRelay{},
		Logger: discardLogger(),
		OnStateChange: func(_ *Negotiator, _, to State) {
			mu.Lock()
			seen = append(seen, to)
			mu.Unlock()
		},
	})
	defer m.CloseAll()

	err := m.Connect("B")
	require.ErrorIs(t, err, signaling.ErrUnreachable)
	assert.Equal(t, 0, m.Len())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, StateFailed, seen[len(seen)-1])
}

func TestManager_HandleSignalRouting(t *testing.T) {
	m := NewManager(context.Background(), "A", Options{Relay: failingRelay{}, Logger: discardLogger()})
	defer m.CloseAll()

	err := m.HandleSignal(signaling.Signal{Type: signaling.TypeAnswer, FromPeerID: "B", Answer: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, ErrInvalidState)

	err = m.HandleSignal(signaling.Signal{Type: signaling.TypeOffer, FromPeerID: "A"})
	require.ErrorIs(t, err, ErrBadSignal)

	err = m.HandleSignal(signaling.Signal{Type: signaling.TypeICECandidate, FromPeerID: "C", Candidate: json.RawMessage(`{}`)})
	require.NoError(t, err)

	require.NoError(t, m.Connect("A"))
	assert.Equal(t, 0, m.Len())
}

func TestNegotiator_IdleRejections(t *testing.T) {
	n, err := New(context.Background(), "B", Options{Relay: failingRelay{}, Logger: discardLogger()})
	require.NoError(t, err)
	defer n.Close()

	err = n.HandleAnswer(json.RawMessage(`{"type":"answer","sdp":"v=0"}`))
	require.ErrorIs(t, err, ErrInvalidState)

	err = n.HandleCandidate(json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`))
	require.ErrorIs(t, err, ErrCandidateDropped)

	err = n.Send([]byte("x"))
	require.ErrorIs(t, err, ErrChannelNotOpen)

	assert.Equal(t, StateIdle, n.State())

	require.NoError(t, n.Close())
	assert.Equal(t, StateClosed, n.State())
	assert.True(t, errors.Is(n.Offer(), ErrInvalidState))
}

func TestNegotiator_BadOffer(t *testing.T) {
	n, err := New(context.Background(), "B", Options{Relay: failingRelay{}, Logger: discardLogger()})
	require.NoError(t, err)
	defer n.Close()

	err = n.HandleOffer(json.RawMessage(`not json`))
	require.ErrorIs(t, err, ErrBadSignal)
	assert.Equal(t, StateFailed, n.State())
}
