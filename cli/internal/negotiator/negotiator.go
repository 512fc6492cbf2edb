// Package negotiator drives the WebRTC handshake with each remote peer in a
// room. A Negotiator owns one peer connection and its chat data channel; a
// Manager owns the set of active negotiators.
package negotiator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpdrop/cli/internal/chat"
)

// Relay carries our offers, answers and candidates to a remote peer through
// the rendezvous service.
type Relay interface {
	SendOffer(ctx context.Context, targetPeerID string, offer json.RawMessage) error
	SendAnswer(ctx context.Context, targetPeerID string, answer json.RawMessage) error
	SendICECandidate(ctx context.Context, targetPeerID string, candidate json.RawMessage) error
}

type Options struct {
	// API creates the peer connection. Nil means a default pion API.
	API           *webrtc.API
	Configuration webrtc.Configuration
	Relay         Relay
	Logger        *slog.Logger

	// OnStateChange is called after every transition, outside any lock.
	OnStateChange func(n *Negotiator, from, to State)
	// OnMessage receives every data channel message.
	OnMessage func(n *Negotiator, data []byte)
}

type Negotiator struct {
	peerID string
	opts   Options
	log    *slog.Logger
	pc     *webrtc.PeerConnection

	// ctx is cancelled on close so in-flight relay calls are abandoned.
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once

	mu         sync.Mutex
	state      State
	dc         *webrtc.DataChannel
	remoteSet  bool
	sdpRelayed bool
	held       []json.RawMessage
}

// New prepares a negotiator for peerID in StateIdle. Nothing is sent until
// Offer or HandleOffer is called.
func New(ctx context.Context, peerID string, opts Options) (*Negotiator, error) {
	api := opts.API
	if api == nil {
		api = webrtc.NewAPI()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pc, err := api.NewPeerConnection(opts.Configuration)
	if err != nil {
		return nil, NewError("create peer connection", peerID, err)
	}

	n := &Negotiator{
		peerID: peerID,
		opts:   opts,
		log:    logger.With("remote_peer", peerID),
		pc:     pc,
		state:  StateIdle,
	}
	n.ctx, n.cancel = context.WithCancel(ctx)

	pc.OnICECandidate(n.onICECandidate)
	pc.OnICEConnectionStateChange(n.onICEConnectionState)
	pc.OnConnectionStateChange(n.onConnectionState)
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != chat.Label {
			n.log.Debug("ignoring data channel", "label", dc.Label())
			return
		}
		n.attach(dc)
	})

	return n, nil
}

func (n *Negotiator) PeerID() string {
	return n.peerID
}

func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Offer opens the chat channel, creates an offer and relays it.
func (n *Negotiator) Offer() error {
	if s := n.State(); s != StateIdle {
		return NewError("offer", n.peerID, ErrInvalidState)
	}

	ordered := true
	dc, err := n.pc.CreateDataChannel(chat.Label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return n.fail("create data channel", err)
	}
	n.attach(dc)

	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return n.fail("create offer", err)
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return n.fail("set local description", err)
	}
	if !n.transition(StateOfferCreated) {
		return NewError("offer", n.peerID, ErrInvalidState)
	}

	sdp, err := json.Marshal(n.pc.LocalDescription())
	if err != nil {
		return n.fail("encode offer", err)
	}

	// OfferSent is entered before the relay call returns so that an answer
	// racing back is not mistaken for an unsolicited one.
	if !n.transition(StateOfferSent) {
		return NewError("offer", n.peerID, ErrInvalidState)
	}
	if err := n.opts.Relay.SendOffer(n.ctx, n.peerID, sdp); err != nil {
		return n.fail("send offer", err)
	}

	n.releaseCandidates()
	return nil
}

// HandleOffer applies a remote offer and relays our answer.
func (n *Negotiator) HandleOffer(raw json.RawMessage) error {
	desc, err := decodeDescription(raw, webrtc.SDPTypeOffer)
	if err != nil {
		return n.fail("handle offer", err)
	}
	if !n.transition(StateOfferReceived) {
		return NewError("handle offer", n.peerID, ErrInvalidState)
	}

	if err := n.pc.SetRemoteDescription(desc); err != nil {
		return n.fail("set remote description", err)
	}
	n.markRemote()

	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return n.fail("create answer", err)
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return n.fail("set local description", err)
	}

	sdp, err := json.Marshal(n.pc.LocalDescription())
	if err != nil {
		return n.fail("encode answer", err)
	}
	if err := n.opts.Relay.SendAnswer(n.ctx, n.peerID, sdp); err != nil {
		return n.fail("send answer", err)
	}
	if !n.transition(StateAnswerSent) {
		return NewError("handle offer", n.peerID, ErrInvalidState)
	}

	n.releaseCandidates()
	n.catchUp()
	return nil
}

// HandleAnswer applies the answer to our offer. Answers in any state other
// than OfferSent are rejected with ErrInvalidState.
func (n *Negotiator) HandleAnswer(raw json.RawMessage) error {
	if s := n.State(); s != StateOfferSent {
		return NewError("handle answer", n.peerID, ErrInvalidState)
	}

	desc, err := decodeDescription(raw, webrtc.SDPTypeAnswer)
	if err != nil {
		return n.fail("handle answer", err)
	}
	if err := n.pc.SetRemoteDescription(desc); err != nil {
		return n.fail("set remote description", err)
	}
	n.markRemote()

	if !n.transition(StateAnswerReceived) {
		return NewError("handle answer", n.peerID, ErrInvalidState)
	}
	n.catchUp()
	return nil
}

// HandleCandidate adds a remote candidate. Candidates that arrive before the
// remote description is applied are dropped.
func (n *Negotiator) HandleCandidate(raw json.RawMessage) error {
	n.mu.Lock()
	ready := n.remoteSet && !n.state.Terminal()
	n.mu.Unlock()

	if !ready {
		n.log.Debug("dropping early ice candidate")
		return NewError("handle candidate", n.peerID, ErrCandidateDropped)
	}

	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		return NewError("parse ICE candidate", n.peerID, errors.Join(ErrBadSignal, err))
	}
	if err := n.pc.AddICECandidate(init); err != nil {
		return NewError("add ICE candidate", n.peerID, err)
	}
	return nil
}

// Send writes data to the chat channel.
func (n *Negotiator) Send(data []byte) error {
	n.mu.Lock()
	dc := n.dc
	n.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return NewError("send", n.peerID, ErrChannelNotOpen)
	}
	return dc.Send(data)
}

// Close tears the connection down and moves to StateClosed.
func (n *Negotiator) Close() error {
	n.transition(StateClosed)
	return n.shutdown()
}

func (n *Negotiator) fail(op string, err error) error {
	wrapped := NewError(op, n.peerID, err)
	if n.transition(StateFailed) {
		n.log.Warn("negotiation failed", "op", op, "error", err)
		go n.shutdown()
	}
	return wrapped
}

func (n *Negotiator) shutdown() error {
	var err error
	n.closeOnce.Do(func() {
		n.cancel()
		err = n.pc.Close()
	})
	return err
}

func (n *Negotiator) transition(to State) bool {
	n.mu.Lock()
	from := n.state
	if from == to || !canTransition(from, to) {
		n.mu.Unlock()
		if from != to {
			n.log.Debug("ignoring transition", "from", from, "to", to)
		}
		return false
	}
	n.state = to
	n.mu.Unlock()

	n.log.Debug("state change", "from", from, "to", to)
	if cb := n.opts.OnStateChange; cb != nil {
		cb(n, from, to)
	}
	return true
}

// catchUp applies ICE progress that happened before the handshake state
// caught up with it.
func (n *Negotiator) catchUp() {
	switch n.pc.ICEConnectionState() {
	case webrtc.ICEConnectionStateChecking, webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		n.transition(StateCandidatesExchanging)
	}
	if n.pc.ConnectionState() == webrtc.PeerConnectionStateConnected {
		n.transition(StateConnected)
	}
}

func (n *Negotiator) markRemote() {
	n.mu.Lock()
	n.remoteSet = true
	n.mu.Unlock()
}

// onICECandidate relays local candidates. Candidates gathered before our own
// description has been relayed are sent right after it, so the remote never
// drains a candidate ahead of the description it belongs to.
func (n *Negotiator) onICECandidate(c *webrtc.ICECandidate) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(c.ToJSON())
	if err != nil {
		n.log.Debug("encode ice candidate", "error", err)
		return
	}

	n.mu.Lock()
	if !n.sdpRelayed {
		n.held = append(n.held, raw)
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	n.sendCandidate(raw)
}

func (n *Negotiator) releaseCandidates() {
	n.mu.Lock()
	n.sdpRelayed = true
	held := n.held
	n.held = nil
	n.mu.Unlock()

	for _, raw := range held {
		n.sendCandidate(raw)
	}
}

func (n *Negotiator) sendCandidate(raw json.RawMessage) {
	if err := n.opts.Relay.SendICECandidate(n.ctx, n.peerID, raw); err != nil && n.ctx.Err() == nil {
		n.log.Warn("relay ice candidate", "error", err)
	}
}

func (n *Negotiator) onICEConnectionState(state webrtc.ICEConnectionState) {
	switch state {
	case webrtc.ICEConnectionStateChecking:
		n.transition(StateCandidatesExchanging)
	case webrtc.ICEConnectionStateFailed:
		n.fail("ice", ErrConnectionFailed)
	}
}

func (n *Negotiator) onConnectionState(state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		n.transition(StateConnected)
	case webrtc.PeerConnectionStateFailed:
		n.fail("connect", ErrConnectionFailed)
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
		if n.transition(StateClosed) {
			go n.shutdown()
		}
	}
}

func (n *Negotiator) attach(dc *webrtc.DataChannel) {
	n.mu.Lock()
	n.dc = dc
	n.mu.Unlock()

	dc.OnOpen(func() {
		n.log.Debug("data channel open", "label", dc.Label())
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if cb := n.opts.OnMessage; cb != nil {
			cb(n, msg.Data)
		}
	})
}

func decodeDescription(raw json.RawMessage, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, errors.Join(ErrBadSignal, err)
	}
	if desc.SDP == "" {
		return desc, errors.Join(ErrBadSignal, errors.New("empty sdp"))
	}
	if desc.Type != want {
		// Browsers always set type; be lenient with clients that omit it.
		desc.Type = want
	}
	return desc, nil
}
