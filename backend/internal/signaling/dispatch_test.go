package signaling

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	counts map[string]int
}

func (m *countingMetrics) Inc(name string) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[name]++
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *countingMetrics) {
	t.Helper()
	s, _ := newTestStore(t)
	m := &countingMetrics{}
	return NewDispatcher(s, slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

func mustDispatch(t *testing.T, d *Dispatcher, req *Request) Reply {
	t.Helper()
	reply, err := d.Dispatch(req, "192.0.2.1")
	require.NoError(t, err)
	return reply
}

func TestDispatch_Scenario(t *testing.T) {
	d, _ := newTestDispatcher(t)

	reg := mustDispatch(t, d, &Request{Type: TypeRegister, PeerID: "A", DeviceType: "desktop"})
	assert.Equal(t, &RegisteredReply{Header: Header{Type: TypeRegistered}, PeerID: "A", Success: true}, reg)

	joined := mustDispatch(t, d, &Request{Type: TypeJoinRoom, PeerID: "A", RoomID: "R1", DeviceType: "desktop"})
	assert.Equal(t, []string{}, joined.(*RoomJoinedReply).Peers)

	mustDispatch(t, d, &Request{Type: TypeRegister, PeerID: "B", DeviceType: "mobile"})
	joined = mustDispatch(t, d, &Request{Type: TypeJoinRoom, PeerID: "B", RoomID: "R1", DeviceType: "mobile"})
	assert.Equal(t, &RoomJoinedReply{
		Header:  Header{Type: TypeRoomJoined},
		RoomID:  "R1",
		Peers:   []string{"A"},
		Success: true,
	}, joined)

	notes := mustDispatch(t, d, &Request{Type: TypeGetNotifications, PeerID: "A"}).(*NotificationsReply)
	require.Len(t, notes.Notifications, 1)
	assert.Equal(t, TypePeerJoined, notes.Notifications[0].Type)
	assert.Equal(t, "B", notes.Notifications[0].PeerID)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	stored := mustDispatch(t, d, &Request{Type: TypeOffer, PeerID: "A", TargetPeerID: "B", Offer: offer, RoomID: "R1"})
	assert.Equal(t, &AckReply{Header: Header{Type: TypeOfferStored}, Success: true}, stored)

	pending := mustDispatch(t, d, &Request{Type: TypeGetPendingSignaling, PeerID: "B"}).(*PendingSignalingReply)
	require.Len(t, pending.Messages, 1)
	msg := pending.Messages[0]
	assert.Equal(t, TypeOffer, msg.Type)
	assert.Equal(t, "A", msg.FromPeerID)
	assert.Equal(t, "R1", msg.RoomID)
	assert.JSONEq(t, string(offer), string(msg.Offer))
	assert.Empty(t, msg.Answer)
	assert.Empty(t, msg.Candidate)
}

func TestDispatch_ReplyShapes(t *testing.T) {
	d, _ := newTestDispatcher(t)
	mustDispatch(t, d, &Request{Type: TypeRegister, PeerID: "A", DeviceType: "r1"})
	mustDispatch(t, d, &Request{Type: TypeJoinRoom, PeerID: "A", RoomID: "R1", DeviceType: "r1"})

	tests := []struct {
		name string
		req  *Request
		want string
	}{
		{
			name: "discover",
			req:  &Request{Type: TypeDiscoverPeers, PeerID: "A", RoomID: "R1"},
			want: `{"type":"room_peers","peers":[],"roomId":"R1"}`,
		},
		{
			name: "heartbeat",
			req:  &Request{Type: TypeHeartbeat, PeerID: "A"},
			want: `{"type":"heartbeat_ack","success":true}`,
		},
		{
			name: "notifications",
			req:  &Request{Type: TypeGetNotifications, PeerID: "A"},
			want: `{"type":"notifications","notifications":[]}`,
		},
		{
			name: "pending",
			req:  &Request{Type: TypeGetPendingSignaling, PeerID: "A"},
			want: `{"type":"pending_signaling","messages":[]}`,
		},
		{
			name: "leave",
			req:  &Request{Type: TypeLeaveRoom, PeerID: "A", RoomID: "R1"},
			want: `{"type":"room_left","roomId":"R1","success":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(mustDispatch(t, d, tt.req))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestDispatch_Errors(t *testing.T) {
	d, m := newTestDispatcher(t)
	mustDispatch(t, d, &Request{Type: TypeRegister, PeerID: "A", DeviceType: "desktop"})

	tests := []struct {
		name string
		req  *Request
		want error
	}{
		{"nil", nil, ErrMalformedRequest},
		{"unknown type", &Request{Type: "send_message", PeerID: "A"}, ErrMalformedRequest},
		{"missing peer", &Request{Type: TypeRegister, DeviceType: "desktop"}, ErrMalformedRequest},
		{"missing device", &Request{Type: TypeJoinRoom, PeerID: "A", RoomID: "R1"}, ErrMalformedRequest},
		{"null offer", &Request{Type: TypeOffer, PeerID: "A", TargetPeerID: "A", RoomID: "R1", Offer: json.RawMessage("null")}, ErrMalformedRequest},
		{"unknown target", &Request{Type: TypeAnswer, PeerID: "A", TargetPeerID: "Z", RoomID: "R1", Answer: json.RawMessage(`{}`)}, ErrPeerNotFound},
		{"unregistered join", &Request{Type: TypeJoinRoom, PeerID: "Z", RoomID: "R1", DeviceType: "desktop"}, ErrPeerNotFound},
		{"evicted heartbeat", &Request{Type: TypeHeartbeat, PeerID: "Z"}, ErrPeerNotFound},
		{"missing room", &Request{Type: TypeGetRoomInfo, RoomID: "nope"}, ErrRoomNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := d.Dispatch(tt.req, "")
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, reply)
		})
	}

	assert.Equal(t, 5, m.counts["signaling_errors_"+CodeMalformedRequest])
	assert.Equal(t, 3, m.counts["signaling_errors_"+CodePeerNotFound])
	assert.Equal(t, 1, m.counts["signaling_errors_"+CodeRoomNotFound])
}

func TestDispatch_MalformedDoesNotMutate(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(&Request{Type: TypeRegister, PeerID: "A"}, "")
	require.ErrorIs(t, err, ErrMalformedRequest)
	_, ok := d.Store().Peer("A")
	assert.False(t, ok)
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(`{"type":"ice_candidate","peerId":"A","targetPeerId":"B","roomId":"R1","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"},"extra":1}`))
	require.NoError(t, err)
	assert.Equal(t, TypeICECandidate, req.Type)
	assert.Equal(t, "B", req.TargetPeerID)
	assert.Contains(t, string(req.Candidate), "typ host")

	_, err = DecodeRequest(strings.NewReader(`{"type":`))
	require.ErrorIs(t, err, ErrMalformedRequest)
}

func TestErrorReply(t *testing.T) {
	reply := NewErrorReply(WrapError("heartbeat", ErrPeerNotFound, "A"))
	reply.SetRequestID("req-1")

	b, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","requestId":"req-1","error":"heartbeat: peer not found (A)","code":"peer_not_found"}`, string(b))
}
