package signaling

import (
	"context"
	"encoding/json"
)

// Transport is the client side of the rendezvous vocabulary. HTTPClient and
// PushClient implement it; so does the fallback controller wrapping them.
type Transport interface {
	Register(ctx context.Context, peerID, deviceType string) error
	JoinRoom(ctx context.Context, peerID, roomID, deviceType string) ([]string, error)
	LeaveRoom(ctx context.Context, peerID, roomID string) error
	DiscoverPeers(ctx context.Context, peerID, roomID string) ([]string, error)
	Heartbeat(ctx context.Context, peerID string) error

	SendOffer(ctx context.Context, peerID, targetPeerID, roomID string, offer json.RawMessage) error
	SendAnswer(ctx context.Context, peerID, targetPeerID, roomID string, answer json.RawMessage) error
	SendICECandidate(ctx context.Context, peerID, targetPeerID, roomID string, candidate json.RawMessage) error

	PendingSignaling(ctx context.Context, peerID string) ([]Signal, error)
	Notifications(ctx context.Context, peerID string) ([]Notification, error)
	RoomInfo(ctx context.Context, roomID string) (RoomInfo, error)

	Close() error
}

// Notifier is implemented by transports that receive mailbox entries as they
// are delivered. Ready fires when PendingSignaling or Notifications has
// something new, so the caller can skip periodic polling.
type Notifier interface {
	Ready() <-chan struct{}
}

// rpc implements the typed operations on top of one request/reply exchange.
// do fills out with the decoded reply or returns the mapped error.
type rpc struct {
	do func(ctx context.Context, req *Request, out any) error
}

func (r rpc) Register(ctx context.Context, peerID, deviceType string) error {
	var out successReply
	return r.do(ctx, &Request{Type: TypeRegister, PeerID: peerID, DeviceType: deviceType}, &out)
}

func (r rpc) JoinRoom(ctx context.Context, peerID, roomID, deviceType string) ([]string, error) {
	var out peersReply
	if err := r.do(ctx, &Request{Type: TypeJoinRoom, PeerID: peerID, RoomID: roomID, DeviceType: deviceType}, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Peers), nil
}

func (r rpc) LeaveRoom(ctx context.Context, peerID, roomID string) error {
	var out successReply
	return r.do(ctx, &Request{Type: TypeLeaveRoom, PeerID: peerID, RoomID: roomID}, &out)
}

func (r rpc) DiscoverPeers(ctx context.Context, peerID, roomID string) ([]string, error) {
	var out peersReply
	if err := r.do(ctx, &Request{Type: TypeDiscoverPeers, PeerID: peerID, RoomID: roomID}, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Peers), nil
}

func (r rpc) Heartbeat(ctx context.Context, peerID string) error {
	var out successReply
	return r.do(ctx, &Request{Type: TypeHeartbeat, PeerID: peerID}, &out)
}

func (r rpc) SendOffer(ctx context.Context, peerID, targetPeerID, roomID string, offer json.RawMessage) error {
	var out successReply
	return r.do(ctx, &Request{Type: TypeOffer, PeerID: peerID, TargetPeerID: targetPeerID, RoomID: roomID, Offer: offer}, &out)
}

func (r rpc) SendAnswer(ctx context.Context, peerID, targetPeerID, roomID string, answer json.RawMessage) error {
	var out successReply
	return r.do(ctx, &Request{Type: TypeAnswer, PeerID: peerID, TargetPeerID: targetPeerID, RoomID: roomID, Answer: answer}, &out)
}

func (r rpc) SendICECandidate(ctx context.Context, peerID, targetPeerID, roomID string, candidate json.RawMessage) error {
	var out successReply
	return r.do(ctx, &Request{Type: TypeICECandidate, PeerID: peerID, TargetPeerID: targetPeerID, RoomID: roomID, Candidate: candidate}, &out)
}

func (r rpc) PendingSignaling(ctx context.Context, peerID string) ([]Signal, error) {
	var out pendingSignalingReply
	if err := r.do(ctx, &Request{Type: TypeGetPendingSignaling, PeerID: peerID}, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (r rpc) Notifications(ctx context.Context, peerID string) ([]Notification, error) {
	var out notificationsReply
	if err := r.do(ctx, &Request{Type: TypeGetNotifications, PeerID: peerID}, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (r rpc) RoomInfo(ctx context.Context, roomID string) (RoomInfo, error) {
	var out roomInfoReply
	if err := r.do(ctx, &Request{Type: TypeGetRoomInfo, RoomID: roomID}, &out); err != nil {
		return RoomInfo{}, err
	}
	return out.RoomInfo, nil
}

func nonNil(peers []string) []string {
	if peers == nil {
		return []string{}
	}
	return peers
}

// decodeReply turns a raw reply into out, or into the error it carries.
func decodeReply(op string, data []byte, out any) error {
	var h errorReply
	if err := json.Unmarshal(data, &h); err != nil {
		return WrapError(op, ErrUnreachable, "unexpected reply: "+err.Error())
	}
	if h.Type == TypeError {
		return h.err(op)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return WrapError(op, ErrUnreachable, "unexpected reply: "+err.Error())
	}
	return nil
}
