package signaling

import (
	"bytes"
	"encoding/json"
	"io"
)

// MessageType tags every request, reply and pushed event on the wire.
type MessageType string

// Requests.
const (
	TypeRegister            MessageType = "register"
	TypeJoinRoom            MessageType = "join_room"
	TypeLeaveRoom           MessageType = "leave_room"
	TypeDiscoverPeers       MessageType = "discover_peers"
	TypeOffer               MessageType = "offer"
	TypeAnswer              MessageType = "answer"
	TypeICECandidate        MessageType = "ice_candidate"
	TypeHeartbeat           MessageType = "heartbeat"
	TypeGetRoomInfo         MessageType = "get_room_info"
	TypeGetNotifications    MessageType = "get_notifications"
	TypeGetPendingSignaling MessageType = "get_pending_signaling"
)

// Replies.
const (
	TypeRegistered         MessageType = "registered"
	TypeRoomJoined         MessageType = "room_joined"
	TypeRoomLeft           MessageType = "room_left"
	TypeRoomPeers          MessageType = "room_peers"
	TypeOfferStored        MessageType = "offer_stored"
	TypeAnswerStored       MessageType = "answer_stored"
	TypeICECandidateStored MessageType = "ice_candidate_stored"
	TypeHeartbeatAck       MessageType = "heartbeat_ack"
	TypeRoomInfo           MessageType = "room_info"
	TypeNotifications      MessageType = "notifications"
	TypePendingSignaling   MessageType = "pending_signaling"
	TypeError              MessageType = "error"
)

// Membership events.
const (
	TypePeerJoined MessageType = "peer_joined"
	TypePeerLeft   MessageType = "peer_left"
)

// Request is the single inbound shape for both transports. Which fields are
// required depends on Type; see the route table in dispatch.go.
type Request struct {
	Type         MessageType     `json:"type"`
	RequestID    string          `json:"requestId,omitempty"`
	PeerID       string          `json:"peerId,omitempty"`
	RoomID       string          `json:"roomId,omitempty"`
	DeviceType   string          `json:"deviceType,omitempty"`
	TargetPeerID string          `json:"targetPeerId,omitempty"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

// DecodeRequest reads one JSON request. Syntax errors are reported as
// ErrMalformedRequest.
func DecodeRequest(r io.Reader) (*Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, WrapError("decode request", ErrMalformedRequest, err.Error())
	}
	return &req, nil
}

func emptyPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// PendingMessage is a mailbox entry as handed to its target: an offer, an
// answer or one ICE candidate.
type PendingMessage struct {
	Type       MessageType     `json:"type"`
	FromPeerID string          `json:"fromPeerId"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	RoomID     string          `json:"roomId"`
	Timestamp  int64           `json:"timestamp"`
}

// Notification is a room membership event.
type Notification struct {
	Type       MessageType `json:"type"`
	PeerID     string      `json:"peerId"`
	DeviceType string      `json:"deviceType,omitempty"`
	RoomID     string      `json:"roomId"`
	Timestamp  int64       `json:"timestamp"`
}

type PeerSummary struct {
	PeerID     string `json:"peerId"`
	DeviceType string `json:"deviceType"`
	LastSeen   int64  `json:"lastSeen"`
}

// Reply is implemented by every response body. The push transport echoes the
// caller's request id through SetRequestID.
type Reply interface {
	SetRequestID(id string)
}

type Header struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"requestId,omitempty"`
}

func (h *Header) SetRequestID(id string) { h.RequestID = id }

type RegisteredReply struct {
	Header
	PeerID  string `json:"peerId"`
	Success bool   `json:"success"`
}

type RoomJoinedReply struct {
	Header
	RoomID  string   `json:"roomId"`
	Peers   []string `json:"peers"`
	Success bool     `json:"success"`
}

type RoomLeftReply struct {
	Header
	RoomID  string `json:"roomId"`
	Success bool   `json:"success"`
}

type RoomPeersReply struct {
	Header
	Peers  []string `json:"peers"`
	RoomID string   `json:"roomId"`
}

// AckReply acknowledges stores and heartbeats.
type AckReply struct {
	Header
	Success bool `json:"success"`
}

type RoomInfoReply struct {
	Header
	RoomID    string        `json:"roomId"`
	PeerCount int           `json:"peerCount"`
	Peers     []PeerSummary `json:"peers"`
}

type NotificationsReply struct {
	Header
	Notifications []Notification `json:"notifications"`
}

type PendingSignalingReply struct {
	Header
	Messages []PendingMessage `json:"messages"`
}

type ErrorReply struct {
	Header
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewErrorReply renders err for the wire.
func NewErrorReply(err error) *ErrorReply {
	return &ErrorReply{
		Header: Header{Type: TypeError},
		Error:  err.Error(),
		Code:   Code(err),
	}
}
