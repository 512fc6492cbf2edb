package signaling

import "encoding/json"

// MessageType names a request, a reply or a delivered event.
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

// Replies and pushed events.
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

	TypePeerJoined MessageType = "peer_joined"
	TypePeerLeft   MessageType = "peer_left"
)

// Request is what the client sends on either transport.
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

// Signal is an offer, an answer or an ICE candidate addressed to us.
type Signal struct {
	Type       MessageType     `json:"type"`
	FromPeerID string          `json:"fromPeerId"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	RoomID     string          `json:"roomId"`
	Timestamp  int64           `json:"timestamp"`
}

// Notification reports a room membership change.
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

type RoomInfo struct {
	RoomID    string        `json:"roomId"`
	PeerCount int           `json:"peerCount"`
	Peers     []PeerSummary `json:"peers"`
}

// header is the part every reply shares.
type header struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"requestId,omitempty"`
}

type errorReply struct {
	header
	Error string `json:"error"`
	Code  string `json:"code"`
}

type successReply struct {
	header
	Success bool `json:"success"`
}

type peersReply struct {
	header
	RoomID  string   `json:"roomId"`
	Peers   []string `json:"peers"`
	Success bool     `json:"success"`
}

type roomInfoReply struct {
	header
	RoomInfo
}

type notificationsReply struct {
	header
	Notifications []Notification `json:"notifications"`
}

type pendingSignalingReply struct {
	header
	Messages []Signal `json:"messages"`
}
