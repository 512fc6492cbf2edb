package signaling

import (
	"fmt"
	"log/slog"
	"strings"
)

// Counter is the slice of the metrics registry the dispatcher needs.
type Counter interface {
	Inc(name string)
}

type handlerFunc func(d *Dispatcher, req *Request, origin string) (Reply, error)

type route struct {
	required []string
	handle   handlerFunc
}

// routes is the closed set of request kinds. Anything else is rejected as
// malformed before the store is touched.
var routes = map[MessageType]route{
	TypeRegister:            {required: []string{"peerId", "deviceType"}, handle: (*Dispatcher).register},
	TypeJoinRoom:            {required: []string{"peerId", "roomId", "deviceType"}, handle: (*Dispatcher).joinRoom},
	TypeLeaveRoom:           {required: []string{"peerId", "roomId"}, handle: (*Dispatcher).leaveRoom},
	TypeDiscoverPeers:       {required: []string{"peerId", "roomId"}, handle: (*Dispatcher).discoverPeers},
	TypeOffer:               {required: []string{"peerId", "targetPeerId", "offer", "roomId"}, handle: (*Dispatcher).offer},
	TypeAnswer:              {required: []string{"peerId", "targetPeerId", "answer", "roomId"}, handle: (*Dispatcher).answer},
	TypeICECandidate:        {required: []string{"peerId", "targetPeerId", "candidate", "roomId"}, handle: (*Dispatcher).iceCandidate},
	TypeHeartbeat:           {required: []string{"peerId"}, handle: (*Dispatcher).heartbeat},
	TypeGetRoomInfo:         {required: []string{"roomId"}, handle: (*Dispatcher).roomInfo},
	TypeGetNotifications:    {required: []string{"peerId"}, handle: (*Dispatcher).notifications},
	TypeGetPendingSignaling: {required: []string{"peerId"}, handle: (*Dispatcher).pendingSignaling},
}

// Dispatcher maps a decoded Request to a Store operation. It holds no state
// of its own and is shared by the HTTP endpoint and the push hub.
type Dispatcher struct {
	store   *Store
	log     *slog.Logger
	metrics Counter
}

func NewDispatcher(store *Store, logger *slog.Logger, metrics Counter) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, log: logger, metrics: metrics}
}

func (d *Dispatcher) Store() *Store {
	return d.store
}

// Dispatch validates req and runs it. origin is the caller's network address
// and only matters for register.
func (d *Dispatcher) Dispatch(req *Request, origin string) (Reply, error) {
	reply, err := d.dispatch(req, origin)
	if err != nil {
		d.inc("signaling_errors_" + Code(err))
		d.log.Debug("signaling request rejected", "type", typeOf(req), "error", err)
		return nil, err
	}
	return reply, nil
}

func (d *Dispatcher) dispatch(req *Request, origin string) (Reply, error) {
	if req == nil {
		return nil, WrapError("dispatch", ErrMalformedRequest, "empty request")
	}

	r, ok := routes[req.Type]
	if !ok {
		return nil, WrapError("dispatch", ErrMalformedRequest, fmt.Sprintf("unknown message type %q", req.Type))
	}
	if missing := missingFields(req, r.required); len(missing) > 0 {
		return nil, WrapError(string(req.Type), ErrMalformedRequest, "missing "+strings.Join(missing, ", "))
	}

	d.inc("signaling_requests_" + string(req.Type))
	d.log.Debug("signaling request", "type", req.Type, "peer_id", req.PeerID, "room_id", req.RoomID)
	return r.handle(d, req, origin)
}

func (d *Dispatcher) inc(name string) {
	if d.metrics != nil {
		d.metrics.Inc(name)
	}
}

func typeOf(req *Request) MessageType {
	if req == nil {
		return ""
	}
	return req.Type
}

func missingFields(req *Request, names []string) []string {
	var missing []string
	for _, name := range names {
		var present bool
		switch name {
		case "peerId":
			present = req.PeerID != ""
		case "roomId":
			present = req.RoomID != ""
		case "deviceType":
			present = req.DeviceType != ""
		case "targetPeerId":
			present = req.TargetPeerID != ""
		case "offer":
			present = !emptyPayload(req.Offer)
		case "answer":
			present = !emptyPayload(req.Answer)
		case "candidate":
			present = !emptyPayload(req.Candidate)
		}
		if !present {
			missing = append(missing, name)
		}
	}
	return missing
}

func (d *Dispatcher) register(req *Request, origin string) (Reply, error) {
	d.store.Register(req.PeerID, req.DeviceType, origin)
	d.log.Info("peer registered", "peer_id", req.PeerID, "device_type", req.DeviceType, "origin", origin)
	return &RegisteredReply{
		Header:  Header{Type: TypeRegistered},
		PeerID:  req.PeerID,
		Success: true,
	}, nil
}

func (d *Dispatcher) joinRoom(req *Request, _ string) (Reply, error) {
	others, err := d.store.JoinRoom(req.PeerID, req.RoomID, req.DeviceType)
	if err != nil {
		return nil, err
	}
	d.log.Info("peer joined room", "peer_id", req.PeerID, "room_id", req.RoomID, "others", len(others))
	return &RoomJoinedReply{
		Header:  Header{Type: TypeRoomJoined},
		RoomID:  req.RoomID,
		Peers:   others,
		Success: true,
	}, nil
}

func (d *Dispatcher) leaveRoom(req *Request, _ string) (Reply, error) {
	d.store.LeaveRoom(req.PeerID, req.RoomID)
	d.log.Info("peer left room", "peer_id", req.PeerID, "room_id", req.RoomID)
	return &RoomLeftReply{
		Header:  Header{Type: TypeRoomLeft},
		RoomID:  req.RoomID,
		Success: true,
	}, nil
}

func (d *Dispatcher) discoverPeers(req *Request, _ string) (Reply, error) {
	return &RoomPeersReply{
		Header: Header{Type: TypeRoomPeers},
		Peers:  d.store.DiscoverPeers(req.PeerID, req.RoomID),
		RoomID: req.RoomID,
	}, nil
}

func (d *Dispatcher) offer(req *Request, _ string) (Reply, error) {
	if err := d.store.StoreOffer(req.PeerID, req.TargetPeerID, req.Offer, req.RoomID); err != nil {
		return nil, err
	}
	return ack(TypeOfferStored), nil
}

func (d *Dispatcher) answer(req *Request, _ string) (Reply, error) {
	if err := d.store.StoreAnswer(req.PeerID, req.TargetPeerID, req.Answer, req.RoomID); err != nil {
		return nil, err
	}
	return ack(TypeAnswerStored), nil
}

func (d *Dispatcher) iceCandidate(req *Request, _ string) (Reply, error) {
	if err := d.store.StoreICECandidate(req.PeerID, req.TargetPeerID, req.Candidate, req.RoomID); err != nil {
		return nil, err
	}
	return ack(TypeICECandidateStored), nil
}

func (d *Dispatcher) heartbeat(req *Request, _ string) (Reply, error) {
	if err := d.store.Heartbeat(req.PeerID); err != nil {
		return nil, err
	}
	return ack(TypeHeartbeatAck), nil
}

func (d *Dispatcher) roomInfo(req *Request, _ string) (Reply, error) {
	info, err := d.store.RoomInfo(req.RoomID)
	if err != nil {
		return nil, err
	}
	return &RoomInfoReply{
		Header:    Header{Type: TypeRoomInfo},
		RoomID:    info.RoomID,
		PeerCount: len(info.Peers),
		Peers:     info.Peers,
	}, nil
}

func (d *Dispatcher) notifications(req *Request, _ string) (Reply, error) {
	return &NotificationsReply{
		Header:        Header{Type: TypeNotifications},
		Notifications: d.store.DrainNotifications(req.PeerID),
	}, nil
}

func (d *Dispatcher) pendingSignaling(req *Request, _ string) (Reply, error) {
	return &PendingSignalingReply{
		Header:   Header{Type: TypePendingSignaling},
		Messages: d.store.DrainPendingSignaling(req.PeerID),
	}, nil
}

func ack(t MessageType) *AckReply {
	return &AckReply{Header: Header{Type: t}, Success: true}
}
