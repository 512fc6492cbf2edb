package signaling

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/BioHazard786/Warpdrop/internal/clock"
)

// Store is the in-memory rendezvous state: peers, rooms and one mailbox per
// peer. Every operation runs under a single lock; the delivery hook is called
// after the lock is released.
type Store struct {
	mu        sync.Mutex
	clock     clock.Clock
	peers     map[string]*Peer
	rooms     map[string]*Room
	mailboxes map[string]*Mailbox

	deliver func(peerID string)
}

// RoomInfo is a snapshot of one room.
type RoomInfo struct {
	RoomID string
	Peers  []PeerSummary
}

type RoomStats struct {
	RoomID    string   `json:"roomId"`
	PeerCount int      `json:"peerCount"`
	Peers     []string `json:"peers"`
}

type Stats struct {
	TotalPeers int         `json:"totalPeers"`
	TotalRooms int         `json:"totalRooms"`
	Rooms      []RoomStats `json:"rooms"`
}

func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{
		clock:     clk,
		peers:     make(map[string]*Peer),
		rooms:     make(map[string]*Room),
		mailboxes: make(map[string]*Mailbox),
	}
}

// OnDeliver installs fn to be called, outside the store lock, with every peer
// whose mailbox just received something. The push hub uses it to flush
// mailboxes of peers with an open socket.
func (s *Store) OnDeliver(fn func(peerID string)) {
	s.mu.Lock()
	s.deliver = fn
	s.mu.Unlock()
}

func (s *Store) notify(peerIDs []string) {
	s.mu.Lock()
	fn := s.deliver
	s.mu.Unlock()
	if fn == nil {
		return
	}
	for _, id := range peerIDs {
		fn(id)
	}
}

// Register creates or resets a peer. A peer that re-registers drops out of its
// room and starts with an empty mailbox.
func (s *Store) Register(peerID, deviceType, originAddress string) {
	s.mu.Lock()
	var notified []string
	if old, ok := s.peers[peerID]; ok {
		notified = s.detachLocked(old)
	}
	s.peers[peerID] = &Peer{
		ID:            peerID,
		DeviceType:    deviceType,
		LastSeenAt:    s.clock.Now(),
		OriginAddress: originAddress,
	}
	s.mailboxes[peerID] = &Mailbox{}
	s.mu.Unlock()

	s.notify(notified)
}

// JoinRoom adds peerID to roomID and returns the members that were already
// there. Joining a second room leaves the first one.
func (s *Store) JoinRoom(peerID, roomID, deviceType string) ([]string, error) {
	s.mu.Lock()
	peer, ok := s.peers[peerID]
	if !ok {
		s.mu.Unlock()
		return nil, WrapError("join room", ErrPeerNotFound, peerID)
	}

	now := s.clock.Now()
	peer.LastSeenAt = now
	if deviceType != "" {
		peer.DeviceType = deviceType
	}

	var notified []string
	if peer.RoomID != "" && peer.RoomID != roomID {
		notified = s.detachLocked(peer)
	}

	room, ok := s.rooms[roomID]
	if !ok {
		room = newRoom(roomID)
		s.rooms[roomID] = room
	}

	others := room.others(peerID)
	if !room.has(peerID) {
		for _, id := range others {
			if m, ok := s.mailboxes[id]; ok {
				m.appendNotification(Notification{
					Type:       TypePeerJoined,
					PeerID:     peerID,
					DeviceType: peer.DeviceType,
					RoomID:     roomID,
					Timestamp:  now.UnixMilli(),
				})
			}
		}
		notified = append(notified, others...)
		room.add(peerID)
	}
	peer.RoomID = roomID
	s.mu.Unlock()

	s.notify(notified)
	return others, nil
}

// LeaveRoom removes peerID from roomID. Leaving a room the peer is not in is
// a no-op.
func (s *Store) LeaveRoom(peerID, roomID string) {
	s.mu.Lock()
	peer, ok := s.peers[peerID]
	if !ok || peer.RoomID != roomID {
		s.mu.Unlock()
		return
	}
	peer.LastSeenAt = s.clock.Now()
	notified := s.detachLocked(peer)
	s.mu.Unlock()

	s.notify(notified)
}

// DiscoverPeers lists the members of roomID other than peerID.
func (s *Store) DiscoverPeers(peerID, roomID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return []string{}
	}
	return room.others(peerID)
}

func (s *Store) Heartbeat(peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	peer, ok := s.peers[peerID]
	if !ok {
		return WrapError("heartbeat", ErrPeerNotFound, peerID)
	}
	peer.LastSeenAt = s.clock.Now()
	return nil
}

func (s *Store) RoomInfo(roomID string) (RoomInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return RoomInfo{}, WrapError("room info", ErrRoomNotFound, roomID)
	}

	info := RoomInfo{RoomID: roomID, Peers: make([]PeerSummary, 0, len(room.members))}
	for _, id := range room.members {
		summary := PeerSummary{PeerID: id, DeviceType: "unknown"}
		if p, ok := s.peers[id]; ok {
			summary.DeviceType = p.DeviceType
			summary.LastSeen = p.LastSeenAt.UnixMilli()
		}
		info.Peers = append(info.Peers, summary)
	}
	return info, nil
}

func (s *Store) StoreOffer(fromPeerID, targetPeerID string, offer json.RawMessage, roomID string) error {
	return s.put("store offer", targetPeerID, func(m *Mailbox, now time.Time) {
		m.putOffer(PendingMessage{
			Type:       TypeOffer,
			FromPeerID: fromPeerID,
			Offer:      offer,
			RoomID:     roomID,
			Timestamp:  now.UnixMilli(),
		})
	})
}

func (s *Store) StoreAnswer(fromPeerID, targetPeerID string, answer json.RawMessage, roomID string) error {
	return s.put("store answer", targetPeerID, func(m *Mailbox, now time.Time) {
		m.putAnswer(PendingMessage{
			Type:       TypeAnswer,
			FromPeerID: fromPeerID,
			Answer:     answer,
			RoomID:     roomID,
			Timestamp:  now.UnixMilli(),
		})
	})
}

func (s *Store) StoreICECandidate(fromPeerID, targetPeerID string, candidate json.RawMessage, roomID string) error {
	return s.put("store ice candidate", targetPeerID, func(m *Mailbox, now time.Time) {
		m.appendCandidate(PendingMessage{
			Type:       TypeICECandidate,
			FromPeerID: fromPeerID,
			Candidate:  candidate,
			RoomID:     roomID,
			Timestamp:  now.UnixMilli(),
		})
	})
}

func (s *Store) put(op, targetPeerID string, fn func(m *Mailbox, now time.Time)) error {
	s.mu.Lock()
	if _, ok := s.peers[targetPeerID]; !ok {
		s.mu.Unlock()
		return WrapError(op, ErrPeerNotFound, targetPeerID)
	}
	fn(s.mailboxes[targetPeerID], s.clock.Now())
	s.mu.Unlock()

	s.notify([]string{targetPeerID})
	return nil
}

// DrainPendingSignaling returns and removes everything in peerID's offer,
// answer and candidate compartments. An unknown peer has nothing pending.
func (s *Store) DrainPendingSignaling(peerID string) []PendingMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mailboxes[peerID]
	if !ok {
		return []PendingMessage{}
	}
	return m.drainSignaling()
}

func (s *Store) DrainNotifications(peerID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mailboxes[peerID]
	if !ok {
		return []Notification{}
	}
	return m.drainNotifications()
}

// HasPending reports whether peerID has anything waiting in its mailbox.
func (s *Store) HasPending(peerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mailboxes[peerID]
	return ok && (m.hasSignaling() || m.hasNotifications())
}

// Deregister removes peerID and everything it owns. It reports whether the
// peer existed.
func (s *Store) Deregister(peerID string) bool {
	s.mu.Lock()
	peer, ok := s.peers[peerID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	notified := s.deleteLocked(peer)
	s.mu.Unlock()

	s.notify(notified)
	return true
}

// EvictStale removes every peer whose last sign of life is older than
// threshold and returns their ids.
func (s *Store) EvictStale(threshold time.Duration) []string {
	s.mu.Lock()
	now := s.clock.Now()
	var (
		evicted  []string
		notified []string
	)
	for _, peer := range s.peers {
		if now.Sub(peer.LastSeenAt) > threshold {
			evicted = append(evicted, peer.ID)
			notified = append(notified, s.deleteLocked(peer)...)
		}
	}
	s.mu.Unlock()

	sort.Strings(evicted)
	s.notify(notified)
	return evicted
}

// deleteLocked cascades a peer removal: room membership, peer record and
// mailbox go together.
func (s *Store) deleteLocked(peer *Peer) []string {
	notified := s.detachLocked(peer)
	delete(s.peers, peer.ID)
	delete(s.mailboxes, peer.ID)

	// Nobody left to flush for the removed peer itself.
	out := notified[:0]
	for _, id := range notified {
		if _, ok := s.peers[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// detachLocked takes peer out of its room, tells the remaining members and
// drops the room once it is empty. It returns the members that were told.
func (s *Store) detachLocked(peer *Peer) []string {
	roomID := peer.RoomID
	peer.RoomID = ""
	if roomID == "" {
		return nil
	}
	room, ok := s.rooms[roomID]
	if !ok || !room.remove(peer.ID) {
		return nil
	}
	if room.empty() {
		delete(s.rooms, roomID)
		return nil
	}

	ts := s.clock.Now().UnixMilli()
	remaining := room.others(peer.ID)
	for _, id := range remaining {
		if m, ok := s.mailboxes[id]; ok {
			m.appendNotification(Notification{
				Type:       TypePeerLeft,
				PeerID:     peer.ID,
				DeviceType: peer.DeviceType,
				RoomID:     roomID,
				Timestamp:  ts,
			})
		}
	}
	return remaining
}

// Peer returns a copy of the peer record.
func (s *Store) Peer(peerID string) (Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[peerID]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Members returns the member ids of roomID in join order, or nil when the
// room does not exist.
func (s *Store) Members(roomID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]string(nil), room.members...)
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		TotalPeers: len(s.peers),
		TotalRooms: len(s.rooms),
		Rooms:      make([]RoomStats, 0, len(s.rooms)),
	}
	for id, room := range s.rooms {
		stats.Rooms = append(stats.Rooms, RoomStats{
			RoomID:    id,
			PeerCount: len(room.members),
			Peers:     append([]string(nil), room.members...),
		})
	}
	sort.Slice(stats.Rooms, func(i, j int) bool { return stats.Rooms[i].RoomID < stats.Rooms[j].RoomID })
	return stats
}
