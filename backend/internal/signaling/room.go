package signaling

import (
	"slices"
	"time"
)

// Peer is a registered endpoint. RoomID is empty while the peer is in no room.
type Peer struct {
	ID            string
	DeviceType    string
	RoomID        string
	LastSeenAt    time.Time
	OriginAddress string
}

// Room is a set of peer ids kept in join order.
type Room struct {
	ID      string
	members []string
}

func newRoom(id string) *Room {
	return &Room{ID: id}
}

func (r *Room) has(peerID string) bool {
	return slices.Contains(r.members, peerID)
}

func (r *Room) add(peerID string) {
	if !r.has(peerID) {
		r.members = append(r.members, peerID)
	}
}

func (r *Room) remove(peerID string) bool {
	i := slices.Index(r.members, peerID)
	if i < 0 {
		return false
	}
	r.members = slices.Delete(r.members, i, i+1)
	return true
}

// others returns the members except peerID. The result is never nil so it
// encodes as an empty JSON array.
func (r *Room) others(peerID string) []string {
	out := make([]string, 0, len(r.members))
	for _, id := range r.members {
		if id != peerID {
			out = append(out, id)
		}
	}
	return out
}

func (r *Room) empty() bool {
	return len(r.members) == 0
}
