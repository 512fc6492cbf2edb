package session

import (
	"github.com/BioHazard786/Warpdrop/cli/internal/chat"
	"github.com/BioHazard786/Warpdrop/cli/internal/fallback"
	"github.com/BioHazard786/Warpdrop/cli/internal/negotiator"
)

type EventKind int

const (
	EventPeerJoined EventKind = iota
	EventPeerLeft
	EventPeerState
	EventMessage
	EventTierChanged
	EventRejoined
)

// Event is something that happened in the room. Which fields are set
// depends on Kind.
type Event struct {
	Kind       EventKind
	PeerID     string
	DeviceType string
	State      negotiator.State
	Message    chat.Message
	Tier       fallback.Tier
}
