package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BioHazard786/Warpdrop/cli/internal/signaling"
)

func TestRoomInfoView(t *testing.T) {
	now := time.UnixMilli(1700000030000)
	view := RoomInfoView(signaling.RoomInfo{
		RoomID:    "R1",
		PeerCount: 2,
		Peers: []signaling.PeerSummary{
			{PeerID: "A", DeviceType: "desktop", LastSeen: 1700000000000},
			{PeerID: "B", DeviceType: "r1", LastSeen: 1700000025000},
		},
	}, now)

	assert.Contains(t, view, "Room R1 (2 peers)")
	assert.Contains(t, view, "30s ago")
	assert.Contains(t, view, "5s ago")
	assert.Contains(t, view, "r1")
}
