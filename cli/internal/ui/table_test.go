package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BioHazard786/Warpdrop/cli/internal/negotiator"
	"github.com/BioHazard786/Warpdrop/cli/internal/session"
)

func TestPeerTableView(t *testing.T) {
	view := PeerTableView([]session.Peer{
		{ID: "peer_a", DeviceType: "r1", State: negotiator.StateOfferSent},
		{ID: "peer_sim_b", DeviceType: "desktop", Simulated: true},
	})

	assert.Contains(t, view, "peer_a")
	assert.Contains(t, view, "offer_sent")
	assert.Contains(t, view, "simulated")
	assert.Contains(t, view, "r1")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "ab", truncate("abcdefgh", 2))
}
