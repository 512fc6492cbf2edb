package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/Warpdrop/cli/internal/signaling"
)

// RoomInfoView renders a get_room_info reply. Last-seen times are shown
// relative to now.
func RoomInfoView(info signaling.RoomInfo, now time.Time) string {
	t := table.NewWriter()
	t.SetTitle("%s Room %s (%d peers)", IconRoom, info.RoomID, info.PeerCount)
	t.AppendHeader(table.Row{"#", "Peer", "Device", "Last seen"})
	for i, p := range info.Peers {
		seen := now.Sub(time.UnixMilli(p.LastSeen)).Truncate(time.Second)
		if seen < 0 {
			seen = 0
		}
		t.AppendRow(table.Row{i + 1, p.PeerID, DeviceIcon(p.DeviceType) + " " + deviceLabel(p.DeviceType), fmt.Sprintf("%s ago", seen)})
	}
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return t.Render()
}
