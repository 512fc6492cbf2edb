package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BioHazard786/Warpdrop/cli/internal/negotiator"
	"github.com/BioHazard786/Warpdrop/cli/internal/session"
)

// PeerTableView renders the room members as a lipgloss table.
func PeerTableView(peers []session.Peer) string {
	if len(peers) == 0 {
		return MutedStyle.Render(IconWaiting + " Waiting for peers to join...")
	}

	var rows [][]string
	for i, p := range peers {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			truncate(p.ID, 32),
			DeviceIcon(p.DeviceType) + " " + deviceLabel(p.DeviceType),
			peerStatus(p),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Peer", "Device", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func peerStatus(p session.Peer) string {
	if p.Simulated {
		return IconSim + " simulated"
	}
	switch p.State {
	case negotiator.StateConnected:
		return SuccessStyle.Render("connected")
	case negotiator.StateFailed:
		return ErrorStyle.Render("failed")
	case negotiator.StateIdle:
		return MutedStyle.Render("waiting")
	default:
		return WarningStyle.Render(p.State.String())
	}
}

func deviceLabel(deviceType string) string {
	if deviceType == "" {
		return "unknown"
	}
	return deviceType
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// RoomBox shows the room id and the link others can use to join it.
type RoomBox struct {
	RoomID   string
	RoomLink string
	PeerID   string
}

func (r RoomBox) View() string {
	content := fmt.Sprintf("%s Joined room\n\n%s Room ID:    %s\n%s Room Link:  %s\n%s You are:    %s",
		IconRoom,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
		IconPeer, MutedStyle.Render(r.PeerID),
	)
	return SuccessBoxStyle.Render(content)
}
