package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BioHazard786/huddle/internal/voice"
)

// RosterView renders the peers of a group session.
func RosterView(peers []voice.PeerStatus) string {
	if len(peers) == 0 {
		return MutedStyle.Render("Nobody else is here yet")
	}

	rows := make([][]string, 0, len(peers))
	for _, p := range peers {
		mic := IconMic
		if p.RemoteMuted {
			mic = IconMuted
		}
		state := p.State.String()
		if !p.HasLink {
			state = "waiting for offer"
		}
		rows = append(rows, []string{p.Remote.Name(), state, mic})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Peer", "Link", "Mic").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col == 1 && rows[row][1] == voice.LinkFailed.String():
				return tableCellStyle.Foreground(Error)
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}
