package ui

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/huddle/internal/signaling"
)

// RoomsTable renders the relay's room snapshot.
func RoomsTable(rooms []signaling.RoomInfo) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No active rooms")
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.SetTitle(IconRoom + " Rooms")
	t.AppendHeader(table.Row{"Room", "Members", "Users"})

	total := 0
	for _, r := range rooms {
		users := make([]string, 0, len(r.Members))
		for _, m := range r.Members {
			if m.UserID != "" {
				users = append(users, m.UserID)
			} else {
				users = append(users, m.SocketID)
			}
		}
		total += len(r.Members)
		t.AppendRow(table.Row{r.RoomID, len(r.Members), strings.Join(users, ", ")})
	}
	t.AppendFooter(table.Row{"Total", total, ""})

	return t.Render()
}
