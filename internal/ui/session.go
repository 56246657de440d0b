package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/huddle/internal/voice"
)

const refreshInterval = 250 * time.Millisecond

// TickMsg asks a view to poll its status again.
type TickMsg time.Time

// EndedMsg tells a view that the session or call is over.
type EndedMsg struct{ Err error }

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// GroupControls is what the room view needs from a voice session.
type GroupControls interface {
	Status() voice.Status
	ToggleMute() bool
	Leave()
}

// RoomModel is the live view of a group voice session.
type RoomModel struct {
	ctl      GroupControls
	status   voice.Status
	spinner  spinner.Model
	err      error
	quitting bool
}

// NewRoomModel returns the group room view.
func NewRoomModel(ctl GroupControls) *RoomModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return &RoomModel{ctl: ctl, status: ctl.Status(), spinner: s}
}

func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "m":
			m.ctl.ToggleMute()
			m.status = m.ctl.Status()
		case "q", "ctrl+c":
			m.ctl.Leave()
			m.quitting = true
			return m, tea.Quit
		}

	case TickMsg:
		m.status = m.ctl.Status()
		if !m.quitting {
			return m, tick()
		}

	case EndedMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Err is the error that ended the session, if any.
func (m *RoomModel) Err() error { return m.err }

func (m *RoomModel) View() string {
	if m.quitting {
		return ""
	}
	st := m.status

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s %s", IconRoom, st.RoomID)))
	b.WriteString("\n")

	connected := 0
	for _, p := range st.Peers {
		if p.State == voice.LinkConnected {
			connected++
		}
	}
	b.WriteString(fmt.Sprintf("%s %s  %s\n\n",
		m.spinner.View(),
		BoldStyle.Render(st.UserID),
		MutedStyle.Render(fmt.Sprintf("%d/%d connected", connected, len(st.Peers))),
	))
	b.WriteString(RosterView(st.Peers))
	b.WriteString("\n")

	b.WriteString(micLine(st.Muted))
	if st.Err != nil {
		b.WriteString("\n" + FormatError(st.Err))
	}
	b.WriteString(FooterStyle.Render("m mute/unmute • q leave"))
	return b.String()
}

func micLine(muted bool) string {
	if muted {
		return WarningStyle.Render(IconMuted+" muted") + "\n"
	}
	return SuccessStyle.Render(IconMic+" live") + "\n"
}
