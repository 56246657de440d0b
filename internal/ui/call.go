package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/voice"
)

// CallActions connects the call view to a Caller or Callee. Accept and
// Decline are nil for outgoing calls.
type CallActions struct {
	Status     func() call.Status
	ToggleMute func() bool
	Hangup     func() error
	Accept     func() error
	Decline    func() error

	// Quit stops listening or dialling altogether.
	Quit func()
}

// CallModel is the view of a direct call, outgoing or incoming.
type CallModel struct {
	title    string
	act      CallActions
	status   call.Status
	spinner  spinner.Model
	notice   string
	err      error
	quitting bool
}

// NewCallModel returns a call view titled title driven by act.
func NewCallModel(title string, act CallActions) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = SpinnerStyle
	return &CallModel{title: title, act: act, status: act.Status(), spinner: s}
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m *CallModel) incoming() bool {
	return m.act.Accept != nil && m.status.State == call.StateIncoming
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "m":
			m.act.ToggleMute()
		case "a":
			if m.incoming() {
				m.report(m.act.Accept())
			}
		case "d":
			if m.incoming() && m.act.Decline != nil {
				m.report(m.act.Decline())
			}
		case "h":
			if m.act.Hangup != nil {
				m.report(m.act.Hangup())
			}
		case "q", "ctrl+c":
			if m.act.Quit != nil {
				m.act.Quit()
			}
			m.quitting = true
			return m, tea.Quit
		}
		m.status = m.act.Status()

	case TickMsg:
		m.status = m.act.Status()
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

func (m *CallModel) report(err error) {
	m.notice = ""
	if err != nil {
		m.notice = err.Error()
	}
}

// Err is the error that ended the call, if any.
func (m *CallModel) Err() error { return m.err }

func (m *CallModel) View() string {
	if m.quitting {
		return ""
	}
	st := m.status

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(IconPhone + " " + m.title))
	b.WriteString("\n")

	switch st.State {
	case call.StateIncoming:
		b.WriteString(RingBoxStyle.Render(fmt.Sprintf("%s %s is calling", IconRing, BoldStyle.Render(st.Peer.Name()))))
		b.WriteString("\n")
	case call.StateDialing, call.StateRinging:
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), st.State))
	case call.StateInCall:
		b.WriteString(fmt.Sprintf("%s in call with %s  %s\n",
			SuccessStyle.Render(IconPhone), BoldStyle.Render(st.Peer.Name()), linkLabel(st.Link)))
		if st.RemoteMuted {
			b.WriteString(MutedStyle.Render(st.Peer.Name()+" is muted") + "\n")
		}
	case call.StateIdle:
		b.WriteString(fmt.Sprintf("%s waiting for calls\n", m.spinner.View()))
	default:
		b.WriteString(fmt.Sprintf("%s %s\n", IconHangup, st.State))
	}

	b.WriteString(micLine(st.Muted))
	if st.Err != nil {
		b.WriteString(FormatError(st.Err) + "\n")
	}
	if m.notice != "" {
		b.WriteString(WarningStyle.Render(m.notice) + "\n")
	}
	b.WriteString(FooterStyle.Render(m.help()))
	return b.String()
}

func (m *CallModel) help() string {
	keys := []string{"m mute/unmute"}
	if m.incoming() {
		keys = append(keys, "a accept", "d decline")
	}
	if m.status.State == call.StateInCall || m.status.State == call.StateRinging {
		keys = append(keys, "h hang up")
	}
	return strings.Join(append(keys, "q quit"), " • ")
}

func linkLabel(s voice.LinkState) string {
	switch s {
	case voice.LinkConnected:
		return SuccessStyle.Render(s.String())
	case voice.LinkFailed, voice.LinkDisconnected:
		return ErrorStyle.Render(s.String())
	}
	return MutedStyle.Render(s.String())
}
