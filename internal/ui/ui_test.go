package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/signaling"
	"github.com/BioHazard786/huddle/internal/voice"
)

func key(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

type fakeGroup struct {
	status voice.Status
	left   bool
}

func (g *fakeGroup) Status() voice.Status { return g.status }
func (g *fakeGroup) Leave()               { g.left = true }
func (g *fakeGroup) ToggleMute() bool {
	g.status.Muted = !g.status.Muted
	return g.status.Muted
}

func TestRoomModel(t *testing.T) {
	g := &fakeGroup{status: voice.Status{RoomID: "standup", UserID: "alice"}}
	m := NewRoomModel(g)

	g.status.Peers = []voice.PeerStatus{
		{Remote: voice.Remote{SocketID: "s1", UserID: "bob"}, State: voice.LinkConnected, HasLink: true},
		{Remote: voice.Remote{SocketID: "s2"}, State: voice.LinkNew},
	}
	m.Update(TickMsg{})
	view := m.View()
	for _, want := range []string{"standup", "alice", "bob", "s2", "waiting for offer", "1/2 connected", "live"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	m.Update(key("m"))
	if !g.status.Muted || !strings.Contains(m.View(), "muted") {
		t.Fatalf("m did not mute")
	}

	_, cmd := m.Update(key("q"))
	if !g.left || !isQuit(cmd) {
		t.Fatalf("q should leave and quit")
	}
	if m.View() != "" {
		t.Fatalf("view after quit=%q", m.View())
	}
}

func TestRoomModelEnded(t *testing.T) {
	m := NewRoomModel(&fakeGroup{})
	_, cmd := m.Update(EndedMsg{Err: voice.ErrRelayDisconnected})
	if !isQuit(cmd) || !errors.Is(m.Err(), voice.ErrRelayDisconnected) {
		t.Fatalf("ended: quit=%v err=%v", isQuit(cmd), m.Err())
	}
}

type fakeCall struct {
	status   call.Status
	accepted int
	declined int
	hungup   int
	quit     bool
}

func (c *fakeCall) actions(incoming bool) CallActions {
	toggle := func() bool {
		c.status.Muted = !c.status.Muted
		return c.status.Muted
	}
	act := CallActions{
		Status:     func() call.Status { return c.status },
		ToggleMute: toggle,
		Hangup:     func() error { c.hungup++; return nil },
		Quit:       func() { c.quit = true },
	}
	if incoming {
		act.Accept = func() error { c.accepted++; return nil }
		act.Decline = func() error { c.declined++; return call.ErrNoInvite }
	}
	return act
}

func TestCallModelIncoming(t *testing.T) {
	c := &fakeCall{status: call.Status{State: call.StateIdle}}
	m := NewCallModel("listening as bob", c.actions(true))

	m.Update(key("a"))
	if c.accepted != 0 {
		t.Fatalf("accept without an invite")
	}
	if !strings.Contains(m.View(), "waiting for calls") {
		t.Fatalf("idle view:\n%s", m.View())
	}

	c.status = call.Status{State: call.StateIncoming, Peer: voice.Remote{SocketID: "s1", UserID: "alice"}}
	m.Update(TickMsg{})
	view := m.View()
	if !strings.Contains(view, "is calling") || !strings.Contains(view, "alice") || !strings.Contains(view, "a accept") {
		t.Fatalf("incoming view:\n%s", view)
	}

	m.Update(key("d"))
	if c.declined != 1 || !strings.Contains(m.View(), call.ErrNoInvite.Error()) {
		t.Fatalf("decline not reported:\n%s", m.View())
	}

	m.Update(key("a"))
	if c.accepted != 1 {
		t.Fatalf("accepted=%d", c.accepted)
	}

	c.status.State = call.StateInCall
	c.status.Link = voice.LinkConnected
	c.status.RemoteMuted = true
	m.Update(TickMsg{})
	view = m.View()
	for _, want := range []string{"in call with", "connected", "alice is muted", "h hang up"} {
		if !strings.Contains(view, want) {
			t.Fatalf("in-call view missing %q:\n%s", want, view)
		}
	}

	m.Update(key("h"))
	if c.hungup != 1 {
		t.Fatalf("hangups=%d", c.hungup)
	}
}

func TestCallModelOutgoing(t *testing.T) {
	c := &fakeCall{status: call.Status{State: call.StateRinging, Peer: voice.Remote{UserID: "bob"}}}
	m := NewCallModel("calling bob", c.actions(false))

	m.Update(key("a"))
	m.Update(key("d"))
	if strings.Contains(m.View(), "a accept") {
		t.Fatalf("outgoing call offers accept:\n%s", m.View())
	}
	if !strings.Contains(m.View(), "ringing") {
		t.Fatalf("ringing view:\n%s", m.View())
	}

	m.Update(key("m"))
	if !c.status.Muted {
		t.Fatalf("m did not mute")
	}

	_, cmd := m.Update(key("ctrl+c"))
	if !c.quit || !isQuit(cmd) {
		t.Fatalf("ctrl+c should quit")
	}
}

func TestRosterView(t *testing.T) {
	if !strings.Contains(RosterView(nil), "Nobody") {
		t.Fatalf("empty roster")
	}
	view := RosterView([]voice.PeerStatus{
		{Remote: voice.Remote{SocketID: "s1", UserID: "carol"}, State: voice.LinkFailed, HasLink: true, RemoteMuted: true},
	})
	if !strings.Contains(view, "carol") || !strings.Contains(view, "failed") {
		t.Fatalf("roster:\n%s", view)
	}
}

func TestRoomsTable(t *testing.T) {
	if !strings.Contains(RoomsTable(nil), "No active rooms") {
		t.Fatalf("empty table")
	}
	view := RoomsTable([]signaling.RoomInfo{
		{RoomID: "standup", Members: []signaling.Peer{{SocketID: "s1", UserID: "alice"}, {SocketID: "s2"}}},
		{RoomID: "dm:alice:bob", Members: []signaling.Peer{{SocketID: "s3", UserID: "bob"}}},
	})
	for _, want := range []string{"standup", "alice, s2", "dm:alice:bob", "TOTAL", "3"} {
		if !strings.Contains(view, want) {
			t.Fatalf("table missing %q:\n%s", want, view)
		}
	}
}
