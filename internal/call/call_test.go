package call

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/huddle/internal/relay"
	"github.com/BioHazard786/huddle/internal/server"
	"github.com/BioHazard786/huddle/internal/signaling"
	"github.com/BioHazard786/huddle/internal/voice"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeLink struct {
	owner  string
	events voice.LinkEvents

	mu         sync.Mutex
	offers     int
	answered   []string
	setAnswers []string
	candidates []string
	muted      bool
	closed     bool
}

func (l *fakeLink) Offer() (webrtc.SessionDescription, error) {
	l.mu.Lock()
	l.offers++
	l.mu.Unlock()
	l.events.OnCandidate(webrtc.ICECandidateInit{Candidate: "cand-from-" + l.owner})
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-" + l.owner}, nil
}

func (l *fakeLink) Answer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	l.mu.Lock()
	l.answered = append(l.answered, offer.SDP)
	l.mu.Unlock()
	go l.events.OnState(voice.LinkConnected)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-from-" + l.owner}, nil
}

func (l *fakeLink) SetAnswer(answer webrtc.SessionDescription) error {
	l.mu.Lock()
	l.setAnswers = append(l.setAnswers, answer.SDP)
	l.mu.Unlock()
	go l.events.OnState(voice.LinkConnected)
	return nil
}

func (l *fakeLink) AddCandidate(c webrtc.ICECandidateInit) error {
	l.mu.Lock()
	l.candidates = append(l.candidates, c.Candidate)
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) SetMuted(m bool) {
	l.mu.Lock()
	l.muted = m
	l.mu.Unlock()
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

type fakeFactory struct {
	owner string
	mu    sync.Mutex
	links []*fakeLink
}

func (f *fakeFactory) NewLink(_ voice.Remote, events voice.LinkEvents) (voice.Link, error) {
	l := &fakeLink{owner: f.owner, events: events}
	f.mu.Lock()
	f.links = append(f.links, l)
	f.mu.Unlock()
	return l, nil
}

func (f *fakeFactory) last() *fakeLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.links) == 0 {
		return nil
	}
	return f.links[len(f.links)-1]
}

type testRelay struct {
	url string
	hub *relay.Hub
}

func startRelay(t *testing.T) *testRelay {
	t.Helper()
	hub := relay.NewHub(relay.Options{Logger: quiet})
	go hub.Run()
	srv := httptest.NewServer(server.NewRouter(hub, server.Options{Logger: quiet}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &testRelay{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", hub: hub}
}

func (r *testRelay) dial(t *testing.T) (*signaling.Client, <-chan signaling.Event) {
	t.Helper()
	client := signaling.NewClient(r.url)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	handler := signaling.NewHandler(client.Incoming())
	go handler.Start()
	return client, handler.Events()
}

func (r *testRelay) waitMembers(t *testing.T, room string, n int) {
	t.Helper()
	eventually(t, room+" membership", func() bool {
		roster, err := r.hub.Roster(context.Background(), room)
		return err == nil && len(roster) == n
	})
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type listener struct {
	callee  *Callee
	factory *fakeFactory
	done    chan error
}

func listen(t *testing.T, r *testRelay, user string, ring time.Duration) *listener {
	t.Helper()
	client, events := r.dial(t)
	l := &listener{factory: &fakeFactory{owner: user}, done: make(chan error, 1)}
	l.callee = NewCallee(CalleeConfig{
		UserID:      user,
		Signaler:    client,
		Events:      events,
		Links:       l.factory,
		RingTimeout: ring,
		Logger:      quiet,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { l.done <- l.callee.Run(ctx) }()
	r.waitMembers(t, user, 1)
	return l
}

type dialer struct {
	caller  *Caller
	factory *fakeFactory
	done    chan error
}

func dial(t *testing.T, r *testRelay, from, to string, ring time.Duration) *dialer {
	t.Helper()
	client, events := r.dial(t)
	d := &dialer{factory: &fakeFactory{owner: from}, done: make(chan error, 1)}
	d.caller = NewCaller(CallerConfig{
		UserID:      from,
		Callee:      to,
		Signaler:    client,
		Events:      events,
		Links:       d.factory,
		RingTimeout: ring,
		Logger:      quiet,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { d.done <- d.caller.Run(ctx) }()
	return d
}

func (d *dialer) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-d.done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatalf("caller did not finish")
		return nil
	}
}

func calleeState(l *listener, want State) func() bool {
	return func() bool { return l.callee.Status().State == want }
}

func callerState(d *dialer, want State) func() bool {
	return func() bool { return d.caller.Status().State == want }
}

func TestPairRoomIsSymmetric(t *testing.T) {
	if PairRoom("bob", "alice") != "dm:alice:bob" || PairRoom("alice", "bob") != "dm:alice:bob" {
		t.Fatalf("pair room=%q", PairRoom("bob", "alice"))
	}
}

func TestCallAbsentUser(t *testing.T) {
	r := startRelay(t)
	d := dial(t, r, "alice", "bob", time.Second)
	if err := d.result(t); !errors.Is(err, ErrUserUnavailable) {
		t.Fatalf("err=%v, want ErrUserUnavailable", err)
	}
	if s := d.caller.Status(); s.State != StateFailed || s.Err == nil {
		t.Fatalf("status=%+v", s)
	}
}

func TestCallAcceptAndHangup(t *testing.T) {
	r := startRelay(t)
	bob := listen(t, r, "bob", time.Minute)
	alice := dial(t, r, "alice", "bob", time.Minute)

	var inv Invite
	select {
	case inv = <-bob.callee.Invites():
	case <-time.After(3 * time.Second):
		t.Fatalf("no invite")
	}
	if inv.From.UserID != "alice" || inv.Offer.SDP != "offer-from-alice" {
		t.Fatalf("invite=%+v", inv)
	}
	eventually(t, "alice ringing", callerState(alice, StateRinging))
	r.waitMembers(t, PairRoom("alice", "bob"), 1)

	if err := bob.callee.Accept(); err != nil {
		t.Fatalf("accept: %v", err)
	}
	eventually(t, "alice in call", callerState(alice, StateInCall))
	eventually(t, "bob in call", calleeState(bob, StateInCall))
	eventually(t, "bob's link connected", func() bool { return bob.callee.Status().Link == voice.LinkConnected })

	bl, al := bob.factory.last(), alice.factory.last()
	eventually(t, "alice's candidate at bob", func() bool {
		bl.mu.Lock()
		defer bl.mu.Unlock()
		return len(bl.candidates) == 1 && bl.candidates[0] == "cand-from-alice"
	})
	bl.mu.Lock()
	if len(bl.answered) != 1 || bl.answered[0] != "offer-from-alice" {
		t.Fatalf("bob link answered=%v", bl.answered)
	}
	bl.mu.Unlock()
	al.mu.Lock()
	if al.offers != 1 || len(al.setAnswers) != 1 || al.setAnswers[0] != "answer-from-bob" {
		t.Fatalf("alice link offers=%d setAnswers=%v", al.offers, al.setAnswers)
	}
	al.mu.Unlock()

	alice.caller.Hangup()
	if err := alice.result(t); err != nil {
		t.Fatalf("caller err=%v", err)
	}
	eventually(t, "bob sees the end", calleeState(bob, StateEnded))
	if !bl.isClosed() || !al.isClosed() {
		t.Fatalf("links left open")
	}
}

func TestCalleeHangsUp(t *testing.T) {
	r := startRelay(t)
	bob := listen(t, r, "bob", time.Minute)
	alice := dial(t, r, "alice", "bob", time.Minute)

	eventually(t, "bob ringing", calleeState(bob, StateIncoming))
	if err := bob.callee.Accept(); err != nil {
		t.Fatalf("accept: %v", err)
	}
	eventually(t, "alice in call", callerState(alice, StateInCall))

	if err := bob.callee.Hangup(); err != nil {
		t.Fatalf("hangup: %v", err)
	}
	if err := alice.result(t); err != nil {
		t.Fatalf("caller err=%v", err)
	}
	if s := alice.caller.Status(); s.State != StateEnded {
		t.Fatalf("alice state=%s", s.State)
	}
	if err := bob.callee.Hangup(); !errors.Is(err, ErrNotInCall) {
		t.Fatalf("second hangup err=%v", err)
	}
}

func TestCallDeclined(t *testing.T) {
	r := startRelay(t)
	bob := listen(t, r, "bob", time.Minute)
	alice := dial(t, r, "alice", "bob", time.Minute)

	eventually(t, "bob ringing", calleeState(bob, StateIncoming))
	if err := bob.callee.Decline(); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := alice.result(t); !errors.Is(err, ErrDeclined) {
		t.Fatalf("err=%v, want ErrDeclined", err)
	}
	if s := bob.callee.Status(); s.State != StateIdle {
		t.Fatalf("bob state=%s", s.State)
	}
	if bob.factory.last() != nil {
		t.Fatalf("declined call created a link")
	}
	if err := bob.callee.Accept(); !errors.Is(err, ErrNoInvite) {
		t.Fatalf("accept after decline err=%v", err)
	}
}

func TestBusyCalleeDeclinesSecondCaller(t *testing.T) {
	r := startRelay(t)
	bob := listen(t, r, "bob", time.Minute)
	alice := dial(t, r, "alice", "bob", time.Minute)
	eventually(t, "bob ringing", calleeState(bob, StateIncoming))

	carol := dial(t, r, "carol", "bob", time.Minute)
	if err := carol.result(t); !errors.Is(err, ErrDeclined) {
		t.Fatalf("carol err=%v, want ErrDeclined", err)
	}

	s := bob.callee.Status()
	if s.State != StateIncoming || s.Peer.UserID != "alice" {
		t.Fatalf("bob status=%+v; alice's invite must survive", s)
	}
	if alice.caller.Status().State != StateRinging {
		t.Fatalf("alice state=%s", alice.caller.Status().State)
	}
}

func TestCallerCancelClearsInvite(t *testing.T) {
	r := startRelay(t)
	bob := listen(t, r, "bob", time.Minute)
	alice := dial(t, r, "alice", "bob", time.Minute)
	eventually(t, "bob ringing", calleeState(bob, StateIncoming))

	alice.caller.Hangup()
	if err := alice.result(t); err != nil {
		t.Fatalf("cancel err=%v", err)
	}
	eventually(t, "invite cleared", calleeState(bob, StateIdle))
	if err := bob.callee.Accept(); !errors.Is(err, ErrNoInvite) {
		t.Fatalf("accept err=%v", err)
	}
}

func TestCallerRingTimeout(t *testing.T) {
	r := startRelay(t)
	bob := listen(t, r, "bob", time.Minute)
	alice := dial(t, r, "alice", "bob", 200*time.Millisecond)

	if err := alice.result(t); !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("err=%v, want ErrNoAnswer", err)
	}
	if s := alice.caller.Status(); s.State != StateNoAnswer {
		t.Fatalf("alice state=%s", s.State)
	}
	eventually(t, "bob's invite cleared", calleeState(bob, StateIdle))
}

func TestInviteExpires(t *testing.T) {
	r := startRelay(t)
	listen(t, r, "bob", 200*time.Millisecond)
	alice := dial(t, r, "alice", "bob", time.Minute)

	if err := alice.result(t); !errors.Is(err, ErrDeclined) {
		t.Fatalf("err=%v, want ErrDeclined after the invite expired", err)
	}
}

func TestCalleeMuteCarriesIntoCall(t *testing.T) {
	r := startRelay(t)
	bob := listen(t, r, "bob", time.Minute)
	bob.callee.SetMuted(true)
	dial(t, r, "alice", "bob", time.Minute)

	eventually(t, "bob ringing", calleeState(bob, StateIncoming))
	if err := bob.callee.Accept(); err != nil {
		t.Fatalf("accept: %v", err)
	}
	bl := bob.factory.last()
	bl.mu.Lock()
	muted := bl.muted
	bl.mu.Unlock()
	if !muted || !bob.callee.Status().Muted {
		t.Fatalf("mute not applied to the new link")
	}
	if bob.callee.ToggleMute() {
		t.Fatalf("toggle should unmute")
	}
}
