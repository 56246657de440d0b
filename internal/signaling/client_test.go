package signaling

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/huddle/internal/relay"
	"github.com/BioHazard786/huddle/internal/server"
)

func startRelay(t *testing.T) string {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := relay.NewHub(relay.Options{Logger: log})
	go hub.Run()
	srv := httptest.NewServer(server.NewRouter(hub, server.Options{Logger: log}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

type conn struct {
	*Client
	events <-chan Event
}

func connect(t *testing.T, url string) *conn {
	t.Helper()
	c := NewClient(url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(c.Close)
	h := NewHandler(c.Incoming())
	go h.Start()
	return &conn{Client: c, events: h.Events()}
}

func nextEvent[T Event](t *testing.T, c *conn) T {
	t.Helper()
	select {
	case ev, ok := <-c.events:
		if !ok {
			t.Fatalf("event stream closed")
		}
		got, ok := ev.(T)
		if !ok {
			t.Fatalf("got %#v, want %T", ev, got)
		}
		return got
	case <-time.After(2 * time.Second):
		var zero T
		t.Fatalf("timed out waiting for %T", zero)
		return zero
	}
}

func TestClientRoundTrip(t *testing.T) {
	url := startRelay(t)
	a := connect(t, url)
	b := connect(t, url)

	if err := a.JoinRoom("room", "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if rp := nextEvent[RoomPeers](t, a); len(rp.Peers) != 0 {
		t.Fatalf("roster=%+v", rp.Peers)
	}

	b.JoinRoom("room", "bob")
	joined := nextEvent[UserJoined](t, a)
	rp := nextEvent[RoomPeers](t, b)
	if len(rp.Peers) != 1 || rp.Peers[0].UserID != "alice" {
		t.Fatalf("b roster=%+v", rp.Peers)
	}

	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}
	b.SendOffer(rp.Peers[0].SocketID, desc, false)
	offer := nextEvent[Offer](t, a)
	if offer.From != joined.Peer.SocketID || offer.Description.SDP != desc.SDP {
		t.Fatalf("offer=%+v", offer)
	}

	a.SendCandidate(offer.From, webrtc.ICECandidateInit{Candidate: "candidate:1"}, false)
	if c := nextEvent[Candidate](t, b); c.Candidate.Candidate != "candidate:1" {
		t.Fatalf("candidate=%+v", c)
	}

	a.CallEnd(offer.From)
	if e := nextEvent[CallEnded](t, b); e.From != rp.Peers[0].SocketID {
		t.Fatalf("call-end from=%q", e.From)
	}
}

func TestClientCloseFlushesQueuedMessages(t *testing.T) {
	url := startRelay(t)
	a := connect(t, url)
	b := connect(t, url)

	a.JoinRoom("room", "alice")
	nextEvent[RoomPeers](t, a)
	b.JoinRoom("room", "bob")
	nextEvent[UserJoined](t, a)
	rp := nextEvent[RoomPeers](t, b)

	// Queued right before Close; it must still reach the relay.
	b.CallDecline(rp.Peers[0].SocketID)
	b.Close()

	nextEvent[CallDeclined](t, a)
	if left := nextEvent[UserLeft](t, a); left.Peer.UserID != "bob" {
		t.Fatalf("user-left=%+v", left)
	}

	if err := b.Send(MessageTypeLeaveRoom, struct{}{}); err != ErrClosed {
		t.Fatalf("send after close: %v", err)
	}
}

func TestClientEventsCloseWhenRelayGoes(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := relay.NewHub(relay.Options{Logger: log})
	go hub.Run()
	srv := httptest.NewServer(server.NewRouter(hub, server.Options{Logger: log}))
	defer srv.Close()

	a := connect(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	a.JoinRoom("room", "")
	nextEvent[RoomPeers](t, a)

	hub.Close()
	select {
	case _, ok := <-a.events:
		if ok {
			t.Fatalf("unexpected event after relay shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event stream not closed")
	}
}

func TestClientSendFailsAfterConnectionDrops(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := relay.NewHub(relay.Options{Logger: log})
	go hub.Run()
	srv := httptest.NewServer(server.NewRouter(hub, server.Options{Logger: log}))
	defer srv.Close()

	a := connect(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	a.JoinRoom("room", "")
	nextEvent[RoomPeers](t, a)

	hub.Close()
	for range a.events {
	}

	// More sends than the outgoing queue holds must not block once the
	// writer is gone.
	done := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i < 200; i++ {
			err = a.LeaveRoom()
		}
		done <- err
	}()
	select {
	case err := <-done:
		if err != ErrClosed {
			t.Fatalf("send after drop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("send blocked after the connection dropped")
	}
}

func TestFetchRooms(t *testing.T) {
	url := startRelay(t)
	a := connect(t, url)
	a.JoinRoom("lobby", "alice")
	nextEvent[RoomPeers](t, a)

	httpURL := "http" + strings.TrimSuffix(strings.TrimPrefix(url, "ws"), "/ws") + "/rooms"
	rooms, err := FetchRooms(context.Background(), httpURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rooms) != 1 || rooms[0].RoomID != "lobby" || len(rooms[0].Members) != 1 || rooms[0].Members[0].UserID != "alice" {
		t.Fatalf("rooms=%+v", rooms)
	}

	if _, err := FetchRooms(context.Background(), strings.TrimSuffix(httpURL, "/rooms")+"/nope"); err == nil {
		t.Fatalf("expected an error for a missing route")
	}
}
