package peer

import (
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/voice"
)

type probe struct {
	candidates chan webrtc.ICECandidateInit
	states     chan voice.LinkState
	mutes      chan bool
}

func newProbe() *probe {
	return &probe{
		candidates: make(chan webrtc.ICECandidateInit, 64),
		states:     make(chan voice.LinkState, 64),
		mutes:      make(chan bool, 16),
	}
}

func (p *probe) events() voice.LinkEvents {
	return voice.LinkEvents{
		OnCandidate:  func(c webrtc.ICECandidateInit) { p.candidates <- c },
		OnState:      func(s voice.LinkState) { p.states <- s },
		OnRemoteMute: func(m bool) { p.mutes <- m },
	}
}

func (p *probe) waitState(t *testing.T, want voice.LinkState) {
	t.Helper()
	timeout := time.After(15 * time.Second)
	for {
		select {
		case s := <-p.states:
			if s == want {
				return
			}
		case <-timeout:
			t.Fatalf("link never reached %s", want)
		}
	}
}

func (p *probe) waitMute(t *testing.T, want bool) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case m := <-p.mutes:
			if m == want {
				return
			}
		case <-timeout:
			t.Fatalf("remote mute=%v never announced", want)
		}
	}
}

func newTestFactory(t *testing.T, opts Options) *Factory {
	t.Helper()
	f, err := NewFactory(opts)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	return f
}

func newTestLink(t *testing.T, f *Factory, remote string, p *probe) *Link {
	t.Helper()
	l, err := f.NewLink(voice.Remote{SocketID: remote}, p.events())
	if err != nil {
		t.Fatalf("new link: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l.(*Link)
}

// pipe forwards trickled candidates from one probe into a link.
func pipe(from *probe, to *Link, stop <-chan struct{}) {
	for {
		select {
		case c := <-from.candidates:
			to.AddCandidate(c)
		case <-stop:
			return
		}
	}
}

func TestOfferCarriesAudioAndControl(t *testing.T) {
	src, err := media.Open("")
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	defer src.Close()

	sending := newTestLink(t, newTestFactory(t, Options{Source: src}), "b", newProbe())
	offer, err := sending.Offer()
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		t.Fatalf("type=%s", offer.Type)
	}
	for _, want := range []string{"m=audio", "opus", "a=sendrecv", "m=application"} {
		if !strings.Contains(offer.SDP, want) {
			t.Fatalf("offer missing %q:\n%s", want, offer.SDP)
		}
	}

	listening := newTestLink(t, newTestFactory(t, Options{}), "c", newProbe())
	offer, err = listening.Offer()
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if !strings.Contains(offer.SDP, "a=recvonly") {
		t.Fatalf("receive-only link should offer recvonly:\n%s", offer.SDP)
	}
}

func TestLinksConnectAndAnnounceMute(t *testing.T) {
	src, err := media.Open("")
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	defer src.Close()

	pa, pb := newProbe(), newProbe()
	a := newTestLink(t, newTestFactory(t, Options{Source: src}), "b", pa)
	b := newTestLink(t, newTestFactory(t, Options{Source: src}), "a", pb)

	// Candidates reach b before the offer does and must be buffered.
	stop := make(chan struct{})
	defer close(stop)
	go pipe(pa, b, stop)
	go pipe(pb, a, stop)

	offer, err := a.Offer()
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	answer, err := b.Answer(offer)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := a.SetAnswer(answer); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	pa.waitState(t, voice.LinkConnected)
	pb.waitState(t, voice.LinkConnected)

	b.SetMuted(true)
	pa.waitMute(t, true)
	b.SetMuted(false)
	pa.waitMute(t, false)
}

func TestAddCandidateAfterClose(t *testing.T) {
	l := newTestLink(t, newTestFactory(t, Options{}), "x", newProbe())
	if err := l.AddCandidate(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 9 typ host"}); err != nil {
		t.Fatalf("buffered candidate: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := l.AddCandidate(webrtc.ICECandidateInit{}); err != ErrLinkClosed {
		t.Fatalf("err=%v, want ErrLinkClosed", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestConfiguration(t *testing.T) {
	if got := Configuration(nil, false); len(got.ICEServers) != 0 {
		t.Fatalf("nil config servers=%v", got.ICEServers)
	}

	cfg := &config.Config{
		STUNServer: config.DefaultSTUN,
		TURNServer: "turn.example.com",
		TURNUser:   "u",
		TURNPass:   "p",
	}
	got := Configuration(cfg, true)
	if len(got.ICEServers) != 2 {
		t.Fatalf("servers=%+v", got.ICEServers)
	}
	if got.ICEServers[0].URLs[0] != config.DefaultSTUN {
		t.Fatalf("stun=%v", got.ICEServers[0].URLs)
	}
	turn := got.ICEServers[1]
	if len(turn.URLs) != 3 || turn.Username != "u" || turn.Credential != "p" {
		t.Fatalf("turn=%+v", turn)
	}
	if got.ICETransportPolicy != webrtc.ICETransportPolicyRelay {
		t.Fatalf("policy=%s", got.ICETransportPolicy)
	}

	// Relay-only needs a TURN server to relay through.
	cfg.TURNServer = ""
	if got := Configuration(cfg, true); got.ICETransportPolicy != webrtc.ICETransportPolicyAll {
		t.Fatalf("policy without turn=%s", got.ICETransportPolicy)
	}
}

func TestControlMessageRoundTrip(t *testing.T) {
	data, err := Encode(MessageTypeMute, MutePayload{Muted: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var p MutePayload
	if err := msg.DecodePayload(&p); err != nil || msg.Type != MessageTypeMute || !p.Muted {
		t.Fatalf("msg=%+v payload=%+v err=%v", msg, p, err)
	}
}
