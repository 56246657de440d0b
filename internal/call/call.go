package call

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/huddle/internal/voice"
)

var (
	ErrUserUnavailable = errors.New("user is not available")
	ErrDeclined        = errors.New("call declined")
	ErrNoAnswer        = errors.New("no answer")
	ErrNoInvite        = errors.New("no incoming call")
	ErrNotInCall       = errors.New("not in a call")
)

// State is where a direct call stands, from either side.
type State int

const (
	StateIdle State = iota
	StateDialing
	StateRinging
	StateIncoming
	StateInCall
	StateDeclined
	StateNoAnswer
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDialing:
		return "dialing"
	case StateRinging:
		return "ringing"
	case StateIncoming:
		return "incoming"
	case StateInCall:
		return "in call"
	case StateDeclined:
		return "declined"
	case StateNoAnswer:
		return "no answer"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// PairRoom is the room both parties of a direct call use. Either side
// derives the same key.
func PairRoom(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return "dm:" + ids[0] + ":" + ids[1]
}

// Signaler is the relay client as seen by a direct call.
type Signaler interface {
	voice.Signaler
	CallAccept(to string) error
	CallDecline(to string) error
	CallEnd(to string) error
}

// Status is what the call view renders.
type Status struct {
	State       State
	Peer        voice.Remote
	Link        voice.LinkState
	Muted       bool
	RemoteMuted bool
	Err         error
}

type tracker struct {
	mu sync.Mutex
	s  Status
}

func (t *tracker) update(fn func(*Status)) {
	t.mu.Lock()
	fn(&t.s)
	t.mu.Unlock()
}

func (t *tracker) setState(s State) {
	t.update(func(st *Status) { st.State = s })
}

func (t *tracker) get() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

// leg is the single media link of a direct call.
type leg struct {
	remote voice.Remote
	link   voice.Link
	out    *voice.Outbox
}

func newLeg(links voice.LinkFactory, sig Signaler, remote voice.Remote, st *tracker, log *slog.Logger) (*leg, error) {
	out := voice.NewOutbox(func(c webrtc.ICECandidateInit) {
		if err := sig.SendCandidate(remote.SocketID, c, true); err != nil {
			log.Debug("send candidate", "err", err)
		}
	})

	link, err := links.NewLink(remote, voice.LinkEvents{
		OnCandidate: out.Push,
		OnState: func(s voice.LinkState) {
			log.Info("link state", "state", s)
			st.update(func(status *Status) {
				if status.Peer.SocketID != remote.SocketID {
					return
				}
				status.Link = s
				if s == voice.LinkFailed {
					status.Err = voice.NewPeerError("connect", remote.Name(), voice.ErrNegotiationFailed)
				}
			})
		},
		OnRemoteMute: func(muted bool) {
			st.update(func(status *Status) {
				if status.Peer.SocketID == remote.SocketID {
					status.RemoteMuted = muted
				}
			})
		},
	})
	if err != nil {
		return nil, voice.NewPeerError("create link", remote.Name(), err)
	}

	st.update(func(status *Status) {
		status.Peer = remote
		status.Link = voice.LinkNew
		status.RemoteMuted = false
		status.Err = nil
	})
	return &leg{remote: remote, link: link, out: out}, nil
}

func (l *leg) close() {
	if l != nil {
		l.link.Close()
	}
}
