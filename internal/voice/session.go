package voice

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/huddle/internal/signaling"
)

// Capture is the local audio source as the session sees it.
type Capture interface {
	Muter
	Close() error
}

// SessionConfig wires a group session to its collaborators.
type SessionConfig struct {
	RoomID string
	UserID string

	Signaler Signaler
	Events   <-chan signaling.Event
	Links    LinkFactory

	// Capture is optional; Leave closes it.
	Capture Capture

	Logger *slog.Logger
}

// Status is what the UI renders.
type Status struct {
	RoomID string
	UserID string
	Muted  bool
	Peers  []PeerStatus
	Err    error
}

// Session is a full-mesh group voice session. The connection that joins
// later always offers to the members already present, so each pair is
// negotiated exactly once.
type Session struct {
	cfg   SessionConfig
	peers *PeerSet
	log   *slog.Logger

	outMu    sync.Mutex
	outboxes map[string]*Outbox

	muted     atomic.Bool
	left      chan struct{}
	leaveOnce sync.Once

	errMu   sync.Mutex
	lastErr error
}

// NewSession prepares a group session; Run joins the room.
func NewSession(cfg SessionConfig) *Session {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		cfg:      cfg,
		peers:    NewPeerSet(),
		outboxes: make(map[string]*Outbox),
		log:      log.With("room", cfg.RoomID),
		left:     make(chan struct{}),
	}
}

// Run joins the room and handles relay events until ctx is done, Leave is
// called or the relay connection drops.
func (s *Session) Run(ctx context.Context) error {
	defer s.peers.CloseAll()

	if err := s.cfg.Signaler.JoinRoom(s.cfg.RoomID, s.cfg.UserID); err != nil {
		return NewError("join room", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.Leave()
			return nil
		case <-s.left:
			return nil
		case ev, ok := <-s.cfg.Events:
			if !ok {
				s.setErr(ErrRelayDisconnected)
				return ErrRelayDisconnected
			}
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev signaling.Event) {
	switch ev := ev.(type) {
	case signaling.RoomPeers:
		s.log.Info("joined room", "peers", len(ev.Peers))
		for _, p := range ev.Peers {
			s.offerTo(Remote{SocketID: p.SocketID, UserID: p.UserID})
		}

	case signaling.UserJoined:
		// The newcomer sends the offer; just remember who it is.
		s.peers.Track(Remote{SocketID: ev.Peer.SocketID, UserID: ev.Peer.UserID})
		s.log.Info("peer joined", "peer", ev.Peer.SocketID, "user", ev.Peer.UserID)

	case signaling.UserLeft:
		s.dropOutbox(ev.Peer.SocketID)
		if s.peers.Remove(ev.Peer.SocketID) {
			s.log.Info("peer left", "peer", ev.Peer.SocketID, "user", ev.Peer.UserID)
		}

	case signaling.Offer:
		if ev.Direct {
			return
		}
		s.answer(ev)

	case signaling.Answer:
		if ev.Direct {
			return
		}
		link, ok := s.peers.Get(ev.From)
		if !ok {
			s.log.Debug("answer from unknown peer", "peer", ev.From)
			return
		}
		if err := link.SetAnswer(ev.Description); err != nil {
			s.fail(NewPeerError("apply answer", s.name(ev.From), err))
		}

	case signaling.Candidate:
		if ev.Direct {
			return
		}
		link, ok := s.peers.Get(ev.From)
		if !ok {
			s.log.Debug("candidate from unknown peer", "peer", ev.From)
			return
		}
		if err := link.AddCandidate(ev.Candidate); err != nil {
			s.log.Debug("add candidate", "peer", ev.From, "err", err)
		}

	case signaling.ServerError:
		s.log.Warn("relay error", "message", ev.Message)
	}
}

func (s *Session) offerTo(remote Remote) {
	link, created, err := s.peers.Ensure(remote, s.newLink)
	if err != nil {
		s.fail(NewPeerError("create link", remote.Name(), err))
		return
	}
	if !created {
		return
	}

	offer, err := link.Offer()
	if err != nil {
		s.fail(NewPeerError("create offer", remote.Name(), err))
		return
	}
	if err := s.cfg.Signaler.SendOffer(remote.SocketID, offer, false); err != nil {
		s.fail(NewPeerError("send offer", remote.Name(), err))
		return
	}
	s.openOutbox(remote.SocketID)
}

func (s *Session) answer(ev signaling.Offer) {
	remote, _ := s.peers.Remote(ev.From)
	link, _, err := s.peers.Ensure(remote, s.newLink)
	if err != nil {
		s.fail(NewPeerError("create link", remote.Name(), err))
		return
	}

	answer, err := link.Answer(ev.Description)
	if err != nil {
		s.fail(NewPeerError("create answer", remote.Name(), err))
		return
	}
	if err := s.cfg.Signaler.SendAnswer(ev.From, answer, false); err != nil {
		s.fail(NewPeerError("send answer", remote.Name(), err))
		return
	}
	s.openOutbox(ev.From)
}

func (s *Session) newLink(remote Remote) (Link, error) {
	id := remote.SocketID
	out := NewOutbox(func(c webrtc.ICECandidateInit) {
		if err := s.cfg.Signaler.SendCandidate(id, c, false); err != nil {
			s.log.Debug("send candidate", "peer", id, "err", err)
		}
	})
	s.outMu.Lock()
	s.outboxes[id] = out
	s.outMu.Unlock()

	link, err := s.cfg.Links.NewLink(remote, LinkEvents{
		OnCandidate: out.Push,
		OnState: func(state LinkState) {
			s.peers.SetState(id, state)
			s.log.Info("link state", "peer", id, "state", state)
			if state == LinkFailed {
				s.setErr(NewPeerError("connect", remote.Name(), ErrNegotiationFailed))
			}
		},
		OnRemoteMute: func(muted bool) {
			s.peers.SetRemoteMuted(id, muted)
		},
	})
	if err != nil {
		return nil, err
	}
	if s.muted.Load() {
		link.SetMuted(true)
	}
	return link, nil
}

func (s *Session) openOutbox(socketID string) {
	s.outMu.Lock()
	out := s.outboxes[socketID]
	s.outMu.Unlock()
	if out != nil {
		out.Open()
	}
}

func (s *Session) dropOutbox(socketID string) {
	s.outMu.Lock()
	delete(s.outboxes, socketID)
	s.outMu.Unlock()
}

// SetMuted mutes or unmutes outbound audio without renegotiating.
func (s *Session) SetMuted(muted bool) {
	s.muted.Store(muted)
	if s.cfg.Capture != nil {
		s.cfg.Capture.SetMuted(muted)
	}
	s.peers.Each(func(_ Remote, l Link) { l.SetMuted(muted) })
}

// ToggleMute flips the mute state and returns the new value.
func (s *Session) ToggleMute() bool {
	muted := !s.muted.Load()
	s.SetMuted(muted)
	return muted
}

// Leave tells the relay, tears down every link and releases the capture
// source. It is safe to call more than once.
func (s *Session) Leave() {
	s.leaveOnce.Do(func() {
		if err := s.cfg.Signaler.LeaveRoom(); err != nil {
			s.log.Debug("leave room", "err", err)
		}
		close(s.left)
		s.peers.CloseAll()
		if s.cfg.Capture != nil {
			s.cfg.Capture.Close()
		}
	})
}

// Status snapshots the session for display.
func (s *Session) Status() Status {
	s.errMu.Lock()
	err := s.lastErr
	s.errMu.Unlock()
	return Status{
		RoomID: s.cfg.RoomID,
		UserID: s.cfg.UserID,
		Muted:  s.muted.Load(),
		Peers:  s.peers.Snapshot(),
		Err:    err,
	}
}

// Peers exposes the link table.
func (s *Session) Peers() *PeerSet { return s.peers }

func (s *Session) name(socketID string) string {
	r, _ := s.peers.Remote(socketID)
	return r.Name()
}

func (s *Session) fail(err error) {
	s.log.Error("voice session", "err", err)
	s.setErr(err)
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}
