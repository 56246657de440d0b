package call

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/signaling"
	"github.com/BioHazard786/huddle/internal/voice"
)

// CallerConfig wires an outgoing call.
type CallerConfig struct {
	UserID string
	Callee string

	Signaler Signaler
	Events   <-chan signaling.Event
	Links    voice.LinkFactory
	Capture  voice.Muter

	// RingTimeout bounds how long the callee may ring. Zero means
	// config.DefaultRingTimeout.
	RingTimeout time.Duration

	Logger *slog.Logger
}

// Caller places one direct call.
type Caller struct {
	cfg CallerConfig
	log *slog.Logger
	st  tracker

	mu    sync.Mutex
	leg   *leg
	muted atomic.Bool

	hangup     chan struct{}
	hangupOnce sync.Once
}

// NewCaller prepares an outgoing call; Run dials.
func NewCaller(cfg CallerConfig) *Caller {
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = config.DefaultRingTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Caller{
		cfg:    cfg,
		log:    log.With("component", "caller", "callee", cfg.Callee),
		hangup: make(chan struct{}),
	}
	c.st.setState(StateIdle)
	return c
}

// Run dials the callee and blocks until the call is over. It returns nil
// after a normal hang-up from either side.
func (c *Caller) Run(ctx context.Context) error {
	defer c.teardown()

	c.st.setState(StateDialing)

	// The callee's listener is the only member of its presence room
	// that joined under the callee's id.
	if err := c.cfg.Signaler.JoinRoom(c.cfg.Callee, c.cfg.UserID); err != nil {
		return c.fail(voice.NewError("join presence room", err))
	}
	var callee voice.Remote
	for callee.SocketID == "" {
		select {
		case <-ctx.Done():
			c.st.setState(StateEnded)
			return nil
		case <-c.hangup:
			c.st.setState(StateEnded)
			return nil
		case ev, ok := <-c.cfg.Events:
			if !ok {
				return c.fail(voice.ErrRelayDisconnected)
			}
			roster, isRoster := ev.(signaling.RoomPeers)
			if !isRoster {
				continue
			}
			for _, p := range roster.Peers {
				if p.UserID == c.cfg.Callee {
					callee = voice.Remote{SocketID: p.SocketID, UserID: p.UserID}
					break
				}
			}
			if callee.SocketID == "" {
				return c.fail(voice.NewPeerError("call", c.cfg.Callee, ErrUserUnavailable))
			}
		}
	}

	if err := c.cfg.Signaler.JoinRoom(PairRoom(c.cfg.UserID, c.cfg.Callee), c.cfg.UserID); err != nil {
		return c.fail(voice.NewError("join call room", err))
	}

	l, err := newLeg(c.cfg.Links, c.cfg.Signaler, callee, &c.st, c.log)
	if err != nil {
		return c.fail(err)
	}
	c.mu.Lock()
	c.leg = l
	c.mu.Unlock()
	if c.muted.Load() {
		l.link.SetMuted(true)
	}

	offer, err := l.link.Offer()
	if err != nil {
		return c.fail(voice.NewPeerError("create offer", callee.Name(), err))
	}
	if err := c.cfg.Signaler.SendOffer(callee.SocketID, offer, true); err != nil {
		return c.fail(voice.NewPeerError("send offer", callee.Name(), err))
	}
	l.out.Open()

	c.st.setState(StateRinging)
	c.log.Info("ringing")
	ring := time.NewTimer(c.cfg.RingTimeout)
	defer ring.Stop()
	ringing := ring.C

	for {
		select {
		case <-ctx.Done():
			c.end(callee)
			return nil

		case <-c.hangup:
			c.end(callee)
			return nil

		case <-ringing:
			c.cfg.Signaler.CallEnd(callee.SocketID)
			c.st.setState(StateNoAnswer)
			return ErrNoAnswer

		case ev, ok := <-c.cfg.Events:
			if !ok {
				return c.fail(voice.ErrRelayDisconnected)
			}
			done, err := c.handle(ev, callee, l)
			if done {
				return err
			}
			if ringing != nil && c.st.get().State == StateInCall {
				ring.Stop()
				ringing = nil
			}
		}
	}
}

func (c *Caller) handle(ev signaling.Event, callee voice.Remote, l *leg) (bool, error) {
	switch ev := ev.(type) {
	case signaling.Answer:
		if !ev.Direct || ev.From != callee.SocketID {
			return false, nil
		}
		if err := l.link.SetAnswer(ev.Description); err != nil {
			c.cfg.Signaler.CallEnd(callee.SocketID)
			return true, c.fail(voice.NewPeerError("apply answer", callee.Name(), err))
		}
		c.st.setState(StateInCall)
		c.log.Info("call answered")

	case signaling.Candidate:
		if !ev.Direct || ev.From != callee.SocketID {
			return false, nil
		}
		if err := l.link.AddCandidate(ev.Candidate); err != nil {
			c.log.Debug("add candidate", "err", err)
		}

	case signaling.CallAccepted:
		if ev.From == callee.SocketID {
			c.log.Debug("call accepted")
		}

	case signaling.CallDeclined:
		if ev.From != callee.SocketID {
			return false, nil
		}
		c.st.setState(StateDeclined)
		return true, ErrDeclined

	case signaling.CallEnded:
		if ev.From != callee.SocketID {
			return false, nil
		}
		c.st.setState(StateEnded)
		return true, nil

	case signaling.RecipientUnavailable:
		if ev.To != callee.SocketID {
			return false, nil
		}
		return true, c.fail(voice.NewPeerError("call", callee.Name(), ErrUserUnavailable))

	case signaling.ServerError:
		c.log.Warn("relay error", "message", ev.Message)
	}
	return false, nil
}

func (c *Caller) end(callee voice.Remote) {
	if err := c.cfg.Signaler.CallEnd(callee.SocketID); err != nil {
		c.log.Debug("send call-end", "err", err)
	}
	c.st.setState(StateEnded)
}

func (c *Caller) fail(err error) error {
	c.log.Error("call failed", "err", err)
	c.st.update(func(s *Status) {
		s.State = StateFailed
		s.Err = err
	})
	return err
}

func (c *Caller) teardown() {
	c.mu.Lock()
	l := c.leg
	c.leg = nil
	c.mu.Unlock()
	l.close()
	if err := c.cfg.Signaler.LeaveRoom(); err != nil {
		c.log.Debug("leave room", "err", err)
	}
}

// Hangup cancels a ringing call or ends an active one.
func (c *Caller) Hangup() {
	c.hangupOnce.Do(func() { close(c.hangup) })
}

// SetMuted mutes outbound audio for the call.
func (c *Caller) SetMuted(muted bool) {
	c.muted.Store(muted)
	if c.cfg.Capture != nil {
		c.cfg.Capture.SetMuted(muted)
	}
	c.mu.Lock()
	l := c.leg
	c.mu.Unlock()
	if l != nil {
		l.link.SetMuted(muted)
	}
	c.st.update(func(s *Status) { s.Muted = muted })
}

// ToggleMute flips the mute state and returns the new one.
func (c *Caller) ToggleMute() bool {
	muted := !c.muted.Load()
	c.SetMuted(muted)
	return muted
}

// Status returns a snapshot of the call.
func (c *Caller) Status() Status {
	return c.st.get()
}
