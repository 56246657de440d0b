package call

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/signaling"
	"github.com/BioHazard786/huddle/internal/voice"
)

// CalleeConfig wires a listener for incoming calls.
type CalleeConfig struct {
	UserID string

	Signaler Signaler
	Events   <-chan signaling.Event
	Links    voice.LinkFactory
	Capture  voice.Muter

	// RingTimeout is how long an unanswered invite stays pending. Zero
	// means config.DefaultRingTimeout.
	RingTimeout time.Duration

	Logger *slog.Logger
}

// Invite is a pending incoming call.
type Invite struct {
	From   voice.Remote
	Offer  webrtc.SessionDescription
	Expiry time.Time

	candidates []webrtc.ICECandidateInit
}

// Callee sits in its own presence room and answers direct calls. It
// tracks one invite or call at a time and declines anyone else.
type Callee struct {
	cfg CalleeConfig
	log *slog.Logger
	st  tracker

	// Owned by the Run goroutine.
	invite   *Invite
	leg      *leg
	callerID map[string]string
	ring     *time.Timer

	invites chan Invite
	cmds    chan func()
	done    chan struct{}
	muted   atomic.Bool
}

// NewCallee prepares a listener; Run registers presence and waits for calls.
func NewCallee(cfg CalleeConfig) *Callee {
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = config.DefaultRingTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Callee{
		cfg:      cfg,
		log:      log.With("component", "callee", "user", cfg.UserID),
		callerID: make(map[string]string),
		invites:  make(chan Invite, 8),
		cmds:     make(chan func()),
		done:     make(chan struct{}),
	}
	c.st.setState(StateIdle)
	return c
}

// Invites reports each new pending invite. Sends never block; a slow
// reader can rely on Status instead.
func (c *Callee) Invites() <-chan Invite {
	return c.invites
}

// Run joins the presence room and serves calls until ctx is done or the
// relay goes away.
func (c *Callee) Run(ctx context.Context) error {
	defer close(c.done)

	if err := c.cfg.Signaler.JoinRoom(c.cfg.UserID, c.cfg.UserID); err != nil {
		return voice.NewError("join presence room", err)
	}
	c.log.Info("listening for calls")

	for {
		var expired <-chan time.Time
		if c.ring != nil {
			expired = c.ring.C
		}

		select {
		case <-ctx.Done():
			c.shutdown()
			return nil

		case fn := <-c.cmds:
			fn()

		case <-expired:
			c.ring = nil
			if c.invite != nil {
				c.log.Info("invite expired", "from", c.invite.From.Name())
				c.cfg.Signaler.CallDecline(c.invite.From.SocketID)
				c.invite = nil
				c.st.setState(StateIdle)
			}

		case ev, ok := <-c.cfg.Events:
			if !ok {
				c.closeLeg()
				c.st.update(func(s *Status) {
					s.State = StateFailed
					s.Err = voice.ErrRelayDisconnected
				})
				return voice.ErrRelayDisconnected
			}
			c.handle(ev)
		}
	}
}

func (c *Callee) busyWith() string {
	switch {
	case c.invite != nil:
		return c.invite.From.SocketID
	case c.leg != nil:
		return c.leg.remote.SocketID
	}
	return ""
}

func (c *Callee) handle(ev signaling.Event) {
	switch ev := ev.(type) {
	case signaling.IncomingCall:
		c.callerID[ev.From] = ev.FromUserID

	case signaling.Offer:
		if !ev.Direct {
			return
		}
		userID := c.callerID[ev.From]
		delete(c.callerID, ev.From)

		if busy := c.busyWith(); busy != "" {
			if busy != ev.From {
				c.log.Info("declining call while busy", "from", userID)
				c.cfg.Signaler.CallDecline(ev.From)
			}
			return
		}

		inv := Invite{
			From:   voice.Remote{SocketID: ev.From, UserID: userID},
			Offer:  ev.Description,
			Expiry: time.Now().Add(c.cfg.RingTimeout),
		}
		c.invite = &inv
		c.ring = time.NewTimer(c.cfg.RingTimeout)
		c.st.update(func(s *Status) {
			s.State = StateIncoming
			s.Peer = inv.From
			s.Link = voice.LinkNew
			s.Err = nil
		})
		c.log.Info("incoming call", "from", inv.From.Name())
		select {
		case c.invites <- inv:
		default:
		}

	case signaling.Candidate:
		if !ev.Direct {
			return
		}
		switch {
		case c.invite != nil && c.invite.From.SocketID == ev.From:
			c.invite.candidates = append(c.invite.candidates, ev.Candidate)
		case c.leg != nil && c.leg.remote.SocketID == ev.From:
			if err := c.leg.link.AddCandidate(ev.Candidate); err != nil {
				c.log.Debug("add candidate", "err", err)
			}
		}

	case signaling.CallEnded:
		switch {
		case c.invite != nil && c.invite.From.SocketID == ev.From:
			c.log.Info("caller hung up before answer", "from", c.invite.From.Name())
			c.clearInvite()
			c.st.setState(StateIdle)
		case c.leg != nil && c.leg.remote.SocketID == ev.From:
			c.log.Info("call ended by remote")
			c.closeLeg()
			c.st.setState(StateEnded)
		}

	case signaling.ServerError:
		c.log.Warn("relay error", "message", ev.Message)
	}
}

func (c *Callee) clearInvite() {
	c.invite = nil
	if c.ring != nil {
		c.ring.Stop()
		c.ring = nil
	}
}

func (c *Callee) closeLeg() {
	c.leg.close()
	c.leg = nil
}

func (c *Callee) accept() error {
	inv := c.invite
	if inv == nil {
		return ErrNoInvite
	}
	c.clearInvite()

	l, err := newLeg(c.cfg.Links, c.cfg.Signaler, inv.From, &c.st, c.log)
	if err != nil {
		c.cfg.Signaler.CallDecline(inv.From.SocketID)
		return c.fail(err)
	}
	if c.muted.Load() {
		l.link.SetMuted(true)
	}

	answer, err := l.link.Answer(inv.Offer)
	if err != nil {
		l.close()
		c.cfg.Signaler.CallDecline(inv.From.SocketID)
		return c.fail(voice.NewPeerError("create answer", inv.From.Name(), err))
	}
	for _, cand := range inv.candidates {
		if err := l.link.AddCandidate(cand); err != nil {
			c.log.Debug("add buffered candidate", "err", err)
		}
	}

	if err := c.cfg.Signaler.CallAccept(inv.From.SocketID); err != nil {
		l.close()
		return c.fail(voice.NewPeerError("accept", inv.From.Name(), err))
	}
	if err := c.cfg.Signaler.SendAnswer(inv.From.SocketID, answer, true); err != nil {
		l.close()
		return c.fail(voice.NewPeerError("send answer", inv.From.Name(), err))
	}
	l.out.Open()

	c.leg = l
	c.st.setState(StateInCall)
	c.log.Info("call accepted", "from", inv.From.Name())
	return nil
}

func (c *Callee) decline() error {
	if c.invite == nil {
		return ErrNoInvite
	}
	from := c.invite.From.SocketID
	c.clearInvite()
	c.st.setState(StateIdle)
	return c.cfg.Signaler.CallDecline(from)
}

func (c *Callee) hangup() error {
	if c.leg == nil {
		if c.invite != nil {
			return c.decline()
		}
		return ErrNotInCall
	}
	to := c.leg.remote.SocketID
	c.closeLeg()
	c.st.setState(StateEnded)
	return c.cfg.Signaler.CallEnd(to)
}

func (c *Callee) shutdown() {
	if c.invite != nil {
		c.cfg.Signaler.CallDecline(c.invite.From.SocketID)
		c.clearInvite()
	}
	if c.leg != nil {
		c.cfg.Signaler.CallEnd(c.leg.remote.SocketID)
		c.closeLeg()
	}
	if err := c.cfg.Signaler.LeaveRoom(); err != nil {
		c.log.Debug("leave room", "err", err)
	}
	c.st.setState(StateEnded)
}

func (c *Callee) fail(err error) error {
	c.log.Error("call failed", "err", err)
	c.st.update(func(s *Status) {
		s.State = StateFailed
		s.Err = err
	})
	return err
}

// do runs fn on the Run goroutine.
func (c *Callee) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.cmds <- func() { errc <- fn() }:
		return <-errc
	case <-c.done:
		return voice.ErrSessionClosed
	}
}

// Accept answers the pending invite.
func (c *Callee) Accept() error { return c.do(c.accept) }

// Decline rejects the pending invite.
func (c *Callee) Decline() error { return c.do(c.decline) }

// Hangup ends the active call, or declines a pending invite.
func (c *Callee) Hangup() error { return c.do(c.hangup) }

// SetMuted mutes outbound audio for the current and later calls.
func (c *Callee) SetMuted(muted bool) {
	c.muted.Store(muted)
	if c.cfg.Capture != nil {
		c.cfg.Capture.SetMuted(muted)
	}
	c.do(func() error {
		if c.leg != nil {
			c.leg.link.SetMuted(muted)
		}
		return nil
	})
	c.st.update(func(s *Status) { s.Muted = muted })
}

// ToggleMute flips the mute state and returns the new one.
func (c *Callee) ToggleMute() bool {
	muted := !c.muted.Load()
	c.SetMuted(muted)
	return muted
}

// Status returns a snapshot of the pending invite or call.
func (c *Callee) Status() Status {
	return c.st.get()
}
