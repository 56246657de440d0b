package voice

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Outbox holds local ICE candidates until the description they belong to
// has been handed to the relay. The relay keeps per-sender order, so the
// remote side never sees a candidate before the offer or answer.
type Outbox struct {
	mu      sync.Mutex
	ready   bool
	pending []webrtc.ICECandidateInit
	send    func(webrtc.ICECandidateInit)
}

// NewOutbox returns an outbox that queues candidates for send until Open.
func NewOutbox(send func(webrtc.ICECandidateInit)) *Outbox {
	return &Outbox{send: send}
}

// Push sends c now, or queues it until Open.
func (o *Outbox) Push(c webrtc.ICECandidateInit) {
	o.mu.Lock()
	if !o.ready {
		o.pending = append(o.pending, c)
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	o.send(c)
}

// Open flushes queued candidates and lets later ones through.
func (o *Outbox) Open() {
	o.mu.Lock()
	if o.ready {
		o.mu.Unlock()
		return
	}
	o.ready = true
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()

	for _, c := range pending {
		o.send(c)
	}
}
