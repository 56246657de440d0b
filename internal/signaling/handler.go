package signaling

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// Event is one decoded message from the relay.
type Event interface {
	event()
}

// RoomPeers is the roster handed to this connection after a join.
type RoomPeers struct{ Peers []Peer }

// UserJoined announces a new room member.
type UserJoined struct{ Peer Peer }

// UserLeft announces a departed room member.
type UserLeft struct{ Peer Peer }

type Offer struct {
	From        string
	Description webrtc.SessionDescription
	Direct      bool
}

type Answer struct {
	From        string
	Description webrtc.SessionDescription
	Direct      bool
}

type Candidate struct {
	From      string
	Candidate webrtc.ICECandidateInit
	Direct    bool
}

// IncomingCall precedes a direct offer.
type IncomingCall struct {
	From       string
	FromUserID string
}

type CallAccepted struct{ From string }
type CallDeclined struct{ From string }
type CallEnded struct{ From string }

// RecipientUnavailable is only sent by relays that report routing misses.
type RecipientUnavailable struct {
	To    string
	Event string
}

// ServerError is an error reported by the relay.
type ServerError struct{ Message string }

func (RoomPeers) event()            {}
func (UserJoined) event()           {}
func (UserLeft) event()             {}
func (Offer) event()                {}
func (Answer) event()               {}
func (Candidate) event()            {}
func (IncomingCall) event()         {}
func (CallAccepted) event()         {}
func (CallDeclined) event()         {}
func (CallEnded) event()            {}
func (RecipientUnavailable) event() {}
func (ServerError) event()          {}

// Handler turns the relay's message stream into typed events.
// Everything goes through one channel so events keep the relay's order.
type Handler struct {
	incoming <-chan *Message
	events   chan Event
	log      *slog.Logger
}

// NewHandler creates a new message handler reading from incoming,
// usually Client.Incoming().
func NewHandler(incoming <-chan *Message) *Handler {
	return &Handler{
		incoming: incoming,
		events:   make(chan Event, 64),
		log:      slog.Default().With("component", "signaling"),
	}
}

// Events returns the ordered event stream. It is closed once the
// connection to the relay is gone.
func (h *Handler) Events() <-chan Event {
	return h.events
}

// Start routes incoming messages until the incoming channel closes.
func (h *Handler) Start() {
	defer close(h.events)
	for msg := range h.incoming {
		ev, err := Decode(msg)
		if err != nil {
			h.log.Warn("dropping relay message", "type", msg.Type, "err", err)
			continue
		}
		if ev == nil {
			h.log.Debug("ignoring relay message", "type", msg.Type)
			continue
		}
		h.events <- ev
	}
}

// Decode converts one message. Unknown types decode to nil.
func Decode(msg *Message) (Event, error) {
	switch msg.Type {
	case MessageTypeRoomPeers:
		var peers []Peer
		if err := unmarshal(msg, &peers); err != nil {
			return nil, err
		}
		return RoomPeers{Peers: peers}, nil

	case MessageTypeUserJoined, MessageTypeUserLeft:
		var p Peer
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		if msg.Type == MessageTypeUserJoined {
			return UserJoined{Peer: p}, nil
		}
		return UserLeft{Peer: p}, nil

	case MessageTypeSignalOffer, MessageTypeSignalAnswer:
		var s SignalPayload
		if err := unmarshal(msg, &s); err != nil {
			return nil, err
		}
		if s.Description == nil {
			return nil, fmt.Errorf("%s without description", msg.Type)
		}
		if msg.Type == MessageTypeSignalOffer {
			return Offer{From: s.From, Description: *s.Description, Direct: s.Direct}, nil
		}
		return Answer{From: s.From, Description: *s.Description, Direct: s.Direct}, nil

	case MessageTypeSignalICECandidate:
		var s SignalPayload
		if err := unmarshal(msg, &s); err != nil {
			return nil, err
		}
		if s.Candidate == nil {
			return nil, fmt.Errorf("%s without candidate", msg.Type)
		}
		return Candidate{From: s.From, Candidate: *s.Candidate, Direct: s.Direct}, nil

	case MessageTypeIncomingCall:
		var p IncomingCallPayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		return IncomingCall{From: p.From, FromUserID: p.FromUserID}, nil

	case MessageTypeCallAccept, MessageTypeCallDecline, MessageTypeCallEnd:
		var p CallPayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		switch msg.Type {
		case MessageTypeCallAccept:
			return CallAccepted{From: p.From}, nil
		case MessageTypeCallDecline:
			return CallDeclined{From: p.From}, nil
		}
		return CallEnded{From: p.From}, nil

	case MessageTypeRecipientUnavailable:
		var p UnavailablePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		return RecipientUnavailable{To: p.To, Event: p.Event}, nil

	case MessageTypeError:
		var p ErrorPayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		return ServerError{Message: p.Message}, nil
	}
	return nil, nil
}

func unmarshal(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", msg.Type, err)
	}
	return nil
}
