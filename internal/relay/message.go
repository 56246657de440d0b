package relay

import (
	"encoding/json"
	"log/slog"
)

// Message defines the envelope for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// client is the connection that sent the message.
	// It's used internally by the Hub and never serialized.
	client *Client
}

// Relay-bound events.
const (
	EventJoinRoom           = "join-room"
	EventLeaveRoom          = "leave-room"
	EventSignalOffer        = "signal-offer"
	EventSignalAnswer       = "signal-answer"
	EventSignalICECandidate = "signal-ice-candidate"
	EventCallAccept         = "call-accept"
	EventCallDecline        = "call-decline"
	EventCallEnd            = "call-end"
)

// Client-bound events. Signal and call events reuse the relay-bound names.
const (
	EventRoomPeers            = "room-peers"
	EventUserJoined           = "user-joined"
	EventUserLeft             = "user-left"
	EventIncomingCall         = "incoming-call"
	EventRecipientUnavailable = "recipient-unavailable"
	EventError                = "error"
)

// JoinRoomPayload is the body of join-room.
type JoinRoomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=256"`
	UserID string `json:"userId" validate:"max=256"`
}

// Peer identifies one room member on the wire.
type Peer struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
}

// SignalRequest is what a client sends for offers, answers and ICE candidates.
// It has no sender field: the relay stamps the sender itself.
type SignalRequest struct {
	To          string          `json:"to" validate:"required,max=128"`
	Description json.RawMessage `json:"description,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
	Direct      bool            `json:"direct,omitempty"`
}

// Signal is the relayed form of a SignalRequest.
type Signal struct {
	From        string          `json:"from"`
	Description json.RawMessage `json:"description,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
	Direct      bool            `json:"direct,omitempty"`
}

// CallRequest carries call-accept, call-decline and call-end from a client.
type CallRequest struct {
	To string `json:"to" validate:"required,max=128"`
}

// CallNotice is the relayed form of a CallRequest.
type CallNotice struct {
	From string `json:"from"`
}

// IncomingCall precedes a direct offer so the callee can show who is ringing.
type IncomingCall struct {
	From       string `json:"from"`
	FromUserID string `json:"fromUserId"`
}

// Unavailable reports a routing miss back to the sender when enabled.
type Unavailable struct {
	To    string `json:"to"`
	Event string `json:"event"`
}

// ErrorPayload represents error messages from the server.
type ErrorPayload struct {
	Message string `json:"message"`
}

// newMessage builds an outbound message. The payload types above always marshal.
func newMessage(typ string, payload any) *Message {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal payload", "type", typ, "err", err)
		return &Message{Type: typ}
	}
	return &Message{Type: typ, Payload: data}
}
