package signaling

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Message represents all WebSocket messages between the CLI and the relay.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	MessageTypeJoinRoom           = "join-room"
	MessageTypeLeaveRoom          = "leave-room"
	MessageTypeSignalOffer        = "signal-offer"
	MessageTypeSignalAnswer       = "signal-answer"
	MessageTypeSignalICECandidate = "signal-ice-candidate"
	MessageTypeCallAccept         = "call-accept"
	MessageTypeCallDecline        = "call-decline"
	MessageTypeCallEnd            = "call-end"

	MessageTypeRoomPeers            = "room-peers"
	MessageTypeUserJoined           = "user-joined"
	MessageTypeUserLeft             = "user-left"
	MessageTypeIncomingCall         = "incoming-call"
	MessageTypeRecipientUnavailable = "recipient-unavailable"
	MessageTypeError                = "error"
)

// JoinRoomPayload asks the relay to place this connection in a room.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// Peer is one room member as reported by the relay.
type Peer struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
}

// SignalPayload carries an SDP description or an ICE candidate.
// On the way out To is set; the relay replaces it with From.
type SignalPayload struct {
	To          string                     `json:"to,omitempty"`
	From        string                     `json:"from,omitempty"`
	Description *webrtc.SessionDescription `json:"description,omitempty"`
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Direct      bool                       `json:"direct,omitempty"`
}

// CallPayload carries call-accept, call-decline and call-end.
type CallPayload struct {
	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`
}

// IncomingCallPayload announces a direct call before its offer.
type IncomingCallPayload struct {
	From       string `json:"from"`
	FromUserID string `json:"fromUserId"`
}

// UnavailablePayload reports a routing miss.
type UnavailablePayload struct {
	To    string `json:"to"`
	Event string `json:"event"`
}

// ErrorPayload represents error messages from the relay.
type ErrorPayload struct {
	Message string `json:"message"`
}
