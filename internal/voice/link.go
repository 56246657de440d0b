package voice

import "github.com/pion/webrtc/v4"

// Remote identifies the party at the other end of a link.
type Remote struct {
	SocketID string
	UserID   string
}

// Name is the user id when known, the socket id otherwise.
func (r Remote) Name() string {
	if r.UserID != "" {
		return r.UserID
	}
	return r.SocketID
}

// LinkState mirrors the lifecycle of a peer connection.
type LinkState int

const (
	LinkNew LinkState = iota
	LinkConnecting
	LinkConnected
	LinkDisconnected
	LinkFailed
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkNew:
		return "new"
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	case LinkDisconnected:
		return "disconnected"
	case LinkFailed:
		return "failed"
	case LinkClosed:
		return "closed"
	}
	return "unknown"
}

// LinkEvents are callbacks a link fires from its own goroutines.
type LinkEvents struct {
	OnCandidate  func(webrtc.ICECandidateInit)
	OnState      func(LinkState)
	OnRemoteMute func(muted bool)
}

// Link is one negotiated media connection to a remote party.
type Link interface {
	// Offer creates and applies a local offer.
	Offer() (webrtc.SessionDescription, error)

	// Answer applies a remote offer and returns the local answer.
	Answer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)

	// SetAnswer applies the remote answer to an earlier Offer.
	SetAnswer(answer webrtc.SessionDescription) error

	// AddCandidate adds a remote ICE candidate, buffering it until the
	// remote description is known.
	AddCandidate(c webrtc.ICECandidateInit) error

	// SetMuted tells the remote party about the local mute state.
	SetMuted(muted bool)

	Close() error
}

// LinkFactory creates links. The pion implementation lives in internal/peer.
type LinkFactory interface {
	NewLink(remote Remote, events LinkEvents) (Link, error)
}

// Signaler is the subset of the relay client that sessions and calls use.
type Signaler interface {
	JoinRoom(roomID, userID string) error
	LeaveRoom() error
	SendOffer(to string, desc webrtc.SessionDescription, direct bool) error
	SendAnswer(to string, desc webrtc.SessionDescription, direct bool) error
	SendCandidate(to string, c webrtc.ICECandidateInit, direct bool) error
}

// Muter is the local capture source's mute control.
type Muter interface {
	SetMuted(muted bool)
}
