package voice

import (
	"errors"
	"fmt"
)

var (
	ErrCallsDisabled     = errors.New("calls are disabled: no signaling URL configured (set SIGNALING_URL)")
	ErrRelayDisconnected = errors.New("lost connection to the signaling relay")
	ErrPeerUnknown       = errors.New("no link for peer")
	ErrSessionClosed     = errors.New("session closed")
	ErrNegotiationFailed = errors.New("negotiation failed")
)

// Error records the operation that failed and, when relevant, the peer.
type Error struct {
	Op      string
	Peer    string
	Err     error
	Details string
}

func (e *Error) Error() string {
	switch {
	case e.Peer != "" && e.Details != "":
		return fmt.Sprintf("%s %s: %v (%s)", e.Op, e.Peer, e.Err, e.Details)
	case e.Peer != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	case e.Details != "":
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the operation that failed.
func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// NewPeerError wraps err with the operation and the remote peer.
func NewPeerError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}

// WrapError wraps err with the operation and extra details for the user.
func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
