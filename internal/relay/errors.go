package relay

import "errors"

var (
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSelfAddressed     = errors.New("message addressed to sender")
	ErrNotConnected      = errors.New("connection not registered")
	ErrMalformed         = errors.New("malformed message")
	ErrSlowConsumer      = errors.New("send queue full")
	ErrHubClosed         = errors.New("hub closed")
)
