package peer

import "github.com/vmihailenco/msgpack/v5"

// Control channel message types
const (
	MessageTypeMute  = "mute"
	MessageTypeHello = "hello"
)

// Message is the envelope for every control data channel message.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// MutePayload announces the sender's microphone state.
type MutePayload struct {
	Muted bool `msgpack:"muted"`
}

// HelloPayload is sent once when the control channel opens.
type HelloPayload struct {
	Client  string `msgpack:"client"`
	Version string `msgpack:"version"`
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: b}, nil
}

// Encode marshals a control message ready for the data channel.
func Encode(t string, payload any) ([]byte, error) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(msg)
}
