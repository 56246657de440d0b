package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/huddle/internal/dns"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 64 * 1024
	handshakeTimeout = 10 * time.Second
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("signaling connection closed")

// Client manages the WebSocket connection to the signaling relay.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *Message
	outgoing  chan *Message
	done      chan struct{}
	stopped   chan struct{} // closed when writePump exits
	closeOnce sync.Once
	log       *slog.Logger
}

// NewClient creates a new signaling client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *Message, 64),
		outgoing:  make(chan *Message, 64),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		log:       slog.Default().With("component", "signaling"),
	}
}

// Connect establishes the WebSocket connection to the relay.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		NetDialContext:   dns.DialContext,
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.serverURL, err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return nil
}

// readPump reads messages from the WebSocket connection.
// Incoming is closed when the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				c.log.Debug("relay connection lost", "err", err)
			}
			return
		}
		c.incoming <- &msg
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.stopped)
	}()

	for {
		select {
		case message := <-c.outgoing:
			if err := c.write(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// Flush whatever was queued before Close, such as a final leave.
		flush:
			for {
				select {
				case message := <-c.outgoing:
					if err := c.write(message); err != nil {
						return
					}
				default:
					break flush
				}
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(msg *Message) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Debug("write to relay failed", "type", msg.Type, "err", err)
		return err
	}
	return nil
}

// Send queues a message for the relay.
func (c *Client) Send(msgType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	select {
	case <-c.done:
		return ErrClosed
	case <-c.stopped:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- &Message{Type: msgType, Payload: data}:
		return nil
	case <-c.done:
		return ErrClosed
	case <-c.stopped:
		return ErrClosed
	}
}

// Incoming returns the channel for receiving messages.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// Close sends a close frame after flushing queued messages. It is safe to
// call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// JoinRoom enters roomID, leaving any previous room.
func (c *Client) JoinRoom(roomID, userID string) error {
	return c.Send(MessageTypeJoinRoom, JoinRoomPayload{RoomID: roomID, UserID: userID})
}

// LeaveRoom leaves the current room.
func (c *Client) LeaveRoom() error {
	return c.Send(MessageTypeLeaveRoom, struct{}{})
}

// SendOffer relays an SDP offer to the connection to.
func (c *Client) SendOffer(to string, desc webrtc.SessionDescription, direct bool) error {
	return c.Send(MessageTypeSignalOffer, SignalPayload{To: to, Description: &desc, Direct: direct})
}

// SendAnswer relays an SDP answer to the connection to.
func (c *Client) SendAnswer(to string, desc webrtc.SessionDescription, direct bool) error {
	return c.Send(MessageTypeSignalAnswer, SignalPayload{To: to, Description: &desc, Direct: direct})
}

// SendCandidate relays a local ICE candidate to the connection to.
func (c *Client) SendCandidate(to string, cand webrtc.ICECandidateInit, direct bool) error {
	return c.Send(MessageTypeSignalICECandidate, SignalPayload{To: to, Candidate: &cand, Direct: direct})
}

// CallAccept tells the caller at to that the call was picked up.
func (c *Client) CallAccept(to string) error {
	return c.Send(MessageTypeCallAccept, CallPayload{To: to})
}

// CallDecline rejects the call offered by to.
func (c *Client) CallDecline(to string) error {
	return c.Send(MessageTypeCallDecline, CallPayload{To: to})
}

// CallEnd cancels a ringing call or hangs up an active one.
func (c *Client) CallEnd(to string) error {
	return c.Send(MessageTypeCallEnd, CallPayload{To: to})
}
