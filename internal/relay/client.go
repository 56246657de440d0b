package relay

import (
	"encoding/json"
	"time"

	"github.com/BioHazard786/huddle/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Client is a wrapper for a single websocket connection (a peer)
type Client struct {
	// ID is the opaque connection id other peers address messages to.
	ID string

	RemoteAddr string

	hub  *Hub
	conn *websocket.Conn

	// send is a buffered channel for all outbound messages.
	// The hub writes to this channel, and WritePump drains it to the socket.
	send chan *Message

	limiter *rate.Limiter
}

// NewClient wraps conn and assigns it a fresh connection id.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	limit := rate.Inf
	if hub.opts.MessagesPerSecond > 0 {
		limit = rate.Limit(hub.opts.MessagesPerSecond)
	}
	burst := hub.opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		ID:         uuid.NewString(),
		RemoteAddr: conn.RemoteAddr().String(),
		hub:        hub,
		conn:       conn,
		send:       make(chan *Message, hub.opts.SendQueue),
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	// When this function exits the client performs its implicit leave.
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read failed", "conn", c.ID, "err", err)
			}
			return
		}

		msg := &Message{}
		if err := json.Unmarshal(data, msg); err != nil {
			msg = &Message{Type: eventMalformed}
		}

		if !c.limiter.Allow() {
			c.hub.metrics.MessageDropped(eventLabel(msg.Type), metrics.ReasonRateLimited)
			continue
		}

		msg.client = c
		if !c.hub.dispatch(msg) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.log.Debug("websocket write failed", "conn", c.ID, "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
