package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/huddle/internal/metrics"
)

// eventMalformed marks an inbound frame that was not a JSON envelope.
const eventMalformed = ""

// Options tunes the hub and its clients.
type Options struct {
	// SendQueue is the per-client outbound buffer. A client whose buffer
	// fills up is evicted.
	SendQueue int

	// NotifyUnavailable makes routing misses visible to the sender as a
	// recipient-unavailable event instead of a silent drop.
	NotifyUnavailable bool

	// MessagesPerSecond and Burst limit inbound messages per connection.
	// Zero disables the limit.
	MessagesPerSecond float64
	Burst             int

	MaxMessageBytes int64
	PongWait        time.Duration
	WriteWait       time.Duration

	Metrics metrics.Collector
	Logger  *slog.Logger
}

// DefaultOptions returns the values used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		SendQueue:         256,
		MessagesPerSecond: 50,
		Burst:             100,
		MaxMessageBytes:   64 * 1024, // enough for WebRTC SDP messages
		PongWait:          60 * time.Second,
		WriteWait:         10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SendQueue <= 0 {
		o.SendQueue = def.SendQueue
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = def.MaxMessageBytes
	}
	if o.PongWait <= 0 {
		o.PongWait = def.PongWait
	}
	if o.WriteWait <= 0 {
		o.WriteWait = def.WriteWait
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Hub is the central brain of the signaling relay.
// It owns the membership State and every client's send queue, and it is
// the only goroutine that touches either.
type Hub struct {
	opts  Options
	state *State

	// clients maps connection ids to live clients.
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan *Message
	queries    chan func(*State)

	// evictions holds clients whose send queue overflowed during the
	// current event; they are disconnected once the event is handled.
	evictions []*Client

	done      chan struct{}
	closeOnce sync.Once
	metrics   metrics.Collector
	log       *slog.Logger
}

// NewHub creates a new Hub instance.
func NewHub(opts Options) *Hub {
	opts = opts.withDefaults()
	return &Hub{
		opts:       opts,
		state:      NewState(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *Message),
		queries:    make(chan func(*State)),
		done:       make(chan struct{}),
		metrics:    opts.Metrics,
		log:        opts.Logger,
	}
}

// Run starts the hub's main processing loop.
// This is the single goroutine that safely manages all state (rooms, clients).
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client.ID] = client
			h.state.Connect(client.ID)
			h.metrics.ConnectionOpened()
			h.log.Info("client registered", "conn", client.ID, "remote", client.RemoteAddr)

		case client := <-h.unregister:
			h.disconnect(client, "disconnected")

		case message := <-h.inbound:
			h.handle(message)

		case query := <-h.queries:
			query(h.state)

		case <-h.done:
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.state = NewState()
			return
		}

		h.drainEvictions()
	}
}

// Close stops Run and closes every client's send queue.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Register hands a new client to the hub.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister performs the implicit leave for a dropped transport.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// dispatch queues an inbound message; false means the hub has stopped.
func (h *Hub) dispatch(m *Message) bool {
	select {
	case h.inbound <- m:
		return true
	case <-h.done:
		return false
	}
}

// query runs fn on the hub goroutine and waits for it.
func (h *Hub) query(ctx context.Context, fn func(*State)) error {
	finished := make(chan struct{})
	wrapped := func(s *State) {
		fn(s)
		close(finished)
	}
	select {
	case h.queries <- wrapped:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Rooms returns a snapshot of every live room.
func (h *Hub) Rooms(ctx context.Context) ([]RoomSnapshot, error) {
	var out []RoomSnapshot
	err := h.query(ctx, func(s *State) { out = s.Rooms() })
	return out, err
}

// Roster returns the current members of one room, nil if it does not exist.
func (h *Hub) Roster(ctx context.Context, roomID string) ([]Peer, error) {
	var out []Peer
	err := h.query(ctx, func(s *State) { out = s.Roster(roomID) })
	return out, err
}

func (h *Hub) handle(m *Message) {
	c := m.client
	if c == nil || h.clients[c.ID] != c {
		// Sender was already evicted or unregistered.
		return
	}
	event := eventLabel(m.Type)
	h.metrics.MessageReceived(event)

	switch m.Type {
	case EventJoinRoom:
		h.handleJoin(c, m)

	case EventLeaveRoom:
		if res, ok := h.state.Leave(c.ID); ok {
			h.log.Info("client left room", "conn", c.ID, "room", res.RoomID)
			h.announceLeave(res)
		}

	case EventSignalOffer, EventSignalAnswer, EventSignalICECandidate:
		h.handleSignal(c, m)

	case EventCallAccept, EventCallDecline, EventCallEnd:
		h.handleCallNotice(c, m)

	case eventMalformed:
		h.metrics.MessageDropped(event, metrics.ReasonMalformed)
		h.deliver(c.ID, newMessage(EventError, ErrorPayload{Message: "malformed message"}))

	default:
		h.metrics.MessageDropped(event, metrics.ReasonUnknownEvent)
		h.log.Debug("unknown message type", "conn", c.ID, "type", m.Type)
	}
}

func (h *Hub) handleJoin(c *Client, m *Message) {
	var p JoinRoomPayload
	if err := decodePayload(m.Payload, &p); err != nil {
		h.drop(c, m.Type, err)
		return
	}

	res, err := h.state.Join(c.ID, p.RoomID, p.UserID)
	if err != nil {
		h.drop(c, m.Type, err)
		return
	}
	if res.Left != nil {
		h.announceLeave(*res.Left)
	}
	if res.RoomCreated {
		h.metrics.RoomOpened()
	}

	// Existing members hear about the joiner before the joiner gets its
	// roster, so they always know it by the time its offer arrives.
	joined := newMessage(EventUserJoined, res.Self)
	for _, id := range res.Notify {
		h.deliver(id, joined)
	}
	h.deliver(c.ID, newMessage(EventRoomPeers, res.Peers))

	h.log.Info("client joined room", "conn", c.ID, "room", p.RoomID, "user", p.UserID, "peers", len(res.Peers))
}

func (h *Hub) handleSignal(c *Client, m *Message) {
	var req SignalRequest
	if err := decodePayload(m.Payload, &req); err != nil {
		h.drop(c, m.Type, err)
		return
	}

	// The sender is always the connection the frame arrived on.
	signal := newMessage(m.Type, Signal{
		From:        c.ID,
		Description: req.Description,
		Candidate:   req.Candidate,
		Direct:      req.Direct,
	})

	msgs := []*Message{signal}
	if m.Type == EventSignalOffer && req.Direct {
		sender, _ := h.state.Session(c.ID)
		ring := newMessage(EventIncomingCall, IncomingCall{From: c.ID, FromUserID: sender.UserID})
		msgs = []*Message{ring, signal}
	}

	if err := h.route(c, req.To, msgs...); err != nil {
		h.miss(c, m.Type, req.To, err)
		return
	}
	h.log.Debug("relayed signal", "type", m.Type, "from", c.ID, "to", req.To, "direct", req.Direct)
}

func (h *Hub) handleCallNotice(c *Client, m *Message) {
	var req CallRequest
	if err := decodePayload(m.Payload, &req); err != nil {
		h.drop(c, m.Type, err)
		return
	}
	if err := h.route(c, req.To, newMessage(m.Type, CallNotice{From: c.ID})); err != nil {
		h.miss(c, m.Type, req.To, err)
	}
}

// route delivers msgs, in order, to the connection named to.
// A missing recipient is reported as ErrRecipientNotFound.
func (h *Hub) route(from *Client, to string, msgs ...*Message) error {
	recipient, err := h.state.Resolve(from.ID, to)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := h.deliver(recipient.ID, msg); err != nil {
			return err
		}
	}
	return nil
}

// deliver queues msg for one client without blocking the hub.
func (h *Hub) deliver(id string, msg *Message) error {
	client, ok := h.clients[id]
	if !ok {
		return ErrRecipientNotFound
	}
	select {
	case client.send <- msg:
		h.metrics.MessageRelayed(msg.Type)
		return nil
	default:
		h.metrics.MessageDropped(msg.Type, metrics.ReasonSlowConsumer)
		h.evictions = append(h.evictions, client)
		return ErrSlowConsumer
	}
}

func (h *Hub) announceLeave(res LeaveResult) {
	if res.RoomClosed {
		h.metrics.RoomClosed()
		h.log.Info("room closed", "room", res.RoomID)
	}
	left := newMessage(EventUserLeft, res.Peer)
	for _, id := range res.Remaining {
		h.deliver(id, left)
	}
}

func (h *Hub) disconnect(c *Client, reason string) {
	if h.clients[c.ID] != c {
		return
	}
	delete(h.clients, c.ID)

	if res, ok := h.state.Disconnect(c.ID); ok {
		h.announceLeave(res)
	}

	// Closing the send channel stops the client's WritePump.
	close(c.send)
	h.metrics.ConnectionClosed()
	h.log.Info("client unregistered", "conn", c.ID, "remote", c.RemoteAddr, "reason", reason)
}

func (h *Hub) drainEvictions() {
	for len(h.evictions) > 0 {
		c := h.evictions[0]
		h.evictions = h.evictions[1:]
		h.disconnect(c, "send queue full")
	}
}

// miss handles a routing failure. The wire stays silent unless
// NotifyUnavailable is set.
func (h *Hub) miss(c *Client, event, to string, err error) {
	switch {
	case errors.Is(err, ErrSlowConsumer):
		// Already counted and scheduled for eviction.
		return
	case errors.Is(err, ErrSelfAddressed):
		h.metrics.MessageDropped(eventLabel(event), metrics.ReasonSelfAddressed)
		return
	}

	h.metrics.MessageDropped(eventLabel(event), metrics.ReasonRecipientNotFound)
	h.log.Debug("recipient not found", "type", event, "from", c.ID, "to", to)
	if h.opts.NotifyUnavailable {
		h.deliver(c.ID, newMessage(EventRecipientUnavailable, Unavailable{To: to, Event: event}))
	}
}

func (h *Hub) drop(c *Client, event string, err error) {
	h.metrics.MessageDropped(eventLabel(event), metrics.ReasonMalformed)
	h.log.Debug("dropped message", "conn", c.ID, "type", event, "err", err)
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return ErrMalformed
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// eventLabel bounds metric label cardinality to the known event names.
func eventLabel(typ string) string {
	switch typ {
	case EventJoinRoom, EventLeaveRoom,
		EventSignalOffer, EventSignalAnswer, EventSignalICECandidate,
		EventCallAccept, EventCallDecline, EventCallEnd,
		EventRoomPeers, EventUserJoined, EventUserLeft,
		EventIncomingCall, EventRecipientUnavailable, EventError:
		return typ
	case eventMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}
