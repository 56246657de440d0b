package relay

import "sort"

// State is the membership table: which connections exist, which room each
// one is in, and who is in each room. It is a plain state machine with no
// locking; the Hub owns one and applies every event from a single goroutine.
type State struct {
	sessions map[string]*Session
	rooms    map[string]*Room
}

// JoinResult describes everything the Hub must announce after a join.
type JoinResult struct {
	// Self is the joiner as other members will see it.
	Self Peer

	// Peers is the roster for the joiner: every other member, in join order.
	Peers []Peer

	// Notify lists the connection ids that must receive user-joined.
	Notify []string

	// Left is set when the join implicitly left a different room.
	Left *LeaveResult

	// Rejoined is true when the connection was already in this room.
	Rejoined bool

	// RoomCreated is true when this join brought the room into existence.
	RoomCreated bool
}

// LeaveResult describes a departure.
type LeaveResult struct {
	RoomID string
	Peer   Peer

	// Remaining lists the connection ids still in the room.
	Remaining []string

	// RoomClosed is true when the departure emptied and evicted the room.
	RoomClosed bool
}

// NewState returns an empty membership table.
func NewState() *State {
	return &State{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]*Room),
	}
}

// Connect registers a connection id in the Unjoined state.
func (s *State) Connect(id string) *Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := &Session{ID: id}
	s.sessions[id] = sess
	return sess
}

// Session looks up a connection.
func (s *State) Session(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// Join places a connection in roomID, creating the room on demand.
// A connection is in at most one room, so joining a different room
// leaves the previous one first.
func (s *State) Join(id, roomID, userID string) (JoinResult, error) {
	if roomID == "" {
		return JoinResult{}, ErrMalformed
	}
	sess, ok := s.sessions[id]
	if !ok {
		return JoinResult{}, ErrNotConnected
	}

	var res JoinResult
	if sess.RoomID == roomID {
		// Same room again: refresh the user id and hand back the roster.
		sess.UserID = userID
		res.Rejoined = true
	} else {
		if sess.RoomID != "" {
			left, _ := s.Leave(id)
			res.Left = &left
		}

		room, ok := s.rooms[roomID]
		if !ok {
			room = &Room{ID: roomID}
			s.rooms[roomID] = room
			res.RoomCreated = true
		}
		sess.RoomID = roomID
		sess.UserID = userID
		room.add(sess)
	}

	res.Self = sess.peer()
	others := s.rooms[roomID].others(id)
	res.Peers = make([]Peer, 0, len(others))
	for _, m := range others {
		res.Peers = append(res.Peers, m.peer())
		if !res.Rejoined {
			res.Notify = append(res.Notify, m.ID)
		}
	}
	return res, nil
}

// Leave removes a connection from its room. It reports false when the
// connection was not in a room.
func (s *State) Leave(id string) (LeaveResult, bool) {
	sess, ok := s.sessions[id]
	if !ok || sess.RoomID == "" {
		return LeaveResult{}, false
	}

	res := LeaveResult{RoomID: sess.RoomID, Peer: sess.peer()}
	if room, ok := s.rooms[sess.RoomID]; ok {
		room.remove(id)
		for _, m := range room.members {
			res.Remaining = append(res.Remaining, m.ID)
		}
		if len(room.members) == 0 {
			delete(s.rooms, room.ID)
			res.RoomClosed = true
		}
	}
	sess.RoomID = ""
	return res, true
}

// Disconnect performs the same cleanup as Leave and forgets the connection.
func (s *State) Disconnect(id string) (LeaveResult, bool) {
	res, left := s.Leave(id)
	delete(s.sessions, id)
	return res, left
}

// Resolve finds the recipient of an addressed message.
func (s *State) Resolve(from, to string) (*Session, error) {
	if to == from {
		return nil, ErrSelfAddressed
	}
	sess, ok := s.sessions[to]
	if !ok {
		return nil, ErrRecipientNotFound
	}
	return sess, nil
}

// Roster returns the members of roomID in join order, or nil if the room
// does not exist.
func (s *State) Roster(roomID string) []Peer {
	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Peer, 0, len(room.members))
	for _, m := range room.members {
		out = append(out, m.peer())
	}
	return out
}

// Rooms snapshots every live room, sorted by id.
func (s *State) Rooms() []RoomSnapshot {
	out := make([]RoomSnapshot, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, RoomSnapshot{RoomID: id, Members: s.Roster(id)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// RoomCount returns the number of non-empty rooms.
func (s *State) RoomCount() int {
	return len(s.rooms)
}

// SessionCount returns the number of registered connections.
func (s *State) SessionCount() int {
	return len(s.sessions)
}
