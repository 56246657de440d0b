package relay

// Session is the relay's view of one connection.
type Session struct {
	// ID is the relay-assigned connection identifier.
	ID string

	// RoomID is empty until the connection joins a room.
	RoomID string

	// UserID is whatever the client announced on its last join.
	UserID string
}

func (s *Session) peer() Peer {
	return Peer{SocketID: s.ID, UserID: s.UserID}
}

// Room is a named set of connections. Group rooms and presence rooms are
// the same thing here; a presence room is simply keyed by a user id.
type Room struct {
	ID string

	// members is kept in join order so rosters are stable.
	members []*Session
}

func (r *Room) add(s *Session) {
	r.members = append(r.members, s)
}

func (r *Room) remove(id string) bool {
	for i, m := range r.members {
		if m.ID == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// others returns every member except id.
func (r *Room) others(id string) []*Session {
	out := make([]*Session, 0, len(r.members))
	for _, m := range r.members {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

// RoomSnapshot is a read-only copy of a room used by the /rooms endpoint.
type RoomSnapshot struct {
	RoomID  string `json:"roomId"`
	Members []Peer `json:"members"`
}
