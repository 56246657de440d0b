package voice

import (
	"sort"
	"sync"
)

// PeerStatus is a read-only view of one remote party.
type PeerStatus struct {
	Remote      Remote
	State       LinkState
	RemoteMuted bool
	HasLink     bool
}

type peerEntry struct {
	remote      Remote
	link        Link
	state       LinkState
	remoteMuted bool
}

// PeerSet maps remote socket ids to their links. Entries are created on
// first use and destroyed when the remote leaves.
type PeerSet struct {
	mu    sync.Mutex
	peers map[string]*peerEntry
}

// NewPeerSet returns an empty peer table.
func NewPeerSet() *PeerSet {
	return &PeerSet{peers: make(map[string]*peerEntry)}
}

// Track records a remote without creating a link for it.
func (s *PeerSet) Track(remote Remote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.peers[remote.SocketID]; ok {
		if remote.UserID != "" {
			e.remote.UserID = remote.UserID
		}
		return
	}
	s.peers[remote.SocketID] = &peerEntry{remote: remote}
}

// Ensure returns the link for remote, creating it with create if needed.
// The second result reports whether the link was created by this call.
// Ensure is called from a single goroutine; create runs without the lock
// held so link callbacks may touch the set.
func (s *PeerSet) Ensure(remote Remote, create func(Remote) (Link, error)) (Link, bool, error) {
	s.mu.Lock()
	e, ok := s.peers[remote.SocketID]
	if ok && e.link != nil {
		s.mu.Unlock()
		return e.link, false, nil
	}
	if ok && remote.UserID == "" {
		remote.UserID = e.remote.UserID
	}
	s.mu.Unlock()

	link, err := create(remote)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok = s.peers[remote.SocketID]
	if !ok {
		e = &peerEntry{remote: remote}
		s.peers[remote.SocketID] = e
	} else if e.remote.UserID == "" {
		e.remote.UserID = remote.UserID
	}
	e.link = link
	e.state = LinkNew
	return link, true, nil
}

// Get returns the link for a socket id, if one exists.
func (s *PeerSet) Get(socketID string) (Link, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.peers[socketID]
	if !ok || e.link == nil {
		return nil, false
	}
	return e.link, true
}

// Remote returns what is known about a socket id.
func (s *PeerSet) Remote(socketID string) (Remote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.peers[socketID]
	if !ok {
		return Remote{SocketID: socketID}, false
	}
	return e.remote, true
}

// SetState records the link state for socketID, if it is known.
func (s *PeerSet) SetState(socketID string, state LinkState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.peers[socketID]; ok {
		e.state = state
	}
}

// SetRemoteMuted records the mute state socketID announced.
func (s *PeerSet) SetRemoteMuted(socketID string, muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.peers[socketID]; ok {
		e.remoteMuted = muted
	}
}

// Remove forgets a remote and closes its link.
func (s *PeerSet) Remove(socketID string) bool {
	s.mu.Lock()
	e, ok := s.peers[socketID]
	delete(s.peers, socketID)
	s.mu.Unlock()

	if ok && e.link != nil {
		e.link.Close()
	}
	return ok
}

// CloseAll closes every link and empties the set.
func (s *PeerSet) CloseAll() {
	s.mu.Lock()
	peers := s.peers
	s.peers = make(map[string]*peerEntry)
	s.mu.Unlock()

	for _, e := range peers {
		if e.link != nil {
			e.link.Close()
		}
	}
}

// Each calls fn for every live link.
func (s *PeerSet) Each(fn func(Remote, Link)) {
	s.mu.Lock()
	links := make(map[Remote]Link, len(s.peers))
	for _, e := range s.peers {
		if e.link != nil {
			links[e.remote] = e.link
		}
	}
	s.mu.Unlock()

	for r, l := range links {
		fn(r, l)
	}
}

// Len returns the number of remote peers.
func (s *PeerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Snapshot lists every remote sorted by user id, then socket id.
func (s *PeerSet) Snapshot() []PeerStatus {
	s.mu.Lock()
	out := make([]PeerStatus, 0, len(s.peers))
	for _, e := range s.peers {
		out = append(out, PeerStatus{
			Remote:      e.remote,
			State:       e.state,
			RemoteMuted: e.remoteMuted,
			HasLink:     e.link != nil,
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Remote.UserID != out[j].Remote.UserID {
			return out[i].Remote.UserID < out[j].Remote.UserID
		}
		return out[i].Remote.SocketID < out[j].Remote.SocketID
	})
	return out
}
