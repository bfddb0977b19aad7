package state

// AddKnownPeer provides the ability to add a new peer.
func (s *State) AddKnownPeer(host string) bool {
	if host == "" || host == s.host {
		return false
	}
	return s.knownPeers.Add(host)
}

// RemoveKnownPeer removes the peer from the registry.
func (s *State) RemoveKnownPeer(host string) {
	s.knownPeers.Remove(host)
}

// PeerSeen records a peer that completed a handshake with this node. A
// peer seen for the first time is synced with right away.
func (s *State) PeerSeen(host string, height uint64) {
	added := s.AddKnownPeer(host)

	s.knownPeers.Touch(host)
	s.knownPeers.UpdateHeight(host, height)

	if added {
		s.evHandler("state: PeerSeen: new peer[%s] height[%d]", host, height)
		s.signalSync(host)
	}
}
