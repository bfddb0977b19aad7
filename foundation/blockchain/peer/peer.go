// Package peer maintains the peer related information such as the set
// of known peers, their liveness and their reported chain height.
package peer

import (
	"sync"
	"time"
)

// Peer represents information about a Node in the network.
type Peer struct {
	Host     string    `json:"host"`
	LastSeen time.Time `json:"last_seen"`
	Height   uint64    `json:"height"`
}

// New contructs a new info value.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// PeerStatus represents information about the status
// of any given peer.
type PeerStatus struct {
	LatestBlockHash   string `json:"latest_block_hash"`
	LatestBlockNumber uint64 `json:"latest_block_number"`
	Difficulty        uint   `json:"difficulty"`
	KnownPeers        []Peer `json:"known_peers"`
}

// =============================================================================

// PeerSet represents the data representation to maintain a bounded set of
// known peers. Insertion order is kept so ties resolve to the first seen.
type PeerSet struct {
	mu    sync.RWMutex
	max   int
	set   map[string]*Peer
	order []string
	now   func() time.Time
}

// NewPeerSet constructs a new info set to manage node peer information. A
// max of zero or less means unbounded.
func NewPeerSet(max int) *PeerSet {
	return &PeerSet{
		max: max,
		set: make(map[string]*Peer),
		now: time.Now,
	}
}

// Add adds a new node to the set. It returns false when the host is already
// known or the set is at capacity.
func (ps *PeerSet) Add(host string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[host]; exists {
		return false
	}

	if ps.max > 0 && len(ps.set) >= ps.max {
		return false
	}

	ps.set[host] = &Peer{Host: host, LastSeen: ps.now()}
	ps.order = append(ps.order, host)

	return true
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(host string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[host]; !exists {
		return
	}

	delete(ps.set, host)
	for i, h := range ps.order {
		if h == host {
			ps.order = append(ps.order[:i], ps.order[i+1:]...)
			break
		}
	}
}

// Get returns the peer registered for the host.
func (ps *PeerSet) Get(host string) (Peer, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	p, exists := ps.set[host]
	if !exists {
		return Peer{}, false
	}

	return *p, true
}

// Touch marks the peer as seen now. It returns false for an unknown host.
func (ps *PeerSet) Touch(host string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, exists := ps.set[host]
	if !exists {
		return false
	}
	p.LastSeen = ps.now()

	return true
}

// UpdateHeight records the chain height the peer reported and marks it as
// seen. It returns false for an unknown host.
func (ps *PeerSet) UpdateHeight(host string, height uint64) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, exists := ps.set[host]
	if !exists {
		return false
	}
	p.Height = height
	p.LastSeen = ps.now()

	return true
}

// Best returns the peer with the greatest reported height. Ties go to the
// peer seen first.
func (ps *PeerSet) Best() (Peer, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var best *Peer
	for _, host := range ps.order {
		p := ps.set[host]
		if best == nil || p.Height > best.Height {
			best = p
		}
	}

	if best == nil {
		return Peer{}, false
	}

	return *best, true
}

// Copy returns a list of the known peers in the order they were added,
// excluding the specified host.
func (ps *PeerSet) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for _, h := range ps.order {
		p := ps.set[h]
		if !p.Match(host) {
			peers = append(peers, *p)
		}
	}

	return peers
}

// Hosts returns the hosts of every known peer.
func (ps *PeerSet) Hosts() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	hosts := make([]string, len(ps.order))
	copy(hosts, ps.order)

	return hosts
}

// Len returns the number of known peers.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Stale returns the hosts not seen within the horizon before now. Removal
// is left to the caller.
func (ps *PeerSet) Stale(horizon time.Duration, now time.Time) []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var hosts []string
	for _, h := range ps.order {
		if now.Sub(ps.set[h].LastSeen) > horizon {
			hosts = append(hosts, h)
		}
	}

	return hosts
}
