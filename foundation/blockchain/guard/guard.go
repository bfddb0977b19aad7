// Package guard implements the per address admission filter that protects
// the sync protocol and the validator from being flooded. It only looks at
// counts and sizes, never at message semantics.
package guard

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Set of error variables for admission failures.
var (
	ErrBanned             = errors.New("address is banned")
	ErrTooManyConnections = errors.New("too many connections")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrMessageTooLarge    = errors.New("message too large")
)

// Config represents the thresholds the guard enforces.
type Config struct {
	MaxConnections    int
	MaxBlocksPerMin   int
	MaxMessagesPerMin int
	MaxMessageBytes   int
	Window            time.Duration
	BanDuration       time.Duration
	IdleHorizon       time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MaxConnections:    3,
		MaxBlocksPerMin:   60,
		MaxMessagesPerMin: 300,
		MaxMessageBytes:   10 * 1024 * 1024,
		Window:            time.Minute,
		BanDuration:       15 * time.Minute,
		IdleHorizon:       time.Hour,
	}
}

// Stats is a snapshot of the state kept for an address.
type Stats struct {
	Addr        string    `json:"addr"`
	Connections int       `json:"connections"`
	Blocks      int       `json:"blocks"`
	Messages    int       `json:"messages"`
	BannedUntil time.Time `json:"banned_until,omitzero"`
}

// state is the rate limit state kept per address.
type state struct {
	connections  int
	blocks       []time.Time
	messages     []time.Time
	banUntil     time.Time
	lastActivity time.Time
}

// =============================================================================

// Guard tracks connections, blocks and messages per remote address.
type Guard struct {
	cfg   Config
	clock Clock
	ev    func(v string, args ...any)

	mu    sync.Mutex
	addrs map[string]*state
}

// New constructs a guard. A nil clock uses the wall clock.
func New(cfg Config, clock Clock, evHandler func(v string, args ...any)) *Guard {
	if clock == nil {
		clock = SystemClock{}
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Guard{
		cfg:   cfg,
		clock: clock,
		ev:    ev,
		addrs: make(map[string]*state),
	}
}

// Config returns the thresholds in use.
func (g *Guard) Config() Config {
	return g.cfg
}

// AllowConnection admits a new connection from the address. Reaching the
// connection cap rejects without banning since the slot frees on
// disconnect.
func (g *Guard) AllowConnection(addr string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	s := g.get(addr, now)

	if s.banUntil.After(now) {
		return fmt.Errorf("%w: %s until %s", ErrBanned, addr, s.banUntil.Format(time.RFC3339))
	}

	if s.connections >= g.cfg.MaxConnections {
		return fmt.Errorf("%w: %s has %d", ErrTooManyConnections, addr, s.connections)
	}

	s.connections++

	return nil
}

// ReleaseConnection records a disconnect from the address.
func (g *Guard) ReleaseConnection(addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, exists := g.addrs[addr]
	if !exists {
		return
	}

	if s.connections > 0 {
		s.connections--
	}
	s.lastActivity = g.clock.Now()
}

// AllowBlock admits a block received from the address. Going over the
// per window limit bans the address.
func (g *Guard) AllowBlock(addr string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	s := g.get(addr, now)

	if s.banUntil.After(now) {
		return fmt.Errorf("%w: %s until %s", ErrBanned, addr, s.banUntil.Format(time.RFC3339))
	}

	s.blocks = g.prune(s.blocks, now)
	if len(s.blocks) >= g.cfg.MaxBlocksPerMin {
		g.ban(addr, s, now, g.cfg.BanDuration, "blocks")
		return fmt.Errorf("%w: %s sent more than %d blocks", ErrRateLimited, addr, g.cfg.MaxBlocksPerMin)
	}

	s.blocks = append(s.blocks, now)

	return nil
}

// AllowMessage admits a message of the specified size from the address.
// An oversized message or going over the per window limit bans the address.
func (g *Guard) AllowMessage(addr string, size int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	s := g.get(addr, now)

	if s.banUntil.After(now) {
		return fmt.Errorf("%w: %s until %s", ErrBanned, addr, s.banUntil.Format(time.RFC3339))
	}

	if size > g.cfg.MaxMessageBytes {
		g.ban(addr, s, now, g.cfg.BanDuration, "message size")
		return fmt.Errorf("%w: %s sent %d bytes, max %d", ErrMessageTooLarge, addr, size, g.cfg.MaxMessageBytes)
	}

	s.messages = g.prune(s.messages, now)
	if len(s.messages) >= g.cfg.MaxMessagesPerMin {
		g.ban(addr, s, now, g.cfg.BanDuration, "messages")
		return fmt.Errorf("%w: %s sent more than %d messages", ErrRateLimited, addr, g.cfg.MaxMessagesPerMin)
	}

	s.messages = append(s.messages, now)

	return nil
}

// Ban bans the address for the specified duration.
func (g *Guard) Ban(addr string, d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.ban(addr, g.get(addr, now), now, d, "manual")
}

// Unban revokes a ban and clears the window counters of the address.
func (g *Guard) Unban(addr string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, exists := g.addrs[addr]
	if !exists || s.banUntil.IsZero() {
		return false
	}

	s.banUntil = time.Time{}
	s.blocks = nil
	s.messages = nil

	g.ev("guard: Unban: addr[%s]", addr)

	return true
}

// IsBanned reports whether a ban is active for the address.
func (g *Guard) IsBanned(addr string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, exists := g.addrs[addr]
	if !exists {
		return false
	}

	return s.banUntil.After(g.clock.Now())
}

// Banned returns the addresses with an active ban, sorted by address.
func (g *Guard) Banned() []Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	var banned []Stats
	for addr, s := range g.addrs {
		if s.banUntil.After(now) {
			banned = append(banned, g.stats(addr, s, now))
		}
	}

	sort.Slice(banned, func(i, j int) bool { return banned[i].Addr < banned[j].Addr })

	return banned
}

// Stats returns a snapshot of the state kept for the address.
func (g *Guard) Stats(addr string) Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, exists := g.addrs[addr]
	if !exists {
		return Stats{Addr: addr}
	}

	return g.stats(addr, s, g.clock.Now())
}

// Sweep drops the state of addresses without connections or an active ban
// that have been idle beyond the idle horizon. It returns the number of
// addresses dropped.
func (g *Guard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	var n int
	for addr, s := range g.addrs {
		if s.connections > 0 || s.banUntil.After(now) {
			continue
		}
		if now.Sub(s.lastActivity) > g.cfg.IdleHorizon {
			delete(g.addrs, addr)
			n++
		}
	}

	return n
}

// =============================================================================

// get returns the state for the address, creating it when missing, and
// records the activity.
func (g *Guard) get(addr string, now time.Time) *state {
	s, exists := g.addrs[addr]
	if !exists {
		s = &state{}
		g.addrs[addr] = s
	}
	s.lastActivity = now

	return s
}

// prune drops the timestamps that fell out of the window.
func (g *Guard) prune(stamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-g.cfg.Window)

	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}

	return stamps[i:]
}

func (g *Guard) ban(addr string, s *state, now time.Time, d time.Duration, reason string) {
	s.banUntil = now.Add(d)
	g.ev("guard: ban: addr[%s] reason[%s] until[%s]", addr, reason, s.banUntil.Format(time.RFC3339))
}

func (g *Guard) stats(addr string, s *state, now time.Time) Stats {
	st := Stats{
		Addr:        addr,
		Connections: s.connections,
		Blocks:      len(g.prune(s.blocks, now)),
		Messages:    len(g.prune(s.messages, now)),
	}
	if s.banUntil.After(now) {
		st.BannedUntil = s.banUntil
	}

	return st
}
