// Package monitor raises alerts on blocks, transactions and peer heights
// that are valid but look suspicious. Alerts are kept in a bounded list and
// published through the event handler.
package monitor

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
)

// Level is the severity of an alert.
type Level string

// Set of alert levels.
const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Alert is a single observation.
type Alert struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Details   string    `json:"details"`
}

// Config represents the thresholds the monitor alerts on.
type Config struct {
	LargeBlockBytes  int
	ManyTransactions int
	LowNonce         uint64
	LargeAmount      uint64
	ManyOutputs      int
	HeightJump       uint64
	HeightRegression uint64
	MaxAlerts        int
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		LargeBlockBytes:  3_000_000,
		ManyTransactions: 5_000,
		LowNonce:         1_000,
		LargeAmount:      100_000_00000000,
		ManyOutputs:      1_000,
		HeightJump:       10_000,
		HeightRegression: 6,
		MaxAlerts:        1_000,
	}
}

// Monitor keeps the most recent alerts.
type Monitor struct {
	cfg Config
	ev  func(v string, args ...any)
	now func() time.Time

	mu     sync.RWMutex
	alerts []Alert
}

// New constructs a monitor. Zero thresholds take the defaults.
func New(cfg Config, evHandler func(v string, args ...any)) *Monitor {
	def := DefaultConfig()
	if cfg.LargeBlockBytes == 0 {
		cfg.LargeBlockBytes = def.LargeBlockBytes
	}
	if cfg.ManyTransactions == 0 {
		cfg.ManyTransactions = def.ManyTransactions
	}
	if cfg.LowNonce == 0 {
		cfg.LowNonce = def.LowNonce
	}
	if cfg.LargeAmount == 0 {
		cfg.LargeAmount = def.LargeAmount
	}
	if cfg.ManyOutputs == 0 {
		cfg.ManyOutputs = def.ManyOutputs
	}
	if cfg.HeightJump == 0 {
		cfg.HeightJump = def.HeightJump
	}
	if cfg.HeightRegression == 0 {
		cfg.HeightRegression = def.HeightRegression
	}
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = def.MaxAlerts
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Monitor{
		cfg: cfg,
		ev:  ev,
		now: time.Now,
	}
}

// CheckBlock looks at the size, the transaction count and the nonce of a
// block received or mined by the node.
func (m *Monitor) CheckBlock(block database.Block) {
	if size := block.Size(); size > m.cfg.LargeBlockBytes {
		m.raise(LevelWarning, "large block", "blk[%d] size[%d] bytes", block.Index, size)
	}

	if n := len(block.Trans); n > m.cfg.ManyTransactions {
		m.raise(LevelWarning, "high transaction count", "blk[%d] has %d transactions", block.Index, n)
	}

	if block.Index > 0 && block.Nonce < m.cfg.LowNonce {
		m.raise(LevelInfo, "block mined quickly", "blk[%d] nonce[%d]", block.Index, block.Nonce)
	}
}

// CheckTransaction looks at the amount and the shape of a submitted
// transaction.
func (m *Monitor) CheckTransaction(tx database.Tx) {
	if total := tx.TotalOutput(); total > m.cfg.LargeAmount {
		m.raise(LevelWarning, "large transaction", "tx[%s] amount[%d]", tx.ID, total)
	}

	if n := len(tx.Outputs); n > m.cfg.ManyOutputs {
		m.raise(LevelWarning, "transaction with many outputs", "tx[%s] has %d outputs", tx.ID, n)
	}

	if len(tx.Inputs) == 0 {
		m.raise(LevelCritical, "transaction without inputs", "tx[%s] has no inputs and is not a coinbase", tx.ID)
	}
}

// CheckPeerHeight compares the height a peer reports with the height it
// reported before and with the local height. A peer whose chain shrinks
// by more than the regression threshold is rewriting history, a peer far
// ahead of the node may be feeding it a fabricated chain.
func (m *Monitor) CheckPeerHeight(host string, previous uint64, local uint64, remote uint64) {
	if previous > remote+m.cfg.HeightRegression {
		m.raise(LevelCritical, "peer chain regressed", "peer[%s] height %d -> %d", host, previous, remote)
	}

	if remote > local+m.cfg.HeightJump {
		m.raise(LevelWarning, "peer height jump", "peer[%s] height[%d] local[%d]", host, remote, local)
	}
}

// Recent returns up to n of the latest alerts, oldest first.
func (m *Monitor) Recent(n int) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := max(len(m.alerts)-n, 0)

	alerts := make([]Alert, len(m.alerts)-start)
	copy(alerts, m.alerts[start:])

	return alerts
}

// Critical returns every critical alert held.
func (m *Monitor) Critical() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var alerts []Alert
	for _, a := range m.alerts {
		if a.Level == LevelCritical {
			alerts = append(alerts, a)
		}
	}

	return alerts
}

// Clear drops every alert.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts = nil
}

// =============================================================================

func (m *Monitor) raise(level Level, message string, format string, args ...any) {
	alert := Alert{
		Timestamp: m.now().UTC(),
		Level:     level,
		Message:   message,
		Details:   fmt.Sprintf(format, args...),
	}

	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	if over := len(m.alerts) - m.cfg.MaxAlerts; over > 0 {
		m.alerts = append(m.alerts[:0], m.alerts[over:]...)
	}
	m.mu.Unlock()

	data, err := json.Marshal(alert)
	if err != nil {
		m.ev("monitor: %s: %s: %s", level, message, alert.Details)
		return
	}

	m.ev("events: alert: %s", data)
}
