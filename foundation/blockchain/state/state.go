// Package state is the core API for the blockchain and implements all the
// business rules and processing. It owns the single ledger handle shared by
// the mining, sync and query paths.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/genesis"
	"github.com/auriumchain/node/foundation/blockchain/mempool"
	"github.com/auriumchain/node/foundation/blockchain/monitor"
	"github.com/auriumchain/node/foundation/blockchain/peer"
	"github.com/auriumchain/node/foundation/blockchain/signature"
	"github.com/auriumchain/node/foundation/blockchain/validator"
)

// Set of consensus defaults.
const (
	DefaultBlockTime        = 2 * time.Minute
	DefaultRetargetInterval = 10
	DefaultTransPerBlock    = 1_000
	DefaultSyncBatch        = 500
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer sync, and block broadcast.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
	SignalSync(host string)
	SignalBroadcast(block database.Block, exclude string)
}

// Consensus holds the mining parameters of the node.
type Consensus struct {
	TargetBlockTime   time.Duration
	RetargetInterval  uint64
	InitialDifficulty uint
	TransPerBlock     int
}

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	BeneficiaryID     string
	Host              string
	Genesis           database.Block
	Storage           database.Storage
	SelectStrategy    string
	KnownPeers        *peer.PeerSet
	Validator         *validator.Validator
	Monitor           *monitor.Monitor
	Verifier          signature.Verifier
	RequireSignatures bool
	Dial              Dialer
	Consensus         Consensus
	SyncBatch         uint64
	EvHandler         EventHandler
}

// State manages the blockchain database.
type State struct {
	mu sync.Mutex

	beneficiaryID     string
	host              string
	evHandler         EventHandler
	consensus         Consensus
	syncBatch         uint64
	requireSignatures bool

	db         *database.Database
	mempool    *mempool.Mempool
	knownPeers *peer.PeerSet
	validator  *validator.Validator
	monitor    *monitor.Monitor
	verifier   signature.Verifier
	dial       Dialer

	Worker Worker
}

// New constructs a new blockchain for data management. The chain held by
// the storage is audited before the node starts using it.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	gen := cfg.Genesis
	if gen.Hash == "" {
		gen = genesis.Block()
	}

	if cfg.RequireSignatures && cfg.Verifier == nil {
		return nil, errors.New("signatures required without a verifier")
	}

	v := cfg.Validator
	if v == nil {
		v = validator.New()
	}

	// Access the storage for the blockchain and load the chain it holds.
	db, err := database.New(gen, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	if err := v.ValidateChain(db.Blocks()); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit stored chain: %w", err)
	}

	// Construct a mempool with the specified select strategy.
	mp, err := mempool.NewWithStrategy(cfg.SelectStrategy)
	if err != nil {
		db.Close()
		return nil, err
	}

	mon := cfg.Monitor
	if mon == nil {
		mon = monitor.New(monitor.DefaultConfig(), ev)
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet(0)
	}

	consensus := cfg.Consensus
	if consensus.TargetBlockTime == 0 {
		consensus.TargetBlockTime = DefaultBlockTime
	}
	if consensus.RetargetInterval == 0 {
		consensus.RetargetInterval = DefaultRetargetInterval
	}
	if consensus.InitialDifficulty == 0 {
		consensus.InitialDifficulty = gen.Difficulty
	}
	if consensus.TransPerBlock == 0 {
		consensus.TransPerBlock = DefaultTransPerBlock
	}

	syncBatch := cfg.SyncBatch
	if syncBatch == 0 {
		syncBatch = DefaultSyncBatch
	}

	// Create the State to provide support for managing the blockchain.
	state := State{
		beneficiaryID:     cfg.BeneficiaryID,
		host:              cfg.Host,
		evHandler:         ev,
		consensus:         consensus,
		syncBatch:         syncBatch,
		requireSignatures: cfg.RequireSignatures,

		db:         db,
		mempool:    mp,
		knownPeers: knownPeers,
		validator:  v,
		monitor:    mon,
		verifier:   cfg.Verifier,
		dial:       cfg.Dial,
	}

	ev("state: New: height[%d] tip[%s]", db.Height(), db.LatestBlock().Hash)

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Make sure the storage is properly closed.
	return s.db.Close()
}

// =============================================================================

func (s *State) signalStartMining() {
	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}
}

func (s *State) signalCancelMining() {
	if s.Worker != nil {
		s.Worker.SignalCancelMining()
	}
}

func (s *State) signalSync(host string) {
	if s.Worker != nil {
		s.Worker.SignalSync(host)
	}
}

func (s *State) signalBroadcast(block database.Block, exclude string) {
	if s.Worker != nil {
		s.Worker.SignalBroadcast(block, exclude)
	}
}
