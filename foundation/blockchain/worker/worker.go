// Package worker implements mining, peer sync, block broadcast and guard
// upkeep for the blockchain.
package worker

import (
	"sync"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/guard"
	"github.com/auriumchain/node/foundation/blockchain/state"
)

// Set of default cadences.
const (
	DefaultMiningInterval = 10 * time.Second
	DefaultSyncInterval   = time.Minute
	DefaultSettleDelay    = 5 * time.Second
	DefaultSweepInterval  = 5 * time.Minute
)

// maxBroadcastRequests represents the max number of pending broadcast
// requests that can be outstanding before requests are dropped.
const maxBroadcastRequests = 100

// maxSyncRequests represents the max number of pending new peer sync
// requests that can be outstanding before requests are dropped.
const maxSyncRequests = 20

// Config represents the configuration of the background operations.
type Config struct {
	Mining           bool
	MiningInterval   time.Duration
	SyncInterval     time.Duration
	SettleDelay      time.Duration
	GenesisAuthority bool
	Guard            *guard.Guard
	SweepInterval    time.Duration
	PeerHorizon      time.Duration
}

// =============================================================================

type broadcast struct {
	block   database.Block
	exclude string
}

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state        *state.State
	cfg          Config
	wg           sync.WaitGroup
	shut         chan struct{}
	startMining  chan bool
	cancelMining chan bool
	syncing      chan string
	broadcasts   chan broadcast
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config, evHandler state.EventHandler) *Worker {
	if cfg.MiningInterval == 0 {
		cfg.MiningInterval = DefaultMiningInterval
	}
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	w := Worker{
		state:        st,
		cfg:          cfg,
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan bool, 1),
		syncing:      make(chan string, maxSyncRequests),
		broadcasts:   make(chan broadcast, maxBroadcastRequests),
		evHandler:    ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.syncOperations,
		w.broadcastOperations,
		w.sweepOperations,
	}
	if cfg.Mining {
		operations = append(operations, w.miningOperations)
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for range g {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: signal cancel mining")
	w.SignalCancelMining()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	if !w.cfg.Mining {
		return
	}

	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- true:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")
}

// SignalSync asks for a sync against a newly connected peer. If
// maxSyncRequests signals exist in the channel, we won't send these.
func (w *Worker) SignalSync(host string) {
	select {
	case w.syncing <- host:
		w.evHandler("worker: SignalSync: sync signaled: %s", host)
	default:
		w.evHandler("worker: SignalSync: queue full, peer %s waits for the next cycle", host)
	}
}

// SignalBroadcast queues the block to be sent to the known peers. If
// maxBroadcastRequests signals exist in the channel, we won't send these.
func (w *Worker) SignalBroadcast(block database.Block, exclude string) {
	select {
	case w.broadcasts <- broadcast{block: block, exclude: exclude}:
		w.evHandler("worker: SignalBroadcast: broadcast signaled: blk[%d]", block.Index)
	default:
		w.evHandler("worker: SignalBroadcast: queue full, blk[%d] won't be broadcast", block.Index)
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}

// sleep waits for the duration or a shutdown. It reports false on shutdown.
func (w *Worker) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-w.shut:
		return false
	}
}
