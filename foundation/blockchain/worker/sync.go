package worker

import (
	"context"
	"time"
)

// syncOperations runs the initial sync once the node has settled, then the
// periodic sync and the syncs requested for newly connected peers.
func (w *Worker) syncOperations() {
	w.evHandler("worker: syncOperations: G started")
	defer w.evHandler("worker: syncOperations: G completed")

	if w.cfg.GenesisAuthority {
		w.evHandler("worker: syncOperations: genesis authority: initial sync skipped")
	} else {
		if !w.sleep(w.cfg.SettleDelay) {
			return
		}
		w.Sync()
	}

	ctx, cancel := w.shutdownContext()
	defer cancel()

	ticker := time.NewTicker(w.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				w.Sync()
			}
		case host := <-w.syncing:
			if !w.isShutdown() {
				if _, err := w.state.SyncWithHost(ctx, host); err != nil {
					w.evHandler("worker: syncOperations: %s: ERROR: %s", host, err)
				}
			}
		case <-w.shut:
			w.evHandler("worker: syncOperations: received shut signal")
			return
		}
	}
}

// Sync runs the sync algorithm against every known peer.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	ctx, cancel := w.shutdownContext()
	defer cancel()

	if n := w.state.SyncWithPeers(ctx); n > 0 {
		w.evHandler("worker: sync: applied[%d] height[%d]", n, w.state.QueryHeight())
	}
}

// broadcastOperations handles sending new blocks to the known peers.
func (w *Worker) broadcastOperations() {
	w.evHandler("worker: broadcastOperations: G started")
	defer w.evHandler("worker: broadcastOperations: G completed")

	ctx, cancel := w.shutdownContext()
	defer cancel()

	for {
		select {
		case b := <-w.broadcasts:
			if !w.isShutdown() {
				sent := w.state.Broadcast(ctx, b.block, b.exclude)
				w.evHandler("worker: broadcastOperations: blk[%d] sent to[%d] peers", b.block.Index, sent)
			}
		case <-w.shut:
			w.evHandler("worker: broadcastOperations: received shut signal")
			return
		}
	}
}

// =============================================================================

// shutdownContext returns a context cancelled on shutdown.
func (w *Worker) shutdownContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		select {
		case <-w.shut:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
