package worker

import (
	"time"
)

// sweepOperations drops stale guard state and silent peers.
func (w *Worker) sweepOperations() {
	w.evHandler("worker: sweepOperations: G started")
	defer w.evHandler("worker: sweepOperations: G completed")

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				w.runSweepOperation()
			}
		case <-w.shut:
			w.evHandler("worker: sweepOperations: received shut signal")
			return
		}
	}
}

// runSweepOperation performs one sweep.
func (w *Worker) runSweepOperation() {
	if w.cfg.Guard != nil {
		if n := w.cfg.Guard.Sweep(); n > 0 {
			w.evHandler("worker: runSweepOperation: guard: swept[%d] addresses", n)
		}
	}

	if w.cfg.PeerHorizon > 0 {
		for _, host := range w.state.StalePeers(w.cfg.PeerHorizon) {
			w.evHandler("worker: runSweepOperation: removing silent peer[%s]", host)
			w.state.RemoveKnownPeer(host)
		}
	}
}
