package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/auriumchain/node/foundation/blockchain/database"
)

// ErrEmptyRange is returned when a peer answers a block request with no
// blocks while claiming to be ahead.
var ErrEmptyRange = errors.New("peer returned no blocks")

// BlockSource is a peer the ledger can pull blocks from.
type BlockSource interface {
	Host() string
	Height(ctx context.Context) (uint64, error)
	Blocks(ctx context.Context, from uint64, to uint64) ([]database.Block, error)
}

// Session is an open connection to a peer.
type Session interface {
	BlockSource
	SendBlock(ctx context.Context, block database.Block) error
	Close() error
}

// Dialer opens a session to the peer at host.
type Dialer func(ctx context.Context, host string) (Session, error)

// =============================================================================

// SyncWithPeer pulls the blocks the peer has beyond the local tip. A peer
// at or below the local height is left alone. Blocks are validated one by
// one against the tip as it moves, and the first failure stops the sync
// keeping what was applied so far. It returns the number of blocks applied.
func (s *State) SyncWithPeer(ctx context.Context, src BlockSource) (int, error) {
	host := src.Host()

	s.evHandler("state: SyncWithPeer: started: %s", host)
	defer s.evHandler("state: SyncWithPeer: completed: %s", host)

	local := s.db.Height()

	remote, err := src.Height(ctx)
	if err != nil {
		return 0, fmt.Errorf("query height: %w", err)
	}
	if pr, exists := s.knownPeers.Get(host); exists {
		s.monitor.CheckPeerHeight(host, pr.Height, local, remote)
	}
	s.knownPeers.UpdateHeight(host, remote)

	switch {
	case remote == local:
		s.evHandler("state: SyncWithPeer: %s: in sync: height[%d]", host, local)
		return 0, nil

	case remote < local:
		s.evHandler("state: SyncWithPeer: %s: peer behind: peer[%d] local[%d]", host, remote, local)
		return 0, nil
	}

	s.evHandler("state: SyncWithPeer: %s: peer ahead: peer[%d] local[%d]", host, remote, local)

	var applied int
	defer func() {
		if applied > 0 {
			s.signalCancelMining()
			s.signalBroadcast(s.db.LatestBlock(), host)
		}
	}()

	for from := local + 1; from <= remote; {
		to := min(from+s.syncBatch-1, remote)

		blocks, err := src.Blocks(ctx, from, to)
		if err != nil {
			return applied, fmt.Errorf("request blocks[%d:%d]: %w", from, to, err)
		}
		if len(blocks) == 0 {
			return applied, fmt.Errorf("%w: blocks[%d:%d]", ErrEmptyRange, from, to)
		}

		s.evHandler("state: SyncWithPeer: %s: received blocks[%d]", host, len(blocks))

		for _, block := range blocks {
			if err := s.acceptBlock(block); err != nil {
				if !database.IsPersistenceError(err) {
					s.evHandler("state: SyncWithPeer: %s: blk[%d]: rejected: %s", host, block.Index, err)
					return applied, err
				}
				s.evHandler("state: SyncWithPeer: %s: WARNING: %s", host, err)
			}
			applied++
		}

		from = blocks[len(blocks)-1].Index + 1
	}

	s.evHandler("state: SyncWithPeer: %s: applied[%d] height[%d]", host, applied, s.db.Height())

	return applied, nil
}

// SyncWithHost dials the peer and runs SyncWithPeer against it.
func (s *State) SyncWithHost(ctx context.Context, host string) (int, error) {
	if s.dial == nil {
		return 0, errors.New("no dialer configured")
	}

	sess, err := s.dial(ctx, host)
	if err != nil {
		return 0, err
	}
	defer sess.Close()

	return s.SyncWithPeer(ctx, sess)
}

// SyncWithPeers runs the sync against every known peer. A failing peer
// only ends its own cycle. It returns the number of blocks applied.
func (s *State) SyncWithPeers(ctx context.Context) int {
	s.evHandler("state: SyncWithPeers: started")
	defer s.evHandler("state: SyncWithPeers: completed")

	var applied int
	for _, pr := range s.RetrieveKnownPeers() {
		if ctx.Err() != nil {
			break
		}

		n, err := s.SyncWithHost(ctx, pr.Host)
		applied += n
		if err != nil {
			s.evHandler("state: SyncWithPeers: %s: ERROR: %s", pr.Host, err)
		}
	}

	return applied
}

// Broadcast sends the block to every known peer except exclude. Failures
// are logged and do not stop the fan out. It returns the number of peers
// the block was delivered to.
func (s *State) Broadcast(ctx context.Context, block database.Block, exclude string) int {
	s.evHandler("state: Broadcast: started: blk[%d]", block.Index)
	defer s.evHandler("state: Broadcast: completed: blk[%d]", block.Index)

	if s.dial == nil {
		return 0
	}

	var sent int
	for _, pr := range s.RetrieveKnownPeers() {
		if pr.Match(exclude) {
			continue
		}

		if err := s.sendBlock(ctx, pr.Host, block); err != nil {
			s.evHandler("state: Broadcast: %s: WARNING: %s", pr.Host, err)
			continue
		}

		sent++
		s.evHandler("state: Broadcast: sent to peer[%s]", pr.Host)
	}

	return sent
}

func (s *State) sendBlock(ctx context.Context, host string, block database.Block) error {
	sess, err := s.dial(ctx, host)
	if err != nil {
		return err
	}
	defer sess.Close()

	return sess.SendBlock(ctx, block)
}
