package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/pow"
)

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain. The tip is read once, the proof of
// work runs without holding any lock, and the solved block goes through the
// validator against whatever the tip is by then.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: prepare block")

	tip := s.db.LatestBlock()
	index := tip.Index + 1

	timestamp := time.Now().Unix()
	if timestamp < tip.Timestamp {
		timestamp = tip.Timestamp
	}

	// Pick the best transactions from the mempool leaving room for the
	// coinbase.
	trans := s.mempool.PickBest(s.consensus.TransPerBlock - 1)
	coinbase := database.NewCoinbaseTx(index, s.beneficiaryID, database.Reward(index), timestamp)

	block, err := database.NewBlock(tip, append([]database.Tx{coinbase}, trans...), s.nextDifficulty(tip), s.beneficiaryID, timestamp)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: blk[%d] diff[%d] txs[%d]", index, block.Difficulty, len(block.Trans))

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err = pow.Mine(ctx, block, s.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	if err := s.acceptBlock(block); err != nil {
		if !database.IsPersistenceError(err) {
			return database.Block{}, err
		}
		s.evHandler("state: MineNewBlock: WARNING: %s", err)
	}

	s.signalBroadcast(block, "")

	return block, nil
}

// ProcessProposedBlock takes a block submitted to this node, validates it
// and if that passes, adds the block to the local blockchain.
func (s *State) ProcessProposedBlock(block database.Block) error {
	return s.ProcessPeerBlock("", block)
}

// ProcessPeerBlock takes a block received from a peer, validates it and if
// that passes, adds the block to the local blockchain and relays it to the
// other peers.
func (s *State) ProcessPeerBlock(from string, block database.Block) error {
	s.evHandler("state: ProcessPeerBlock: started: from[%s] prevBlk[%s]: newBlk[%s]: numTrans[%d]", from, block.PrevHash, block.Hash, len(block.Trans))
	defer s.evHandler("state: ProcessPeerBlock: completed: newBlk[%s]", block.Hash)

	if err := s.acceptBlock(block); err != nil {
		if !database.IsPersistenceError(err) {
			return err
		}
		s.evHandler("state: ProcessPeerBlock: WARNING: %s", err)
	}

	if from != "" {
		s.knownPeers.UpdateHeight(from, block.Index)
	}

	// Any mining operation in flight is working on a stale tip.
	s.signalCancelMining()
	s.signalBroadcast(block, from)

	return nil
}

// =============================================================================

// acceptBlock validates the block against the current tip and appends it.
// Validation and append happen under one lock so no other writer can move
// the tip in between. A PersistenceError means the block was appended but
// the storage write failed.
func (s *State) acceptBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: acceptBlock: validate block[%d]", block.Index)

	s.monitor.CheckBlock(block)

	if err := s.validator.Validate(block, s.db.LatestBlock()); err != nil {
		return err
	}

	s.evHandler("state: acceptBlock: append block[%d]", block.Index)

	err := s.db.Append(block)
	if err != nil && !database.IsPersistenceError(err) {
		return err
	}

	if n := s.mempool.RemoveCommitted(block); n > 0 {
		s.evHandler("state: acceptBlock: removed[%d] transactions from mempool", n)
	}

	// Send an event about this new block.
	s.blockEvent(block)

	return err
}

// nextDifficulty returns the difficulty for the block following tip.
func (s *State) nextDifficulty(tip database.Block) uint {
	if tip.Index == 0 {
		return s.consensus.InitialDifficulty
	}

	var from uint64
	if tip.Index > s.consensus.RetargetInterval {
		from = tip.Index - s.consensus.RetargetInterval
	}

	return pow.NextDifficulty(s.db.Range(from, tip.Index), s.consensus.RetargetInterval, s.consensus.TargetBlockTime)
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = fmt.Appendf(nil, "%q", err.Error())
	}

	s.evHandler(`events: block: {"hash":%q,"index":%d,"block":%s}`, block.Hash, block.Index, string(blockJSON))
}
