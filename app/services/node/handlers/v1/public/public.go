// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/auriumchain/node/business/web/errs"
	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/mempool"
	"github.com/auriumchain/node/foundation/blockchain/p2p"
	"github.com/auriumchain/node/foundation/blockchain/state"
	"github.com/auriumchain/node/foundation/blockchain/validator"
	"github.com/auriumchain/node/foundation/events"
	"github.com/auriumchain/node/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Status returns the chain status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ps := h.State.QueryStatus()

	st := status{
		GenesisHash:     h.State.QueryGenesisHash(),
		Height:          ps.LatestBlockNumber,
		LatestBlockHash: ps.LatestBlockHash,
		Difficulty:      ps.Difficulty,
		Hashrate:        h.State.QueryHashrate(),
		Uncommitted:     h.State.QueryMempoolLength(),
		KnownPeers:      ps.KnownPeers,
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// BlockByIndex returns the block at the specified index. The word latest
// selects the tip.
func (h Handlers) BlockByIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := parseIndex(web.Param(r, "index"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if index == state.QueryLatest {
		return web.Respond(ctx, w, h.State.QueryLatestBlock(), http.StatusOK)
	}

	block, err := h.State.QueryBlockByNumber(index)
	if err != nil {
		return notFound(err)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// BlockByHash returns the block with the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.QueryBlockByHash(web.Param(r, "hash"))
	if err != nil {
		return notFound(err)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// BlocksByNumber returns the blocks in the inclusive range in ascending
// order. The range is capped the same way peers are served.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := parseIndex(web.Param(r, "from"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	to, err := parseIndex(web.Param(r, "to"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from == state.QueryLatest {
		from = h.State.QueryHeight()
	}
	if to == state.QueryLatest {
		to = h.State.QueryHeight()
	}

	if err := (blockRange{From: from, To: to}).Validate(); err != nil {
		return err
	}

	if to-from >= p2p.MaxBlocksPerRequest {
		to = from + p2p.MaxBlocksPerRequest - 1
	}

	blocks := h.State.QueryBlocksByNumber(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Balance returns the unspent balance of the address.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	bal := balance{
		Address: address,
		Balance: h.State.QueryBalance(address),
		Height:  h.State.QueryHeight(),
	}

	return web.Respond(ctx, w, bal, http.StatusOK)
}

// ValidateChain audits the whole chain held by the node.
func (h Handlers) ValidateChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	check := chainCheck{
		Valid:  true,
		Height: h.State.QueryHeight(),
	}

	if err := h.State.ValidateChain(); err != nil {
		check.Valid = false
		check.Rule = string(validator.RuleOf(err))
		check.Error = err.Error()
	}

	return web.Respond(ctx, w, check, http.StatusOK)
}

// SubmitBlock validates a mined block against the tip and appends it.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var block database.Block
	if err := web.Decode(r, &block); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit block", "traceid", v.TraceID, "index", block.Index, "hash", block.Hash)

	if err := h.State.ProcessProposedBlock(block); err != nil {
		if validator.IsValidationError(err) {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		return err
	}

	resp := accepted{
		Status: "block appended",
		ID:     block.Hash,
		Index:  block.Index,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitTransaction adds a new transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx database.Tx
	if err := web.Decode(r, &tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit tx", "traceid", v.TraceID, "id", tx.ID, "inputs", len(tx.Inputs), "outputs", len(tx.Outputs), "fee", tx.Fee)

	if err := h.State.SubmitTransaction(tx); err != nil {
		switch {
		case errors.Is(err, mempool.ErrConflict), errors.Is(err, state.ErrAlreadySpent):
			return errs.NewTrusted(err, http.StatusConflict)
		default:
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
	}

	resp := accepted{
		Status: "transaction added to mempool",
		ID:     tx.ID,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions in selection order.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	trans := h.State.QueryMempool()
	if trans == nil {
		trans = []database.Tx{}
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// =============================================================================

func parseIndex(s string) (uint64, error) {
	if s == "latest" {
		return state.QueryLatest, nil
	}

	index, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block index %q", s)
	}

	return index, nil
}

func notFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return errs.NewTrusted(err, http.StatusNotFound)
	}
	return err
}
