// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/auriumchain/node/business/sys/validate"
	"github.com/auriumchain/node/business/web/errs"
	"github.com/auriumchain/node/foundation/blockchain/guard"
	"github.com/auriumchain/node/foundation/blockchain/monitor"
	"github.com/auriumchain/node/foundation/blockchain/peer"
	"github.com/auriumchain/node/foundation/blockchain/state"
	"github.com/auriumchain/node/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node operator endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Guard *guard.Guard
}

// newPeer is the payload for registering a peer by hand.
type newPeer struct {
	Host string `json:"host" validate:"required,hostname_port"`
}

// Validate checks the host is usable.
func (np newPeer) Validate() error {
	return validate.Check(np)
}

// Peers returns the known peers.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	peers := h.State.RetrieveKnownPeers()
	if peers == nil {
		peers = []peer.Peer{}
	}

	return web.Respond(ctx, w, peers, http.StatusOK)
}

// AddPeer registers a peer and asks for a sync with it.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var np newPeer
	if err := web.Decode(r, &np); err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if !h.State.AddKnownPeer(np.Host) {
		return errs.NewTrusted(errors.New("peer already known, full registry or self"), http.StatusConflict)
	}

	h.Log.Infow("add peer", "traceid", web.GetTraceID(ctx), "host", np.Host)

	if h.State.Worker != nil {
		h.State.Worker.SignalSync(np.Host)
	}

	return web.Respond(ctx, w, peer.New(np.Host), http.StatusCreated)
}

// Alerts returns the latest security monitor alerts. The count query
// parameter bounds the result, level=critical returns the critical ones.
func (h Handlers) Alerts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	count := 100
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errs.NewTrusted(errors.New("invalid count"), http.StatusBadRequest)
		}
		count = n
	}

	critical := r.URL.Query().Get("level") == string(monitor.LevelCritical)

	alerts := h.State.QueryAlerts(count, critical)
	if alerts == nil {
		alerts = []monitor.Alert{}
	}

	return web.Respond(ctx, w, alerts, http.StatusOK)
}

// Banned returns the addresses currently banned by the abuse guard.
func (h Handlers) Banned(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	banned := h.Guard.Banned()
	if banned == nil {
		banned = []guard.Stats{}
	}

	return web.Respond(ctx, w, banned, http.StatusOK)
}

// Unban lifts the ban on the address.
func (h Handlers) Unban(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr := web.Param(r, "addr")

	if !h.Guard.Unban(addr) {
		return errs.NewTrusted(errors.New("address is not banned"), http.StatusNotFound)
	}

	h.Log.Infow("unban", "traceid", web.GetTraceID(ctx), "addr", addr)

	return web.Respond(ctx, w, h.Guard.Stats(addr), http.StatusOK)
}
