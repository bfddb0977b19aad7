// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/auriumchain/node/app/services/node/handlers/v1/private"
	"github.com/auriumchain/node/app/services/node/handlers/v1/public"
	"github.com/auriumchain/node/business/web/mid"
	"github.com/auriumchain/node/foundation/blockchain/guard"
	"github.com/auriumchain/node/foundation/blockchain/state"
	"github.com/auriumchain/node/foundation/events"
	"github.com/auriumchain/node/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Guard *guard.Guard
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/blocks/index/:index", pbl.BlockByIndex)
	app.Handle(http.MethodGet, version, "/blocks/hash/:hash", pbl.BlockByHash)
	app.Handle(http.MethodGet, version, "/blocks/list/:from/:to", pbl.BlocksByNumber)
	app.Handle(http.MethodGet, version, "/balance/:address", pbl.Balance)
	app.Handle(http.MethodGet, version, "/chain/validate", pbl.ValidateChain)
	app.Handle(http.MethodPost, version, "/blocks/submit", pbl.SubmitBlock, mid.Guard(cfg.Guard, true))
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction, mid.Guard(cfg.Guard, false))
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", pbl.Mempool)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Guard: cfg.Guard,
	}

	app.Handle(http.MethodGet, version, "/node/peers", prv.Peers)
	app.Handle(http.MethodPost, version, "/node/peers", prv.AddPeer)
	app.Handle(http.MethodGet, version, "/node/alerts", prv.Alerts)
	app.Handle(http.MethodGet, version, "/node/guard/banned", prv.Banned)
	app.Handle(http.MethodPost, version, "/node/guard/unban/:addr", prv.Unban)
}
