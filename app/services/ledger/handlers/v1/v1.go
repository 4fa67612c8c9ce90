// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/powledger/app/services/ledger/handlers/v1/blockgrp"
	"github.com/ardanlabs/powledger/app/services/ledger/handlers/v1/eventgrp"
	"github.com/ardanlabs/powledger/app/services/ledger/handlers/v1/settingsgrp"
	"github.com/ardanlabs/powledger/app/services/ledger/handlers/v1/usergrp"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/web"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	bgh := blockgrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}
	app.Handle(http.MethodGet, "", "/", bgh.Index)
	app.Handle(http.MethodGet, version, "/blocks", bgh.QueryBlocks)
	app.Handle(http.MethodPost, version, "/blocks", bgh.SubmitBlock)
	app.Handle(http.MethodGet, version, "/blocks/:hash", bgh.QueryBlock)
	app.Handle(http.MethodGet, version, "/balances/:account/:hash", bgh.QueryBalance)

	ugh := usergrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}
	app.Handle(http.MethodGet, version, "/users", ugh.Query)
	app.Handle(http.MethodGet, version, "/users/:name", ugh.Register)
	app.Handle(http.MethodPost, version, "/users/:name", ugh.Register)

	sgh := settingsgrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}
	app.Handle(http.MethodGet, version, "/settings", sgh.Query)
	app.Handle(http.MethodGet, version, "/settings/difficulty", sgh.QueryDifficulty)
	app.Handle(http.MethodPut, version, "/settings/difficulty", sgh.UpdateDifficulty)
	app.Handle(http.MethodGet, version, "/settings/transfer-charge", sgh.QueryTransferCharge)
	app.Handle(http.MethodPut, version, "/settings/transfer-charge", sgh.UpdateTransferCharge)

	egh := eventgrp.Handlers{
		Log:  cfg.Log,
		Evts: cfg.Evts,
	}
	app.Handle(http.MethodGet, version, "/events", egh.Events)
}
