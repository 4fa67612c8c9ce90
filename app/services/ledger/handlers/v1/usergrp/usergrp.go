// Package usergrp maintains the group of handlers for account access.
package usergrp

import (
	"context"
	"net/http"

	v1 "github.com/ardanlabs/powledger/business/web/v1"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of account endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// account is the registration outcome with the balance history.
type account struct {
	Name      string             `json:"name"`
	IsNewUser bool               `json:"is_new_user"`
	Balance   map[string]float64 `json:"balance"`
}

// Query returns every registered account name.
func (h Handlers) Query(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	names, err := h.State.ListAccounts(ctx)
	if err != nil {
		return v1.LedgerError(err)
	}
	if names == nil {
		names = []string{}
	}

	return web.Respond(ctx, w, names, http.StatusOK)
}

// Register registers the account if it is new and returns its balance as of
// every block.
func (h Handlers) Register(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	reg, err := h.State.RegisterAccount(ctx, web.Param(r, "name"))
	if err != nil {
		return v1.LedgerError(err)
	}

	if reg.IsNew {
		h.Log.Infow("register account", "traceid", v.TraceID, "name", reg.Name)
	}

	balances, err := h.State.AccountBalances(ctx, reg.Name)
	if err != nil {
		return v1.LedgerError(err)
	}

	resp := account{
		Name:      reg.Name,
		IsNewUser: reg.IsNew,
		Balance:   balances,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
