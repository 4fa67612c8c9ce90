// Package settingsgrp maintains the group of handlers for the ledger
// tunables.
package settingsgrp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ardanlabs/powledger/business/sys/validate"
	v1 "github.com/ardanlabs/powledger/business/web/v1"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of settings endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

type difficulty struct {
	Difficulty *int `json:"difficulty" validate:"required,min=0,max=64"`
}

type transferCharge struct {
	TransferCharge *float64 `json:"transfer_charge" validate:"required,min=0,max=1"`
}

// Query returns both tunables.
func (h Handlers) Query(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tun, err := h.State.Tunables(ctx)
	if err != nil {
		return v1.LedgerError(err)
	}

	return web.Respond(ctx, w, tun, http.StatusOK)
}

// QueryDifficulty returns the current difficulty.
func (h Handlers) QueryDifficulty(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tun, err := h.State.Tunables(ctx)
	if err != nil {
		return v1.LedgerError(err)
	}

	return web.Respond(ctx, w, difficulty{Difficulty: &tun.Difficulty}, http.StatusOK)
}

// UpdateDifficulty changes the difficulty.
func (h Handlers) UpdateDifficulty(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var d difficulty
	if err := web.Decode(r, &d); err != nil {
		return v1.NewRequestError(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(d); err != nil {
		return err
	}

	if err := h.State.SetDifficulty(ctx, *d.Difficulty); err != nil {
		return v1.LedgerError(err)
	}

	h.Log.Infow("update difficulty", "traceid", v.TraceID, "difficulty", *d.Difficulty)

	return web.Respond(ctx, w, d, http.StatusOK)
}

// QueryTransferCharge returns the current transfer charge.
func (h Handlers) QueryTransferCharge(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tun, err := h.State.Tunables(ctx)
	if err != nil {
		return v1.LedgerError(err)
	}

	return web.Respond(ctx, w, transferCharge{TransferCharge: &tun.TransferCharge}, http.StatusOK)
}

// UpdateTransferCharge changes the transfer charge.
func (h Handlers) UpdateTransferCharge(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tc transferCharge
	if err := web.Decode(r, &tc); err != nil {
		return v1.NewRequestError(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(tc); err != nil {
		return err
	}

	if err := h.State.SetTransferCharge(ctx, *tc.TransferCharge); err != nil {
		return v1.LedgerError(err)
	}

	h.Log.Infow("update transfer charge", "traceid", v.TraceID, "transfer_charge", *tc.TransferCharge)

	return web.Respond(ctx, w, tc, http.StatusOK)
}
