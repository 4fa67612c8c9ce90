// Package blockgrp maintains the group of handlers for block access.
package blockgrp

import (
	"context"
	"net/http"

	"github.com/ardanlabs/powledger/business/sys/metrics"
	v1 "github.com/ardanlabs/powledger/business/web/v1"
	"github.com/ardanlabs/powledger/foundation/blockchain/chain"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/validate"
	"github.com/ardanlabs/powledger/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of block endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Index returns every block and every registered account.
func (h Handlers) Index(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks, err := h.State.ListBlocks(ctx)
	if err != nil {
		return v1.LedgerError(err)
	}

	users, err := h.State.ListAccounts(ctx)
	if err != nil {
		return v1.LedgerError(err)
	}

	resp := index{
		Blocks: nonNil(blocks),
		Users:  users,
	}
	if resp.Users == nil {
		resp.Users = []string{}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// QueryBlocks returns every block ordered by creation time.
func (h Handlers) QueryBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks, err := h.State.ListBlocks(ctx)
	if err != nil {
		return v1.LedgerError(err)
	}

	return web.Respond(ctx, w, nonNil(blocks), http.StatusOK)
}

// QueryBlock returns the block with the balance of every account as of it.
func (h Handlers) QueryBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	detail, err := h.State.GetBlock(ctx, web.Param(r, "hash"))
	if err != nil {
		return v1.LedgerError(err)
	}

	return web.Respond(ctx, w, detail, http.StatusOK)
}

// SubmitBlock validates and commits a new block.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	nb, err := decodeNewBlock(r)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	tun, err := h.State.Tunables(ctx)
	if err != nil {
		return v1.LedgerError(err)
	}

	block, err := h.State.SubmitBlock(ctx, tun, nb.toSubmission())
	if err != nil {
		outcome := "error"
		if ve := state.GetValidationError(err); ve != nil {
			outcome = ve.Kind.String()
		}
		metrics.AddBlock(ctx, outcome)

		if block.Hash != "" {
			h.Log.Infow("submit block", "traceid", v.TraceID, "status", "committed as mining-only", "hash", block.Hash, "ERROR", err)
		}

		return v1.LedgerError(err)
	}

	metrics.AddBlock(ctx, "committed")
	h.Log.Infow("submit block", "traceid", v.TraceID, "status", "committed", "hash", block.Hash, "miner", block.Miner)

	return web.Respond(ctx, w, block, http.StatusOK)
}

// QueryBalance returns the balance of an account as of a block.
func (h Handlers) QueryBalance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	account := web.Param(r, "account")
	hash := validate.NormalizeHash(web.Param(r, "hash"))

	amount, err := h.State.GetBalance(ctx, account, hash)
	if err != nil {
		return v1.LedgerError(err)
	}

	resp := balance{
		Account: account,
		Hash:    hash,
		Balance: amount,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

func nonNil(blocks []chain.Block) []chain.Block {
	if blocks == nil {
		return []chain.Block{}
	}
	return blocks
}
