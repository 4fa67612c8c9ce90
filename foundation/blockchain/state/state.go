// Package state is the core API for the ledger and implements all the
// business rules for validating, committing and accounting blocks.
package state

import (
	"context"
	"errors"

	"github.com/allegro/bigcache/v3"
	"github.com/ardanlabs/powledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/powledger/foundation/blockchain/balance"
	"github.com/ardanlabs/powledger/foundation/blockchain/chain"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/settings"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
	"github.com/benbjohnson/clock"
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// =============================================================================

// Config represents the configuration required to start the ledger. Clock,
// Cache and EvHandler are optional.
type Config struct {
	KV        storage.KV
	Clock     clock.Clock
	Cache     *bigcache.BigCache
	EvHandler EventHandler
}

// State manages the ledger. It holds no state between calls other than what
// is in the key-value store.
type State struct {
	kv        storage.KV
	clock     clock.Clock
	evHandler EventHandler

	chain    *chain.Store
	accounts *accounts.Accounts
	ledger   *balance.Ledger
	settings *settings.Settings
}

// New constructs a ledger over the key-value store.
func New(cfg Config) (*State, error) {
	if cfg.KV == nil {
		return nil, errors.New("state: a key-value store is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	blocks := chain.New(cfg.KV)

	state := State{
		kv:        cfg.KV,
		clock:     clk,
		evHandler: ev,

		chain:    blocks,
		accounts: accounts.New(cfg.KV),
		ledger:   balance.New(balance.Config{KV: cfg.KV, Chain: blocks, Cache: cfg.Cache}),
		settings: settings.New(cfg.KV),
	}

	return &state, nil
}

// Ping checks the key-value store is reachable.
func (s *State) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// Shutdown cleanly releases the key-value store.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: closing store")
	return s.kv.Close()
}

// Seed applies the genesis to the store, creating the root block if it is
// not already on the chain.
func (s *State) Seed(ctx context.Context, g genesis.Genesis) (chain.Block, bool, error) {
	cfg := genesis.Config{
		Accounts: s.accounts,
		Settings: s.settings,
		Chain:    s.chain,
	}

	block, created, err := genesis.Seed(ctx, cfg, g, s.clock.Now())
	if err != nil {
		return chain.Block{}, false, err
	}

	if created {
		s.evHandler("state: Seed: root block created: hash[%s]", block.Hash)
		s.blockEvent(block)
	}

	return block, created, nil
}
