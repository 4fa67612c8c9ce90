// Package genesis maintains access to the genesis file and seeds a fresh
// store with the root block of the chain.
package genesis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/powledger/foundation/blockchain/chain"
	"github.com/ardanlabs/powledger/foundation/blockchain/pow"
	"github.com/ardanlabs/powledger/foundation/blockchain/settings"
	"github.com/ardanlabs/powledger/foundation/blockchain/validate"
	"gopkg.in/yaml.v3"
)

// Genesis represents the genesis file.
type Genesis struct {
	Nonce          string   `yaml:"nonce"`
	Miner          string   `yaml:"miner"`
	Message        string   `yaml:"message"`
	Accounts       []string `yaml:"accounts"`
	Difficulty     *int     `yaml:"difficulty"`      // Left unchanged when absent.
	TransferCharge *float64 `yaml:"transfer_charge"` // Left unchanged when absent.
}

// Default returns the genesis used when no file is configured.
func Default() Genesis {
	return Genesis{
		Miner:   "genesis",
		Message: "genesis",
	}
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	return Parse(content)
}

// Parse decodes and validates a genesis document.
func Parse(content []byte) (Genesis, error) {
	var genesis Genesis
	if err := yaml.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis: %w", err)
	}

	if err := validate.NonceFormat("nonce", genesis.Nonce); err != nil {
		return Genesis{}, err
	}
	for _, name := range genesis.Accounts {
		if err := validate.AccountNameFormat("accounts", name); err != nil {
			return Genesis{}, err
		}
	}

	return genesis, nil
}

// Hash returns the hash of the root block.
func (g Genesis) Hash() string {
	return pow.Hash("", g.Nonce)
}

// =============================================================================

// Config represents the stores the genesis is seeded into.
type Config struct {
	Accounts *accounts.Accounts
	Settings *settings.Settings
	Chain    *chain.Store
}

// Seed registers the genesis accounts, applies the tunables it carries and
// persists the root block if it is not already on the chain. It reports
// whether the root block was created by this call.
func Seed(ctx context.Context, cfg Config, g Genesis, now time.Time) (chain.Block, bool, error) {
	for _, name := range g.Accounts {
		if _, err := cfg.Accounts.Register(ctx, name); err != nil {
			return chain.Block{}, false, fmt.Errorf("registering %s: %w", name, err)
		}
	}

	if g.Difficulty != nil {
		if err := cfg.Settings.SetDifficulty(ctx, *g.Difficulty); err != nil {
			return chain.Block{}, false, err
		}
	}
	if g.TransferCharge != nil {
		if err := cfg.Settings.SetTransferCharge(ctx, *g.TransferCharge); err != nil {
			return chain.Block{}, false, err
		}
	}

	block := chain.Block{
		Hash:      g.Hash(),
		Nonce:     g.Nonce,
		Miner:     g.Miner,
		Message:   g.Message,
		CreatedAt: now.UTC(),
	}

	err := cfg.Chain.Put(ctx, block)
	switch {
	case errors.Is(err, chain.ErrExists):
		existing, err := cfg.Chain.Get(ctx, block.Hash)
		if err != nil {
			return chain.Block{}, false, err
		}
		return existing, false, nil

	case err != nil:
		return chain.Block{}, false, err
	}

	return block, true, nil
}
