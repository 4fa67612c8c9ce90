package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/ardanlabs/powledger/foundation/blockchain/chain"
	"github.com/ardanlabs/powledger/foundation/blockchain/validate"
)

// BlockDetail is a committed block with the balance of every registered
// account as of that block.
type BlockDetail struct {
	chain.Block
	Balances map[string]float64 `json:"balance"`
}

// GetBlock returns the block and the balances of every registered account
// as of that block.
func (s *State) GetBlock(ctx context.Context, hash string) (BlockDetail, error) {
	hash = validate.NormalizeHash(hash)
	if err := validate.HashFormat("hash", hash); err != nil {
		return BlockDetail{}, formatError(err)
	}

	exists, err := s.chain.Exists(ctx, hash)
	if err != nil {
		return BlockDetail{}, err
	}
	if !exists {
		return BlockDetail{}, fmt.Errorf("block %s: %w", hash, ErrNotFound)
	}

	block, err := s.chain.Get(ctx, hash)
	if err != nil {
		return BlockDetail{}, err
	}

	names, err := s.accounts.List(ctx)
	if err != nil {
		return BlockDetail{}, err
	}

	balances, err := s.ledger.BalancesAt(ctx, names, hash)
	if err != nil {
		return BlockDetail{}, err
	}

	return BlockDetail{Block: block, Balances: balances}, nil
}

// ListBlocks returns every committed block, oldest first.
func (s *State) ListBlocks(ctx context.Context) ([]chain.Block, error) {
	return s.chain.List(ctx)
}

// GetBalance returns the balance of the account as of the block. A block
// that is not on the chain yields zero.
func (s *State) GetBalance(ctx context.Context, account string, hash string) (float64, error) {
	hash = validate.NormalizeHash(hash)
	if err := validate.AccountNameFormat("account", account); err != nil {
		return 0, formatError(err)
	}
	if err := validate.HashFormat("hash", hash); err != nil {
		return 0, formatError(err)
	}

	return s.ledger.BalanceOf(ctx, account, hash)
}

// AccountBalances returns the balance of the account as of every committed
// block, keyed by block hash.
func (s *State) AccountBalances(ctx context.Context, name string) (map[string]float64, error) {
	name = strings.TrimSpace(name)
	if err := validate.AccountNameFormat("name", name); err != nil {
		return nil, formatError(err)
	}

	hashes, err := s.chain.ListHashes(ctx)
	if err != nil {
		return nil, err
	}

	return s.ledger.History(ctx, name, hashes)
}
