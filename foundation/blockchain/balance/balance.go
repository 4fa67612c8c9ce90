// Package balance maintains the per block balance snapshots of every account.
// A snapshot is the balance of an account immediately after a block was
// applied and never changes once the block is visible on the chain.
package balance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/allegro/bigcache/v3"
	"github.com/ardanlabs/powledger/foundation/blockchain/chain"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
)

// Config represents the dependencies required by the ledger. Cache is
// optional.
type Config struct {
	KV    storage.KV
	Chain *chain.Store
	Cache *bigcache.BigCache
}

// Ledger computes and memoizes account balances.
type Ledger struct {
	kv    storage.KV
	chain *chain.Store
	cache *bigcache.BigCache
}

// New constructs a balance ledger.
func New(cfg Config) *Ledger {
	return &Ledger{
		kv:    cfg.KV,
		chain: cfg.Chain,
		cache: cfg.Cache,
	}
}

// BalanceOf returns the balance of the account as of the specified block.
// An empty or unresolvable hash yields zero. Every visited block that has no
// snapshot for the account is written back with the balance carried over
// from its parent.
func (l *Ledger) BalanceOf(ctx context.Context, account string, hash string) (float64, error) {
	var path []string
	seen := make(map[string]bool)

	var amount float64
	for cur := hash; cur != ""; {
		v, found, err := l.snapshot(ctx, account, cur)
		if err != nil {
			return 0, err
		}
		if found {
			amount = v
			break
		}

		exists, err := l.chain.Exists(ctx, cur)
		if err != nil {
			return 0, err
		}
		if !exists {
			break
		}

		if seen[cur] {
			return 0, fmt.Errorf("block %s: parent cycle detected", cur)
		}
		seen[cur] = true
		path = append(path, cur)

		parent, err := l.chain.ParentOf(ctx, cur)
		if err != nil {
			return 0, err
		}
		cur = parent
	}

	// A published block without a snapshot for the account did not involve
	// the account, so it carries the same balance as its ancestor.
	// A snapshot committed while walking wins over the carried balance and
	// is carried forward instead.
	for i := len(path) - 1; i >= 0; i-- {
		stored, err := l.writeBack(ctx, account, path[i], amount)
		if err != nil {
			return 0, err
		}
		amount = stored
	}

	return amount, nil
}

// Commit writes the post-block snapshots for a block that is not yet
// published. Every account's delta is applied as one read of the parent
// balance and one write. Only the submission that reserved the block may
// call Commit for it.
func (l *Ledger) Commit(ctx context.Context, hash string, parent string, deltas map[string]float64) error {
	accounts := make([]string, 0, len(deltas))
	for account := range deltas {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	for _, account := range accounts {
		prev, err := l.BalanceOf(ctx, account, parent)
		if err != nil {
			return err
		}

		amount := prev + deltas[account]
		if err := l.kv.Set(ctx, key(account, hash), format(amount)); err != nil {
			return err
		}
		l.remember(account, hash, amount)
	}

	return nil
}

// BalancesAt returns the balance of each account as of the block.
func (l *Ledger) BalancesAt(ctx context.Context, accounts []string, hash string) (map[string]float64, error) {
	balances := make(map[string]float64, len(accounts))
	for _, account := range accounts {
		amount, err := l.BalanceOf(ctx, account, hash)
		if err != nil {
			return nil, err
		}
		balances[account] = amount
	}

	return balances, nil
}

// History returns the balance of the account as of each block.
func (l *Ledger) History(ctx context.Context, account string, hashes []string) (map[string]float64, error) {
	history := make(map[string]float64, len(hashes))
	for _, hash := range hashes {
		amount, err := l.BalanceOf(ctx, account, hash)
		if err != nil {
			return nil, err
		}
		history[hash] = amount
	}

	return history, nil
}

// =============================================================================

// snapshot looks up a stored snapshot, consulting the cache first.
func (l *Ledger) snapshot(ctx context.Context, account string, hash string) (float64, bool, error) {
	k := key(account, hash)

	if l.cache != nil {
		if b, err := l.cache.Get(k); err == nil {
			if v, err := strconv.ParseFloat(string(b), 64); err == nil {
				return v, true, nil
			}
		}
	}

	s, err := l.kv.Get(ctx, k)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("snapshot %s: parsing %q: %w", k, s, err)
	}
	l.remember(account, hash, v)

	return v, true, nil
}

// writeBack stores a carried over balance unless a snapshot already exists
// and returns the balance that is stored for the block.
func (l *Ledger) writeBack(ctx context.Context, account string, hash string, amount float64) (float64, error) {
	k := key(account, hash)

	set, err := l.kv.SetNX(ctx, k, format(amount))
	if err != nil {
		return 0, err
	}

	if !set {
		s, err := l.kv.Get(ctx, k)
		if err != nil {
			return 0, err
		}
		if amount, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, fmt.Errorf("snapshot %s: parsing %q: %w", k, s, err)
		}
	}
	l.remember(account, hash, amount)

	return amount, nil
}

func (l *Ledger) remember(account string, hash string, amount float64) {
	if l.cache == nil {
		return
	}

	// The cache is an optimization only, a failed set is ignored.
	_ = l.cache.Set(key(account, hash), []byte(format(amount)))
}

func key(account string, hash string) string {
	return "balance:" + account + ":" + hash
}

func format(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
