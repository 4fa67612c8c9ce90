// Package accounts maintains the registry of account names allowed to mine,
// send and receive on the ledger.
package accounts

import (
	"context"
	"sort"

	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
	"github.com/ardanlabs/powledger/foundation/blockchain/validate"
)

// setKey is the key-value set holding every registered name.
const setKey = "users"

// Accounts manages the set of registered account names.
type Accounts struct {
	kv storage.KV
}

// New constructs the registry over the key-value store.
func New(kv storage.KV) *Accounts {
	return &Accounts{kv: kv}
}

// Exists reports whether the name is registered.
func (act *Accounts) Exists(ctx context.Context, name string) (bool, error) {
	return act.kv.SIsMember(ctx, setKey, name)
}

// Register adds the name to the registry. It is idempotent and reports
// whether the name was newly registered.
func (act *Accounts) Register(ctx context.Context, name string) (bool, error) {
	if err := validate.AccountNameFormat("name", name); err != nil {
		return false, err
	}

	return act.kv.SAdd(ctx, setKey, name)
}

// List returns every registered name in sorted order.
func (act *Accounts) List(ctx context.Context) ([]string, error) {
	names, err := act.kv.SMembers(ctx, setKey)
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}
