package state

import (
	"context"
	"strings"

	"github.com/ardanlabs/powledger/foundation/blockchain/validate"
)

// Registration is the outcome of registering an account.
type Registration struct {
	Name  string `json:"name"`
	IsNew bool   `json:"is_new_user"`
}

// RegisterAccount adds the account to the registry if it is not already
// there.
func (s *State) RegisterAccount(ctx context.Context, name string) (Registration, error) {
	name = strings.TrimSpace(name)
	if err := validate.AccountNameFormat("name", name); err != nil {
		return Registration{}, formatError(err)
	}

	isNew, err := s.accounts.Register(ctx, name)
	if err != nil {
		return Registration{}, formatError(err)
	}

	if isNew {
		s.evHandler("state: RegisterAccount: registered: name[%s]", name)
	}

	return Registration{Name: name, IsNew: isNew}, nil
}

// ListAccounts returns every registered account name, sorted.
func (s *State) ListAccounts(ctx context.Context) ([]string, error) {
	return s.accounts.List(ctx)
}
