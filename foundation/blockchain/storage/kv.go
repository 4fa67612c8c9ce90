// Package storage defines the key-value contract the ledger persists through
// and the errors every backend reports.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Set of error variables for the key-value store.
var (
	ErrNotFound    = errors.New("key not found")
	ErrUnavailable = errors.New("store unavailable")
)

// KV interface represents the behavior required to be implemented by any
// package providing the key-value store the ledger persists into. Only single
// key atomicity is assumed. Every infrastructure failure must satisfy
// errors.Is(err, ErrUnavailable).
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	SetNX(ctx context.Context, key string, value string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	KeysWithSuffix(ctx context.Context, suffix string) ([]string, error)
	SAdd(ctx context.Context, set string, member string) (bool, error)
	SIsMember(ctx context.Context, set string, member string) (bool, error)
	SMembers(ctx context.Context, set string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Unavailable wraps an infrastructure error so callers can identify it
// as a transient store failure.
func Unavailable(op string, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrUnavailable, op, key, err)
}
