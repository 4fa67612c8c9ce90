// Package database provides support for opening the key-value store the
// ledger persists into.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/redis"
)

// Set of supported store kinds.
const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindDisk   = "disk"
)

// Config is the required properties to open the store.
type Config struct {
	Kind     string
	Redis    redis.Config
	DiskPath string
}

// Open selects and opens the configured store.
func Open(ctx context.Context, cfg Config) (storage.KV, error) {
	switch cfg.Kind {
	case KindMemory:
		return memory.New(), nil

	case KindRedis:
		kv, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return kv, nil

	case KindDisk:
		if cfg.DiskPath == "" {
			return nil, errors.New("disk store requires a path")
		}
		kv, err := disk.New(cfg.DiskPath)
		if err != nil {
			return nil, err
		}
		return kv, nil
	}

	return nil, fmt.Errorf("unknown store kind %q, must be one of %s, %s, %s", cfg.Kind, KindMemory, KindRedis, KindDisk)
}

// StatusCheck returns nil if it can successfully talk to the store. It
// retries until the store answers or the context is done.
func StatusCheck(ctx context.Context, kv storage.KV) error {
	var pingError error
	for attempts := 1; ; attempts++ {
		pingError = kv.Ping(ctx)
		if pingError == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: last ping: %w", ctx.Err(), pingError)
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
}
