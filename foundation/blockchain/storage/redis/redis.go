// Package redis implements the key-value store on top of a Redis server. This
// is the layout the ledger was first deployed on and the only backend that
// lets several ledger processes share one chain.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
	goredis "github.com/redis/go-redis/v9"
)

// Config represents the connection settings for the Redis server.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// client is the subset of go-redis the store depends on. It exists so the
// store logic can be exercised without a live server.
type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *goredis.ScanCmd
	SAdd(ctx context.Context, key string, members ...any) *goredis.IntCmd
	SIsMember(ctx context.Context, key string, member any) *goredis.BoolCmd
	SMembers(ctx context.Context, key string) *goredis.StringSliceCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Redis represents the key-value store implementation backed by Redis. This
// implements the storage.KV interface.
type Redis struct {
	client client
}

// New connects to the Redis server described by cfg and verifies the
// connection with a ping.
func New(ctx context.Context, cfg Config) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	c := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	r := Redis{client: c}
	if err := r.Ping(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", cfg.Addr, err)
	}

	return &r, nil
}

// Get returns the value for the specified key.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", storage.ErrNotFound
		}
		return "", storage.Unavailable("get", key, err)
	}

	return v, nil
}

// Set stores the value under the key, overwriting any previous value.
func (r *Redis) Set(ctx context.Context, key string, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return storage.Unavailable("set", key, err)
	}

	return nil
}

// SetNX stores the value only if the key does not exist yet. Redis performs
// the check and the write as one command.
func (r *Redis) SetNX(ctx context.Context, key string, value string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, storage.Unavailable("setnx", key, err)
	}

	return ok, nil
}

// Exists reports whether the key holds a value.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, storage.Unavailable("exists", key, err)
	}

	return n > 0, nil
}

// KeysWithSuffix walks the keyspace with SCAN so a large chain doesn't
// block the server the way KEYS would.
func (r *Redis) KeysWithSuffix(ctx context.Context, suffix string) ([]string, error) {
	const batch = 512
	match := "*" + escapeGlob(suffix)

	var keys []string
	var cursor uint64
	for {
		page, next, err := r.client.Scan(ctx, cursor, match, batch).Result()
		if err != nil {
			return nil, storage.Unavailable("scan", match, err)
		}
		keys = append(keys, page...)

		if next == 0 {
			break
		}
		cursor = next
	}

	return dedupe(keys), nil
}

// SAdd adds the member to the set. It reports whether the member is new.
func (r *Redis) SAdd(ctx context.Context, set string, member string) (bool, error) {
	n, err := r.client.SAdd(ctx, set, member).Result()
	if err != nil {
		return false, storage.Unavailable("sadd", set, err)
	}

	return n > 0, nil
}

// SIsMember reports whether the member belongs to the set.
func (r *Redis) SIsMember(ctx context.Context, set string, member string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, set, member).Result()
	if err != nil {
		return false, storage.Unavailable("sismember", set, err)
	}

	return ok, nil
}

// SMembers returns the members of the set.
func (r *Redis) SMembers(ctx context.Context, set string) ([]string, error) {
	members, err := r.client.SMembers(ctx, set).Result()
	if err != nil {
		return nil, storage.Unavailable("smembers", set, err)
	}

	return members, nil
}

// Ping reports whether the server answers.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return storage.Unavailable("ping", "", err)
	}

	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// =============================================================================

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// dedupe drops repeats since SCAN may return a key more than once.
func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, exists := seen[k]; exists {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
