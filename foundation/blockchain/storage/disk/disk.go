// Package disk implements the key-value store on an embedded pebble
// database so a single node can keep its chain across restarts without
// running a Redis server.
package disk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Key prefixes keep scalar values and set members in separate ranges.
const (
	prefixValue = "v/"
	prefixSet   = "s/"
)

// Disk represents the key-value store implementation backed by pebble. This
// implements the storage.KV interface.
type Disk struct {
	db *pebble.DB

	// Pebble has no compare-and-set, so SetNX and SAdd serialize their
	// read and write under this lock. It makes the store single process.
	mu sync.Mutex
}

// New opens (or creates) the pebble database under path.
func New(path string) (*Disk, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return open(path, &pebble.Options{})
}

// NewInMemory opens a pebble database on an in-memory filesystem.
func NewInMemory() (*Disk, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()})
}

func open(path string, opts *pebble.Options) (*Disk, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &Disk{db: db}, nil
}

// Get returns the value for the specified key.
func (d *Disk) Get(ctx context.Context, key string) (string, error) {
	v, found, err := d.get(valueKey(key))
	if err != nil {
		return "", storage.Unavailable("get", key, err)
	}
	if !found {
		return "", storage.ErrNotFound
	}

	return v, nil
}

// Set stores the value under the key, overwriting any previous value.
func (d *Disk) Set(ctx context.Context, key string, value string) error {
	if err := d.db.Set(valueKey(key), []byte(value), pebble.Sync); err != nil {
		return storage.Unavailable("set", key, err)
	}

	return nil
}

// SetNX stores the value only if the key does not exist yet.
func (d *Disk) SetNX(ctx context.Context, key string, value string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, found, err := d.get(valueKey(key))
	if err != nil {
		return false, storage.Unavailable("setnx", key, err)
	}
	if found {
		return false, nil
	}

	if err := d.db.Set(valueKey(key), []byte(value), pebble.Sync); err != nil {
		return false, storage.Unavailable("setnx", key, err)
	}

	return true, nil
}

// Exists reports whether the key holds a value.
func (d *Disk) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := d.get(valueKey(key))
	if err != nil {
		return false, storage.Unavailable("exists", key, err)
	}

	return found, nil
}

// KeysWithSuffix returns every key ending with the suffix in sorted order.
func (d *Disk) KeysWithSuffix(ctx context.Context, suffix string) ([]string, error) {
	var keys []string
	err := d.scan([]byte(prefixValue), func(k []byte) {
		key := string(k[len(prefixValue):])
		if strings.HasSuffix(key, suffix) {
			keys = append(keys, key)
		}
	})
	if err != nil {
		return nil, storage.Unavailable("keys", suffix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// SAdd adds the member to the set. It reports whether the member is new.
func (d *Disk) SAdd(ctx context.Context, set string, member string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := memberKey(set, member)

	_, found, err := d.get(k)
	if err != nil {
		return false, storage.Unavailable("sadd", set, err)
	}
	if found {
		return false, nil
	}

	if err := d.db.Set(k, nil, pebble.Sync); err != nil {
		return false, storage.Unavailable("sadd", set, err)
	}

	return true, nil
}

// SIsMember reports whether the member belongs to the set.
func (d *Disk) SIsMember(ctx context.Context, set string, member string) (bool, error) {
	_, found, err := d.get(memberKey(set, member))
	if err != nil {
		return false, storage.Unavailable("sismember", set, err)
	}

	return found, nil
}

// SMembers returns the members of the set in sorted order.
func (d *Disk) SMembers(ctx context.Context, set string) ([]string, error) {
	prefix := setPrefix(set)

	members := []string{}
	err := d.scan(prefix, func(k []byte) {
		members = append(members, string(k[len(prefix):]))
	})
	if err != nil {
		return nil, storage.Unavailable("smembers", set, err)
	}

	return members, nil
}

// Ping reports whether the database is usable.
func (d *Disk) Ping(ctx context.Context) error {
	if _, _, err := d.get([]byte(prefixValue)); err != nil {
		return storage.Unavailable("ping", "", err)
	}

	return nil
}

// Close flushes and closes the database.
func (d *Disk) Close() error {
	return d.db.Close()
}

// =============================================================================

// get copies the value out since pebble only guarantees it until the
// closer is released.
func (d *Disk) get(key []byte) (string, bool, error) {
	v, closer, err := d.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	defer closer.Close()

	return string(v), true, nil
}

// scan calls fn with every key that starts with prefix, in key order.
func (d *Disk) scan(prefix []byte, fn func(k []byte)) error {
	iter, err := d.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}

	for iter.First(); iter.Valid(); iter.Next() {
		k := bytes.Clone(iter.Key())
		fn(k)
	}

	if err := iter.Error(); err != nil {
		iter.Close()
		return err
	}

	return iter.Close()
}

func valueKey(key string) []byte {
	return []byte(prefixValue + key)
}

func setPrefix(set string) []byte {
	return []byte(prefixSet + set + "/")
}

func memberKey(set string, member string) []byte {
	return append(setPrefix(set), member...)
}

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	upper := bytes.Clone(prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
