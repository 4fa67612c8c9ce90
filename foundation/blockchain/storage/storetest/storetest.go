// Package storetest provides the behavior every storage.KV implementation
// must honor, so each backend runs the same checks.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the key-value contract against stores produced by newKV.
// Every subtest receives a fresh, empty store.
func Run(t *testing.T, newKV func(t *testing.T) storage.KV) {
	t.Run("get-set", func(t *testing.T) { getSet(t, newKV(t)) })
	t.Run("setnx", func(t *testing.T) { setNX(t, newKV(t)) })
	t.Run("setnx-race", func(t *testing.T) { setNXRace(t, newKV(t)) })
	t.Run("suffix", func(t *testing.T) { suffix(t, newKV(t)) })
	t.Run("sets", func(t *testing.T) { sets(t, newKV(t)) })
}

func getSet(t *testing.T, kv storage.KV) {
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	ok, err := kv.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "a", "1"))
	require.NoError(t, kv.Set(ctx, "a", "2"))

	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	ok, err = kv.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, kv.Set(ctx, "empty", ""))
	ok, err = kv.Exists(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, ok, "an empty value is still a value")
}

func setNX(t *testing.T, kv storage.KV) {
	ctx := context.Background()

	ok, err := kv.SetNX(ctx, "k", "first")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kv.SetNX(ctx, "k", "second")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func setNXRace(t *testing.T, kv storage.KV) {
	ctx := context.Background()

	const goroutines = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := kv.SetNX(ctx, "race", "x")
			if err == nil && ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one writer must win the key")
}

func suffix(t *testing.T, kv storage.KV) {
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "b:created_at", "t"))
	require.NoError(t, kv.Set(ctx, "a:created_at", "t"))
	require.NoError(t, kv.Set(ctx, "a:miner", "m"))

	keys, err := kv.KeysWithSuffix(ctx, ":created_at")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a:created_at", "b:created_at"}, keys)
}

func sets(t *testing.T, kv storage.KV) {
	ctx := context.Background()

	members, err := kv.SMembers(ctx, "users")
	require.NoError(t, err)
	assert.Empty(t, members)

	added, err := kv.SAdd(ctx, "users", "alice")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = kv.SAdd(ctx, "users", "alice")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = kv.SAdd(ctx, "users", "bob")
	require.NoError(t, err)

	ok, err := kv.SIsMember(ctx, "users", "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kv.SIsMember(ctx, "users", "carol")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err = kv.SMembers(ctx, "users")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, members)
}

// RequireUnavailable asserts the error is reported as a store failure.
func RequireUnavailable(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, storage.ErrUnavailable), "got %v", err)
}
