package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/storetest"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.KV {
		return &Redis{client: newFakeClient()}
	})
}

func TestServerDown(t *testing.T) {
	fc := newFakeClient()
	fc.down = true
	r := Redis{client: fc}

	ctx := context.Background()

	_, err := r.Get(ctx, "a")
	storetest.RequireUnavailable(t, err)

	_, err = r.SetNX(ctx, "a", "1")
	storetest.RequireUnavailable(t, err)

	_, err = r.KeysWithSuffix(ctx, ":created_at")
	storetest.RequireUnavailable(t, err)

	storetest.RequireUnavailable(t, r.Ping(ctx))
}

func TestScanPaging(t *testing.T) {
	fc := newFakeClient()
	fc.pageSize = 2
	r := Redis{client: fc}

	ctx := context.Background()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, r.Set(ctx, k+":created_at", "t"))
	}

	keys, err := r.KeysWithSuffix(ctx, ":created_at")
	require.NoError(t, err)
	assert.Len(t, keys, 5)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `:created_at`, escapeGlob(":created_at"))
	assert.Equal(t, `a\*b\?\[c\]`, escapeGlob("a*b?[c]"))
}

// =============================================================================

var errDown = errors.New("dial tcp: connection refused")

// fakeClient answers go-redis commands from an in-memory store.
type fakeClient struct {
	kv       *memory.Memory
	down     bool
	pageSize int
}

func newFakeClient() *fakeClient {
	return &fakeClient{kv: memory.New(), pageSize: 1000}
}

func (f *fakeClient) Get(ctx context.Context, key string) *goredis.StringCmd {
	if f.down {
		return goredis.NewStringResult("", errDown)
	}
	v, err := f.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, err)
}

func (f *fakeClient) Set(ctx context.Context, key string, value any, _ time.Duration) *goredis.StatusCmd {
	if f.down {
		return goredis.NewStatusResult("", errDown)
	}
	return goredis.NewStatusResult("OK", f.kv.Set(ctx, key, value.(string)))
}

func (f *fakeClient) SetNX(ctx context.Context, key string, value any, _ time.Duration) *goredis.BoolCmd {
	if f.down {
		return goredis.NewBoolResult(false, errDown)
	}
	return goredis.NewBoolResult(f.kv.SetNX(ctx, key, value.(string)))
}

func (f *fakeClient) Exists(ctx context.Context, keys ...string) *goredis.IntCmd {
	if f.down {
		return goredis.NewIntResult(0, errDown)
	}
	var n int64
	for _, k := range keys {
		ok, _ := f.kv.Exists(ctx, k)
		if ok {
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func (f *fakeClient) Scan(ctx context.Context, cursor uint64, match string, _ int64) *goredis.ScanCmd {
	if f.down {
		return goredis.NewScanCmdResult(nil, 0, errDown)
	}

	suffix := strings.ReplaceAll(strings.TrimPrefix(match, "*"), `\`, "")
	keys, err := f.kv.KeysWithSuffix(ctx, suffix)
	if err != nil {
		return goredis.NewScanCmdResult(nil, 0, err)
	}

	start := int(cursor)
	end := min(start+f.pageSize, len(keys))

	var next uint64
	if end < len(keys) {
		next = uint64(end)
	}

	return goredis.NewScanCmdResult(keys[start:end], next, nil)
}

func (f *fakeClient) SAdd(ctx context.Context, key string, members ...any) *goredis.IntCmd {
	if f.down {
		return goredis.NewIntResult(0, errDown)
	}
	var n int64
	for _, m := range members {
		added, _ := f.kv.SAdd(ctx, key, m.(string))
		if added {
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func (f *fakeClient) SIsMember(ctx context.Context, key string, member any) *goredis.BoolCmd {
	if f.down {
		return goredis.NewBoolResult(false, errDown)
	}
	return goredis.NewBoolResult(f.kv.SIsMember(ctx, key, member.(string)))
}

func (f *fakeClient) SMembers(ctx context.Context, key string) *goredis.StringSliceCmd {
	if f.down {
		return goredis.NewStringSliceResult(nil, errDown)
	}
	return goredis.NewStringSliceResult(f.kv.SMembers(ctx, key))
}

func (f *fakeClient) Ping(ctx context.Context) *goredis.StatusCmd {
	if f.down {
		return goredis.NewStatusResult("", errDown)
	}
	return goredis.NewStatusResult("PONG", nil)
}

func (f *fakeClient) Close() error {
	return f.kv.Close()
}
