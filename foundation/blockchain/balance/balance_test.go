package balance_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/ardanlabs/powledger/foundation/blockchain/balance"
	"github.com/ardanlabs/powledger/foundation/blockchain/chain"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// countingKV records the number of writes made to the store.
type countingKV struct {
	storage.KV
	writes atomic.Int64
}

func (c *countingKV) Set(ctx context.Context, key string, value string) error {
	c.writes.Add(1)
	return c.KV.Set(ctx, key, value)
}

func (c *countingKV) SetNX(ctx context.Context, key string, value string) (bool, error) {
	c.writes.Add(1)
	return c.KV.SetNX(ctx, key, value)
}

type fixture struct {
	kv     *countingKV
	chain  *chain.Store
	ledger *balance.Ledger
}

func newFixture(t *testing.T, cache *bigcache.BigCache) fixture {
	kv := countingKV{KV: memory.New()}
	store := chain.New(&kv)

	return fixture{
		kv:     &kv,
		chain:  store,
		ledger: balance.New(balance.Config{KV: &kv, Chain: store, Cache: cache}),
	}
}

// commit adds a block to the chain the way the engine does: reserve, write
// the snapshots, then publish.
func (f fixture) commit(t *testing.T, hash string, parent string, deltas map[string]float64) {
	ctx := context.Background()

	block := chain.Block{Hash: hash, ParentHash: parent, Nonce: hash, Miner: "miner", CreatedAt: time.Now()}
	if err := f.chain.Reserve(ctx, block); err != nil {
		t.Fatalf("\t%s\tShould be able to reserve block %s: %v", failed, hash, err)
	}
	if err := f.ledger.Commit(ctx, hash, parent, deltas); err != nil {
		t.Fatalf("\t%s\tShould be able to commit block %s: %v", failed, hash, err)
	}
	if err := f.chain.Publish(ctx, hash, block.CreatedAt); err != nil {
		t.Fatalf("\t%s\tShould be able to publish block %s: %v", failed, hash, err)
	}
}

func TestBalanceOf(t *testing.T) {
	type table struct {
		name    string
		account string
		hash    string
		want    float64
	}

	tt := []table{
		{name: "unresolvable", account: "alice", hash: "nope", want: 0},
		{name: "empty", account: "alice", hash: "", want: 0},
		{name: "root", account: "alice", hash: "g", want: 0},
		{name: "credited", account: "alice", hash: "a", want: 100},
		{name: "carried", account: "alice", hash: "b", want: 100},
		{name: "transfer-sender", account: "alice", hash: "c", want: 60},
		{name: "transfer-receiver", account: "bob", hash: "c", want: 36},
		{name: "transfer-miner", account: "carol", hash: "c", want: 6},
		{name: "carried-deep", account: "carol", hash: "d", want: 6},
		{name: "uninvolved", account: "dave", hash: "d", want: 0},
	}

	f := newFixture(t, nil)
	f.commit(t, "g", "", nil)
	f.commit(t, "a", "g", map[string]float64{"alice": 100})
	f.commit(t, "b", "a", map[string]float64{"carol": 0})
	f.commit(t, "c", "b", map[string]float64{"alice": -40, "bob": 36, "carol": 6})
	f.commit(t, "d", "c", map[string]float64{"bob": 1})

	t.Log("Given the need to query balances along a chain.")
	{
		for testID, tst := range tt {
			fn := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling %s at %q.", testID, tst.account, tst.hash)
				{
					got, err := f.ledger.BalanceOf(context.Background(), tst.account, tst.hash)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get the balance: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to get the balance.", success, testID)

					if got != tst.want {
						t.Fatalf("\t%s\tTest %d:\tShould get %v, got %v.", failed, testID, tst.want, got)
					}
					t.Logf("\t%s\tTest %d:\tShould get %v.", success, testID, tst.want)
				}
			}

			t.Run(tst.name, fn)
		}
	}
}

func TestMemoized(t *testing.T) {
	ctx := context.Background()

	cache, err := bigcache.New(ctx, bigcache.DefaultConfig(time.Minute))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the cache: %v", failed, err)
	}
	defer cache.Close()

	for _, tc := range []struct {
		name  string
		cache *bigcache.BigCache
	}{
		{"store", nil},
		{"cache", cache},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.cache)
			f.commit(t, "g", "", map[string]float64{"alice": 5})

			parent := "g"
			for _, h := range []string{"h1", "h2", "h3", "h4"} {
				f.commit(t, h, parent, nil)
				parent = h
			}

			t.Log("Given the need to memoize balances.")
			{
				t.Logf("\tTest 0:\tWhen querying a deep block for the first time.")
				{
					before := f.kv.writes.Load()
					got, err := f.ledger.BalanceOf(ctx, "alice", "h4")
					if err != nil || got != 5 {
						t.Fatalf("\t%s\tTest 0:\tShould get 5, got %v %v.", failed, got, err)
					}
					if n := f.kv.writes.Load() - before; n != 4 {
						t.Fatalf("\t%s\tTest 0:\tShould write back 4 snapshots, wrote %d.", failed, n)
					}
					t.Logf("\t%s\tTest 0:\tShould write back every visited block.", success)
				}

				t.Logf("\tTest 1:\tWhen querying the same block again.")
				{
					before := f.kv.writes.Load()
					got, err := f.ledger.BalanceOf(ctx, "alice", "h4")
					if err != nil || got != 5 {
						t.Fatalf("\t%s\tTest 1:\tShould get 5, got %v %v.", failed, got, err)
					}
					if n := f.kv.writes.Load() - before; n != 0 {
						t.Fatalf("\t%s\tTest 1:\tShould not recompute, wrote %d.", failed, n)
					}
					t.Logf("\t%s\tTest 1:\tShould hit the stored snapshot.", success)
				}
			}
		})
	}
}

func TestReservedBlockInvisible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.commit(t, "g", "", map[string]float64{"alice": 7})

	t.Log("Given a block that is reserved but not published.")
	{
		block := chain.Block{Hash: "r", ParentHash: "g", Miner: "miner"}
		if err := f.chain.Reserve(ctx, block); err != nil {
			t.Fatalf("\t%s\tShould be able to reserve: %v", failed, err)
		}

		got, err := f.ledger.BalanceOf(ctx, "alice", "r")
		if err != nil || got != 0 {
			t.Fatalf("\t%s\tShould treat the block as unresolvable, got %v %v.", failed, got, err)
		}
		t.Logf("\t%s\tShould treat the block as unresolvable.", success)

		if err := f.ledger.Commit(ctx, "r", "g", map[string]float64{"alice": 1}); err != nil {
			t.Fatalf("\t%s\tShould be able to commit: %v", failed, err)
		}
		if err := f.chain.Publish(ctx, "r", time.Now()); err != nil {
			t.Fatalf("\t%s\tShould be able to publish: %v", failed, err)
		}

		got, err = f.ledger.BalanceOf(ctx, "alice", "r")
		if err != nil || got != 8 {
			t.Fatalf("\t%s\tShould see the committed snapshot, got %v %v.", failed, got, err)
		}
		t.Logf("\t%s\tShould see the committed snapshot.", success)
	}
}

func TestHelpers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.commit(t, "g", "", map[string]float64{"alice": 3})
	f.commit(t, "a", "g", map[string]float64{"alice": 2, "bob": 1})

	t.Log("Given the need to read several balances at once.")
	{
		at, err := f.ledger.BalancesAt(ctx, []string{"alice", "bob"}, "a")
		if err != nil || at["alice"] != 5 || at["bob"] != 1 {
			t.Fatalf("\t%s\tShould get alice 5 and bob 1 at a, got %v %v.", failed, at, err)
		}
		t.Logf("\t%s\tShould get every balance at a block.", success)

		hist, err := f.ledger.History(ctx, "alice", []string{"g", "a"})
		if err != nil || hist["g"] != 3 || hist["a"] != 5 {
			t.Fatalf("\t%s\tShould get alice 3 at g and 5 at a, got %v %v.", failed, hist, err)
		}
		t.Logf("\t%s\tShould get the balance history of an account.", success)
	}
}

// commitOnExists commits a block the first time its existence is checked,
// interleaving a commit with a reader that already missed the snapshot.
type commitOnExists struct {
	storage.KV
	prefix string
	commit func()
	done   bool
}

func (c *commitOnExists) Exists(ctx context.Context, key string) (bool, error) {
	if !c.done && strings.HasPrefix(key, c.prefix) {
		c.done = true
		c.commit()
	}
	return c.KV.Exists(ctx, key)
}

func TestCommitDuringRead(t *testing.T) {
	ctx := context.Background()

	cache, err := bigcache.New(ctx, bigcache.DefaultConfig(time.Minute))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the cache: %v", failed, err)
	}
	defer cache.Close()

	f := newFixture(t, nil)
	f.commit(t, "g", "", nil)

	block := chain.Block{Hash: "x", ParentHash: "g", Nonce: "x", Miner: "miner", CreatedAt: time.Now()}
	if err := f.chain.Reserve(ctx, block); err != nil {
		t.Fatalf("\t%s\tShould be able to reserve block x: %v", failed, err)
	}

	kv := commitOnExists{KV: f.kv, prefix: "x:"}
	kv.commit = func() {
		if err := f.ledger.Commit(ctx, "x", "g", map[string]float64{"alice": 100}); err != nil {
			t.Errorf("\t%s\tShould be able to commit block x: %v", failed, err)
		}
		if err := f.chain.Publish(ctx, "x", block.CreatedAt); err != nil {
			t.Errorf("\t%s\tShould be able to publish block x: %v", failed, err)
		}
	}
	reader := balance.New(balance.Config{KV: &kv, Chain: chain.New(&kv), Cache: cache})

	t.Log("Given a block committed while a reader walks past it.")
	{
		t.Logf("\tTest 0:\tWhen the reader misses the snapshot before the commit.")
		{
			got, err := reader.BalanceOf(ctx, "alice", "x")
			if err != nil || got != 100 {
				t.Fatalf("\t%s\tTest 0:\tShould return the committed 100, got %v %v.", failed, got, err)
			}
			t.Logf("\t%s\tTest 0:\tShould return the committed snapshot.", success)
		}

		t.Logf("\tTest 1:\tWhen reading the block again through the cache.")
		{
			got, err := reader.BalanceOf(ctx, "alice", "x")
			if err != nil || got != 100 {
				t.Fatalf("\t%s\tTest 1:\tShould still return 100, got %v %v.", failed, got, err)
			}
			t.Logf("\t%s\tTest 1:\tShould cache the committed snapshot.", success)

			stored, err := f.kv.Get(ctx, "balance:alice:x")
			if err != nil || stored != "100" {
				t.Fatalf("\t%s\tTest 1:\tShould keep 100 in the store, got %q %v.", failed, stored, err)
			}
			t.Logf("\t%s\tTest 1:\tShould keep the committed snapshot in the store.", success)
		}
	}
}
