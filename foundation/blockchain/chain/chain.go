// Package chain stores blocks in the key-value store. A block is written
// under its hash as a handful of scalar keys and becomes part of the chain
// once its created_at key is published.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
)

// Set of error variables for the chain store.
var (
	ErrNotFound = errors.New("block not found")
	ErrExists   = errors.New("block already exists")
)

// Field suffixes of the stored block keys.
const (
	fieldParent    = "parent"
	fieldNonce     = "nonce"
	fieldMiner     = "miner"
	fieldMessage   = "message"
	fieldCreatedAt = "created_at"
)

// Block represents a committed entry in the chain. ParentHash is empty for
// a root block.
type Block struct {
	Hash       string    `json:"hash"`
	ParentHash string    `json:"parent_hash"`
	Nonce      string    `json:"nonce"`
	Miner      string    `json:"miner"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store manages the persistence of blocks.
type Store struct {
	kv storage.KV
}

// New constructs a chain store over the key-value store.
func New(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// Reserve claims the block's hash and writes its fields. The claim is an
// atomic set-if-absent on the nonce key, so of two writers racing for the
// same hash exactly one succeeds and the other gets ErrExists. A reserved
// block is invisible until Publish is called.
func (s *Store) Reserve(ctx context.Context, block Block) error {
	claimed, err := s.kv.SetNX(ctx, key(block.Hash, fieldNonce), block.Nonce)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("%w: %s", ErrExists, block.Hash)
	}

	fields := []struct {
		name  string
		value string
	}{
		{fieldParent, block.ParentHash},
		{fieldMiner, block.Miner},
		{fieldMessage, block.Message},
	}

	for _, f := range fields {
		if err := s.kv.Set(ctx, key(block.Hash, f.name), f.value); err != nil {
			return err
		}
	}

	return nil
}

// Publish makes a reserved block part of the chain.
func (s *Store) Publish(ctx context.Context, hash string, createdAt time.Time) error {
	return s.kv.Set(ctx, key(hash, fieldCreatedAt), createdAt.UTC().Format(time.RFC3339Nano))
}

// Put reserves and publishes the block in one call. Calling Put for a hash
// that is already taken changes nothing and returns ErrExists.
func (s *Store) Put(ctx context.Context, block Block) error {
	if err := s.Reserve(ctx, block); err != nil {
		return err
	}

	return s.Publish(ctx, block.Hash, block.CreatedAt)
}

// Exists reports whether the block is part of the chain.
func (s *Store) Exists(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}

	return s.kv.Exists(ctx, key(hash, fieldCreatedAt))
}

// Get returns the committed block for the hash.
func (s *Store) Get(ctx context.Context, hash string) (Block, error) {
	created, err := s.kv.Get(ctx, key(hash, fieldCreatedAt))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Block{}, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return Block{}, err
	}

	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Block{}, fmt.Errorf("block %s: parsing created_at %q: %w", hash, created, err)
	}

	block := Block{
		Hash:      hash,
		CreatedAt: createdAt,
	}

	fields := []struct {
		name string
		dst  *string
	}{
		{fieldParent, &block.ParentHash},
		{fieldNonce, &block.Nonce},
		{fieldMiner, &block.Miner},
		{fieldMessage, &block.Message},
	}

	for _, f := range fields {
		v, err := s.kv.Get(ctx, key(hash, f.name))
		switch {
		case errors.Is(err, storage.ErrNotFound):
			continue
		case err != nil:
			return Block{}, err
		}
		*f.dst = v
	}

	return block, nil
}

// ParentOf returns the parent hash of the block, or the empty string when the
// block has no parent field or its parent field is empty.
func (s *Store) ParentOf(ctx context.Context, hash string) (string, error) {
	parent, err := s.kv.Get(ctx, key(hash, fieldParent))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	return parent, nil
}

// ListHashes returns the hashes of every committed block.
func (s *Store) ListHashes(ctx context.Context) ([]string, error) {
	keys, err := s.kv.KeysWithSuffix(ctx, ":"+fieldCreatedAt)
	if err != nil {
		return nil, err
	}

	hashes := make([]string, 0, len(keys))
	for _, k := range keys {
		hashes = append(hashes, strings.TrimSuffix(k, ":"+fieldCreatedAt))
	}

	return hashes, nil
}

// List returns every committed block ordered by creation time, oldest
// first. Blocks created at the same instant are ordered by hash.
func (s *Store) List(ctx context.Context) ([]Block, error) {
	hashes, err := s.ListHashes(ctx)
	if err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, len(hashes))
	for _, hash := range hashes {
		block, err := s.Get(ctx, hash)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].CreatedAt.Equal(blocks[j].CreatedAt) {
			return blocks[i].Hash < blocks[j].Hash
		}
		return blocks[i].CreatedAt.Before(blocks[j].CreatedAt)
	})

	return blocks, nil
}

// =============================================================================

func key(hash string, field string) string {
	return hash + ":" + field
}
