// Package settings manages the tunable parameters of the ledger that are
// persisted in the key-value store and read on every block submission.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ardanlabs/powledger/foundation/blockchain/pow"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
)

// Defaults used when a tunable has never been set.
const (
	DefaultDifficulty     = 4
	DefaultTransferCharge = 0.1
)

// Keys the tunables are stored under.
const (
	keyDifficulty     = "difficulty"
	keyTransferCharge = "transfer_charge"
)

// ErrOutOfRange is returned when a new value is outside the allowed range.
var ErrOutOfRange = errors.New("value out of range")

// Tunables is a snapshot of the parameters a block submission is validated
// and accounted with.
type Tunables struct {
	Difficulty     int     `json:"difficulty"`
	TransferCharge float64 `json:"transfer_charge"`
}

// Default returns the tunables used on a fresh store.
func Default() Tunables {
	return Tunables{
		Difficulty:     DefaultDifficulty,
		TransferCharge: DefaultTransferCharge,
	}
}

// Settings provides access to the stored tunables.
type Settings struct {
	kv storage.KV
}

// New constructs the settings over the key-value store.
func New(kv storage.KV) *Settings {
	return &Settings{kv: kv}
}

// Snapshot reads the current tunables.
func (s *Settings) Snapshot(ctx context.Context) (Tunables, error) {
	difficulty, err := s.Difficulty(ctx)
	if err != nil {
		return Tunables{}, err
	}

	charge, err := s.TransferCharge(ctx)
	if err != nil {
		return Tunables{}, err
	}

	return Tunables{Difficulty: difficulty, TransferCharge: charge}, nil
}

// Difficulty returns the number of leading zero hex digits a new block's
// hash must have.
func (s *Settings) Difficulty(ctx context.Context) (int, error) {
	v, err := s.kv.Get(ctx, keyDifficulty)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return DefaultDifficulty, nil
		}
		return 0, err
	}

	difficulty, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("stored %s %q: %w", keyDifficulty, v, err)
	}

	return difficulty, nil
}

// SetDifficulty stores a new difficulty.
func (s *Settings) SetDifficulty(ctx context.Context, difficulty int) error {
	if difficulty < 0 || difficulty > pow.HashLength {
		return fmt.Errorf("%w: difficulty %d must be between 0 and %d", ErrOutOfRange, difficulty, pow.HashLength)
	}

	return s.kv.Set(ctx, keyDifficulty, strconv.Itoa(difficulty))
}

// TransferCharge returns the fraction of every transfer paid to the miner.
func (s *Settings) TransferCharge(ctx context.Context) (float64, error) {
	v, err := s.kv.Get(ctx, keyTransferCharge)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return DefaultTransferCharge, nil
		}
		return 0, err
	}

	charge, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("stored %s %q: %w", keyTransferCharge, v, err)
	}

	return charge, nil
}

// SetTransferCharge stores a new transfer charge.
func (s *Settings) SetTransferCharge(ctx context.Context, charge float64) error {
	if !(charge >= 0 && charge <= 1) {
		return fmt.Errorf("%w: transfer charge %v must be between 0 and 1", ErrOutOfRange, charge)
	}

	return s.kv.Set(ctx, keyTransferCharge, strconv.FormatFloat(charge, 'f', -1, 64))
}
