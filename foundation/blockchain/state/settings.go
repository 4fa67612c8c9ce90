package state

import (
	"context"

	"github.com/ardanlabs/powledger/foundation/blockchain/settings"
)

// Tunables returns a snapshot of the current difficulty and transfer charge
// to pass to SubmitBlock.
func (s *State) Tunables(ctx context.Context) (settings.Tunables, error) {
	return s.settings.Snapshot(ctx)
}

// SetDifficulty changes the difficulty required of new blocks.
func (s *State) SetDifficulty(ctx context.Context, difficulty int) error {
	if err := s.settings.SetDifficulty(ctx, difficulty); err != nil {
		return err
	}

	s.evHandler("state: SetDifficulty: difficulty[%d]", difficulty)
	return nil
}

// SetTransferCharge changes the fraction of every transfer paid to the
// miner.
func (s *State) SetTransferCharge(ctx context.Context, charge float64) error {
	if err := s.settings.SetTransferCharge(ctx, charge); err != nil {
		return err
	}

	s.evHandler("state: SetTransferCharge: charge[%v]", charge)
	return nil
}
