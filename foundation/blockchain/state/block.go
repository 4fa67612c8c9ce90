package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/powledger/foundation/blockchain/chain"
	"github.com/ardanlabs/powledger/foundation/blockchain/pow"
	"github.com/ardanlabs/powledger/foundation/blockchain/settings"
	"github.com/ardanlabs/powledger/foundation/blockchain/transfer"
	"github.com/ardanlabs/powledger/foundation/blockchain/validate"
)

// Submission is a request to append a block. A nil field was not provided
// by the caller, which is different from an empty value.
type Submission struct {
	ParentHash *string
	Nonce      *string
	Miner      *string
	Message    *string
}

// NewSubmission constructs a submission with every field present.
func NewSubmission(parentHash string, nonce string, miner string, message string) Submission {
	return Submission{
		ParentHash: &parentHash,
		Nonce:      &nonce,
		Miner:      &miner,
		Message:    &message,
	}
}

// =============================================================================

// SubmitBlock validates the submission against the chain and the tunables
// and commits it. Any failure before the block is reserved leaves the store
// untouched. When the message carries a transfer that fails its checks, the
// block is still committed with mining-only accounting and the committed
// block is returned together with the transfer's ValidationError.
func (s *State) SubmitBlock(ctx context.Context, tun settings.Tunables, sub Submission) (chain.Block, error) {
	var missing []string
	if sub.ParentHash == nil {
		missing = append(missing, "parent_hash")
	}
	if sub.Nonce == nil {
		missing = append(missing, "nonce")
	}
	if sub.Miner == nil {
		missing = append(missing, "miner")
	}
	if len(missing) > 0 {
		return chain.Block{}, newError(MissingField, strings.Join(missing, ","), "required keys not satisfied: %s", strings.Join(missing, ", "))
	}

	parent := validate.NormalizeHash(*sub.ParentHash)
	nonce := *sub.Nonce
	miner := *sub.Miner

	var message string
	if sub.Message != nil {
		message = *sub.Message
	}

	if err := validate.HashFormat("parent_hash", parent); err != nil {
		return chain.Block{}, formatError(err)
	}
	if err := validate.NonceFormat("nonce", nonce); err != nil {
		return chain.Block{}, formatError(err)
	}
	if err := validate.AccountNameFormat("miner", miner); err != nil {
		return chain.Block{}, formatError(err)
	}

	registered, err := s.accounts.Exists(ctx, miner)
	if err != nil {
		return chain.Block{}, err
	}
	if !registered {
		return chain.Block{}, newError(UnregisteredMiner, "miner", "miner: %s must be registered", miner)
	}

	exists, err := s.chain.Exists(ctx, parent)
	if err != nil {
		return chain.Block{}, err
	}
	if !exists {
		return chain.Block{}, newError(UnknownParent, "parent_hash", "parent_hash: block %s doesn't exist", parent)
	}

	hash := pow.Hash(parent, nonce)

	exists, err = s.chain.Exists(ctx, hash)
	if err != nil {
		return chain.Block{}, err
	}
	if exists {
		return chain.Block{}, duplicate(hash)
	}

	zeros := pow.LeadingZeros(hash)
	if zeros < tun.Difficulty {
		ve := newError(InsufficientDifficulty, "hash", "hash: insufficient difficulty, current difficulty is %d, given %d", tun.Difficulty, zeros)
		ve.Want = float64(tun.Difficulty)
		ve.Got = float64(zeros)
		return chain.Block{}, ve
	}

	block := chain.Block{
		Hash:       hash,
		ParentHash: parent,
		Nonce:      nonce,
		Miner:      miner,
		Message:    message,
		CreatedAt:  s.clock.Now().UTC(),
	}

	s.evHandler("state: SubmitBlock: reserve: hash[%s] parent[%s] miner[%s]", hash, parent, miner)

	// The reservation is the atomic check-and-set on the hash. A concurrent
	// submission of the same parent and nonce loses here.
	if err := s.chain.Reserve(ctx, block); err != nil {
		if errors.Is(err, chain.ErrExists) {
			return chain.Block{}, duplicate(hash)
		}
		return chain.Block{}, err
	}

	deltas := map[string]float64{miner: float64(zeros)}

	var transferErr error
	msg := transfer.Parse(message)
	if msg.IsTransfer() {
		s.evHandler("state: SubmitBlock: transfer: hash[%s] sender[%s] receiver[%s] quantity[%d]", hash, msg.Sender, msg.Receiver, msg.Quantity)

		td, err := s.transferDeltas(ctx, tun, block, zeros, msg)
		switch {
		case IsValidationError(err):
			s.evHandler("state: SubmitBlock: WARNING: hash[%s]: transfer rejected: %s", hash, err)
			transferErr = err
		case err != nil:
			return chain.Block{}, s.unpublished(hash, err)
		default:
			deltas = td
		}
	}

	s.evHandler("state: SubmitBlock: commit balances: hash[%s]", hash)

	if err := s.ledger.Commit(ctx, hash, parent, deltas); err != nil {
		return chain.Block{}, s.unpublished(hash, err)
	}

	if err := s.chain.Publish(ctx, hash, block.CreatedAt); err != nil {
		return chain.Block{}, s.unpublished(hash, err)
	}

	s.blockEvent(block)

	return block, transferErr
}

// unpublished reports a reserved block that failed before it was published.
// The hash stays reserved, so every resubmission is a duplicate until the
// block's keys are removed from the store.
func (s *State) unpublished(hash string, err error) error {
	s.evHandler("state: SubmitBlock: WARNING: hash[%s]: reserved but not published, remove its keys to allow a resubmit: %s", hash, err)
	return err
}

// transferDeltas checks the transfer against the registry and the sender's
// balance at the parent and returns the balance changes of the block.
func (s *State) transferDeltas(ctx context.Context, tun settings.Tunables, block chain.Block, zeros int, msg transfer.Message) (map[string]float64, error) {
	parties := []struct {
		field string
		name  string
	}{
		{"sender", msg.Sender},
		{"receiver", msg.Receiver},
	}

	for _, p := range parties {
		registered, err := s.accounts.Exists(ctx, p.name)
		if err != nil {
			return nil, err
		}
		if !registered {
			return nil, newError(UnregisteredParty, p.field, "%s: user %s must be registered", p.field, p.name)
		}
	}

	if msg.Receiver == block.Miner {
		return nil, newError(SelfPayoutConflict, "receiver", "receiver: must not equal to miner %s", block.Miner)
	}

	quantity := float64(msg.Quantity)

	available, err := s.ledger.BalanceOf(ctx, msg.Sender, block.ParentHash)
	if err != nil {
		return nil, err
	}
	if available < quantity {
		ve := newError(InsufficientFunds, "sender", "sender: must have at least %d to send, has %v", msg.Quantity, available)
		ve.Want = quantity
		ve.Got = available
		return nil, ve
	}

	charge := quantity * tun.TransferCharge

	deltas := make(map[string]float64)
	deltas[msg.Sender] -= quantity
	deltas[msg.Receiver] += quantity - charge
	deltas[block.Miner] += charge + float64(zeros)

	return deltas, nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block chain.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: %s`, string(blockJSON))
}

func duplicate(hash string) error {
	return newError(DuplicateBlock, "hash", "hash: block with hash %s already exists", hash)
}
