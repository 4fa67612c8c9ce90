// Package transfer extracts the optional value transfer embedded in a
// block's message.
package transfer

import (
	"regexp"
	"strconv"
)

// Kind identifies what a block message means to the ledger.
type Kind int

// Set of message kinds.
const (
	MiningOnly Kind = iota
	Transfer
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	if k == Transfer {
		return "transfer"
	}
	return "mining-only"
}

// Message is the parsed form of a block message. Sender, Receiver and
// Quantity are only set when Kind is Transfer.
type Message struct {
	Kind     Kind
	Sender   string
	Receiver string
	Quantity uint64
}

// IsTransfer reports whether the message carries a transfer.
func (m Message) IsTransfer() bool {
	return m.Kind == Transfer
}

// MaxQuantity is the largest quantity a float64 balance represents exactly.
const MaxQuantity = 1 << 53

var transferRE = regexp.MustCompile(`^([-_0-9a-zA-Z]{1,64}),([-_0-9a-zA-Z]{1,64}),([1-9][0-9]*)$`)

// Parse reads "sender,receiver,quantity" out of a block message. Anything
// that doesn't match, including a quantity above MaxQuantity, is a
// mining-only message. Parse never fails.
func Parse(msg string) Message {
	m := transferRE.FindStringSubmatch(msg)
	if m == nil {
		return Message{Kind: MiningOnly}
	}

	q, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil || q > MaxQuantity {
		return Message{Kind: MiningOnly}
	}

	return Message{
		Kind:     Transfer,
		Sender:   m[1],
		Receiver: m[2],
		Quantity: q,
	}
}
