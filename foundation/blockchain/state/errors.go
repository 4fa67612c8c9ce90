package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/validate"
)

// ErrNotFound is returned when a requested block is not on the chain.
var ErrNotFound = errors.New("not found")

// Kind identifies the rule a rejected request violated.
type Kind int

// Set of rejection kinds.
const (
	MissingField Kind = iota + 1
	InvalidFormat
	UnregisteredMiner
	UnknownParent
	DuplicateBlock
	InsufficientDifficulty
	UnregisteredParty
	SelfPayoutConflict
	InsufficientFunds
)

var kindNames = map[Kind]string{
	MissingField:           "MissingField",
	InvalidFormat:          "InvalidFormat",
	UnregisteredMiner:      "UnregisteredMiner",
	UnknownParent:          "UnknownParent",
	DuplicateBlock:         "DuplicateBlock",
	InsufficientDifficulty: "InsufficientDifficulty",
	UnregisteredParty:      "UnregisteredParty",
	SelfPayoutConflict:     "SelfPayoutConflict",
	InsufficientFunds:      "InsufficientFunds",
}

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Category groups rejection kinds by who has to act on them.
type Category int

// Set of categories.
const (
	MalformedInput Category = iota + 1
	SemanticallyInvalid
	Conflict
)

// String implements the fmt.Stringer interface.
func (c Category) String() string {
	switch c {
	case MalformedInput:
		return "MalformedInput"
	case SemanticallyInvalid:
		return "SemanticallyInvalid"
	case Conflict:
		return "Conflict"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Category returns the category of the kind.
func (k Kind) Category() Category {
	switch k {
	case MissingField, InvalidFormat:
		return MalformedInput
	case DuplicateBlock:
		return Conflict
	}
	return SemanticallyInvalid
}

// ValidationError is returned when a request breaks a ledger rule. Want and
// Got carry the required and observed values for the rules that compare
// numbers.
type ValidationError struct {
	Kind   Kind
	Field  string
	Detail string
	Want   float64
	Got    float64
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return ve.Detail
}

// Category returns the category of the violated rule.
func (ve *ValidationError) Category() Category {
	return ve.Kind.Category()
}

// IsValidationError checks if an error of type ValidationError exists.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationError returns a copy of the ValidationError pointer.
func GetValidationError(err error) *ValidationError {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	return ve
}

// IsKind reports whether the error is a ValidationError of the kind.
func IsKind(err error, kind Kind) bool {
	ve := GetValidationError(err)
	return ve != nil && ve.Kind == kind
}

// =============================================================================

func newError(kind Kind, field string, format string, args ...any) *ValidationError {
	return &ValidationError{
		Kind:   kind,
		Field:  field,
		Detail: fmt.Sprintf(format, args...),
	}
}

// formatError converts a validate rule failure into a ValidationError.
func formatError(err error) error {
	var fe *validate.FormatError
	if !errors.As(err, &fe) {
		return err
	}

	return newError(InvalidFormat, fe.Field, "%s: %s", fe.Field, fe.Rule)
}
