// Package validate holds the named format rules for every value that enters
// the ledger. The engine, the web layer and the admin tooling all call these
// so a value accepted in one place is accepted everywhere.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Rules describe each format in the error returned to callers.
const (
	HashRule    = "must be a SHA-256 hex digest (64 hex characters)"
	NonceRule   = "must match /^[0-9a-zA-Z]{0,64}$/"
	AccountRule = "must match /^[-_0-9a-zA-Z]{1,64}$/"
)

var (
	hashRE    = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	nonceRE   = regexp.MustCompile(`^[0-9a-zA-Z]{0,64}$`)
	accountRE = regexp.MustCompile(`^[-_0-9a-zA-Z]{1,64}$`)
)

// FormatError reports the field that failed and the rule it violated.
type FormatError struct {
	Field string
	Value string
	Rule  string
}

// Error implements the error interface.
func (fe *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", fe.Field, fe.Rule)
}

// HashFormat validates a block hash.
func HashFormat(field string, value string) error {
	if !hashRE.MatchString(value) {
		return &FormatError{Field: field, Value: value, Rule: HashRule}
	}
	return nil
}

// NonceFormat validates a nonce. The empty nonce is allowed.
func NonceFormat(field string, value string) error {
	if !nonceRE.MatchString(value) {
		return &FormatError{Field: field, Value: value, Rule: NonceRule}
	}
	return nil
}

// AccountNameFormat validates an account name.
func AccountNameFormat(field string, value string) error {
	if !accountRE.MatchString(value) {
		return &FormatError{Field: field, Value: value, Rule: AccountRule}
	}
	return nil
}

// IsHash reports whether the value passes HashFormat.
func IsHash(value string) bool {
	return hashRE.MatchString(value)
}

// IsNonce reports whether the value passes NonceFormat.
func IsNonce(value string) bool {
	return nonceRE.MatchString(value)
}

// IsAccountName reports whether the value passes AccountNameFormat.
func IsAccountName(value string) bool {
	return accountRE.MatchString(value)
}

// NormalizeHash trims and lower cases a hash so upper case input resolves
// to the stored key.
func NormalizeHash(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
