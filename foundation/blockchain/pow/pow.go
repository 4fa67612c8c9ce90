// Package pow provides the hash function that identifies blocks and the
// proof of work rules applied to those hashes.
package pow

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashLength is the number of hex characters in a block hash.
const HashLength = 2 * sha256.Size

// Hash returns the identity of a block: the hex encoded SHA-256 digest of
// the parent hash followed by the nonce. A root block has an empty parent.
func Hash(parentHash string, nonce string) string {
	sum := sha256.Sum256([]byte(parentHash + nonce))
	return hex.EncodeToString(sum[:])
}

// LeadingZeros returns the number of leading '0' characters in the hex
// hash. This is both the difficulty a hash achieves and the mining reward
// paid for it.
func LeadingZeros(hash string) int {
	for i := 0; i < len(hash); i++ {
		if hash[i] != '0' {
			return i
		}
	}
	return len(hash)
}

// IsSolved checks the hash to make sure it complies with the POW rules. We
// need to match a difficulty number of 0's.
func IsSolved(difficulty int, hash string) bool {
	return LeadingZeros(hash) >= difficulty
}
