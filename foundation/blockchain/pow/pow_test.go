package pow_test

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/pow"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestHash(t *testing.T) {
	t.Log("Given the need to identify blocks by parent and nonce.")
	{
		t.Logf("\tTest 0:\tWhen hashing a parent and a nonce.")
		{
			parent := strings.Repeat("a", 64)
			sum := sha256.Sum256([]byte(parent + "42"))
			exp := hex.EncodeToString(sum[:])

			got := pow.Hash(parent, "42")
			if got != exp {
				t.Logf("\t%s\tTest 0:\tgot: %s", failed, got)
				t.Logf("\t%s\tTest 0:\texp: %s", failed, exp)
				t.Fatalf("\t%s\tTest 0:\tShould hash the concatenation.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould hash the concatenation.", success)

			if len(got) != pow.HashLength {
				t.Fatalf("\t%s\tTest 0:\tShould produce %d hex characters, got %d.", failed, pow.HashLength, len(got))
			}
			t.Logf("\t%s\tTest 0:\tShould produce %d hex characters.", success, pow.HashLength)

			if pow.Hash(parent, "42") != got {
				t.Fatalf("\t%s\tTest 0:\tShould be deterministic.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be deterministic.", success)
		}
	}
}

func TestLeadingZeros(t *testing.T) {
	type table struct {
		name       string
		hash       string
		zeros      int
		difficulty int
		solved     bool
	}

	tt := []table{
		{name: "none", hash: "a0" + strings.Repeat("f", 62), zeros: 0, difficulty: 1, solved: false},
		{name: "two", hash: "00" + strings.Repeat("f", 62), zeros: 2, difficulty: 2, solved: true},
		{name: "short", hash: "000f" + strings.Repeat("0", 60), zeros: 3, difficulty: 4, solved: false},
		{name: "all", hash: strings.Repeat("0", 64), zeros: 64, difficulty: 64, solved: true},
		{name: "zero-difficulty", hash: "f" + strings.Repeat("0", 63), zeros: 0, difficulty: 0, solved: true},
	}

	t.Log("Given the need to measure the work in a hash.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen checking hash %s.", testID, tst.name)
				{
					if got := pow.LeadingZeros(tst.hash); got != tst.zeros {
						t.Fatalf("\t%s\tTest %d:\tShould count %d leading zeros, got %d.", failed, testID, tst.zeros, got)
					}
					t.Logf("\t%s\tTest %d:\tShould count %d leading zeros.", success, testID, tst.zeros)

					if got := pow.IsSolved(tst.difficulty, tst.hash); got != tst.solved {
						t.Fatalf("\t%s\tTest %d:\tShould report solved=%v at difficulty %d.", failed, testID, tst.solved, tst.difficulty)
					}
					t.Logf("\t%s\tTest %d:\tShould report solved=%v at difficulty %d.", success, testID, tst.solved, tst.difficulty)
				}
			}

			t.Run(tst.name+"-"+strconv.Itoa(testID), f)
		}
	}
}
