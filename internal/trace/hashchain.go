package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// genesisSeed is the fixed prev_hash for the first cycle record the loop
// ever writes, so the chain has a deterministic anchor.
const genesisSeed = "sentinel-genesis"

// ComputeHash computes the SHA-256 hash for a cycle record, chaining to
// the previous record's hash.
func ComputeHash(c *CycleRecord) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s|%s",
		c.ID,
		c.CycleNumber,
		c.SelectedKind,
		c.SelectedTarget,
		c.Rationale,
		c.PrevHash,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeGenesisHash returns the seed hash used as PrevHash on cycle 0.
func ComputeGenesisHash() string {
	hash := sha256.Sum256([]byte(genesisSeed))
	return hex.EncodeToString(hash[:])
}

// VerifyChain walks a list of cycle records in cycle-number order and
// checks hash integrity. Returns (valid, brokenAtIndex); if valid is
// true, every hash and link checks out.
func VerifyChain(cycles []*CycleRecord) (bool, int) {
	for i, c := range cycles {
		expected := ComputeHash(c)
		if c.Hash != expected {
			return false, i
		}
		if i > 0 && c.PrevHash != cycles[i-1].Hash {
			return false, i
		}
	}
	return true, -1
}
