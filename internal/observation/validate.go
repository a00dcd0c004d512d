package observation

import "github.com/payops/sentinel/internal/txn"

// DefaultValidator rejects malformed transaction records before they
// reach aggregate/baseline computation. It wraps txn.Transaction.Validate,
// the same invariant check the generator already guarantees on its own
// output, so the validator's only real job is catching malformed records
// arriving from an external transaction stream (internal/streamsrc).
func DefaultValidator(t txn.Transaction) error {
	return t.Validate()
}
