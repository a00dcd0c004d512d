// Package txn defines the Transaction entity and its enumerated fields.
// A Transaction is immutable once constructed; every field is set at
// creation time by the Continuous Generator (internal/generator) or by a
// decoded record from an external transaction stream (internal/streamsrc).
package txn

import "fmt"

// Outcome is the terminal state of a payment transaction attempt.
type Outcome string

const (
	Success  Outcome = "SUCCESS"
	SoftFail Outcome = "SOFT_FAIL"
	HardFail Outcome = "HARD_FAIL"
)

// Method enumerates the payment rails this system observes.
type Method string

const (
	MethodUPI        Method = "UPI"
	MethodCard       Method = "CARD"
	MethodNetBanking Method = "NET_BANKING"
	MethodWallet     Method = "WALLET"
)

// Transaction is a single payment attempt. It is immutable once created:
// nothing in this codebase mutates a Transaction after construction —
// downstream components only read slices of them.
type Transaction struct {
	ID         string  `json:"id"`
	Timestamp  int64   `json:"timestamp"` // ms since Unix epoch
	Outcome    Outcome `json:"outcome"`
	ErrorCode  string  `json:"error_code,omitempty"`
	LatencyMs  float64 `json:"latency_ms"`
	RetryCount int     `json:"retry_count"`
	Method     Method  `json:"method"`
	Issuer     string  `json:"issuer"`
	Merchant   string  `json:"merchant"`
	Amount     float64 `json:"amount"`
	Geography  string  `json:"geography,omitempty"`
}

// Validate checks the invariants Transaction fields must satisfy and
// returns the first violation found, or nil if the record is
// well-formed. Validation errors are never fatal to the caller — the
// observation window rejects the offending record and continues.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction: id must not be empty")
	}
	switch t.Outcome {
	case Success, SoftFail, HardFail:
	default:
		return fmt.Errorf("transaction %s: unknown outcome %q", t.ID, t.Outcome)
	}
	if t.LatencyMs < 0 {
		return fmt.Errorf("transaction %s: latency must be >= 0, got %f", t.ID, t.LatencyMs)
	}
	if t.RetryCount < 0 {
		return fmt.Errorf("transaction %s: retry count must be >= 0, got %d", t.ID, t.RetryCount)
	}
	if t.Issuer == "" {
		return fmt.Errorf("transaction %s: issuer must not be empty", t.ID)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("transaction %s: amount must be > 0, got %f", t.ID, t.Amount)
	}
	return nil
}

// DimensionKeys returns the dimension strings this transaction contributes
// to: "issuer:<Issuer>", "method:<Method>", and "global". Callers fold the
// transaction into the baseline/pattern group for each key.
func (t Transaction) DimensionKeys() []string {
	return []string{
		"issuer:" + t.Issuer,
		"method:" + string(t.Method),
		"global",
	}
}
