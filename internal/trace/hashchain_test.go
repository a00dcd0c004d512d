package trace

import "testing"

func TestComputeHash_Deterministic(t *testing.T) {
	c := &CycleRecord{
		ID:             "cycle-001",
		CycleNumber:    1,
		SelectedKind:   "THROTTLE",
		SelectedTarget: "HDFC",
		Rationale:      "success rate dropped below baseline",
		PrevHash:       ComputeGenesisHash(),
	}

	hash1 := ComputeHash(c)
	hash2 := ComputeHash(c)

	if hash1 != hash2 {
		t.Errorf("ComputeHash is not deterministic: %q != %q", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash1))
	}
}

func TestComputeHash_DifferentInputs(t *testing.T) {
	c1 := &CycleRecord{ID: "cycle-001", CycleNumber: 1, Rationale: "a", PrevHash: "abc"}
	c2 := &CycleRecord{ID: "cycle-002", CycleNumber: 1, Rationale: "a", PrevHash: "abc"}

	if ComputeHash(c1) == ComputeHash(c2) {
		t.Error("different cycle IDs should produce different hashes")
	}
}

func TestComputeHash_PrevHashAffectsOutput(t *testing.T) {
	c1 := &CycleRecord{ID: "cycle-001", CycleNumber: 1, Rationale: "a", PrevHash: "aaaa"}
	c2 := &CycleRecord{ID: "cycle-001", CycleNumber: 1, Rationale: "a", PrevHash: "bbbb"}

	if ComputeHash(c1) == ComputeHash(c2) {
		t.Error("different PrevHash should produce different hashes")
	}
}

func TestComputeGenesisHash_Deterministic(t *testing.T) {
	seed1 := ComputeGenesisHash()
	seed2 := ComputeGenesisHash()

	if seed1 != seed2 {
		t.Errorf("ComputeGenesisHash is not deterministic: %q != %q", seed1, seed2)
	}
	if len(seed1) != 64 {
		t.Errorf("seed length = %d, want 64", len(seed1))
	}
}

func TestVerifyChain_ValidChain(t *testing.T) {
	genesis := ComputeGenesisHash()

	c1 := &CycleRecord{ID: "cycle-001", CycleNumber: 1, SelectedKind: "THROTTLE", Rationale: "r1", PrevHash: genesis}
	c1.Hash = ComputeHash(c1)

	c2 := &CycleRecord{ID: "cycle-002", CycleNumber: 2, SelectedKind: "REROUTE", Rationale: "r2", PrevHash: c1.Hash}
	c2.Hash = ComputeHash(c2)

	c3 := &CycleRecord{ID: "cycle-003", CycleNumber: 3, Rationale: "r3", PrevHash: c2.Hash}
	c3.Hash = ComputeHash(c3)

	valid, brokenAt := VerifyChain([]*CycleRecord{c1, c2, c3})
	if !valid {
		t.Errorf("VerifyChain returned invalid at index %d, expected valid", brokenAt)
	}
	if brokenAt != -1 {
		t.Errorf("brokenAt = %d, want -1 (valid chain)", brokenAt)
	}
}

func TestVerifyChain_TamperedHash(t *testing.T) {
	genesis := ComputeGenesisHash()

	c1 := &CycleRecord{ID: "cycle-001", CycleNumber: 1, Rationale: "r1", PrevHash: genesis}
	c1.Hash = ComputeHash(c1)

	c2 := &CycleRecord{ID: "cycle-002", CycleNumber: 2, Rationale: "r2", PrevHash: c1.Hash}
	c2.Hash = "tampered_hash_value_that_is_clearly_wrong_and_invalid"

	valid, brokenAt := VerifyChain([]*CycleRecord{c1, c2})
	if valid {
		t.Error("VerifyChain should detect tampered hash")
	}
	if brokenAt != 1 {
		t.Errorf("brokenAt = %d, want 1", brokenAt)
	}
}

func TestVerifyChain_BrokenLinkage(t *testing.T) {
	genesis := ComputeGenesisHash()

	c1 := &CycleRecord{ID: "cycle-001", CycleNumber: 1, Rationale: "r1", PrevHash: genesis}
	c1.Hash = ComputeHash(c1)

	c2 := &CycleRecord{ID: "cycle-002", CycleNumber: 2, Rationale: "r2", PrevHash: "wrong_prev_hash"}
	c2.Hash = ComputeHash(c2)

	valid, brokenAt := VerifyChain([]*CycleRecord{c1, c2})
	if valid {
		t.Error("VerifyChain should detect broken chain linkage")
	}
	if brokenAt != 1 {
		t.Errorf("brokenAt = %d, want 1", brokenAt)
	}
}

func TestVerifyChain_EmptyChain(t *testing.T) {
	valid, brokenAt := VerifyChain([]*CycleRecord{})
	if !valid {
		t.Error("empty chain should be valid")
	}
	if brokenAt != -1 {
		t.Errorf("brokenAt = %d, want -1", brokenAt)
	}
}

func TestVerifyChain_SingleRecord(t *testing.T) {
	c := &CycleRecord{ID: "cycle-001", CycleNumber: 1, Rationale: "r1", PrevHash: ComputeGenesisHash()}
	c.Hash = ComputeHash(c)

	valid, brokenAt := VerifyChain([]*CycleRecord{c})
	if !valid {
		t.Errorf("single valid record should pass, broken at %d", brokenAt)
	}
}
