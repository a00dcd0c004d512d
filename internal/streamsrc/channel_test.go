package streamsrc

import (
	"testing"

	"github.com/payops/sentinel/internal/txn"
)

func TestChannelSource_PushAndReceive(t *testing.T) {
	s := NewChannelSource(4)
	defer s.Close()

	tx := txn.Transaction{ID: "tx-1", Issuer: "HDFC"}
	if !s.Push(tx) {
		t.Fatal("expected push to succeed on a non-full channel")
	}

	got := <-s.Transactions()
	if got.ID != "tx-1" {
		t.Errorf("got ID %q, want %q", got.ID, "tx-1")
	}
}

func TestChannelSource_PushFullBufferReturnsFalse(t *testing.T) {
	s := NewChannelSource(1)
	defer s.Close()

	if !s.Push(txn.Transaction{ID: "a"}) {
		t.Fatal("expected first push to succeed")
	}
	if s.Push(txn.Transaction{ID: "b"}) {
		t.Error("expected second push to a full buffer to return false")
	}
}

func TestChannelSource_CloseIsIdempotent(t *testing.T) {
	s := NewChannelSource(1)
	s.Close()
	s.Close() // must not panic on double close

	if _, ok := <-s.Transactions(); ok {
		t.Error("expected a closed source's channel to be drained and closed")
	}
}
