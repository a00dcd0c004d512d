package streamsrc

import (
	"sync"

	"github.com/payops/sentinel/internal/txn"
)

// ChannelSource is an in-process Source: callers push transactions onto it
// with Push, e.g. from a test harness or an in-process adapter that
// already has Transaction values (a Kafka consumer's decode step, a
// webhook handler). Closing is idempotent.
type ChannelSource struct {
	ch        chan txn.Transaction
	closeOnce sync.Once
}

// NewChannelSource creates a ChannelSource with the given buffer capacity.
func NewChannelSource(capacity int) *ChannelSource {
	if capacity <= 0 {
		capacity = 1
	}
	return &ChannelSource{ch: make(chan txn.Transaction, capacity)}
}

// Push enqueues t. Returns false without blocking if the buffer is full.
func (s *ChannelSource) Push(t txn.Transaction) bool {
	select {
	case s.ch <- t:
		return true
	default:
		return false
	}
}

func (s *ChannelSource) Transactions() <-chan txn.Transaction {
	return s.ch
}

func (s *ChannelSource) Close() error {
	s.closeOnce.Do(func() { close(s.ch) })
	return nil
}
