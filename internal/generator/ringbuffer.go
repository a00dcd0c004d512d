package generator

import "github.com/payops/sentinel/internal/txn"

// RingBuffer is a fixed-capacity FIFO of transactions. Appending past
// capacity silently drops the oldest entry. It is not safe for concurrent
// use — the Generator that owns it serializes all access.
type RingBuffer struct {
	buf   []txn.Transaction
	head  int // index of oldest element
	count int
	cap   int
}

// NewRingBuffer creates a RingBuffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{
		buf: make([]txn.Transaction, capacity),
		cap: capacity,
	}
}

// Append adds a transaction, evicting the oldest one if the buffer is full.
func (r *RingBuffer) Append(t txn.Transaction) {
	idx := (r.head + r.count) % r.cap
	if r.count < r.cap {
		r.buf[idx] = t
		r.count++
	} else {
		r.buf[r.head] = t
		r.head = (r.head + 1) % r.cap
	}
}

// Len returns the number of transactions currently held.
func (r *RingBuffer) Len() int { return r.count }

// Cap returns the buffer's fixed capacity.
func (r *RingBuffer) Cap() int { return r.cap }

// Snapshot returns the buffered transactions in insertion order (oldest
// first). The returned slice is a copy; mutating it does not affect the
// buffer.
func (r *RingBuffer) Snapshot() []txn.Transaction {
	out := make([]txn.Transaction, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%r.cap]
	}
	return out
}

// Last returns the most recent n transactions (oldest first among those
// n), or fewer if the buffer holds less than n.
func (r *RingBuffer) Last(n int) []txn.Transaction {
	if n > r.count {
		n = r.count
	}
	out := make([]txn.Transaction, n)
	start := r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+start+i)%r.cap]
	}
	return out
}
