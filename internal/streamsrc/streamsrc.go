// Package streamsrc defines the external transaction stream contract: an
// alternative ingress to internal/generator's synthetic drift simulation,
// for wiring a real (or replayed) transaction feed into the Continuous
// Loop's Observation Window.
//
// ChannelSource (in-process) and FileTailSource (fsnotify-driven) are the
// two concrete sources this repo ships. A Kafka-backed Source is a natural
// extension point — same interface, a consumer goroutine decoding records
// into txn.Transaction instead of tailing a file — but isn't implemented
// here; nothing in this spec's scope requires an actual Kafka dependency.
package streamsrc

import "github.com/payops/sentinel/internal/txn"

// Source is anything that can feed transactions into the Observation
// Window. Implementations push onto Transactions(). The loop does not
// read from a Source; it takes transactions only from the generator's
// ring buffer.
type Source interface {
	// Transactions returns the channel transactions arrive on. The
	// channel is closed when the source is exhausted or Close is called.
	Transactions() <-chan txn.Transaction

	// Close stops the source and releases any resources it holds.
	Close() error
}
