// Package channel implements the bidirectional sync channel between the
// primary and companion node sessions: request/reply with explicit
// correlation ids, unsolicited snapshot pushes, and a reachability-gated
// activation state machine. The channel never queues or retries; a call made
// while the peer is unreachable fails immediately.
package channel

import (
	"context"

	"example.com/liftlink/internal/wire"
)

// Transport moves envelopes between exactly two peers. Implementations must
// deliver each envelope at most once and may drop envelopes while the peer is
// unreachable.
type Transport interface {
	// Send delivers one envelope to the peer.
	Send(ctx context.Context, env wire.Envelope) error
	// Receive blocks until the next envelope arrives. Malformed records are
	// dropped inside the transport; Receive only fails on transport errors or
	// context cancellation.
	Receive(ctx context.Context) (wire.Envelope, error)
	// Reachable reports current peer proximity.
	Reachable() bool
	// ReachabilityEvents emits a value on every reachability transition.
	ReachabilityEvents() <-chan bool
	Close() error
}
