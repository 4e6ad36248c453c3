package channel

import (
	"context"
	"sync"

	"example.com/liftlink/internal/domain"
	"example.com/liftlink/internal/wire"
)

// MemoryPair is a paired in-process transport for tests and single-process
// development, the in-memory twin of the kafka transport. Reachability is a
// shared switch covering both directions, matching a proximity-based link.
type MemoryPair struct {
	primary   *memoryTransport
	companion *memoryTransport

	mu        sync.Mutex
	reachable bool
}

// NewMemoryPair returns the two ends of a connected transport pair, initially
// reachable.
func NewMemoryPair() (*MemoryPair, Transport, Transport) {
	toPrimary := make(chan wire.Envelope, 64)
	toCompanion := make(chan wire.Envelope, 64)

	pair := &MemoryPair{reachable: true}
	pair.primary = &memoryTransport{
		pair:   pair,
		in:     toPrimary,
		out:    toCompanion,
		events: make(chan bool, 8),
		closed: make(chan struct{}),
	}
	pair.companion = &memoryTransport{
		pair:   pair,
		in:     toCompanion,
		out:    toPrimary,
		events: make(chan bool, 8),
		closed: make(chan struct{}),
	}
	return pair, pair.primary, pair.companion
}

// SetReachable flips the link state and notifies both ends on a transition.
func (p *MemoryPair) SetReachable(reachable bool) {
	p.mu.Lock()
	changed := p.reachable != reachable
	p.reachable = reachable
	p.mu.Unlock()

	if !changed {
		return
	}
	p.primary.notify(reachable)
	p.companion.notify(reachable)
}

func (p *MemoryPair) isReachable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reachable
}

type memoryTransport struct {
	pair      *MemoryPair
	in        chan wire.Envelope
	out       chan wire.Envelope
	events    chan bool
	closeOnce sync.Once
	closed    chan struct{}
}

func (t *memoryTransport) Send(ctx context.Context, env wire.Envelope) error {
	if !t.pair.isReachable() {
		return domain.ErrPeerUnreachable
	}
	select {
	case t.out <- env:
		return nil
	case <-t.closed:
		return domain.ErrPeerUnreachable
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *memoryTransport) Receive(ctx context.Context) (wire.Envelope, error) {
	select {
	case env := <-t.in:
		return env, nil
	case <-t.closed:
		return wire.Envelope{}, context.Canceled
	case <-ctx.Done():
		return wire.Envelope{}, ctx.Err()
	}
}

func (t *memoryTransport) Reachable() bool {
	return t.pair.isReachable()
}

func (t *memoryTransport) ReachabilityEvents() <-chan bool {
	return t.events
}

func (t *memoryTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *memoryTransport) notify(reachable bool) {
	select {
	case t.events <- reachable:
	default:
	}
}
