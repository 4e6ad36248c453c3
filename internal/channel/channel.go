package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/liftlink/internal/domain"
	"example.com/liftlink/internal/wire"
)

// State is the channel activation state.
type State int

const (
	StateUnactivated State = iota
	StateActivating
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUnactivated:
		return "unactivated"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultRequestTimeout bounds how long a pull or command waits for its
// reply. The wrist transport guarantees no delivery latency, so an explicit
// timeout stands in for one.
const DefaultRequestTimeout = 8 * time.Second

// RequestHandler answers an incoming request with exactly one reply.
type RequestHandler func(ctx context.Context, req wire.Envelope) wire.Envelope

// PushHandler consumes an unsolicited snapshot push.
type PushHandler func(ctx context.Context, push wire.Envelope)

// Option configures optional behaviour for the Channel.
type Option func(*Channel)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithRequestTimeout overrides the per-request reply timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Channel) {
		c.timeout = timeout
	}
}

// Channel multiplexes request/reply and push traffic over a Transport.
// Replies are correlated to pending requests by explicit request id; a reply
// for an id no longer pending is dropped.
type Channel struct {
	transport Transport
	logger    *log.Logger
	timeout   time.Duration

	mu          sync.Mutex
	state       State
	pending     map[string]chan wire.Envelope
	handler     RequestHandler
	pushHandler PushHandler
	onReachable func(ctx context.Context)
	cancel      context.CancelFunc
	loops       sync.WaitGroup
}

// New constructs a Channel over the given transport. Call Activate before
// issuing requests.
func New(transport Transport, opts ...Option) *Channel {
	c := &Channel{
		transport: transport,
		logger:    log.New(log.Writer(), "[channel] ", log.LstdFlags|log.Lshortfile),
		timeout:   DefaultRequestTimeout,
		pending:   make(map[string]chan wire.Envelope),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle registers the request handler (primary side).
func (c *Channel) Handle(handler RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// HandlePush registers the push handler (companion side).
func (c *Channel) HandlePush(handler PushHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushHandler = handler
}

// OnReachable registers a hook invoked whenever the peer transitions from
// unreachable to reachable. Both sessions use it to resynchronize.
func (c *Channel) OnReachable(hook func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReachable = hook
}

// State returns the current activation state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reachable reports whether the peer is currently reachable. An unactivated
// channel is never reachable.
func (c *Channel) Reachable() bool {
	if c.State() != StateActive {
		return false
	}
	return c.transport.Reachable()
}

// Activate starts the receive and reachability loops. It is idempotent:
// activating an active channel is a no-op. The receive loop is persistent —
// transport errors are logged and fetching resumes — so once active the
// channel stays active until ctx is cancelled or Close is called.
func (c *Channel) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUnactivated {
		c.mu.Unlock()
		return nil
	}
	c.state = StateActivating
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.loops.Add(2)
	go c.receiveLoop(loopCtx)
	go c.reachabilityLoop(loopCtx)

	c.mu.Lock()
	c.state = StateActive
	c.mu.Unlock()
	return nil
}

// Close deactivates the channel and releases the transport.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.state = StateUnactivated
	c.mu.Unlock()

	err := c.transport.Close()
	c.loops.Wait()
	return err
}

// Request sends a pull or command and waits for its single reply. It fails
// immediately with domain.ErrPeerUnreachable when the peer is not reachable
// at call time; the caller re-issues after the next reachability event.
func (c *Channel) Request(ctx context.Context, req wire.Envelope) (wire.Envelope, error) {
	if !req.Action.IsRequest() {
		return wire.Envelope{}, fmt.Errorf("action %q is not a request", req.Action)
	}
	if !c.Reachable() {
		return wire.Envelope{}, domain.ErrPeerUnreachable
	}

	req.ID = uuid.NewString()
	replyCh := make(chan wire.Envelope, 1)

	c.mu.Lock()
	c.pending[req.ID] = replyCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.transport.Send(ctx, req); err != nil {
		requestErrors.WithLabelValues(string(req.Action)).Inc()
		return wire.Envelope{}, fmt.Errorf("send %s: %w", req.Action, err)
	}
	requestsSent.WithLabelValues(string(req.Action)).Inc()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		requestTimeouts.WithLabelValues(string(req.Action)).Inc()
		return wire.Envelope{}, fmt.Errorf("no reply to %s within %s: %w", req.Action, c.timeout, domain.ErrPeerUnreachable)
	case <-ctx.Done():
		return wire.Envelope{}, ctx.Err()
	}
}

// Push sends an unsolicited snapshot. Pushes to an unreachable peer are
// dropped without error; the next reachability-restored cycle resynchronizes.
func (c *Channel) Push(ctx context.Context, push wire.Envelope) error {
	if !push.Action.IsPush() {
		return fmt.Errorf("action %q is not a push", push.Action)
	}
	if !c.Reachable() {
		pushesDropped.WithLabelValues(string(push.Action)).Inc()
		return nil
	}

	push.ID = uuid.NewString()
	if err := c.transport.Send(ctx, push); err != nil {
		pushesDropped.WithLabelValues(string(push.Action)).Inc()
		c.logger.Printf("push %s dropped: %v", push.Action, err)
		return nil
	}
	pushesSent.WithLabelValues(string(push.Action)).Inc()
	return nil
}

func (c *Channel) receiveLoop(ctx context.Context) {
	defer c.loops.Done()
	for {
		env, err := c.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Printf("receive error: %v", err)
			continue
		}
		c.dispatch(ctx, env)
	}
}

func (c *Channel) dispatch(ctx context.Context, env wire.Envelope) {
	switch {
	case env.InReplyTo != "":
		c.resolve(env)
	case env.Action.IsRequest():
		c.serve(ctx, env)
	case env.Action.IsPush():
		c.mu.Lock()
		handler := c.pushHandler
		c.mu.Unlock()
		if handler == nil {
			c.logger.Printf("push %s ignored: no handler registered", env.Action)
			return
		}
		handler(ctx, env)
	case env.Action == wire.ActionHeartbeat:
		// Transport-internal; nothing to do at this layer.
	default:
		decodeDrops.Inc()
		c.logger.Printf("dropped message with unroutable action %q", env.Action)
	}
}

// resolve hands a reply to the pending request that issued it. Replies for
// expired or unknown ids are dropped; a second reply racing a re-issued call
// must never resolve the wrong request.
func (c *Channel) resolve(reply wire.Envelope) {
	c.mu.Lock()
	replyCh, ok := c.pending[reply.InReplyTo]
	if ok {
		delete(c.pending, reply.InReplyTo)
	}
	c.mu.Unlock()

	if !ok {
		staleReplies.Inc()
		c.logger.Printf("dropped reply for unknown request %s", reply.InReplyTo)
		return
	}
	replyCh <- reply
}

func (c *Channel) serve(ctx context.Context, req wire.Envelope) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		c.logger.Printf("request %s ignored: no handler registered", req.Action)
		return
	}

	reply := handler(ctx, req)
	reply.ID = uuid.NewString()
	reply.InReplyTo = req.ID
	if err := c.transport.Send(ctx, reply); err != nil {
		c.logger.Printf("reply to %s failed: %v", req.Action, err)
	}
}

func (c *Channel) reachabilityLoop(ctx context.Context) {
	defer c.loops.Done()
	events := c.transport.ReachabilityEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case reachable, ok := <-events:
			if !ok {
				return
			}
			if !reachable {
				continue
			}
			c.mu.Lock()
			hook := c.onReachable
			c.mu.Unlock()
			if hook != nil {
				hook(ctx)
			}
		}
	}
}
