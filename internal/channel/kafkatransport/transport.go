// Package kafkatransport carries sync-channel envelopes over Kafka. Each node
// owns one inbound topic and writes to the peer's topic. Kafka offers no
// notion of peer proximity, so liveness comes from heartbeat records: the
// peer is reachable while a heartbeat arrived within the staleness window.
package kafkatransport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"example.com/liftlink/internal/wire"
)

// reader exposes the minimal kafka.Reader surface the transport needs.
type reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// writer exposes the minimal kafka.Writer surface the transport needs.
type writer interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Config describes one end of the channel.
type Config struct {
	Brokers       []string
	InboundTopic  string
	OutboundTopic string
	GroupID       string
	// HeartbeatInterval is the send cadence; the peer counts as unreachable
	// after three missed beats.
	HeartbeatInterval time.Duration
}

// Transport is a kafka-backed channel.Transport.
type Transport struct {
	reader reader
	writer writer
	logger *log.Logger

	heartbeatInterval time.Duration
	lastPeerBeat      atomic.Int64
	reachable         atomic.Bool
	events            chan bool

	closeOnce sync.Once
	closed    chan struct{}
	loops     sync.WaitGroup
}

// Option configures optional behaviour for the Transport.
type Option func(*Transport)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// New constructs a Transport and starts its heartbeat loops.
func New(ctx context.Context, cfg Config, opts ...Option) *Transport {
	interval := cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	t := &Transport{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.InboundTopic,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		}),
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.OutboundTopic,
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		logger:            log.New(log.Writer(), "[kafka-transport] ", log.LstdFlags|log.Lshortfile),
		heartbeatInterval: interval,
		events:            make(chan bool, 8),
		closed:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.loops.Add(2)
	go t.heartbeatLoop(ctx)
	go t.stalenessLoop(ctx)
	return t
}

// Send implements channel.Transport.
func (t *Transport) Send(ctx context.Context, env wire.Envelope) error {
	raw, err := wire.MarshalEnvelope(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(env.ID),
		Value: raw,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(env.Action)},
		},
	}
	if err := t.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

// Receive implements channel.Transport. Undecodable records are committed
// and dropped to avoid poison-pill loops; heartbeats refresh the liveness
// window and are consumed here.
func (t *Transport) Receive(ctx context.Context) (wire.Envelope, error) {
	for {
		msg, err := t.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return wire.Envelope{}, err
			}
			select {
			case <-t.closed:
				return wire.Envelope{}, context.Canceled
			default:
			}
			return wire.Envelope{}, fmt.Errorf("fetch: %w", err)
		}

		env, decodeErr := wire.UnmarshalEnvelope(msg.Value)
		if decodeErr != nil {
			t.logger.Printf("decode error (topic=%s, offset=%d): %v", msg.Topic, msg.Offset, decodeErr)
			if commitErr := t.reader.CommitMessages(ctx, msg); commitErr != nil {
				t.logger.Printf("commit error after decode failure: %v", commitErr)
			}
			continue
		}

		if commitErr := t.reader.CommitMessages(ctx, msg); commitErr != nil {
			t.logger.Printf("commit error: %v", commitErr)
		}

		// Any traffic from the peer proves liveness, not just heartbeats.
		t.markPeerSeen()
		if env.Action == wire.ActionHeartbeat {
			continue
		}
		return env, nil
	}
}

// Reachable implements channel.Transport.
func (t *Transport) Reachable() bool {
	return t.reachable.Load()
}

// ReachabilityEvents implements channel.Transport.
func (t *Transport) ReachabilityEvents() <-chan bool {
	return t.events
}

// Close implements channel.Transport.
func (t *Transport) Close() error {
	var readerErr, writerErr error
	t.closeOnce.Do(func() {
		close(t.closed)
		readerErr = t.reader.Close()
		writerErr = t.writer.Close()
	})
	t.loops.Wait()
	if readerErr != nil {
		return readerErr
	}
	return writerErr
}

func (t *Transport) heartbeatLoop(ctx context.Context) {
	defer t.loops.Done()
	ticker := time.NewTicker(t.heartbeatInterval)
	defer ticker.Stop()

	for {
		beat := wire.Envelope{ID: uuid.NewString(), Action: wire.ActionHeartbeat}
		if err := t.Send(ctx, beat); err != nil && ctx.Err() == nil {
			t.logger.Printf("heartbeat send failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		case <-ticker.C:
		}
	}
}

func (t *Transport) stalenessLoop(ctx context.Context) {
	defer t.loops.Done()
	ticker := time.NewTicker(t.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		case <-ticker.C:
			last := t.lastPeerBeat.Load()
			stale := last == 0 || time.Since(time.Unix(0, last)) > 3*t.heartbeatInterval
			if stale && t.reachable.CompareAndSwap(true, false) {
				t.notify(false)
			}
		}
	}
}

func (t *Transport) markPeerSeen() {
	t.lastPeerBeat.Store(time.Now().UnixNano())
	if t.reachable.CompareAndSwap(false, true) {
		t.notify(true)
	}
}

func (t *Transport) notify(reachable bool) {
	select {
	case t.events <- reachable:
	default:
	}
}
