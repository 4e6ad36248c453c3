package kafkatransport

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/liftlink/internal/wire"
)

type stubReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *stubReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *stubReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type stubWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	closed  bool
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, msgs...)
	return nil
}

func (w *stubWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func newStubTransport(r reader, w writer) *Transport {
	return &Transport{
		reader:            r,
		writer:            w,
		logger:            log.New(io.Discard, "", 0),
		heartbeatInterval: 10 * time.Millisecond,
		events:            make(chan bool, 8),
		closed:            make(chan struct{}),
	}
}

func record(t *testing.T, env wire.Envelope) kafka.Message {
	t.Helper()
	raw, err := wire.MarshalEnvelope(env)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(env.ID), Value: raw}
}

func TestSendCarriesActionHeader(t *testing.T) {
	w := &stubWriter{}
	tr := newStubTransport(&stubReader{}, w)

	err := tr.Send(context.Background(), wire.Envelope{ID: "req-1", Action: wire.ActionRequestExercises})
	require.NoError(t, err)

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.written, 1)
	require.Equal(t, []byte("req-1"), w.written[0].Key)
	require.Len(t, w.written[0].Headers, 1)
	require.Equal(t, "action", w.written[0].Headers[0].Key)
	require.Equal(t, []byte(wire.ActionRequestExercises), w.written[0].Headers[0].Value)
}

func TestReceiveCommitsAndReturnsEnvelope(t *testing.T) {
	r := &stubReader{messages: []kafka.Message{
		record(t, wire.Envelope{ID: "req-1", Action: wire.ActionRequestTodaysSets}),
	}}
	tr := newStubTransport(r, &stubWriter{})

	env, err := tr.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, "req-1", env.ID)
	require.Equal(t, 1, r.committedCount())
}

func TestReceiveSkipsUndecodableRecords(t *testing.T) {
	r := &stubReader{messages: []kafka.Message{
		{Key: []byte("junk"), Value: []byte(`not json`)},
		{Key: []byte("bad-action"), Value: []byte(`{"id":"x","action":"rename_exercise"}`)},
		record(t, wire.Envelope{ID: "req-2", Action: wire.ActionLogSet}),
	}}
	tr := newStubTransport(r, &stubWriter{})

	env, err := tr.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, "req-2", env.ID)
	// Poison records are committed so they are never refetched.
	require.Equal(t, 3, r.committedCount())
}

func TestHeartbeatFlipsReachability(t *testing.T) {
	r := &stubReader{messages: []kafka.Message{
		record(t, wire.Envelope{ID: "hb-1", Action: wire.ActionHeartbeat}),
		record(t, wire.Envelope{ID: "req-1", Action: wire.ActionRequestLastWeights}),
	}}
	tr := newStubTransport(r, &stubWriter{})
	require.False(t, tr.Reachable())

	// The heartbeat is consumed internally; the next real envelope surfaces.
	env, err := tr.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, "req-1", env.ID)
	require.True(t, tr.Reachable())

	select {
	case up := <-tr.ReachabilityEvents():
		require.True(t, up)
	default:
		t.Fatal("expected a reachability-restored event")
	}
}

func TestStalenessWindowMarksPeerUnreachable(t *testing.T) {
	tr := newStubTransport(&stubReader{}, &stubWriter{})
	tr.markPeerSeen()
	require.True(t, tr.Reachable())
	// drain the restored event
	<-tr.ReachabilityEvents()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.loops.Add(1)
	go tr.stalenessLoop(ctx)

	require.Eventually(t, func() bool {
		return !tr.Reachable()
	}, time.Second, 5*time.Millisecond, "peer must go unreachable after three missed beats")

	select {
	case up := <-tr.ReachabilityEvents():
		require.False(t, up)
	default:
		t.Fatal("expected a reachability-lost event")
	}
}

func TestCloseShutsDownClients(t *testing.T) {
	r := &stubReader{}
	w := &stubWriter{}
	tr := newStubTransport(r, w)

	require.NoError(t, tr.Close())
	require.True(t, r.closed)
	require.True(t, w.closed)
}
