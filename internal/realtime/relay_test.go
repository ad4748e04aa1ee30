package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/retry"
)

// loopbackBroker delivers published messages to its subscribers in process.
// The first subscribeFailures calls to Subscribe fail.
type loopbackBroker struct {
	mu                sync.Mutex
	subs              []*subscription
	failing           error
	calls             int
	subscribeFailures int
	subscribeCalls    int
}

type subscription struct {
	ch     chan []byte
	closed bool
}

func (b *loopbackBroker) Publish(_ context.Context, _ string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.failing != nil {
		return b.failing
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	for _, sub := range b.subs {
		if !sub.closed {
			sub.ch <- payload
		}
	}
	return nil
}

func (b *loopbackBroker) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribeCalls++
	if b.subscribeCalls <= b.subscribeFailures {
		return nil, errors.New("redis: i/o timeout")
	}
	sub := &subscription{ch: make(chan []byte, 16)}
	b.subs = append(b.subs, sub)
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closeLocked(sub)
	}()
	return sub.ch, nil
}

// dropAll closes every open subscription, as a lost connection would.
func (b *loopbackBroker) dropAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		b.closeLocked(sub)
	}
}

func (b *loopbackBroker) closeLocked(sub *subscription) {
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

func (b *loopbackBroker) active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, sub := range b.subs {
		if !sub.closed {
			n++
		}
	}
	return n
}

func (b *loopbackBroker) subscribeAttempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribeCalls
}

func (b *loopbackBroker) Ping(context.Context) error { return nil }
func (b *loopbackBroker) Close() error             { return nil }

var fastPolicy = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestRelay_FansOutAcrossHubs(t *testing.T) {
	broker := &loopbackBroker{}
	hubA, hubB := NewHub(nil, nil), NewHub(nil, nil)
	relayA := NewRelay(broker, hubA, "clinic:realtime", fastPolicy, nil)
	relayB := NewRelay(broker, hubB, "clinic:realtime", fastPolicy, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := make(chan error, 2)
	go func() { errs <- relayA.Run(ctx) }()
	go func() { errs <- relayB.Run(ctx) }()
	require.Eventually(t, func() bool {
		return relayA.Subscribed() && relayB.Subscribed()
	}, time.Second, 5*time.Millisecond)

	onB := NewSession(4)
	hubB.Register(onB)
	hubB.Join(onB, "apt")

	require.NoError(t, relayA.Publish(ctx, "apt", Event{Event: EventNewMessage, Data: map[string]string{"message": "hi"}}))

	select {
	case frame := <-onB.Send:
		assert.JSONEq(t, `{"event":"new_message","data":{"message":"hi"}}`, string(frame))
	case <-time.After(time.Second):
		t.Fatal("remote hub did not receive event")
	}

	cancel()
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, <-errs, context.Canceled)
	}
}

func TestRelay_FallsBackToLocalDelivery(t *testing.T) {
	broker := &loopbackBroker{failing: errors.New("connection reset")}
	hub := NewHub(nil, nil)
	relay := NewRelay(broker, hub, "c", fastPolicy, nil)

	s := NewSession(1)
	hub.Register(s)
	hub.Join(s, "apt")

	err := relay.Publish(context.Background(), "apt", Event{Event: EventNewMessage, Data: "x"})
	require.Error(t, err)
	assert.Equal(t, 3, broker.calls)
	assert.Len(t, s.Send, 1)
}

func TestRelay_DoesNotRetryOpenCircuit(t *testing.T) {
	broker := &loopbackBroker{failing: messaging.ErrBrokerUnavailable}
	relay := NewRelay(broker, NewHub(nil, nil), "c", fastPolicy, nil)

	err := relay.Publish(context.Background(), "apt", Event{Event: EventNewMessage})
	assert.ErrorIs(t, err, messaging.ErrBrokerUnavailable)
	assert.Equal(t, 1, broker.calls)
}

func expectFrame(t *testing.T, s *Session, want string) {
	t.Helper()
	select {
	case frame := <-s.Send:
		assert.JSONEq(t, want, string(frame))
	case <-time.After(time.Second):
		t.Fatal("session did not receive event")
	}
}

func TestRelay_RetriesFailedSubscribe(t *testing.T) {
	broker := &loopbackBroker{subscribeFailures: 2}
	hub := NewHub(nil, nil)
	relay := NewRelay(broker, hub, "c", fastPolicy, nil)

	s := NewSession(4)
	hub.Register(s)
	hub.Join(s, "room-a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, relay.Subscribed, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, broker.subscribeAttempts())

	require.NoError(t, relay.Publish(ctx, "room-a", Event{Event: EventNewMessage, Data: "after retry"}))
	expectFrame(t, s, `{"event":"new_message","data":"after retry"}`)
	assert.Len(t, s.Send, 0)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRelay_DeliversLocallyWhileUnsubscribed(t *testing.T) {
	broker := &loopbackBroker{subscribeFailures: 1 << 30}
	hub := NewHub(nil, nil)
	relay := NewRelay(broker, hub, "c", fastPolicy, nil)

	s := NewSession(4)
	hub.Register(s)
	hub.Join(s, "room-a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return broker.subscribeAttempts() >= 2 }, time.Second, time.Millisecond)
	assert.False(t, relay.Subscribed())

	require.NoError(t, relay.Publish(ctx, "room-a", Event{Event: EventNewMessage, Data: "local"}))
	expectFrame(t, s, `{"event":"new_message","data":"local"}`)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRelay_ResubscribesAfterClose(t *testing.T) {
	broker := &loopbackBroker{}
	hub := NewHub(nil, nil)
	relay := NewRelay(broker, hub, "c", fastPolicy, nil)

	s := NewSession(4)
	hub.Register(s)
	hub.Join(s, "room-a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, relay.Subscribed, time.Second, 5*time.Millisecond)
	broker.dropAll()

	require.Eventually(t, func() bool {
		return broker.subscribeAttempts() == 2 && broker.active() == 1 && relay.Subscribed()
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, relay.Publish(ctx, "room-a", Event{Event: EventNewMessage, Data: "again"}))
	expectFrame(t, s, `{"event":"new_message","data":"again"}`)
	assert.Len(t, s.Send, 0)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
