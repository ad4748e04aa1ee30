package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/retry"
)

type envelope struct {
	Room  string      `json:"room"`
	Event interface{} `json:"event"`
}

type inboundEnvelope struct {
	Room  string          `json:"room"`
	Event json.RawMessage `json:"event"`
}

// Relay fans events out through a broker channel so that every instance
// subscribed to it delivers them to its own hub.
type Relay struct {
	broker  messaging.Broker
	hub     *Hub
	channel string
	policy  retry.Policy
	log     *logger.Logger

	// subscribed is set while Run holds a live subscription.
	subscribed atomic.Bool
}

func NewRelay(broker messaging.Broker, hub *Hub, channel string, policy retry.Policy, log *logger.Logger) *Relay {
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{broker: broker, hub: hub, channel: channel, policy: policy, log: log}
}

// Publish sends event through the broker. When the broker cannot be reached
// the event is still delivered to this instance's sessions and the broker
// error is returned. While this instance has no live subscription the event
// is delivered locally as well.
func (r *Relay) Publish(ctx context.Context, room string, event Event) error {
	local := !r.subscribed.Load()
	env := envelope{Room: room, Event: event}
	err := retry.Do(ctx, r.policy, transientBrokerError, func() error {
		return r.broker.Publish(ctx, r.channel, env)
	})
	if err == nil {
		if local {
			return r.hub.Publish(ctx, room, event)
		}
		return nil
	}

	if localErr := r.hub.Publish(ctx, room, event); localErr != nil {
		return errors.Join(err, localErr)
	}
	return fmt.Errorf("relay publish: %w", err)
}

// Run delivers broker messages to the local hub until ctx is done. Failed
// subscriptions are retried with backoff and a subscription that closes
// early is reopened.
func (r *Relay) Run(ctx context.Context) error {
	b := r.policy.BackOff()
	for {
		msgs, err := r.broker.Subscribe(ctx, r.channel)
		if err == nil {
			b.Reset()
			r.subscribed.Store(true)
			r.log.Info("realtime relay subscribed", "channel", r.channel)
			r.consume(msgs)
			r.subscribed.Store(false)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("realtime relay subscription closed", "channel", r.channel)
		} else {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("realtime relay subscribe failed", "channel", r.channel, "error", err.Error())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.NextBackOff()):
		}
	}
}

// Subscribed reports whether Run currently holds a live subscription.
func (r *Relay) Subscribed() bool {
	return r.subscribed.Load()
}

func (r *Relay) consume(msgs <-chan []byte) {
	for raw := range msgs {
		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Room == "" || len(env.Event) == 0 {
			r.log.Warn("discarding malformed relay message", "channel", r.channel)
			continue
		}
		r.hub.Broadcast(env.Room, env.Event)
	}
}

func transientBrokerError(err error) bool {
	return !errors.Is(err, messaging.ErrBrokerUnavailable) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
