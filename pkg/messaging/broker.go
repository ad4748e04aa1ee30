package messaging

import (
	"context"
	"errors"
)

// ErrBrokerUnavailable is returned while the broker's circuit is open.
var ErrBrokerUnavailable = errors.New("message broker unavailable")

// Broker defines the interface for pub/sub message brokers
type Broker interface {
	// Publish JSON encodes message onto channel.
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe delivers raw payloads until ctx is done; the channel is then closed.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Ping(ctx context.Context) error
	Close() error
}
