// Package retry wraps store and transport calls in exponential backoff.
// Only transient failures are retried; everything else is returned on the
// first attempt.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy is used when a caller leaves its policy zero valued.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// BackOff returns an exponential schedule that never gives up on its own.
// Callers bound it by attempts or by their context.
func (p Policy) BackOff() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Do runs fn until it succeeds, returns a non-transient error, the attempts
// run out or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, transient Classifier, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p = DefaultPolicy()
	}

	eb := p.BackOff()
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if transient != nil && !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
