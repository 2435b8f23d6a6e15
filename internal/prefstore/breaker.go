package prefstore

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Breaker wraps a remote SessionStore in a circuit breaker. While open, calls
// fail immediately with gobreaker.ErrOpenState and the resolver falls back to
// cookies and defaults instead of waiting on a dead backend.
type Breaker struct {
	next SessionStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker trips after maxFailures consecutive failures and probes again
// after timeout. ErrNotFound counts as success.
func NewBreaker(next SessionStore, maxFailures uint32, timeout time.Duration, logger *zap.Logger) *Breaker {
	if maxFailures == 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:    "prefstore",
		Timeout: timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("preference store breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Get implements SessionStore.
func (b *Breaker) Get(ctx context.Context, session, key string) (string, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Get(ctx, session, key)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Set implements SessionStore.
func (b *Breaker) Set(ctx context.Context, session, key, value string, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Set(ctx, session, key, value, ttl)
	})
	return err
}

// Delete implements SessionStore.
func (b *Breaker) Delete(ctx context.Context, session string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Delete(ctx, session)
	})
	return err
}

// Ping bypasses the breaker so readiness reflects the backend itself.
func (b *Breaker) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}
