// Package prefstore persists theme preferences per browser session on the
// server side, and adapts session stores to the theme.Store interface.
package prefstore

import (
	"context"
	"errors"
	"time"

	"github.com/neuralliquid/portal/internal/theme"
)

// ErrNotFound is returned for a missing or expired preference.
var ErrNotFound = errors.New("preference not found")

// SessionStore keeps key/value preferences per session.
type SessionStore interface {
	Get(ctx context.Context, session, key string) (string, error)
	Set(ctx context.Context, session, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, session string) error
	Ping(ctx context.Context) error
}

// Bind returns a theme.Store reading and writing session's preferences in s
// under ctx.
func Bind(ctx context.Context, s SessionStore, session string) theme.Store {
	return &bound{ctx: ctx, s: s, session: session}
}

type bound struct {
	ctx     context.Context
	s       SessionStore
	session string
}

func (b *bound) Get(key string) (string, error) {
	return b.s.Get(b.ctx, b.session, key)
}

func (b *bound) Set(key, value string, ttl time.Duration) error {
	return b.s.Set(b.ctx, b.session, key, value, ttl)
}

// Mirror returns a theme.Store over several stores. Get returns the first
// non-empty value in order; Set writes to every store and joins the errors.
// Nil stores are skipped.
func Mirror(stores ...theme.Store) theme.Store {
	m := make(mirror, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

type mirror []theme.Store

func (m mirror) Get(key string) (string, error) {
	var errs []error
	for _, s := range m {
		v, err := s.Get(key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if v != "" {
			return v, nil
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", ErrNotFound
}

func (m mirror) Set(key, value string, ttl time.Duration) error {
	var errs []error
	for _, s := range m {
		if err := s.Set(key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
