package store

import (
	"context"
	"fmt"
	"sync"
)

// Provider owns the single Store handle of a process. Open may be called
// from any number of call sites and goroutines; the database is opened and
// migrated once and every caller receives the same handle.
type Provider struct {
	path string

	once  sync.Once
	store *Store
	err   error

	mu     sync.Mutex
	closed bool
}

// NewProvider returns a Provider for the database file at path.
func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

// Open returns the shared Store, opening it on first use. A failed first
// open is remembered and returned to every later caller. The first caller's
// cancellation does not apply to the shared open, so a cancelled context
// can't leave the error behind for everyone else.
func (p *Provider) Open(ctx context.Context) (*Store, error) {
	p.once.Do(func() {
		p.store, p.err = Open(context.WithoutCancel(ctx), p.path)
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("store provider for %s is closed", p.path)
	}
	return p.store, p.err
}

// Close closes the shared Store if it was opened.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	// Make sure a later Open can't race an unopened handle into existence.
	p.once.Do(func() {})

	if p.store == nil {
		return nil
	}
	return p.store.Close()
}
