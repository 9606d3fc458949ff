// Package connectivity answers whether the remote is currently reachable.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Checker reports whether the remote can be reached right now.
type Checker interface {
	Online(ctx context.Context) bool
}

// Static is a Checker with a fixed answer that can be flipped at runtime.
type Static struct {
	online atomic.Bool
}

// NewStatic returns a Static with the given answer.
func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

// Set changes the answer.
func (s *Static) Set(online bool) { s.online.Store(online) }

// Online implements Checker.
func (s *Static) Online(context.Context) bool { return s.online.Load() }

// Pinger is anything that can be probed for reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober pings the remote with a short timeout and caches the answer for
// TTL so a burst of checks costs one round trip.
type Prober struct {
	pinger  Pinger
	timeout time.Duration
	ttl     time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	checked time.Time
	online  bool
	now     func() time.Time
}

// NewProber returns a Prober. A zero timeout defaults to 3s; a zero ttl
// disables caching.
func NewProber(p Pinger, timeout, ttl time.Duration, logger *zap.Logger) *Prober {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{pinger: p, timeout: timeout, ttl: ttl, logger: logger, now: time.Now}
}

// Online implements Checker.
func (p *Prober) Online(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.ttl > 0 && !p.checked.IsZero() && now.Sub(p.checked) < p.ttl {
		return p.online
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(ctx)
	online := err == nil
	if online != p.online || p.checked.IsZero() {
		if online {
			p.logger.Info("remote reachable")
		} else {
			p.logger.Warn("remote unreachable", zap.Error(err))
		}
	}
	p.online = online
	p.checked = now
	return online
}
