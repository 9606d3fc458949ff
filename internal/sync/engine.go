package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/teamcache/teamcache/internal/connectivity"
	"github.com/teamcache/teamcache/internal/model"
)

// DefaultCycleTimeout bounds a sync cycle when Config.CycleTimeout is zero.
const DefaultCycleTimeout = 2 * time.Minute

// State is the phase of an owner's sync cycle.
type State int

const (
	StateIdle State = iota
	StatePushing
	StatePulling
)

func (s State) String() string {
	switch s {
	case StatePushing:
		return "pushing"
	case StatePulling:
		return "pulling"
	default:
		return "idle"
	}
}

// Config controls the Engine.
type Config struct {
	CycleTimeout time.Duration
}

// Result describes one completed sync cycle.
type Result struct {
	OwnerID  string
	Offline  bool
	Push     PushStats
	Snapshot *model.Snapshot // nil when offline or the pull failed
	Err      error           // why the pull failed, if it did
	Started  time.Time
	Duration time.Duration
}

// OK reports whether the cycle ended with a fresh snapshot.
func (r Result) OK() bool { return r.Snapshot != nil }

// Syncer runs sync cycles. *Engine implements it.
type Syncer interface {
	FullSync(ctx context.Context, ownerID string) *model.Snapshot
	Run(ctx context.Context, ownerID string) Result
}

// Engine orchestrates push-then-pull cycles, one at a time per owner.
type Engine struct {
	processor *Processor
	puller    *Puller
	online    connectivity.Checker
	timeout   time.Duration
	logger    *zap.Logger

	group singleflight.Group

	mu        gosync.RWMutex
	states    map[string]State
	observers []func(Result)
}

var _ Syncer = (*Engine)(nil)

// NewEngine creates an Engine. If logger is nil, logging is disabled.
func NewEngine(processor *Processor, puller *Puller, online connectivity.Checker, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.CycleTimeout
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}
	return &Engine{
		processor: processor,
		puller:    puller,
		online:    online,
		timeout:   timeout,
		logger:    logger,
		states:    make(map[string]State),
	}
}

// OnCycle registers fn to be called after every cycle, once per cycle even
// when several callers shared it. fn must not block.
func (e *Engine) OnCycle(fn func(Result)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// State returns the current phase for ownerID.
func (e *Engine) State(ownerID string) State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[ownerID]
}

// FullSync pushes the owner's queue, then pulls. It returns the pulled
// snapshot, or nil when offline or the pull failed.
func (e *Engine) FullSync(ctx context.Context, ownerID string) *model.Snapshot {
	return e.Run(ctx, ownerID).Snapshot
}

// Run is FullSync returning the full cycle result. A call that overlaps a
// running cycle for the same owner joins it. If ctx ends first the caller
// stops waiting; the shared cycle is bound to the context of the caller
// that started it.
func (e *Engine) Run(ctx context.Context, ownerID string) Result {
	ch := e.group.DoChan(ownerID, func() (any, error) {
		return e.cycle(ctx, ownerID), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Result)
	case <-ctx.Done():
		return Result{OwnerID: ownerID, Err: ctx.Err()}
	}
}

func (e *Engine) cycle(parent context.Context, ownerID string) (res Result) {
	res = Result{OwnerID: ownerID, Started: time.Now()}
	log := e.logger.With(zap.String("owner", ownerID))

	defer func() {
		res.Duration = time.Since(res.Started)
		e.setState(ownerID, StateIdle)
		e.notify(res)
	}()

	ctx, cancel := context.WithTimeout(parent, e.timeout)
	defer cancel()

	if !e.online.Online(ctx) {
		res.Offline = true
		log.Debug("offline, sync skipped")
		return res
	}

	e.setState(ownerID, StatePushing)
	res.Push = e.processor.push(ctx, ownerID)

	// Push failures never block the pull.
	e.setState(ownerID, StatePulling)
	snap, err := e.puller.pull(ctx, ownerID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("sync cycle timed out", zap.Duration("timeout", e.timeout), zap.Error(err))
		} else {
			log.Warn("pull failed, keeping local data", zap.Error(err))
		}
		res.Err = err
		return res
	}
	res.Snapshot = snap

	log.Info("sync cycle complete",
		zap.Int("pushed", res.Push.Removed),
		zap.Int("teams", len(snap.Teams)),
		zap.Int("members", len(snap.Members)),
		zap.Duration("took", time.Since(res.Started)),
	)
	return res
}

func (e *Engine) setState(ownerID string, s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s == StateIdle {
		delete(e.states, ownerID)
		return
	}
	e.states[ownerID] = s
}

func (e *Engine) notify(res Result) {
	e.mu.RLock()
	observers := append([]func(Result){}, e.observers...)
	e.mu.RUnlock()

	for _, fn := range observers {
		fn(res)
	}
}
