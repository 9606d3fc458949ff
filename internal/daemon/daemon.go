// Package daemon runs sync cycles in the background.
//
// The daemon:
//  1. Runs one cycle on start
//  2. Runs a cycle every Interval
//  3. Watches the local store files and, once writes settle for Debounce,
//     runs a cycle if the owner has queued mutations
//  4. Stops cleanly when its context is cancelled
//
// Writes that land while a cycle runs can't be told apart from the cycle's
// own (queue deletes, the pulled snapshot). When any arrive, the daemon
// checks Pending once the cycle ends and runs one follow-up cycle if
// mutations are still queued. A follow-up never schedules another.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	tcsync "github.com/teamcache/teamcache/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// Interval is how often a cycle runs regardless of local changes.
	Interval time.Duration

	// Debounce is how long store writes must be quiet before a cycle is
	// triggered by them.
	Debounce time.Duration

	// Pending reports whether the owner has queued mutations. Nil means
	// every settled write triggers a cycle.
	Pending func(ctx context.Context) (bool, error)

	Logger *zap.Logger
}

// DefaultConfig returns the defaults used when New is given a nil config.
func DefaultConfig() *Config {
	return &Config{
		Interval: 5 * time.Minute,
		Debounce: 2 * time.Second,
		Logger:   zap.NewNop(),
	}
}

// Stats counts the daemon's work since it started.
type Stats struct {
	Cycles     int64
	Failed     int64
	Offline    int64
	LastResult *tcsync.Result
}

// Daemon triggers sync cycles for one owner.
type Daemon struct {
	syncer    tcsync.Syncer
	ownerID   string
	storePath string
	config    *Config
	logger    *zap.Logger

	watcher *FileWatcher
	trigger chan string

	changeMu    sync.Mutex
	changedAt   time.Time // zero when no change is waiting
	quietUntil  time.Time
	inCycle     bool
	cycleWrites bool // a store write arrived while the cycle ran
	followUp    bool // the waiting change was carried over from a cycle

	statsMu sync.Mutex
	stats   Stats

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Daemon. Use Start to begin.
func New(syncer tcsync.Syncer, ownerID, storePath string, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, errors.New("syncer cannot be nil")
	}
	if ownerID == "" {
		return nil, errors.New("ownerID cannot be empty")
	}
	if storePath == "" {
		return nil, errors.New("storePath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", config.Interval)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		syncer:    syncer,
		ownerID:   ownerID,
		storePath: storePath,
		config:    config,
		logger:    logger.With(zap.String("owner", ownerID)),
		watcher:   watcher,
		trigger:   make(chan string, 1),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start runs the daemon. It blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Info("starting daemon",
		zap.Duration("interval", d.config.Interval),
		zap.Duration("debounce", d.config.Debounce),
	)

	if err := d.watcher.Start(d.storePath); err != nil {
		_ = d.Stop()
		return fmt.Errorf("failed to watch local store: %w", err)
	}

	d.wg.Add(4)
	go d.runCycles()
	go d.watchStoreEvents()
	go d.processChanges()
	go d.tick()

	d.Trigger("startup")

	select {
	case <-ctx.Done():
		d.logger.Info("shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop shuts the daemon down and waits for a running cycle to return.
func (d *Daemon) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		d.logger.Info("stopping daemon")
		d.cancel()
		err = d.watcher.Stop()
		d.wg.Wait()
		d.logger.Info("daemon stopped")
	})
	return err
}

// Trigger asks for a cycle. Triggers that arrive while one is already
// waiting are merged into it.
func (d *Daemon) Trigger(reason string) {
	select {
	case d.trigger <- reason:
	default:
	}
}

// Stats returns a copy of the daemon's counters.
func (d *Daemon) Stats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.stats
}

func (d *Daemon) runCycles() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case reason := <-d.trigger:
			d.runCycle(reason)
		}
	}
}

const reasonFollowUp = "changed during cycle"

func (d *Daemon) runCycle(reason string) {
	d.changeMu.Lock()
	d.inCycle = true
	d.cycleWrites = false
	d.changeMu.Unlock()

	res := d.syncer.Run(d.ctx, d.ownerID)

	// The cycle's own writes may still be in flight to the watcher.
	now := time.Now()
	d.changeMu.Lock()
	d.inCycle = false
	d.changedAt = time.Time{}
	d.followUp = false
	if d.cycleWrites && reason != reasonFollowUp {
		d.changedAt = now
		d.followUp = true
	}
	d.quietUntil = now.Add(d.config.Debounce)
	d.changeMu.Unlock()

	d.statsMu.Lock()
	d.stats.Cycles++
	switch {
	case res.Offline:
		d.stats.Offline++
	case !res.OK():
		d.stats.Failed++
	}
	d.stats.LastResult = &res
	d.statsMu.Unlock()

	d.logger.Debug("cycle finished",
		zap.String("reason", reason),
		zap.Bool("offline", res.Offline),
		zap.Bool("ok", res.OK()),
		zap.Int("pushed", res.Push.Removed),
		zap.Int("failed", res.Push.Failed),
	)
}

func (d *Daemon) watchStoreEvents() {
	defer d.wg.Done()

	events := d.watcher.Events()
	errs := d.watcher.Errors()
	for {
		select {
		case <-d.ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			d.noteChange(ev)

		case err, ok := <-errs:
			if !ok {
				return
			}
			d.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (d *Daemon) noteChange(ev StoreEvent) {
	now := time.Now()

	d.changeMu.Lock()
	defer d.changeMu.Unlock()
	if d.inCycle {
		d.cycleWrites = true
		return
	}
	if now.Before(d.quietUntil) {
		return
	}
	d.changedAt = now
	d.followUp = false
}

// processChanges turns settled store writes into triggers.
func (d *Daemon) processChanges() {
	defer d.wg.Done()

	every := d.config.Debounce / 2
	if every <= 0 {
		every = 10 * time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if ok, followUp := d.settled(time.Now()); ok {
				d.triggerIfPending(followUp)
			}
		}
	}
}

// settled reports whether a waiting change has been quiet for Debounce and
// whether it was carried over from a cycle.
func (d *Daemon) settled(now time.Time) (bool, bool) {
	d.changeMu.Lock()
	defer d.changeMu.Unlock()

	if d.changedAt.IsZero() || now.Sub(d.changedAt) < d.config.Debounce {
		return false, false
	}
	d.changedAt = time.Time{}
	followUp := d.followUp
	d.followUp = false
	return true, followUp
}

func (d *Daemon) triggerIfPending(followUp bool) {
	if d.config.Pending != nil {
		pending, err := d.config.Pending(d.ctx)
		if err != nil {
			d.logger.Warn("failed to check sync queue", zap.Error(err))
			return
		}
		if !pending {
			return
		}
	}
	if followUp {
		d.Trigger(reasonFollowUp)
		return
	}
	d.Trigger("store changed")
}

func (d *Daemon) tick() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.Trigger("interval")
		}
	}
}
