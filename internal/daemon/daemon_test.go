package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/teamcache/teamcache/internal/model"
	tcsync "github.com/teamcache/teamcache/internal/sync"
)

// fakeSyncer records cycles and optionally runs a hook inside each one.
type fakeSyncer struct {
	mu      sync.Mutex
	runs    int
	offline bool
	during  func()
	ran     chan struct{}
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{ran: make(chan struct{}, 100)}
}

func (f *fakeSyncer) Run(ctx context.Context, ownerID string) tcsync.Result {
	f.mu.Lock()
	f.runs++
	during, offline := f.during, f.offline
	f.mu.Unlock()

	if during != nil {
		during()
	}
	f.ran <- struct{}{}
	if offline {
		return tcsync.Result{OwnerID: ownerID, Offline: true}
	}
	return tcsync.Result{OwnerID: ownerID, Snapshot: &model.Snapshot{}}
}

func (f *fakeSyncer) FullSync(ctx context.Context, ownerID string) *model.Snapshot {
	return f.Run(ctx, ownerID).Snapshot
}

func (f *fakeSyncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func waitRun(t *testing.T, f *fakeSyncer) {
	t.Helper()
	select {
	case <-f.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sync cycle")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func setupStorePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teamcache.db")
	if err := os.WriteFile(path, []byte("db"), 0644); err != nil {
		t.Fatalf("Failed to create store file: %v", err)
	}
	return path
}

// startDaemon runs d in the background and stops it at cleanup.
func startDaemon(t *testing.T, d *Daemon) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Daemon error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Daemon did not shut down within timeout")
		}
	})
}

func TestNew(t *testing.T) {
	path := setupStorePath(t)
	syncer := newFakeSyncer()

	tests := []struct {
		name    string
		syncer  tcsync.Syncer
		owner   string
		path    string
		config  *Config
		wantErr bool
	}{
		{name: "valid configuration", syncer: syncer, owner: "o1", path: path},
		{name: "nil syncer", owner: "o1", path: path, wantErr: true},
		{name: "empty owner", syncer: syncer, path: path, wantErr: true},
		{name: "empty store path", syncer: syncer, owner: "o1", wantErr: true},
		{name: "zero interval", syncer: syncer, owner: "o1", path: path, config: &Config{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.syncer, tt.owner, tt.path, tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if d != nil {
				_ = d.Stop()
			}
		})
	}
}

func TestDaemon_StartupCycle(t *testing.T) {
	syncer := newFakeSyncer()
	d, err := New(syncer, "o1", setupStorePath(t), &Config{Interval: time.Hour, Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startDaemon(t, d)

	waitRun(t, syncer)
	waitFor(t, func() bool { return d.Stats().Cycles == 1 })
}

func TestDaemon_StoreWriteTriggersCycle(t *testing.T) {
	path := setupStorePath(t)
	syncer := newFakeSyncer()
	d, err := New(syncer, "o1", path, &Config{
		Interval: time.Hour,
		Debounce: 50 * time.Millisecond,
		Pending:  func(context.Context) (bool, error) { return true, nil },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startDaemon(t, d)
	waitRun(t, syncer)

	// Let the post-cycle quiet window pass.
	time.Sleep(150 * time.Millisecond)

	// Rapid writes settle into one cycle.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path+"-wal", []byte(time.Now().String()), 0644); err != nil {
			t.Fatalf("Failed to write WAL: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	waitRun(t, syncer)

	time.Sleep(300 * time.Millisecond)
	if got := syncer.count(); got != 2 {
		t.Errorf("runs = %d, want 2 (startup + one debounced)", got)
	}
}

func TestDaemon_NothingPendingNoCycle(t *testing.T) {
	path := setupStorePath(t)
	syncer := newFakeSyncer()
	d, err := New(syncer, "o1", path, &Config{
		Interval: time.Hour,
		Debounce: 50 * time.Millisecond,
		Pending:  func(context.Context) (bool, error) { return false, nil },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startDaemon(t, d)
	waitRun(t, syncer)
	time.Sleep(150 * time.Millisecond)

	if err := os.WriteFile(path, []byte("changed"), 0644); err != nil {
		t.Fatalf("Failed to write store: %v", err)
	}
	time.Sleep(400 * time.Millisecond)

	if got := syncer.count(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestDaemon_IgnoresOwnWrites(t *testing.T) {
	path := setupStorePath(t)
	syncer := newFakeSyncer()
	syncer.during = func() {
		// A pull rewrites the store.
		_ = os.WriteFile(path, []byte(time.Now().String()), 0644)
		time.Sleep(50 * time.Millisecond)
	}
	d, err := New(syncer, "o1", path, &Config{
		Interval: time.Hour,
		Debounce: 200 * time.Millisecond,
		// The cycle drains the queue.
		Pending: func(context.Context) (bool, error) { return syncer.count() == 0, nil },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startDaemon(t, d)
	waitRun(t, syncer)

	time.Sleep(700 * time.Millisecond)
	if got := syncer.count(); got != 1 {
		t.Errorf("runs = %d, want 1; the cycle's own write must not trigger another", got)
	}
}

func TestDaemon_WriteDuringCycleRunsFollowUp(t *testing.T) {
	path := setupStorePath(t)
	syncer := newFakeSyncer()
	syncer.during = func() {
		// A local mutation lands while the cycle is talking to the remote.
		_ = os.WriteFile(path+"-wal", []byte(time.Now().String()), 0644)
		time.Sleep(50 * time.Millisecond)
	}
	d, err := New(syncer, "o1", path, &Config{
		Interval: time.Hour,
		Debounce: 50 * time.Millisecond,
		Pending:  func(context.Context) (bool, error) { return true, nil },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startDaemon(t, d)

	waitRun(t, syncer)
	waitRun(t, syncer)

	// The follow-up writes too, but must not chain into a third cycle.
	time.Sleep(400 * time.Millisecond)
	if got := syncer.count(); got != 2 {
		t.Errorf("runs = %d, want 2 (startup + one follow-up)", got)
	}
}

func TestDaemon_WriteDuringCycleNothingPending(t *testing.T) {
	path := setupStorePath(t)
	syncer := newFakeSyncer()
	syncer.during = func() {
		_ = os.WriteFile(path+"-wal", []byte(time.Now().String()), 0644)
		time.Sleep(50 * time.Millisecond)
	}
	d, err := New(syncer, "o1", path, &Config{
		Interval: time.Hour,
		Debounce: 50 * time.Millisecond,
		Pending:  func(context.Context) (bool, error) { return false, nil },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startDaemon(t, d)
	waitRun(t, syncer)

	time.Sleep(400 * time.Millisecond)
	if got := syncer.count(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestDaemon_IntervalAndStats(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.offline = true
	d, err := New(syncer, "o1", setupStorePath(t), &Config{Interval: 50 * time.Millisecond, Debounce: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startDaemon(t, d)

	for i := 0; i < 3; i++ {
		waitRun(t, syncer)
	}

	// The counters are updated just after the syncer returns.
	waitFor(t, func() bool { return d.Stats().Cycles >= 3 })
	stats := d.Stats()
	if stats.Cycles < 3 || stats.Offline != stats.Cycles || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.LastResult == nil || !stats.LastResult.Offline {
		t.Errorf("LastResult = %+v", stats.LastResult)
	}
}

func TestDaemon_StopIsIdempotent(t *testing.T) {
	syncer := newFakeSyncer()
	d, err := New(syncer, "o1", setupStorePath(t), nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(context.Background()) }()
	waitRun(t, syncer)

	if err := d.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Start did not return after Stop")
	}
}
