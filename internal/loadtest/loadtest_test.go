package loadtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func populate(t *testing.T, numTeams, membersPerTeam int) *Fixture {
	t.Helper()
	f, err := Populate(context.Background(), filepath.Join(t.TempDir(), "load.db"), "owner-1", numTeams, membersPerTeam)
	if err != nil {
		t.Fatalf("Failed to populate store: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestPopulate(t *testing.T) {
	f := populate(t, 5, 4)

	if len(f.TeamIDs) != 5 {
		t.Errorf("Expected 5 teams, got %d", len(f.TeamIDs))
	}
	if len(f.MemberIDs) != 20 {
		t.Errorf("Expected 20 members, got %d", len(f.MemberIDs))
	}
	if f.Mutations() != 25 {
		t.Errorf("Expected 25 mutations, got %d", f.Mutations())
	}
	if err := f.VerifyQueue(context.Background()); err != nil {
		t.Errorf("VerifyQueue() failed: %v", err)
	}
}

func TestConcurrentWrites_KeepQueueConsistent(t *testing.T) {
	f := populate(t, 3, 5)
	ctx := context.Background()

	stats, err := f.RunConcurrentWrites(ctx, 8, 10)
	if err != nil {
		t.Fatalf("Concurrent writes failed: %v", err)
	}
	if stats.Total != 80 {
		t.Errorf("Expected 80 operations, got %d", stats.Total)
	}
	if stats.Errors != 0 {
		t.Errorf("Got %d errors", stats.Errors)
	}
	if f.Mutations() != 18+80 {
		t.Errorf("Expected %d mutations, got %d", 18+80, f.Mutations())
	}
	if err := f.VerifyQueue(ctx); err != nil {
		t.Errorf("VerifyQueue() failed: %v", err)
	}
}

func TestConcurrentReads(t *testing.T) {
	f := populate(t, 4, 3)

	stats, err := f.RunConcurrentReads(context.Background(), 10, 5)
	if err != nil {
		t.Fatalf("Concurrent reads failed: %v", err)
	}
	if stats.Total != 50 {
		t.Errorf("Expected 50 queries, got %d", stats.Total)
	}
	if stats.Min > stats.P50 || stats.P50 > stats.Max {
		t.Errorf("Percentiles out of order: %+v", stats)
	}
}

func TestComputeLatencyStats(t *testing.T) {
	var ds []time.Duration
	for i := 100; i >= 1; i-- {
		ds = append(ds, time.Duration(i)*time.Millisecond)
	}
	s := computeLatencyStats(ds)

	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("Min/Max = %v/%v", s.Min, s.Max)
	}
	if s.P50 != 51*time.Millisecond {
		t.Errorf("P50 = %v, want 51ms", s.P50)
	}
	if s.P99 != 100*time.Millisecond {
		t.Errorf("P99 = %v, want 100ms", s.P99)
	}
	if empty := computeLatencyStats(nil); empty.Total != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}
