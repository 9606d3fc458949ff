// Package loadtest drives the local write path with concurrent writers and
// readers.
//
// It populates a store through teams.Service, then checks that concurrent
// mutations keep their sync queue consistent: one entry per committed
// mutation, ids strictly increasing, every entry decodable.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/store"
	"github.com/teamcache/teamcache/internal/teams"
)

// Fixture is a populated store ready for load.
type Fixture struct {
	Store   *store.Store
	Teams   *teams.Service
	OwnerID string

	TeamIDs   []string
	MemberIDs []string

	mu        sync.Mutex
	mutations int // committed mutations, each one queue entry
}

// LatencyStats captures per-operation latency from a run.
type LatencyStats struct {
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Total  int
	Errors int
}

// Populate opens a store at path and creates numTeams teams with
// membersPerTeam members each, all owned by ownerID.
func Populate(ctx context.Context, path, ownerID string, numTeams, membersPerTeam int) (*Fixture, error) {
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	f := &Fixture{
		Store:   st,
		Teams:   teams.New(st, zap.NewNop()),
		OwnerID: ownerID,
	}

	base := model.Today().AddDays(-40)
	for i := 0; i < numTeams; i++ {
		t, err := f.Teams.CreateTeam(ctx, ownerID, model.Team{
			Name:       fmt.Sprintf("Team %03d", i),
			AdminEmail: fmt.Sprintf("admin%d@example.com", i),
			IsYearly:   i%4 == 0,
		})
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to create team %d: %w", i, err)
		}
		f.TeamIDs = append(f.TeamIDs, t.ID)
		f.mutations++

		for j := 0; j < membersPerTeam; j++ {
			m, err := f.Teams.AddMember(ctx, ownerID, model.Member{
				TeamID:        t.ID,
				Email:         fmt.Sprintf("m%d.%d@example.com", i, j),
				JoinDate:      base.AddDays((i + j) % 40),
				PendingAmount: 10,
				Subscriptions: []string{"plan-a"},
			})
			if err != nil {
				_ = st.Close()
				return nil, fmt.Errorf("failed to add member %d to team %d: %w", j, i, err)
			}
			f.MemberIDs = append(f.MemberIDs, m.ID)
			f.mutations++
		}
	}
	return f, nil
}

// Close closes the store.
func (f *Fixture) Close() error {
	return f.Store.Close()
}

// Mutations returns the number of committed mutations so far.
func (f *Fixture) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations
}

// RunConcurrentWrites starts writers goroutines, each performing opsPerWriter
// mutations: payments on existing members, alternating with new members.
func (f *Fixture) RunConcurrentWrites(ctx context.Context, writers, opsPerWriter int) (*LatencyStats, error) {
	if len(f.TeamIDs) == 0 || len(f.MemberIDs) == 0 {
		return nil, fmt.Errorf("fixture has no members to write to")
	}
	return f.run(ctx, writers, opsPerWriter, func(ctx context.Context, rng *rand.Rand, writer, op int) error {
		if op%2 == 0 {
			id := f.MemberIDs[rng.Intn(len(f.MemberIDs))]
			_, err := f.Teams.RecordPayment(ctx, f.OwnerID, id, 1)
			return err
		}
		_, err := f.Teams.AddMember(ctx, f.OwnerID, model.Member{
			TeamID: f.TeamIDs[rng.Intn(len(f.TeamIDs))],
			Phone:  fmt.Sprintf("+1555%03d%04d", writer, op),
		})
		return err
	}, true)
}

// RunConcurrentReads starts readers goroutines, each loading the owner's
// full snapshot queriesPerReader times.
func (f *Fixture) RunConcurrentReads(ctx context.Context, readers, queriesPerReader int) (*LatencyStats, error) {
	return f.run(ctx, readers, queriesPerReader, func(ctx context.Context, _ *rand.Rand, _, _ int) error {
		snap, err := f.Teams.Snapshot(ctx, f.OwnerID)
		if err != nil {
			return err
		}
		if len(snap.Teams) != len(f.TeamIDs) {
			return fmt.Errorf("snapshot has %d teams, want %d", len(snap.Teams), len(f.TeamIDs))
		}
		return nil
	}, false)
}

func (f *Fixture) run(ctx context.Context, workers, ops int, do func(ctx context.Context, rng *rand.Rand, worker, op int) error, mutates bool) (*LatencyStats, error) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations []time.Duration
		errs      error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(42 + worker)))
			local := make([]time.Duration, 0, ops)
			var failed error

			for j := 0; j < ops; j++ {
				start := time.Now()
				err := do(ctx, rng, worker, j)
				local = append(local, time.Since(start))
				if err != nil {
					failed = multierr.Append(failed, fmt.Errorf("worker %d op %d: %w", worker, j, err))
					continue
				}
				if mutates {
					f.mu.Lock()
					f.mutations++
					f.mu.Unlock()
				}
			}

			mu.Lock()
			durations = append(durations, local...)
			errs = multierr.Append(errs, failed)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	stats := computeLatencyStats(durations)
	stats.Errors = len(multierr.Errors(errs))
	return stats, errs
}

// VerifyQueue checks the owner's queue against the committed mutations.
func (f *Fixture) VerifyQueue(ctx context.Context) error {
	entries, err := f.Store.ListQueueByOwner(ctx, f.OwnerID)
	if err != nil {
		return err
	}
	if want := f.Mutations(); len(entries) != want {
		return fmt.Errorf("queue has %d entries, want %d", len(entries), want)
	}
	for i, e := range entries {
		if e.DecodeErr != nil {
			return fmt.Errorf("entry %d: %w", e.ID, e.DecodeErr)
		}
		if i > 0 && e.ID <= entries[i-1].ID {
			return fmt.Errorf("entry %d follows %d out of order", e.ID, entries[i-1].ID)
		}
	}
	return nil
}

func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return &LatencyStats{
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
		Total: len(sorted),
	}
}

// Print writes s in a human-readable block.
func (s *LatencyStats) Print(w io.Writer) {
	fmt.Fprintf(w, "  Operations:    %d\n", s.Total)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
