// Package remotetest provides an in-memory remote.Store that records every
// call, for testing code that syncs against a remote.
package remotetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/teamcache/teamcache/internal/remote"
	"github.com/teamcache/teamcache/internal/store"
)

// Call is one recorded mutation or fetch.
type Call struct {
	Op      string // upsert, update, delete, fetch_teams, fetch_members
	Table   store.Table
	ID      string
	Columns remote.Columns
}

// Remote is a concurrency-safe fake remote.
type Remote struct {
	mu       sync.Mutex
	rows     map[store.Table]map[string]remote.Row
	missing  map[store.Table]map[string]bool
	failures map[string]error
	fetchErr error
	hook     func(ctx context.Context, c Call) error
	calls    []Call
}

var _ remote.Store = (*Remote)(nil)

// New returns an empty remote that knows every column.
func New() *Remote {
	return &Remote{
		rows: map[store.Table]map[string]remote.Row{
			store.TableTeams:   {},
			store.TableMembers: {},
		},
		missing:  map[store.Table]map[string]bool{},
		failures: map[string]error{},
	}
}

// DropColumn makes the remote reject writes that carry col.
func (r *Remote) DropColumn(table store.Table, col string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing[table] == nil {
		r.missing[table] = map[string]bool{}
	}
	r.missing[table][col] = true
}

// FailRecord makes every mutation of table/id fail with err. A nil err
// clears the failure.
func (r *Remote) FailRecord(table store.Table, id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(table) + "/" + id
	if err == nil {
		delete(r.failures, key)
		return
	}
	r.failures[key] = err
}

// FailFetch makes both fetches fail with err. A nil err clears it.
func (r *Remote) FailFetch(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchErr = err
}

// OnCall installs fn to run before every call. A non-nil return fails the
// call with that error.
func (r *Remote) OnCall(fn func(ctx context.Context, c Call) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = fn
}

// Seed stores row directly, bypassing the call log.
func (r *Remote) Seed(table store.Table, row remote.Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[table][fmt.Sprint(row["id"])] = copyRow(row)
}

// Get returns a copy of table/id.
func (r *Remote) Get(table store.Table, id string) (remote.Row, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[table][id]
	if !ok {
		return nil, false
	}
	return copyRow(row), true
}

// Len returns the number of records in table.
func (r *Remote) Len(table store.Table) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows[table])
}

// Calls returns the call log in order.
func (r *Remote) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// MutationIDs returns "op:table/id" for each recorded mutation, in order.
func (r *Remote) MutationIDs() []string {
	var out []string
	for _, c := range r.Calls() {
		switch c.Op {
		case "upsert", "update", "delete":
			out = append(out, fmt.Sprintf("%s:%s/%s", c.Op, c.Table, c.ID))
		}
	}
	return out
}

func (r *Remote) begin(ctx context.Context, c Call) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	hook := r.hook
	r.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, c); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// checkWrite returns the injected failure or the first missing column.
// Caller holds r.mu.
func (r *Remote) checkWrite(table store.Table, id string, cols remote.Columns) error {
	if err, ok := r.failures[string(table)+"/"+id]; ok {
		return err
	}
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if r.missing[table][name] {
			return &remote.UnknownColumnError{Table: table, Column: name}
		}
	}
	return nil
}

func (r *Remote) Upsert(ctx context.Context, table store.Table, id string, cols remote.Columns) error {
	if err := r.begin(ctx, Call{Op: "upsert", Table: table, ID: id, Columns: copyRow(cols)}); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkWrite(table, id, cols); err != nil {
		return err
	}
	row := copyRow(cols)
	row["id"] = id
	r.rows[table][id] = row
	return nil
}

func (r *Remote) Update(ctx context.Context, table store.Table, id string, cols remote.Columns) error {
	if err := r.begin(ctx, Call{Op: "update", Table: table, ID: id, Columns: copyRow(cols)}); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkWrite(table, id, cols); err != nil {
		return err
	}
	row, ok := r.rows[table][id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", table, id, remote.ErrNotFound)
	}
	for k, v := range cols {
		if k != "id" {
			row[k] = v
		}
	}
	return nil
}

func (r *Remote) Delete(ctx context.Context, table store.Table, id string) error {
	if err := r.begin(ctx, Call{Op: "delete", Table: table, ID: id}); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failures[string(table)+"/"+id]; ok {
		return err
	}
	delete(r.rows[table], id)
	return nil
}

func (r *Remote) FetchTeams(ctx context.Context, ownerID string) ([]remote.Row, error) {
	rows, err := r.fetch(ctx, "fetch_teams", store.TableTeams, ownerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ti, _ := rows[i]["created_at"].(time.Time)
		tj, _ := rows[j]["created_at"].(time.Time)
		return ti.After(tj)
	})
	return rows, nil
}

func (r *Remote) FetchMembers(ctx context.Context, ownerID string) ([]remote.Row, error) {
	return r.fetch(ctx, "fetch_members", store.TableMembers, ownerID)
}

func (r *Remote) fetch(ctx context.Context, op string, table store.Table, ownerID string) ([]remote.Row, error) {
	if err := r.begin(ctx, Call{Op: op, Table: table}); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}

	var out []remote.Row
	for _, row := range r.rows[table] {
		if row["owner_id"] == ownerID {
			out = append(out, copyRow(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i]["id"]) < fmt.Sprint(out[j]["id"])
	})
	return out, nil
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
