// Package remote defines the capability the sync engine needs from the
// authoritative remote store, and the error classes it reports.
//
// The remote holds two collections, teams and members, keyed by id. Rows
// come back as loosely typed column maps because the remote schema drifts
// ahead of (or behind) this client; internal/mapper turns them into typed
// storage rows.
package remote

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/teamcache/teamcache/internal/store"
)

// Row is one remote record as column name -> value.
type Row = map[string]any

// Columns is the set of column values a mutation sends.
type Columns = map[string]any

var (
	// ErrNotFound means the targeted record does not exist remotely.
	ErrNotFound = errors.New("remote record not found")

	// ErrTransport covers every failure that is neither a missing record
	// nor a schema rejection: network, auth, timeouts, server errors.
	ErrTransport = errors.New("remote transport failure")
)

// UnknownColumnError is returned when the remote rejects a mutation because
// it does not recognize one of the columns sent.
type UnknownColumnError struct {
	Table  store.Table
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("remote %s has no column %q", e.Table, e.Column)
}

// IsUnknownColumn reports whether err is an unknown-column rejection and, if
// so, returns it.
func IsUnknownColumn(err error) (*UnknownColumnError, bool) {
	var uc *UnknownColumnError
	if errors.As(err, &uc) {
		return uc, true
	}
	return nil, false
}

// Store is the remote capability. Implementations must be safe for
// concurrent use.
type Store interface {
	// Upsert inserts the full row, or overwrites it when id exists.
	Upsert(ctx context.Context, table store.Table, id string, cols Columns) error

	// Update writes cols onto the existing record id. Returns ErrNotFound
	// when no such record exists.
	Update(ctx context.Context, table store.Table, id string, cols Columns) error

	// Delete removes record id. Deleting a missing record is not an error.
	Delete(ctx context.Context, table store.Table, id string) error

	// FetchTeams returns the owner's teams, newest created first.
	FetchTeams(ctx context.Context, ownerID string) ([]Row, error)

	// FetchMembers returns the owner's members.
	FetchMembers(ctx context.Context, ownerID string) ([]Row, error)
}

// Free-text forms of an unknown-column rejection, for remotes that do not
// report a structured code.
var unknownColumnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`column "([^"]+)"(?: of relation "[^"]+")? does not exist`),
	regexp.MustCompile(`[Cc]ould not find the '([^']+)' column`),
	regexp.MustCompile(`no such column: ([A-Za-z0-9_]+)`),
}

// ParseUnknownColumn extracts the column name from an unknown-column
// message. It returns "" when msg is not one.
func ParseUnknownColumn(msg string) string {
	for _, re := range unknownColumnPatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			col := m[1]
			// Postgres may qualify the name: column "members.telegram"
			if i := strings.LastIndex(col, "."); i >= 0 {
				col = col[i+1:]
			}
			return col
		}
	}
	return ""
}
