// Package postgres implements the remote store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/teamcache/teamcache/internal/remote"
	"github.com/teamcache/teamcache/internal/store"
)

// SQLSTATE codes the store classifies.
const (
	codeUndefinedColumn = "42703"
	codeUndefinedTable  = "42P01"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock.PgxPoolIface
// satisfies it too.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Store is a remote.Store backed by a Postgres database.
type Store struct {
	pool   Pool
	logger *zap.Logger
}

var _ remote.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// Open creates a pool for dsn without contacting the server. Connections
// are made on first use, so Open succeeds while the remote is unreachable.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid remote dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote pool: %w", err)
	}
	return New(pool, logger), nil
}

// Connect is Open followed by a ping.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	s, err := Open(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to reach remote: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that the remote answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", remote.ErrTransport, err)
	}
	return nil
}

// Upsert inserts the full row or overwrites the existing record with the
// same id.
func (s *Store) Upsert(ctx context.Context, table store.Table, id string, cols remote.Columns) error {
	row := make(remote.Columns, len(cols)+1)
	for k, v := range cols {
		row[k] = v
	}
	row["id"] = id

	names, args, err := sortedColumns(table, row)
	if err != nil {
		return err
	}

	placeholders := make([]string, len(names))
	var sets []string
	for i, name := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if name != "id" {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", name, name))
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO ",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if len(sets) == 0 {
		query += "NOTHING"
	} else {
		query += "UPDATE SET " + strings.Join(sets, ", ")
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return classify(table, err)
	}
	s.logger.Debug("remote upsert", zap.String("table", string(table)), zap.String("record_id", id))
	return nil
}

// Update writes cols onto the existing record id.
func (s *Store) Update(ctx context.Context, table store.Table, id string, cols remote.Columns) error {
	row := make(remote.Columns, len(cols))
	for k, v := range cols {
		if k != "id" {
			row[k] = v
		}
	}

	names, args, err := sortedColumns(table, row)
	if err != nil {
		return err
	}

	var query string
	if len(names) == 0 {
		// Nothing to write; still report whether the record exists.
		query = fmt.Sprintf("UPDATE %s SET id = id WHERE id = $1", table)
	} else {
		sets := make([]string, len(names))
		for i, name := range names {
			sets[i] = fmt.Sprintf("%s = $%d", name, i+1)
		}
		query = fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(names)+1)
	}
	args = append(args, id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return classify(table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s/%s: %w", table, id, remote.ErrNotFound)
	}
	s.logger.Debug("remote update", zap.String("table", string(table)), zap.String("record_id", id))
	return nil
}

// Delete removes record id. A missing record is not an error.
func (s *Store) Delete(ctx context.Context, table store.Table, id string) error {
	if _, ok := knownColumns[table]; !ok {
		return fmt.Errorf("unknown remote table %q", table)
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id); err != nil {
		return classify(table, err)
	}
	s.logger.Debug("remote delete", zap.String("table", string(table)), zap.String("record_id", id))
	return nil
}

// FetchTeams returns the owner's teams, newest created first. Rows carry
// whatever columns the remote has, read with SELECT * so schema drift in
// either direction is tolerated.
func (s *Store) FetchTeams(ctx context.Context, ownerID string) ([]remote.Row, error) {
	return s.fetch(ctx, store.TableTeams,
		`SELECT * FROM teams WHERE owner_id = $1 ORDER BY created_at DESC, id ASC`, ownerID)
}

// FetchMembers returns the owner's members.
func (s *Store) FetchMembers(ctx context.Context, ownerID string) ([]remote.Row, error) {
	return s.fetch(ctx, store.TableMembers,
		`SELECT * FROM members WHERE owner_id = $1 ORDER BY id ASC`, ownerID)
}

func (s *Store) fetch(ctx context.Context, table store.Table, query, ownerID string) ([]remote.Row, error) {
	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, classify(table, err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, classify(table, err)
	}
	return result, nil
}

// classify maps a driver error onto the remote error classes.
func classify(table store.Table, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUndefinedColumn:
			col := pgErr.ColumnName
			if col == "" {
				col = remote.ParseUnknownColumn(pgErr.Message)
			}
			if col != "" {
				return &remote.UnknownColumnError{Table: table, Column: col}
			}
		case codeUndefinedTable:
			return fmt.Errorf("%w: remote table %s missing: %w", remote.ErrTransport, table, err)
		}
	}

	// Proxies and gateways in front of the database only hand back text.
	if col := remote.ParseUnknownColumn(err.Error()); col != "" {
		return &remote.UnknownColumnError{Table: table, Column: col}
	}
	return fmt.Errorf("%w: %w", remote.ErrTransport, err)
}

// sortedColumns validates names against knownColumns and returns them in a
// stable order with the matching arguments.
func sortedColumns(table store.Table, cols remote.Columns) ([]string, []any, error) {
	allowed, ok := knownColumns[table]
	if !ok {
		return nil, nil, fmt.Errorf("unknown remote table %q", table)
	}

	names := make([]string, 0, len(cols))
	for name := range cols {
		if !allowed[name] {
			return nil, nil, fmt.Errorf("column %q is not a %s column", name, table)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, len(names))
	for i, name := range names {
		args[i] = cols[name]
	}
	return names, args, nil
}
