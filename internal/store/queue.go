package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QueueEntry is one pending remote mutation. Entries are append-only: the
// processor deletes them once replayed, nothing ever updates them.
type QueueEntry struct {
	ID        int64
	Table     Table
	Operation Operation
	RecordID  string
	Payload   Payload
	OwnerID   string
	CreatedAt time.Time

	// DecodeErr is set when the stored payload could not be decoded.
	// Payload is nil in that case.
	DecodeErr error
}

// NewQueueEntry builds an entry whose table and operation come from p.
func NewQueueEntry(ownerID, recordID string, p Payload) QueueEntry {
	return QueueEntry{
		Table:     p.Table(),
		Operation: p.Operation(),
		RecordID:  recordID,
		Payload:   p,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
}

// deleteChunk bounds the number of placeholders per DELETE statement.
const deleteChunk = 500

// AppendQueue stores e and returns its assigned id.
func (s *Store) AppendQueue(ctx context.Context, e QueueEntry) (int64, error) {
	if e.Payload == nil {
		return 0, fmt.Errorf("queue entry for %s has no payload", e.RecordID)
	}
	if e.Payload.Table() != e.Table || e.Payload.Operation() != e.Operation {
		return 0, fmt.Errorf("queue payload %s/%s does not match entry %s/%s",
			e.Payload.Table(), e.Payload.Operation(), e.Table, e.Operation)
	}
	if e.RecordID == "" {
		return 0, fmt.Errorf("queue entry record id is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	data, err := json.Marshal(e.Payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal queue payload: %w", err)
	}

	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sync_queue (table_name, operation, record_id, payload, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(e.Table), string(e.Operation), e.RecordID, string(data), e.OwnerID, formatTime(e.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to append queue entry for %s: %w", e.RecordID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue entry id: %w", err)
	}
	return id, nil
}

// ListQueueByOwner returns the owner's entries in replay (id) order.
func (s *Store) ListQueueByOwner(ctx context.Context, ownerID string) ([]QueueEntry, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, table_name, operation, record_id, payload, owner_id, created_at
		FROM sync_queue
		WHERE owner_id = ?
		ORDER BY id ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		var table, op, payload, createdAt string
		if err := rows.Scan(&e.ID, &table, &op, &e.RecordID, &payload, &e.OwnerID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		e.Table = Table(table)
		e.Operation = Operation(op)
		e.CreatedAt = parseTime(createdAt)
		e.Payload, e.DecodeErr = decodePayload(e.Table, e.Operation, []byte(payload))
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue: %w", err)
	}
	return entries, nil
}

// DeleteQueueEntries removes the given entries in one transaction and
// returns how many rows were deleted.
func (s *Store) DeleteQueueEntries(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	removed := 0
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		for start := 0; start < len(ids); start += deleteChunk {
			end := min(start+deleteChunk, len(ids))
			chunk := ids[start:end]

			args := make([]any, len(chunk))
			for i, id := range chunk {
				args[i] = id
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

			res, err := s.q(ctx).ExecContext(ctx,
				`DELETE FROM sync_queue WHERE id IN (`+placeholders+`)`, args...)
			if err != nil {
				return fmt.Errorf("failed to delete queue entries: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to count deleted queue entries: %w", err)
			}
			removed += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// QueueLength returns the number of pending entries for ownerID.
func (s *Store) QueueLength(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE owner_id = ?`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return count, nil
}
