package sync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/teamcache/teamcache/internal/connectivity"
	"github.com/teamcache/teamcache/internal/remote"
	"github.com/teamcache/teamcache/internal/store"
)

// OptionalColumns are the columns a remote may legitimately lack. An
// unknown-column rejection naming one of them is retried without it; any
// other unknown column fails the entry.
var OptionalColumns = map[store.Table]map[string]bool{
	store.TableTeams: {
		"logo":           true,
		"last_backup_at": true,
		"is_yearly":      true,
		"is_plus":        true,
	},
	store.TableMembers: {
		"telegram":       true,
		"two_fa_secret":  true,
		"password":       true,
		"password2":      true,
		"subscriptions":  true,
		"is_pushed":      true,
		"active_team_id": true,
		"pending_amount": true,
	},
}

// PushStats summarizes one pass over the queue.
type PushStats struct {
	Removed  int // entries confirmed remotely and deleted from the queue
	Failed   int // entries whose replay failed
	Held     int // entries held back behind an earlier failure
	Stripped int // optional columns dropped to satisfy the remote
	Aborted  bool
}

// Processor replays queued mutations against the remote.
type Processor struct {
	store  *store.Store
	remote remote.Store
	online connectivity.Checker
	logger *zap.Logger
}

// NewProcessor creates a Processor. If logger is nil, logging is disabled.
func NewProcessor(st *store.Store, rs remote.Store, online connectivity.Checker, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{store: st, remote: rs, online: online, logger: logger}
}

// Process replays the owner's queue and returns how many entries were
// synced and removed. It returns 0 without touching the queue when offline.
func (p *Processor) Process(ctx context.Context, ownerID string) int {
	if !p.online.Online(ctx) {
		p.logger.Debug("offline, queue left as is", zap.String("owner", ownerID))
		return 0
	}
	return p.push(ctx, ownerID).Removed
}

// push replays the queue without a connectivity check.
func (p *Processor) push(ctx context.Context, ownerID string) PushStats {
	var stats PushStats
	log := p.logger.With(zap.String("owner", ownerID))

	entries, err := p.store.ListQueueByOwner(ctx, ownerID)
	if err != nil {
		log.Error("failed to load sync queue", zap.Error(err))
		return stats
	}
	if len(entries) == 0 {
		return stats
	}

	var done []int64
	held := make(map[string]bool)

	for _, e := range entries {
		if ctx.Err() != nil {
			stats.Aborted = true
			break
		}

		entryLog := log.With(
			zap.Int64("entry_id", e.ID),
			zap.String("table", string(e.Table)),
			zap.String("op", string(e.Operation)),
			zap.String("record_id", e.RecordID),
		)

		key := recordKey(e.Table, e.RecordID)
		if held[key] || held[recordKey(store.TableTeams, store.ParentTeamID(e.Payload))] {
			// An earlier entry for this record, or for its team, is still
			// pending. Replaying this one now would reorder them.
			held[key] = true
			stats.Held++
			entryLog.Debug("held behind earlier failure")
			continue
		}

		stripped, err := p.replay(ctx, e)
		stats.Stripped += stripped
		if err != nil {
			if ctx.Err() != nil {
				stats.Aborted = true
				break
			}
			held[key] = true
			stats.Failed++
			entryLog.Warn("failed to sync queue entry", zap.Error(err))
			continue
		}
		done = append(done, e.ID)
	}

	if len(done) > 0 {
		// Confirmed entries must go even when the pass was cancelled,
		// otherwise the next cycle replays them.
		removed, err := p.store.DeleteQueueEntries(context.WithoutCancel(ctx), done)
		if err != nil {
			log.Error("failed to remove synced queue entries", zap.Int("count", len(done)), zap.Error(err))
		}
		stats.Removed = removed
	}

	log.Info("sync queue processed",
		zap.Int("synced", stats.Removed),
		zap.Int("failed", stats.Failed),
		zap.Int("held", stats.Held),
		zap.Int("stripped", stats.Stripped),
		zap.Bool("aborted", stats.Aborted),
	)
	return stats
}

// replay sends one entry and returns how many optional columns had to be
// stripped.
func (p *Processor) replay(ctx context.Context, e store.QueueEntry) (int, error) {
	if e.DecodeErr != nil {
		return 0, e.DecodeErr
	}

	if e.Operation == store.OpDelete {
		return 0, p.remote.Delete(ctx, e.Table, e.RecordID)
	}

	cols := e.Payload.RemoteColumns()
	stripped := 0
	for {
		var err error
		switch e.Operation {
		case store.OpInsert:
			err = p.remote.Upsert(ctx, e.Table, e.RecordID, cols)
		case store.OpUpdate:
			err = p.remote.Update(ctx, e.Table, e.RecordID, cols)
			if errors.Is(err, remote.ErrNotFound) {
				// Removed remotely since; the delete wins.
				p.logger.Info("update target gone remotely, dropping",
					zap.String("table", string(e.Table)), zap.String("record_id", e.RecordID))
				err = nil
			}
		default:
			return stripped, fmt.Errorf("unknown operation %q", e.Operation)
		}

		uc, ok := remote.IsUnknownColumn(err)
		if !ok {
			return stripped, err
		}
		if _, present := cols[uc.Column]; !present || !OptionalColumns[e.Table][uc.Column] {
			return stripped, err
		}

		p.logger.Info("remote lacks optional column, retrying without it",
			zap.String("table", string(e.Table)),
			zap.String("record_id", e.RecordID),
			zap.String("column", uc.Column),
		)
		delete(cols, uc.Column)
		stripped++
	}
}

func recordKey(table store.Table, id string) string {
	if id == "" {
		return ""
	}
	return string(table) + "/" + id
}
