package dashboard

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	tcsync "github.com/teamcache/teamcache/internal/sync"
)

// CycleData describes one sync cycle.
type CycleData struct {
	OwnerID    string `json:"owner_id"`
	Pushed     int    `json:"pushed"`
	Failed     int    `json:"failed"`
	Held       int    `json:"held"`
	Stripped   int    `json:"stripped"`
	Teams      int    `json:"teams"`
	Members    int    `json:"members"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// StatsData contains running totals since the handler was created.
type StatsData struct {
	Cycles   int        `json:"cycles"`
	Complete int        `json:"complete"`
	Failed   int        `json:"failed"`
	Offline  int        `json:"offline"`
	Pushed   int        `json:"pushed"`
	LastSync *time.Time `json:"last_sync,omitempty"`
	Last     *CycleData `json:"last,omitempty"`
}

// Handler turns sync cycle results into dashboard messages. Register
// OnCycle with the engine's observers.
type Handler struct {
	server *Server
	logger *zap.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates a handler broadcasting through server.
func NewHandler(server *Server, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{server: server, logger: logger}
	server.setSnapshot(func() any { return h.Stats() })
	return h
}

// OnCycle records res and broadcasts it, followed by the updated stats.
func (h *Handler) OnCycle(res tcsync.Result) {
	data := CycleData{
		OwnerID:    res.OwnerID,
		Pushed:     res.Push.Removed,
		Failed:     res.Push.Failed,
		Held:       res.Push.Held,
		Stripped:   res.Push.Stripped,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Snapshot != nil {
		data.Teams = len(res.Snapshot.Teams)
		data.Members = len(res.Snapshot.Members)
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}

	var typ MessageType
	switch {
	case res.Offline:
		typ = MessageTypeOffline
	case res.OK():
		typ = MessageTypeSyncComplete
	default:
		typ = MessageTypeSyncFailed
	}

	h.mu.Lock()
	h.stats.Cycles++
	h.stats.Pushed += data.Pushed
	switch typ {
	case MessageTypeOffline:
		h.stats.Offline++
	case MessageTypeSyncComplete:
		h.stats.Complete++
		at := res.Started.Add(res.Duration)
		h.stats.LastSync = &at
	default:
		h.stats.Failed++
	}
	h.stats.Last = &data
	h.mu.Unlock()

	h.send(typ, data)
	h.send(MessageTypeStats, h.Stats())
}

// Stats returns a copy of the running totals.
func (h *Handler) Stats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.stats
	if out.Last != nil {
		last := *out.Last
		out.Last = &last
	}
	return out
}

func (h *Handler) send(typ MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("failed to marshal dashboard data", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: data})
}
