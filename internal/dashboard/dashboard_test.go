package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/teamcache/teamcache/internal/model"
	tcsync "github.com/teamcache/teamcache/internal/sync"
)

func startServer(t *testing.T) (*Server, *Handler) {
	t.Helper()

	server := NewServer(&Config{Port: 0, Host: "127.0.0.1"})
	handler := NewHandler(server, nil)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Errorf("Failed to stop server: %v", err)
		}
	})
	return server, handler
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func waitClients(t *testing.T, server *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for server.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", server.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0, Host: "127.0.0.1"})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.Addr() == "127.0.0.1:0" {
		t.Error("Addr() should report the bound port")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocket_WelcomeIsStats(t *testing.T) {
	server, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStats {
		t.Errorf("welcome type = %s, want %s", msg.Type, MessageTypeStats)
	}
	waitClients(t, server, 1)
}

func TestHandler_BroadcastsCycles(t *testing.T) {
	server, handler := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn) // welcome
	waitClients(t, server, 1)

	started := time.Now()
	handler.OnCycle(tcsync.Result{
		OwnerID:  "o1",
		Push:     tcsync.PushStats{Removed: 3, Failed: 1},
		Snapshot: &model.Snapshot{Teams: []model.Team{{ID: "t1"}}, Members: []model.Member{{ID: "m1"}, {ID: "m2"}}},
		Started:  started,
		Duration: 40 * time.Millisecond,
	})

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeSyncComplete {
		t.Fatalf("type = %s, want %s", msg.Type, MessageTypeSyncComplete)
	}
	var cycle CycleData
	if err := json.Unmarshal(msg.Data, &cycle); err != nil {
		t.Fatalf("Failed to unmarshal cycle data: %v", err)
	}
	if cycle.Pushed != 3 || cycle.Failed != 1 || cycle.Teams != 1 || cycle.Members != 2 || cycle.DurationMS != 40 {
		t.Errorf("cycle = %+v", cycle)
	}

	stats := readMessage(t, ctx, conn)
	if stats.Type != MessageTypeStats {
		t.Fatalf("type = %s, want %s", stats.Type, MessageTypeStats)
	}

	handler.OnCycle(tcsync.Result{OwnerID: "o1", Err: errors.New("remote down")})
	failed := readMessage(t, ctx, conn)
	if failed.Type != MessageTypeSyncFailed {
		t.Errorf("type = %s, want %s", failed.Type, MessageTypeSyncFailed)
	}
	readMessage(t, ctx, conn) // stats

	handler.OnCycle(tcsync.Result{OwnerID: "o1", Offline: true})
	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeOffline {
		t.Errorf("type = %s, want %s", msg.Type, MessageTypeOffline)
	}

	got := handler.Stats()
	if got.Cycles != 3 || got.Complete != 1 || got.Failed != 1 || got.Offline != 1 || got.Pushed != 3 {
		t.Errorf("stats = %+v", got)
	}
	if got.LastSync == nil || !got.LastSync.Equal(started.Add(40*time.Millisecond)) {
		t.Errorf("LastSync = %v", got.LastSync)
	}
}

func TestMultipleClients(t *testing.T) {
	server, handler := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clients := make([]*websocket.Conn, 3)
	for i := range clients {
		clients[i] = dial(t, ctx, server)
		readMessage(t, ctx, clients[i])
	}
	waitClients(t, server, 3)

	handler.OnCycle(tcsync.Result{OwnerID: "o1", Offline: true})
	for i, conn := range clients {
		if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeOffline {
			t.Errorf("client %d got %s, want %s", i, msg.Type, MessageTypeOffline)
		}
	}
}

func TestClientDisconnect(t *testing.T) {
	server, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)
	waitClients(t, server, 1)

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	waitClients(t, server, 0)
}

func TestHealth(t *testing.T) {
	server, handler := startServer(t)
	handler.OnCycle(tcsync.Result{OwnerID: "o1", Snapshot: &model.Snapshot{}})

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string    `json:"status"`
		Sync   StatsData `json:"sync"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if body.Status != "ok" || body.Sync.Complete != 1 {
		t.Errorf("health = %+v", body)
	}
}

func TestBroadcast_DropsWhenFull(t *testing.T) {
	// Not started, so nothing drains the channel.
	server := NewServer(&Config{Port: 0})
	defer server.cancel()

	for i := 0; i < cap(server.broadcast)+10; i++ {
		server.Broadcast(Message{Type: MessageTypeStats})
	}
	if got := len(server.broadcast); got != cap(server.broadcast) {
		t.Errorf("queued = %d, want %d", got, cap(server.broadcast))
	}
}
