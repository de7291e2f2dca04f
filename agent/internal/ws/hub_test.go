package ws_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsidianstack/obs/agent/internal/compute"
	"github.com/obsidianstack/obs/agent/internal/source"
	wsHub "github.com/obsidianstack/obs/agent/internal/ws"
	"github.com/obsidianstack/obs/pkg/stance"
	"github.com/obsidianstack/obs/pkg/types"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

// startHub starts an engine over a feed network source and a test HTTP
// server with the hub as its handler. interval is the keepalive period.
func startHub(t *testing.T, interval time.Duration) (wsURL string, hub *wsHub.Hub, net *source.FeedNetwork) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	engine := compute.New(stance.DefaultThresholds())
	hub = wsHub.New(engine, interval)
	engine.Subscribe(hub.Publish)

	net = source.NewFeedNetwork()
	net.Set(stance.NetworkReading{RTT: 40, Downlink: 12}, math.NaN())
	engine.Start(ctx, net, nil)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub, net
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readState reads one message from conn and decodes the envelope.
func readState(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateState(t *testing.T) {
	wsURL, _, _ := startHub(t, time.Hour)

	m := readState(t, dial(t, wsURL))
	if m.Event != "state" {
		t.Errorf("event: got %q, want state", m.Event)
	}
	if m.Data.DeliveryMode != types.DeliveryRich {
		t.Errorf("deliveryMode: got %q, want rich", m.Data.DeliveryMode)
	}
	if !m.Data.NetworkInitialized {
		t.Error("networkInitialized: got false")
	}
}

func TestHub_PushesEveryPass(t *testing.T) {
	wsURL, _, net := startHub(t, time.Hour)

	conn := dial(t, wsURL)
	first := readState(t, conn)

	// Wait for the server side to register before the change fires.
	time.Sleep(10 * time.Millisecond)
	net.Set(stance.NetworkReading{RTT: 600, Downlink: 0.3}, math.NaN())

	next := readState(t, conn)
	if next.Data.Revision <= first.Data.Revision {
		t.Errorf("revision: got %d after %d", next.Data.Revision, first.Data.Revision)
	}
	if next.Data.DeliveryMode != types.DeliveryLite {
		t.Errorf("deliveryMode: got %q, want lite", next.Data.DeliveryMode)
	}
}

func TestHub_KeepaliveResendsState(t *testing.T) {
	wsURL, _, _ := startHub(t, testInterval)

	conn := dial(t, wsURL)
	first := readState(t, conn)
	again := readState(t, conn)

	if again.Data.Revision != first.Data.Revision {
		t.Errorf("keepalive revision: got %d, want %d", again.Data.Revision, first.Data.Revision)
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, time.Hour)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readState(t, conns[i]) // consume initial message
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}

	conns[0].Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 2 {
		t.Errorf("Count after disconnect: got %d, want 2", n)
	}
}

func TestHub_RunStopClosesClients(t *testing.T) {
	engine := compute.New(stance.DefaultThresholds())
	hub := wsHub.New(engine, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	t.Cleanup(srv.Close)

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	readState(t, conn)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after Run stops")
	}
}

func TestHub_PublishDropsStaleRevision(t *testing.T) {
	wsURL, hub, _ := startHub(t, time.Hour)
	conn := dial(t, wsURL)
	first := readState(t, conn)
	time.Sleep(10 * time.Millisecond)

	hub.Publish(types.State{Revision: first.Data.Revision + 10, DeliveryMode: types.DeliveryLite})
	hub.Publish(types.State{Revision: first.Data.Revision + 5, DeliveryMode: types.DeliveryCautious})

	m := readState(t, conn)
	if m.Data.Revision != first.Data.Revision+10 {
		t.Fatalf("revision: got %d", m.Data.Revision)
	}

	conn.SetReadDeadline(time.Now().Add(30 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("stale revision was delivered")
	}
}

// gatedSnapshot blocks its first Snapshot call until release is closed.
type gatedSnapshot struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSnapshot) Snapshot() types.State {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return types.State{Revision: 7, DeliveryMode: types.DeliveryCautious}
}

func TestHub_ShutdownDuringConnectStillDeliversFirstState(t *testing.T) {
	g := &gatedSnapshot{entered: make(chan struct{}), release: make(chan struct{})}
	hub := wsHub.New(g, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	t.Cleanup(srv.Close)

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never asked for the initial snapshot")
	}

	// Shut the hub down while the handler is between upgrade and first send.
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	close(g.release)

	m := readState(t, conn)
	if m.Data.Revision != 7 {
		t.Errorf("revision: got %d, want 7", m.Data.Revision)
	}
}
