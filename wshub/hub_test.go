package wshub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/network"
	"github.com/lixenwraith/triad/particle"
	"github.com/lixenwraith/triad/status"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestHubBroadcastsStateAndParticles(t *testing.T) {
	metrics := status.NewRegistry()
	h := New(metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// Hello first
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read hello failed: %v", err)
	}
	var hello Hello
	if kind != websocket.TextMessage || json.Unmarshal(data, &hello) != nil {
		t.Fatalf("Unexpected hello frame %d %s", kind, data)
	}
	if hello.Run != h.RunID() {
		t.Errorf("Expected run %s, got %s", h.RunID(), hello.Run)
	}

	waitFor(t, "client registration", func() bool { return h.ClientCount() == 1 })
	if got := metrics.Int(status.KeyWSClients).Load(); got != 1 {
		t.Errorf("Expected client gauge 1, got %d", got)
	}

	state := mantle.State{RPM: 35, Entropy: 0.5, Cycle: 3, Phase: mantle.PhaseStable, Timestamp: 99}
	ps := []particle.Particle{{X: 1, Y: 2, Z: 3, Layer: 1}, {X: -1, Y: -2, Z: 0, Layer: 2}}
	if !h.Publish(state, ps) {
		t.Fatal("Publish rejected")
	}

	kind, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read state failed: %v", err)
	}
	var got mantle.State
	if kind != websocket.TextMessage || json.Unmarshal(data, &got) != nil {
		t.Fatalf("Unexpected state frame %d %s", kind, data)
	}
	if got != state {
		t.Errorf("Expected %+v, got %+v", state, got)
	}

	kind, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read particles failed: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("Expected binary frame, got %d", kind)
	}
	decoded, err := network.ReadParticles(nil, data)
	if err != nil {
		t.Fatalf("ReadParticles failed: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != ps[0] || decoded[1] != ps[1] {
		t.Errorf("Unexpected particles %+v", decoded)
	}
}

func TestHubRemovesClosedClients(t *testing.T) {
	h := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitFor(t, "client registration", func() bool { return h.ClientCount() == 1 })

	conn.Close()
	waitFor(t, "client removal", func() bool { return h.ClientCount() == 0 })
}

// TestHubDropsSlowClients publishes into a client that never reads until its queue overflows
func TestHubDropsSlowClients(t *testing.T) {
	metrics := status.NewRegistry()
	h := New(metrics)
	cfg := DefaultConfig()
	cfg.QueueSize = 1
	cfg.WriteTimeout = 2 * time.Second
	if err := h.Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	waitFor(t, "client registration", func() bool { return h.ClientCount() == 1 })

	// Large binary frames fill the socket buffers so the writer stalls
	ps := make([]particle.Particle, network.MaxSyncParticles)
	state := mantle.State{RPM: 33.33, Phase: mantle.PhaseStable}

	deadline := time.Now().Add(5 * time.Second)
	for h.ClientCount() > 0 && time.Now().Before(deadline) {
		h.Publish(state, ps)
		time.Sleep(time.Millisecond)
	}

	if h.ClientCount() != 0 {
		t.Fatal("Expected slow client to be dropped")
	}
	if got := metrics.Int(status.KeyWSDropped).Load(); got < 1 {
		t.Errorf("Expected dropped counter above 0, got %d", got)
	}
	if got := metrics.Int(status.KeyWSClients).Load(); got != 0 {
		t.Errorf("Expected client gauge 0, got %d", got)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	h := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	waitFor(t, "client registration", func() bool { return h.ClientCount() == 1 })

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	waitFor(t, "publish rejection", func() bool { return !h.Publish(mantle.State{}, nil) })
}

func TestHubServiceLifecycle(t *testing.T) {
	h := New(nil)
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Address = "127.0.0.1:0"
	if err := h.Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := h.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	url := "ws://" + h.Addr().String() + cfg.Path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitFor(t, "client registration", func() bool { return h.ClientCount() == 1 })

	if err := h.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if h.ClientCount() != 0 {
		t.Errorf("Expected no clients after stop, got %d", h.ClientCount())
	}
	// Idempotent
	if err := h.Stop(); err != nil {
		t.Errorf("Second stop failed: %v", err)
	}
}

func TestHubDisabledStartIsNoop(t *testing.T) {
	h := New(nil)
	if err := h.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := h.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h.Addr() != nil {
		t.Error("Expected no listener while disabled")
	}
	if err := h.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
