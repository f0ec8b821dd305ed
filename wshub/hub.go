// Package wshub pushes mantle state and particle snapshots to browser clients over websocket
package wshub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/network"
	"github.com/lixenwraith/triad/parameter"
	"github.com/lixenwraith/triad/particle"
	"github.com/lixenwraith/triad/status"
)

// Config holds websocket endpoint settings
type Config struct {
	Enabled      bool
	Address      string
	Path         string
	QueueSize    int
	WriteTimeout time.Duration
}

// DefaultConfig returns the hub disabled on the standard mantle endpoint
func DefaultConfig() *Config {
	return &Config{
		Address:      parameter.DefaultHubAddress,
		Path:         parameter.DefaultHubPath,
		QueueSize:    parameter.HubClientQueueSize,
		WriteTimeout: parameter.HubWriteTimeout,
	}
}

// Hello is the first text frame a client receives
type Hello struct {
	Client uuid.UUID `json:"client"`
	Run    uuid.UUID `json:"run"`
}

type frame struct {
	kind int
	data []byte
}

// client is one websocket connection with a bounded send queue
type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan frame
}

// Hub fans frames out to every connected client
type Hub struct {
	cfg      *Config
	runID    uuid.UUID
	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	broadcast  chan []frame

	mu      sync.RWMutex
	clients map[uuid.UUID]*client

	connected *atomic.Int64
	dropped   *atomic.Int64

	server  *http.Server
	ln      net.Listener
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a hub; metrics may be nil
func New(metrics *status.Registry) *Hub {
	if metrics == nil {
		metrics = status.NewRegistry()
	}
	return &Hub{
		cfg:   DefaultConfig(),
		runID: uuid.New(),
		upgrader: websocket.Upgrader{
			// PWA clients connect from any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []frame, 4),
		clients:    make(map[uuid.UUID]*client),
		connected:  metrics.Int(status.KeyWSClients),
		dropped:    metrics.Int(status.KeyWSDropped),
		done:       make(chan struct{}),
	}
}

// RunID identifies this hub instance to clients
func (h *Hub) RunID() uuid.UUID {
	return h.runID
}

// Run owns the client set until ctx is cancelled, then closes every connection
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.connected.Store(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			h.connected.Add(1)
			log.Printf("wshub: node %s connected", c.id)

		case c := <-h.unregister:
			h.remove(c)

		case frames := <-h.broadcast:
			h.mu.Lock()
			for id, c := range h.clients {
				if !enqueue(c, frames) {
					// Slow consumer, drop it rather than stall the broadcast
					close(c.send)
					delete(h.clients, id)
					h.connected.Add(-1)
					h.dropped.Add(1)
				}
			}
			h.mu.Unlock()
		}
	}
}

func enqueue(c *client, frames []frame) bool {
	for _, f := range frames {
		select {
		case c.send <- f:
		default:
			return false
		}
	}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		close(c.send)
		delete(h.clients, c.id)
		h.connected.Add(-1)
		log.Printf("wshub: node %s lost", c.id)
	}
}

// Publish queues one state frame and, if ps is non-empty, one binary particle frame
// Returns false when the hub is shut down or the broadcast backlog is full
func (h *Hub) Publish(state mantle.State, ps []particle.Particle) bool {
	data, err := json.Marshal(state)
	if err != nil {
		return false
	}

	frames := []frame{{kind: websocket.TextMessage, data: data}}
	if len(ps) > 0 {
		frames = append(frames, frame{
			kind: websocket.BinaryMessage,
			data: network.AppendParticles(make([]byte, 0, len(ps)*network.ParticleStride), ps),
		})
	}

	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.broadcast <- frames:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches the connection to the hub
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wshub: upgrade: %v", err)
		return
	}

	// Hello needs a slot before the writer starts
	queue := max(h.cfg.QueueSize, 1)
	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan frame, queue),
	}

	hello, _ := json.Marshal(Hello{Client: c.id, Run: h.runID})
	c.send <- frame{kind: websocket.TextMessage, data: hello}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	h.wg.Add(2)
	go h.writePump(c)
	go h.readPump(c)
}

// writePump drains the client queue until the hub closes it
func (h *Hub) writePump(c *client) {
	defer h.wg.Done()
	defer c.conn.Close()

	for f := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		if err := c.conn.WriteMessage(f.kind, f.data); err != nil {
			h.requestRemove(c)
			// Keep draining so the hub never blocks on this queue
			for range c.send {
			}
			return
		}
	}

	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// readPump discards client input and detects disconnects
func (h *Hub) readPump(c *client) {
	defer h.wg.Done()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.requestRemove(c)
			return
		}
	}
}

func (h *Hub) requestRemove(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Name implements service.Service
func (h *Hub) Name() string {
	return "wshub"
}

// Dependencies implements service.Service
func (h *Hub) Dependencies() []string {
	return nil
}

// Init implements service.Service
// args[0]: *Config (optional)
func (h *Hub) Init(args ...any) error {
	if len(args) > 0 {
		if cfg, ok := args[0].(*Config); ok && cfg != nil {
			h.cfg = cfg
		}
	}
	return nil
}

// Start binds the HTTP listener and launches the hub loop
func (h *Hub) Start() error {
	if !h.cfg.Enabled || !h.running.CompareAndSwap(false, true) {
		return nil
	}

	ln, err := net.Listen("tcp", h.cfg.Address)
	if err != nil {
		h.running.Store(false)
		return err
	}
	h.ln = ln

	mux := http.NewServeMux()
	mux.Handle(h.cfg.Path, h)
	h.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.Run(ctx)

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("wshub: serve: %v", err)
		}
	}()

	log.Printf("wshub: mantle active on %s%s", ln.Addr(), h.cfg.Path)
	return nil
}

// Addr returns the bound address, nil before Start
func (h *Hub) Addr() net.Addr {
	if h.ln == nil {
		return nil
	}
	return h.ln.Addr()
}

// Stop shuts the HTTP server and closes all clients
func (h *Hub) Stop() error {
	if !h.running.CompareAndSwap(true, false) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := h.server.Shutdown(ctx)

	h.cancel()
	<-h.done
	h.wg.Wait()
	return err
}
