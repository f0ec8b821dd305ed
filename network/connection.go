package network

import (
	"bufio"
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// PeerID uniquely identifies a connected peer
type PeerID uint32

var ErrMaxPeers = errors.New("max peers reached")

// Peer is one remote endpoint with its own send queue
type Peer struct {
	ID       PeerID
	Addr     string
	LastSeen atomic.Int64 // UnixNano

	OutSeq atomic.Uint32 // Next outbound sequence
	InSeq  atomic.Uint32 // Last processed inbound sequence

	conn         net.Conn
	reader       *bufio.Reader
	writer       *bufio.Writer
	writeTimeout time.Duration

	sendCh    chan *Message
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

func newPeer(id PeerID, conn net.Conn, cfg *Config) *Peer {
	p := &Peer{
		ID:           id,
		Addr:         conn.RemoteAddr().String(),
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, cfg.BufferSize),
		writer:       bufio.NewWriterSize(conn, cfg.BufferSize),
		writeTimeout: cfg.WriteTimeout,
		sendCh:       make(chan *Message, cfg.SendQueueSize),
		closeCh:      make(chan struct{}),
	}
	p.LastSeen.Store(time.Now().UnixNano())
	return p
}

// Send queues a message, false if the peer is closed or its queue is full
func (p *Peer) Send(msg *Message) bool {
	if p.closed.Load() {
		return false
	}

	msg.Seq = p.OutSeq.Add(1)
	msg.Ack = p.InSeq.Load()

	select {
	case p.sendCh <- msg:
		return true
	default:
		return false
	}
}

// Close shuts the connection once
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.closeCh)
		p.conn.Close()
	})
}

func (p *Peer) readLoop(handler func(PeerID, *Message)) {
	defer p.Close()

	for {
		msg, err := Decode(p.reader)
		if err != nil {
			return
		}

		p.LastSeen.Store(time.Now().UnixNano())
		if msg.Seq > p.InSeq.Load() {
			p.InSeq.Store(msg.Seq)
		}

		handler(p.ID, msg)
	}
}

func (p *Peer) writeLoop() {
	defer p.Close()

	for {
		select {
		case <-p.closeCh:
			return
		case msg := <-p.sendCh:
			if p.writeTimeout > 0 {
				p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
			}
			if err := msg.Encode(p.writer); err != nil {
				return
			}
			// Coalesce whatever else is queued into one flush
			if len(p.sendCh) == 0 {
				if err := p.writer.Flush(); err != nil {
					return
				}
			}
		}
	}
}

// PeerManager tracks live peers and routes their traffic
type PeerManager struct {
	mu     sync.RWMutex
	peers  map[PeerID]*Peer
	nextID atomic.Uint32
	config *Config
	wg     sync.WaitGroup

	onConnect    func(PeerID)
	onDisconnect func(PeerID)
	onMessage    func(PeerID, *Message)
}

// NewPeerManager creates a peer manager
func NewPeerManager(cfg *Config) *PeerManager {
	return &PeerManager{
		peers:  make(map[PeerID]*Peer),
		config: cfg,
	}
}

// SetHandlers configures event callbacks, nil handlers are skipped
func (pm *PeerManager) SetHandlers(
	onConnect func(PeerID),
	onDisconnect func(PeerID),
	onMessage func(PeerID, *Message),
) {
	pm.onConnect = onConnect
	pm.onDisconnect = onDisconnect
	pm.onMessage = onMessage
}

// AddConnection registers a peer and starts its I/O loops
func (pm *PeerManager) AddConnection(conn net.Conn) (PeerID, error) {
	pm.mu.Lock()
	if len(pm.peers) >= pm.config.MaxPeers {
		pm.mu.Unlock()
		conn.Close()
		return 0, ErrMaxPeers
	}

	id := PeerID(pm.nextID.Add(1))
	peer := newPeer(id, conn, pm.config)
	pm.peers[id] = peer
	pm.mu.Unlock()

	// Connect is reported before any loop can report the disconnect
	if pm.onConnect != nil {
		pm.onConnect(id)
	}

	pm.wg.Add(3)
	go func() { defer pm.wg.Done(); peer.readLoop(pm.handleMessage) }()
	go func() { defer pm.wg.Done(); peer.writeLoop() }()
	go func() { defer pm.wg.Done(); pm.monitorPeer(peer) }()

	return id, nil
}

// handleMessage answers liveness frames and forwards the rest
func (pm *PeerManager) handleMessage(id PeerID, msg *Message) {
	switch msg.Type {
	case MsgHeartbeat:
		if msg.Flags&FlagNeedAck != 0 {
			pm.Send(id, &Message{Type: MsgAck})
		}
	case MsgAck:
		// LastSeen already refreshed by the read loop
	default:
		if pm.onMessage != nil {
			pm.onMessage(id, msg)
		}
	}
}

// Sweep closes peers silent for longer than timeout and pings the rest
// Returns the number of peers closed
func (pm *PeerManager) Sweep(now time.Time, timeout time.Duration) int {
	pm.mu.RLock()
	peers := make([]*Peer, 0, len(pm.peers))
	for _, peer := range pm.peers {
		peers = append(peers, peer)
	}
	pm.mu.RUnlock()

	closed := 0
	for _, peer := range peers {
		idle := now.Sub(time.Unix(0, peer.LastSeen.Load()))
		if timeout > 0 && idle > timeout {
			log.Printf("network: peer %d (%s) idle for %v, closing", peer.ID, peer.Addr, idle.Round(time.Millisecond))
			peer.Close()
			closed++
			continue
		}
		peer.Send(&Message{Type: MsgHeartbeat, Flags: FlagNeedAck})
	}
	return closed
}

func (pm *PeerManager) monitorPeer(peer *Peer) {
	<-peer.closeCh

	pm.mu.Lock()
	delete(pm.peers, peer.ID)
	pm.mu.Unlock()

	if pm.onDisconnect != nil {
		pm.onDisconnect(peer.ID)
	}
}

// Send transmits to one peer
func (pm *PeerManager) Send(id PeerID, msg *Message) bool {
	pm.mu.RLock()
	peer, ok := pm.peers[id]
	pm.mu.RUnlock()

	if !ok {
		return false
	}
	return peer.Send(msg)
}

// Broadcast sends to every peer, returns how many accepted the message
// Payload is shared read-only; each peer gets its own header copy for sequencing
func (pm *PeerManager) Broadcast(msg *Message) int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	sent := 0
	for _, peer := range pm.peers {
		clone := *msg
		if peer.Send(&clone) {
			sent++
		}
	}
	return sent
}

// PeerCount returns the live peer count
func (pm *PeerManager) PeerCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.peers)
}

// Close disconnects every peer and waits for their loops
func (pm *PeerManager) Close() {
	pm.mu.RLock()
	peers := make([]*Peer, 0, len(pm.peers))
	for _, peer := range pm.peers {
		peers = append(peers, peer)
	}
	pm.mu.RUnlock()

	for _, peer := range peers {
		peer.Close()
	}
	pm.wg.Wait()
}
