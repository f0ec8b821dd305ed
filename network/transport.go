package network

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Transport carries sync frames for one role: a listening server or a single dialed client
// Either way the peer set is swept for liveness on every heartbeat
type Transport struct {
	config   *Config
	listener net.Listener
	peers    *PeerManager

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTransport creates an idle transport; nothing is bound until Start
func NewTransport(cfg *Config) *Transport {
	return &Transport{
		config: cfg,
		peers:  NewPeerManager(cfg),
		stopCh: make(chan struct{}),
	}
}

// SetHandlers routes peer lifecycle and data frames to the owner
func (t *Transport) SetHandlers(
	onConnect func(PeerID),
	onDisconnect func(PeerID),
	onMessage func(PeerID, *Message),
) {
	t.peers.SetHandlers(onConnect, onDisconnect, onMessage)
}

// Start binds (server) or dials (client), then begins the heartbeat
// RoleNone starts nothing
func (t *Transport) Start() error {
	if t.config.Role == RoleNone || !t.running.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if t.config.Role == RoleServer {
		err = t.bind()
	} else {
		err = t.connect()
	}
	if err != nil {
		t.running.Store(false)
		return err
	}

	if t.config.HeartbeatInterval > 0 {
		t.wg.Add(1)
		go t.heartbeat(t.config.HeartbeatInterval, t.config.PeerTimeout)
	}
	return nil
}

func (t *Transport) bind() error {
	ln, err := net.Listen("tcp", t.config.Address)
	if err != nil {
		return fmt.Errorf("sync listen on %s: %w", t.config.Address, err)
	}
	t.listener = ln

	t.wg.Add(1)
	go t.admit(ln)
	return nil
}

// admit hands accepted connections to the peer set until the listener closes
func (t *Transport) admit(ln net.Listener) {
	defer t.wg.Done()

	for {
		conn, err := ln.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			log.Printf("network: accept: %v", err)
			continue
		}

		if _, err := t.peers.AddConnection(conn); err != nil {
			log.Printf("network: rejected %s: %v", conn.RemoteAddr(), err)
		}
	}
}

func (t *Transport) connect() error {
	dialer := net.Dialer{Timeout: t.config.ConnectTimeout}
	conn, err := dialer.Dial("tcp", t.config.Address)
	if err != nil {
		return err
	}

	_, err = t.peers.AddConnection(conn)
	return err
}

// heartbeat pings every peer each interval and closes those idle past timeout
func (t *Transport) heartbeat(interval, timeout time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case now := <-ticker.C:
			t.peers.Sweep(now, timeout)
		}
	}
}

// Addr returns the bound listener address, nil when not serving
func (t *Transport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop closes the listener and every peer, then waits for all loops
func (t *Transport) Stop() error {
	if !t.running.CompareAndSwap(true, false) {
		return nil
	}

	close(t.stopCh)
	if t.listener != nil {
		t.listener.Close()
	}
	t.wg.Wait()
	t.peers.Close()
	return nil
}

// Broadcast sends to all peers, returns how many accepted
func (t *Transport) Broadcast(msg *Message) int {
	return t.peers.Broadcast(msg)
}

// PeerCount returns connected peer count
func (t *Transport) PeerCount() int {
	return t.peers.PeerCount()
}

// IsRunning reports whether the transport is bound or connected
func (t *Transport) IsRunning() bool {
	return t.running.Load()
}
