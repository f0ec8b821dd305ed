package network

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/triad/status"
)

// Handlers are the client-side callbacks for received frames
type Handlers struct {
	OnState   func(*StateSync)
	OnSettles func(tick int64, indices []uint32)
	OnPeer    func(id PeerID, connected bool)
}

// Service wraps Transport as a hub-managed service
type Service struct {
	config    *Config
	transport *Transport
	handlers  Handlers
	metrics   *status.Registry

	peers    *atomic.Int64
	syncSent *atomic.Int64

	encMu  sync.Mutex
	encBuf []byte

	disabled atomic.Bool
}

// NewService creates a sync service, disabled until Init receives a non-none role
func NewService(metrics *status.Registry, handlers Handlers) *Service {
	if metrics == nil {
		metrics = status.NewRegistry()
	}
	return &Service{
		config:   DefaultConfig(),
		handlers: handlers,
		metrics:  metrics,
		peers:    metrics.Int(status.KeyPeers),
		syncSent: metrics.Int(status.KeySyncSent),
	}
}

// Name implements service.Service
func (s *Service) Name() string {
	return "network"
}

// Dependencies implements service.Service
func (s *Service) Dependencies() []string {
	return nil
}

// Init implements service.Service
// args[0]: *Config (optional, overrides default)
func (s *Service) Init(args ...any) error {
	if len(args) > 0 {
		if cfg, ok := args[0].(*Config); ok && cfg != nil {
			s.config = cfg
		}
	}

	if s.config.Role == RoleNone {
		s.disabled.Store(true)
		return nil
	}

	s.transport = NewTransport(s.config)
	s.transport.SetHandlers(s.onConnect, s.onDisconnect, s.onMessage)
	return nil
}

// Start implements service.Service
func (s *Service) Start() error {
	if s.disabled.Load() || s.transport == nil {
		return nil
	}
	if err := s.transport.Start(); err != nil {
		return err
	}
	log.Printf("network: %s on %s", s.config.Role, s.config.Address)
	return nil
}

// Stop implements service.Service
func (s *Service) Stop() error {
	if s.transport != nil {
		return s.transport.Stop()
	}
	return nil
}

func (s *Service) onConnect(id PeerID) {
	s.peers.Add(1)
	log.Printf("network: peer %d connected", id)
	if s.handlers.OnPeer != nil {
		s.handlers.OnPeer(id, true)
	}
}

func (s *Service) onDisconnect(id PeerID) {
	s.peers.Add(-1)
	log.Printf("network: peer %d lost", id)
	if s.handlers.OnPeer != nil {
		s.handlers.OnPeer(id, false)
	}
}

func (s *Service) onMessage(id PeerID, msg *Message) {
	switch msg.Type {
	case MsgStateSync:
		if s.handlers.OnState == nil {
			return
		}
		var st StateSync
		if err := DecodeStateSync(msg.Payload, &st); err != nil {
			log.Printf("network: peer %d bad state sync: %v", id, err)
			return
		}
		s.handlers.OnState(&st)

	case MsgEvent:
		if s.handlers.OnSettles == nil {
			return
		}
		tick, indices, err := DecodeSettles(msg.Payload)
		if err != nil {
			log.Printf("network: peer %d bad settle event: %v", id, err)
			return
		}
		s.handlers.OnSettles(tick, indices)
	}
}

// BroadcastState encodes and sends one state frame to every peer
func (s *Service) BroadcastState(st *StateSync) int {
	if s.transport == nil || s.transport.PeerCount() == 0 {
		return 0
	}

	s.encMu.Lock()
	s.encBuf = EncodeStateSync(s.encBuf[:0], st)
	// Peers hold the payload until written, so hand them a private copy
	payload := append([]byte(nil), s.encBuf...)
	s.encMu.Unlock()

	n := s.transport.Broadcast(NewMessage(MsgStateSync, payload))
	s.syncSent.Add(int64(n))
	return n
}

// BroadcastSettles sends settle indices, truncated to one frame
func (s *Service) BroadcastSettles(tick int64, indices []uint32) int {
	if s.transport == nil || len(indices) == 0 {
		return 0
	}
	if max := (MaxPayload - 12) / 4; len(indices) > max {
		indices = indices[:max]
	}
	return s.transport.Broadcast(NewMessage(MsgEvent, EncodeSettles(nil, tick, indices)))
}

// PeerCount returns connected peer count
func (s *Service) PeerCount() int {
	if s.transport == nil {
		return 0
	}
	return s.transport.PeerCount()
}

// Transport exposes the underlying transport, nil when disabled
func (s *Service) Transport() *Transport {
	return s.transport
}

// IsRunning returns true if sync is active
func (s *Service) IsRunning() bool {
	return s.transport != nil && s.transport.IsRunning()
}
