package network

import (
	"fmt"
	"strings"
	"time"

	"github.com/lixenwraith/triad/parameter"
)

// Role defines which side of the state sync this node plays
type Role uint8

const (
	RoleNone   Role = iota // Sync disabled
	RoleServer             // Broadcasts field state to watchers
	RoleClient             // Receives field state
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "none"
	}
}

// ParseRole maps a config string to a Role
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return RoleNone, nil
	case "server":
		return RoleServer, nil
	case "client":
		return RoleClient, nil
	default:
		return RoleNone, fmt.Errorf("unknown network role %q", s)
	}
}

// Config holds state sync configuration
type Config struct {
	Role    Role
	Address string

	MaxPeers int

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	// Zero HeartbeatInterval disables pings and the idle sweep
	HeartbeatInterval time.Duration
	PeerTimeout       time.Duration

	BufferSize    int
	SendQueueSize int
}

// DefaultConfig returns sync disabled with standard limits
func DefaultConfig() *Config {
	return &Config{
		Role:              RoleNone,
		Address:           parameter.DefaultSyncAddress,
		MaxPeers:          parameter.MaxSyncPeers,
		ConnectTimeout:    parameter.SyncConnectTimeout,
		WriteTimeout:      parameter.SyncWriteTimeout,
		HeartbeatInterval: parameter.SyncHeartbeatInterval,
		PeerTimeout:       parameter.SyncPeerTimeout,
		BufferSize:        parameter.SyncBufferSize,
		SendQueueSize:     parameter.SyncSendQueueSize,
	}
}

// RoleConfig returns defaults with role and address set
func RoleConfig(role Role, addr string) *Config {
	cfg := DefaultConfig()
	cfg.Role = role
	if addr != "" {
		cfg.Address = addr
	}
	return cfg
}
