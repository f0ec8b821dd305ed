package parameter

import "time"

// TCP state sync
const (
	DefaultSyncAddress = ":7777"
	MaxSyncPeers       = 16

	SyncConnectTimeout = 5 * time.Second
	SyncWriteTimeout   = 5 * time.Second
	SyncSendQueueSize  = 256
	SyncBufferSize     = 64 * 1024

	// SyncHeartbeatInterval paces liveness pings to every peer
	SyncHeartbeatInterval = time.Second
	// SyncPeerTimeout drops a peer that sent nothing for this long
	SyncPeerTimeout = 5 * time.Second
)

// Websocket mantle hub
const (
	DefaultHubAddress = ":8080"
	DefaultHubPath    = "/mantle"

	// HubClientQueueSize is the per-client frame backlog before the client is dropped
	HubClientQueueSize = 32

	HubWriteTimeout = 5 * time.Second
)
