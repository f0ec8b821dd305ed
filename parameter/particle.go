package parameter

// Depth collapse
const (
	// EntropyFactor doubles the collapse rate (1 * 1 = 2 scaling)
	EntropyFactor = 2.0

	// CollapseRate is the base z decay in units per second before entropy scaling
	CollapseRate = 28.0
)

// Field seeding
const (
	// DefaultParticleCount is the particle population when none is configured
	DefaultParticleCount = 2000

	// DefaultLayerCount is the number of concentric rings, adjacent rings counter-rotate
	DefaultLayerCount = 3

	// DefaultSpawnDepth is the initial z for seeded particles (G81 Z500 start)
	DefaultSpawnDepth = 500.0

	// SpawnDepthJitter is the +/- random spread applied to spawn depth
	SpawnDepthJitter = 50.0

	// LayerRingSpacing is the radial distance between layer rings
	LayerRingSpacing = 12.0

	// LayerRingJitter is the radial noise applied per particle
	LayerRingJitter = 2.5
)
