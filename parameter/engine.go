package parameter

import "time"

// Loop timing
const (
	// FrameUpdateInterval is the rendering frame rate interval (~60 FPS)
	FrameUpdateInterval = 16 * time.Millisecond

	// SimUpdateInterval is the field tick interval
	SimUpdateInterval = 50 * time.Millisecond

	// DefaultSimulateTicks is the tick count for headless runs
	DefaultSimulateTicks = 600
)

// Logging
const (
	LogDir      = "logs"
	LogFileName = "triad.log"
)

// MaxLogSize triggers rotation of the debug log on startup
const MaxLogSize = 10 * 1024 * 1024
