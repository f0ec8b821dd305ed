package parameter

import "time"

// Mantle oscillator
const (
	// MaxEntropy caps the entropy curve (phi)
	MaxEntropy = 1.618

	// BaseRPM is the rotational centre the oscillator swings around
	BaseRPM = 33.33

	// MantleTickRate is the broadcast interval (~16 updates/sec)
	MantleTickRate = 60 * time.Millisecond

	// MantleTimeStep converts a cycle count into curve time
	MantleTimeStep = 0.06

	// RPMSwingPrimary and RPMSwingSecondary are the sin/cos amplitudes added to BaseRPM
	RPMSwingPrimary   = 20.0
	RPMSwingSecondary = 10.0

	// EntropyFrequency slows the entropy curve relative to the rpm curve
	EntropyFrequency = 0.1

	// ChaosThreshold and VoidThreshold bound the Stable phase
	ChaosThreshold = 1.2
	VoidThreshold  = 0.2
)
