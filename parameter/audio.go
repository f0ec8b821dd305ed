package parameter

import "time"

// Audio hardware
const (
	AudioSampleRate = 48000

	// AudioBufferDuration is the speaker buffer length
	AudioBufferDuration = 100 * time.Millisecond

	DefaultMasterVolume = 0.5
)

// Triad harmonics
const (
	TriadFundamental = 1.0
	TriadOctave      = 2.0
	TriadFifth       = 1.5

	// TriadNoteDuration is the length of one sequenced triad
	TriadNoteDuration = 400 * time.Millisecond
	TriadAttack       = 10 * time.Millisecond
	TriadRelease      = 250 * time.Millisecond

	// TriadPartialGain scales each partial so three summed sines stay within [-1, 1]
	TriadPartialGain = 1.0 / 3.0

	// RPMToHz maps mantle rpm onto a root frequency
	RPMToHz = 6.6
)
