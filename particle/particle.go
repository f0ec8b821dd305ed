// Package particle holds the per-tick state transition of a single triad particle
package particle

import (
	"math"

	"github.com/lixenwraith/triad/parameter"
)

// Particle is one entity of the triad field
// RPM and Layer are owner-assigned inputs; Update only writes X, Y, Z
type Particle struct {
	X, Y, Z float32
	RPM     float32
	Layer   uint8
}

// Phase is the z lifecycle of a particle
type Phase uint8

const (
	PhaseCollapsing Phase = iota // z > 0
	PhaseSettled                 // z == 0, absorbing under non-negative dt
	PhaseTransient               // z < 0, one-tick overshoot before the clamp
)

// String returns the phase name for logs and HUD
func (ph Phase) String() string {
	switch ph {
	case PhaseCollapsing:
		return "collapsing"
	case PhaseSettled:
		return "settled"
	case PhaseTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// PhaseOf classifies a particle by its current depth
// NaN depth reports collapsing; the next update takes the clamp branch and settles it
func PhaseOf(p *Particle) Phase {
	switch {
	case p.Z < 0:
		return PhaseTransient
	case p.Z == 0:
		return PhaseSettled
	default:
		return PhaseCollapsing
	}
}

// Transition reports the phase change produced by one step
type Transition struct {
	From, To Phase
}

// Settled returns true when the step moved the particle onto the floor
// Overshoot (Collapsing -> Transient) settles on the following tick, not here
func (t Transition) Settled() bool {
	return t.From != PhaseSettled && t.To == PhaseSettled
}

// Dynamics carries the collapse constants so rates can be tuned or tested independently
type Dynamics struct {
	CollapseRate  float32
	EntropyFactor float32

	// ClampOvershoot floors z at zero in the same call that crosses it
	// Off reproduces the one-tick negative z of the reference behavior
	ClampOvershoot bool
}

// DefaultDynamics returns the reference constants with overshoot preserved
func DefaultDynamics() Dynamics {
	return Dynamics{
		CollapseRate:  parameter.CollapseRate,
		EntropyFactor: parameter.EntropyFactor,
	}
}

var defaultDynamics = DefaultDynamics()

// Update advances p by one tick with the reference constants
func Update(p *Particle, timeDelta, entropyLimit float32) {
	defaultDynamics.Update(p, timeDelta, entropyLimit)
}

// Update runs depth collapse, direction selection and the planar rotation step
// Total over float inputs; NaN and Inf propagate
func (d Dynamics) Update(p *Particle, timeDelta, entropyLimit float32) {
	if p.Z > 0 {
		p.Z -= d.CollapseRate * timeDelta * d.EntropyFactor
		if d.ClampOvershoot && p.Z < 0 {
			p.Z = 0
		}
	} else {
		p.Z = 0
	}

	v := Velocity(p.RPM, p.Layer, entropyLimit)
	p.X += float32(math.Cos(float64(v)))
	p.Y += float32(math.Sin(float64(v)))
}

// Step updates p and returns the phase transition it caused
func (d Dynamics) Step(p *Particle, timeDelta, entropyLimit float32) Transition {
	from := PhaseOf(p)
	d.Update(p, timeDelta, entropyLimit)
	return Transition{From: from, To: PhaseOf(p)}
}

// Step is Dynamics.Step with the reference constants
func Step(p *Particle, timeDelta, entropyLimit float32) Transition {
	return defaultDynamics.Step(p, timeDelta, entropyLimit)
}

// RotationDir returns +1 for even layers and -1 for odd, adjacent layers counter-rotate
func RotationDir(layer uint8) float32 {
	if layer%2 == 0 {
		return 1
	}
	return -1
}

// Velocity is the angle-like scalar fed to cos/sin, not a vector
func Velocity(rpm float32, layer uint8, entropyLimit float32) float32 {
	return rpm * RotationDir(layer) * entropyLimit
}
