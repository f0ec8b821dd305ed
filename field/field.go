// Package field owns a population of triad particles and drives their per-tick update
package field

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/lixenwraith/triad/parameter"
	"github.com/lixenwraith/triad/particle"
	"github.com/lixenwraith/triad/vmath"
)

// SeedConfig describes the initial ring layout
type SeedConfig struct {
	Count      int
	Layers     int
	SpawnDepth float32
	Seed       uint64
	RPM        float32
}

// DefaultSeedConfig returns the standard three-ring layout
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Count:      parameter.DefaultParticleCount,
		Layers:     parameter.DefaultLayerCount,
		SpawnDepth: parameter.DefaultSpawnDepth,
		Seed:       1,
		RPM:        parameter.BaseRPM,
	}
}

// Stats summarizes one tick
type Stats struct {
	Tick       int64
	Collapsing int
	Settled    int
	Transient  int
	Settles    int // Collapsing/Transient -> Settled transitions this tick
	Centroid   vmath.Vec3F
	Spread     float64
}

// Field is the external owner of particle state
// Step is the only writer; readers use Snapshot or View
type Field struct {
	mu        sync.RWMutex
	particles []particle.Particle
	dynamics  particle.Dynamics
	seed      SeedConfig
	rng       *rand.Rand
	tick      int64
	recycle   bool

	onSettle func(index int, p particle.Particle)
}

// New creates an empty field using the given dynamics
func New(dyn particle.Dynamics) *Field {
	return &Field{
		dynamics: dyn,
		rng:      rand.New(rand.NewPCG(1, 0)),
	}
}

// SetRecycle enables re-spawning settled particles at the top of the column
func (f *Field) SetRecycle(on bool) {
	f.mu.Lock()
	f.recycle = on
	f.mu.Unlock()
}

// OnSettle registers a callback fired once per Collapsing -> Settled transition
// Called with the field lock held; must not call back into the field
func (f *Field) OnSettle(fn func(index int, p particle.Particle)) {
	f.mu.Lock()
	f.onSettle = fn
	f.mu.Unlock()
}

// Seed replaces the population with particles on concentric layer rings
func (f *Field) Seed(cfg SeedConfig) {
	if cfg.Layers < 1 {
		cfg.Layers = 1
	}
	if cfg.Count < 0 {
		cfg.Count = 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.seed = cfg
	f.rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	f.tick = 0

	if cap(f.particles) >= cfg.Count {
		f.particles = f.particles[:cfg.Count]
	} else {
		f.particles = make([]particle.Particle, cfg.Count)
	}

	for i := range f.particles {
		layer := uint8(i % cfg.Layers)
		f.spawn(&f.particles[i], layer)
	}
}

// spawn places p on its layer ring, caller holds the lock
func (f *Field) spawn(p *particle.Particle, layer uint8) {
	radius := parameter.LayerRingSpacing*float64(int(layer)+1) +
		(f.rng.Float64()*2-1)*parameter.LayerRingJitter
	angle := f.rng.Float64() * 2 * math.Pi
	depth := float64(f.seed.SpawnDepth) + (f.rng.Float64()*2-1)*parameter.SpawnDepthJitter
	if depth < 0 {
		depth = 0
	}

	p.X = float32(radius * math.Cos(angle))
	p.Y = float32(radius * math.Sin(angle))
	p.Z = float32(depth)
	p.RPM = f.seed.RPM
	p.Layer = layer
}

// SetRPM assigns rotational speed to every particle
func (f *Field) SetRPM(rpm float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.particles {
		f.particles[i].RPM = rpm
	}
}

// Step advances every particle by one tick
func (f *Field) Step(timeDelta, entropyLimit float32) Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tick++
	st := Stats{Tick: f.tick}
	var acc vmath.Accumulator

	for i := range f.particles {
		p := &f.particles[i]
		tr := f.dynamics.Step(p, timeDelta, entropyLimit)

		if tr.Settled() {
			st.Settles++
			if f.onSettle != nil {
				f.onSettle(i, *p)
			}
			if f.recycle {
				f.spawn(p, p.Layer)
				tr.To = particle.PhaseOf(p)
			}
		}

		switch tr.To {
		case particle.PhaseCollapsing:
			st.Collapsing++
		case particle.PhaseSettled:
			st.Settled++
		case particle.PhaseTransient:
			st.Transient++
		}

		acc.Add(vmath.V3F(p.X, p.Y, p.Z))
	}

	st.Centroid = acc.Centroid()
	st.Spread = acc.Spread()
	return st
}

// Len returns the population size
func (f *Field) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.particles)
}

// Tick returns the number of completed steps since the last Seed
func (f *Field) Tick() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tick
}

// Snapshot copies the population into dst, growing it if needed
func (f *Field) Snapshot(dst []particle.Particle) []particle.Particle {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if cap(dst) < len(f.particles) {
		dst = make([]particle.Particle, len(f.particles))
	}
	dst = dst[:len(f.particles)]
	copy(dst, f.particles)
	return dst
}

// View runs fn with read access to the live population
// fn must not retain the slice
func (f *Field) View(fn func(ps []particle.Particle)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn(f.particles)
}
