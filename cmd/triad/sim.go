package main

import (
	"time"

	"github.com/lixenwraith/triad/config"
	"github.com/lixenwraith/triad/field"
	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/network"
	"github.com/lixenwraith/triad/particle"
	"github.com/lixenwraith/triad/status"
	"github.com/lixenwraith/triad/wshub"
)

// tickResult is everything one field step produced
type tickResult struct {
	Stats   field.Stats
	State   mantle.State
	Settled []uint32
}

// simulation couples the mantle oscillator to the particle field
// Owned by a single loop goroutine
type simulation struct {
	field   *field.Field
	osc     *mantle.Oscillator
	metrics *status.Registry
	dt      float32

	state   mantle.State
	stats   field.Stats
	settled []uint32
	buf     []particle.Particle
}

func newSimulation(cfg *config.Config, metrics *status.Registry) *simulation {
	if metrics == nil {
		metrics = status.NewRegistry()
	}

	s := &simulation{
		field:   field.New(cfg.Dynamics()),
		osc:     mantle.NewOscillator(cfg.MantleConfig()),
		metrics: metrics,
		dt:      float32(cfg.Sim.Tick.Seconds()),
	}

	s.field.SetRecycle(cfg.Sim.Recycle)
	s.field.OnSettle(func(index int, _ particle.Particle) {
		s.settled = append(s.settled, uint32(index))
	})
	s.field.Seed(cfg.SeedConfig())
	s.applyMantle(s.osc.At(0, time.Now()))
	return s
}

// applyMantle records a mantle state and pushes its rpm into the field
func (s *simulation) applyMantle(st mantle.State) {
	s.state = st
	s.field.SetRPM(float32(st.RPM))

	s.metrics.Float(status.KeyRPM).Set(st.RPM)
	s.metrics.Float(status.KeyEntropy).Set(st.Entropy)
	s.metrics.Int(status.KeyCycle).Store(st.Cycle)
}

// advanceMantle moves the oscillator one cycle and applies it
func (s *simulation) advanceMantle(now time.Time) mantle.State {
	st := s.osc.Advance(now)
	s.applyMantle(st)
	return st
}

// step advances the field once under the current mantle entropy
// Settled is only valid until the next step
func (s *simulation) step() tickResult {
	s.settled = s.settled[:0]
	s.stats = s.field.Step(s.dt, float32(s.state.Entropy))

	s.metrics.Int(status.KeyTicks).Store(s.stats.Tick)
	s.metrics.Int(status.KeyCollapsing).Store(int64(s.stats.Collapsing))
	s.metrics.Int(status.KeySettled).Store(int64(s.stats.Settled))
	s.metrics.Int(status.KeyTransient).Store(int64(s.stats.Transient))
	s.metrics.Int(status.KeySettleFire).Add(int64(s.stats.Settles))
	s.metrics.Float(status.KeySpread).Set(s.stats.Spread)

	return tickResult{Stats: s.stats, State: s.state, Settled: s.settled}
}

// reseed restarts the field from the configured layout
func (s *simulation) reseed(cfg field.SeedConfig) {
	s.field.Seed(cfg)
	s.field.SetRPM(float32(s.state.RPM))
}

// snapshot copies the population into the reusable buffer for drawing
func (s *simulation) snapshot() []particle.Particle {
	s.buf = s.field.Snapshot(s.buf)
	return s.buf
}

// publish pushes one tick to the websocket hub and sync peers; nil sinks are skipped
func (s *simulation) publish(res tickResult, hub *wshub.Hub, sync *network.Service) {
	if hub == nil && sync == nil {
		return
	}

	// Both sinks encode before returning, so the live population is read in place
	s.field.View(func(ps []particle.Particle) {
		if hub != nil {
			hub.Publish(res.State, network.Decimate(ps, network.MaxSyncParticles))
		}
		if sync != nil {
			sync.BroadcastState(&network.StateSync{State: res.State, Tick: res.Stats.Tick, Particles: ps})
		}
	})
	if sync != nil {
		sync.BroadcastSettles(res.Stats.Tick, res.Settled)
	}
}
