// Package mantle generates the synchronized rpm/entropy state every node follows
package mantle

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/lixenwraith/triad/parameter"
)

// Phase classifies the entropy level
type Phase uint8

const (
	PhaseStable Phase = iota
	PhaseChaos
	PhaseVoid
)

var phaseNames = [...]string{
	PhaseStable: "Stable",
	PhaseChaos:  "Chaos",
	PhaseVoid:   "Void",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", p)
}

// MarshalJSON encodes the phase by name
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts the phase name
func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase maps a phase name back to its value
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return PhaseStable, fmt.Errorf("unknown mantle phase %q", s)
}

// PhaseFor classifies an entropy value
func PhaseFor(entropy float64) Phase {
	switch {
	case entropy > parameter.ChaosThreshold:
		return PhaseChaos
	case entropy < parameter.VoidThreshold:
		return PhaseVoid
	default:
		return PhaseStable
	}
}

// State is the broadcast truth of one mantle cycle
type State struct {
	RPM       float64 `json:"rpm"`
	Entropy   float64 `json:"entropy"`
	Cycle     int64   `json:"cycle"`
	Phase     Phase   `json:"phase"`
	Timestamp int64   `json:"ts"`
}

// Config tunes the oscillator curve
type Config struct {
	BaseRPM    float64
	MaxEntropy float64
	TimeStep   float64
}

// DefaultConfig returns the reference curve
func DefaultConfig() Config {
	return Config{
		BaseRPM:    parameter.BaseRPM,
		MaxEntropy: parameter.MaxEntropy,
		TimeStep:   parameter.MantleTimeStep,
	}
}

// Oscillator produces the rpm/entropy curve one cycle at a time
// Not safe for concurrent Advance; Run owns it while running
type Oscillator struct {
	cfg   Config
	cycle int64
}

// NewOscillator creates an oscillator at cycle 0
func NewOscillator(cfg Config) *Oscillator {
	return &Oscillator{cfg: cfg}
}

// Cycle returns the last produced cycle number
func (o *Oscillator) Cycle() int64 {
	return o.cycle
}

// Reset rewinds to cycle 0
func (o *Oscillator) Reset() {
	o.cycle = 0
}

// Advance moves one cycle forward and returns its state
func (o *Oscillator) Advance(now time.Time) State {
	o.cycle++
	return o.At(o.cycle, now)
}

// At evaluates the curve for an arbitrary cycle without moving the oscillator
func (o *Oscillator) At(cycle int64, now time.Time) State {
	t := float64(cycle) * o.cfg.TimeStep

	rpm := o.cfg.BaseRPM + math.Sin(t)*parameter.RPMSwingPrimary + math.Cos(t*0.5)*parameter.RPMSwingSecondary
	entropy := math.Abs(math.Sin(t*parameter.EntropyFrequency)) * o.cfg.MaxEntropy

	return State{
		RPM:       rpm,
		Entropy:   entropy,
		Cycle:     cycle,
		Phase:     PhaseFor(entropy),
		Timestamp: now.UnixNano(),
	}
}

// Run advances on every tick and hands each state to out until ctx is done
func (o *Oscillator) Run(ctx context.Context, tick time.Duration, out func(State)) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			out(o.Advance(now))
		}
	}
}
