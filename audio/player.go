// Package audio plays harmonic triads that follow the mantle phase
package audio

import (
	"log"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/parameter"
)

// Config holds playback settings
type Config struct {
	Enabled    bool
	Volume     float64
	Preset     string
	SampleRate int
}

// DefaultConfig returns audio disabled at the default master volume
func DefaultConfig() *Config {
	return &Config{
		Volume:     parameter.DefaultMasterVolume,
		Preset:     PresetBeethoven,
		SampleRate: parameter.AudioSampleRate,
	}
}

// Player owns the speaker and a mixer that all tones are added to
// Every Play method is a no-op until the speaker is up, so callers never branch on audio state
type Player struct {
	mu    sync.Mutex
	cfg   *Config
	rate  beep.SampleRate
	mixer *beep.Mixer
	ctrl  *beep.Ctrl

	ready bool
	muted bool

	lastPhase mantle.Phase
	seenPhase bool
}

// NewPlayer creates an idle player
func NewPlayer() *Player {
	mixer := &beep.Mixer{}
	cfg := DefaultConfig()
	return &Player{
		cfg:   cfg,
		rate:  beep.SampleRate(cfg.SampleRate),
		mixer: mixer,
		ctrl:  &beep.Ctrl{Streamer: mixer},
	}
}

// Name implements service.Service
func (p *Player) Name() string {
	return "audio"
}

// Dependencies implements service.Service
func (p *Player) Dependencies() []string {
	return nil
}

// Init implements service.Service
// args[0]: *Config (optional)
func (p *Player) Init(args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(args) > 0 {
		if cfg, ok := args[0].(*Config); ok && cfg != nil {
			p.cfg = cfg
		}
	}
	if p.cfg.SampleRate <= 0 {
		p.cfg.SampleRate = parameter.AudioSampleRate
	}
	p.rate = beep.SampleRate(p.cfg.SampleRate)
	return nil
}

// Start opens the speaker; a device failure leaves the player silent
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.cfg.Enabled || p.ready {
		return nil
	}

	if err := speaker.Init(p.rate, p.rate.N(parameter.AudioBufferDuration)); err != nil {
		log.Printf("audio: speaker unavailable, running silent: %v", err)
		return nil
	}

	speaker.Play(p.ctrl)
	p.ready = true
	log.Printf("audio: speaker at %d Hz", p.rate)

	// Opening motif
	if notes, err := Preset(p.cfg.Preset); err == nil {
		speaker.Lock()
		p.mixer.Add(newVolume(Sequence(notes, parameter.TriadNoteDuration, p.rate), p.cfg.Volume))
		speaker.Unlock()
	}
	return nil
}

// Stop implements service.Service
func (p *Player) Stop() error {
	p.Close()
	return nil
}

// Close silences and clears the mixer
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return
	}

	speaker.Lock()
	p.ctrl.Paused = true
	p.mixer.Clear()
	speaker.Unlock()

	p.ready = false
}

// Ready reports whether the speaker is running
func (p *Player) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// SetMuted pauses or resumes the output without dropping queued tones
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.muted = muted
	if !p.ready {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = muted
	speaker.Unlock()
}

// ToggleMute flips the mute state and returns the new value
func (p *Player) ToggleMute() bool {
	p.mu.Lock()
	muted := !p.muted
	p.mu.Unlock()

	p.SetMuted(muted)
	return muted
}

// Muted reports the mute state
func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// PlayTriad plays one triad on root
func (p *Player) PlayTriad(root float64) bool {
	return p.play(NewTone(Triad(root), parameter.TriadNoteDuration, p.sampleRate()))
}

// PlayPreset sequences a named preset
func (p *Player) PlayPreset(name string) error {
	notes, err := Preset(name)
	if err != nil {
		return err
	}
	p.play(Sequence(notes, parameter.TriadNoteDuration, p.sampleRate()))
	return nil
}

// OnState plays a cue when the mantle phase changes: a triad on the current rpm followed by the phase preset
// The first observed state only sets the baseline
func (p *Player) OnState(state mantle.State) bool {
	p.mu.Lock()
	changed := p.seenPhase && state.Phase != p.lastPhase
	p.lastPhase = state.Phase
	p.seenPhase = true
	p.mu.Unlock()

	if !changed {
		return false
	}

	notes, _ := Preset(PresetFor(state.Phase))
	rate := p.sampleRate()
	cue := beep.Seq(
		NewTone(Triad(RootFor(state.RPM)), parameter.TriadNoteDuration, rate),
		Sequence(notes, parameter.TriadNoteDuration, rate),
	)
	p.play(cue)
	return true
}

func (p *Player) sampleRate() beep.SampleRate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *Player) play(s beep.Streamer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready || p.muted {
		return false
	}

	speaker.Lock()
	p.mixer.Add(newVolume(s, p.cfg.Volume))
	speaker.Unlock()
	return true
}
