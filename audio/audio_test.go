package audio

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/parameter"
)

const testRate = beep.SampleRate(8000)

// drain pulls every sample out of s and returns them
func drain(s beep.Streamer) [][2]float64 {
	var out [][2]float64
	buf := make([][2]float64, 256)
	for {
		n, ok := s.Stream(buf)
		out = append(out, buf[:n]...)
		if !ok {
			return out
		}
	}
}

// TestTriadRatios verifies fundamental, octave and fifth ordering
func TestTriadRatios(t *testing.T) {
	got := Triad(220)
	want := [3]float64{220, 440, 330}
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if Triad(0) != [3]float64{} {
		t.Error("Expected zero root to give zero triad")
	}
}

func TestPresetLookup(t *testing.T) {
	notes, err := Preset("Beethoven")
	if err != nil {
		t.Fatalf("Preset failed: %v", err)
	}
	if len(notes) != 3 || notes[0] != 220 || notes[1] != 277 || notes[2] != 440 {
		t.Errorf("Unexpected Beethoven notes %v", notes)
	}

	notes, err = Preset("Chaos")
	if err != nil || len(notes) != 3 || notes[0] != 110 || notes[1] != 165 || notes[2] != 220 {
		t.Errorf("Unexpected Chaos notes %v err=%v", notes, err)
	}

	// Returned slice is a copy
	notes[0] = 1
	again, _ := Preset("Chaos")
	if again[0] != 110 {
		t.Error("Preset table was mutated through returned slice")
	}

	for _, name := range []string{"", "chaos", "Mozart"} {
		if _, err := Preset(name); !errors.Is(err, ErrUnknownPreset) {
			t.Errorf("Preset(%q): expected ErrUnknownPreset, got %v", name, err)
		}
	}

	names := PresetNames()
	if len(names) != 2 || names[0] != "Beethoven" || names[1] != "Chaos" {
		t.Errorf("Unexpected preset names %v", names)
	}
}

func TestPhaseAndRPMMapping(t *testing.T) {
	if PresetFor(mantle.PhaseChaos) != PresetChaos {
		t.Error("Expected chaos phase to map to Chaos preset")
	}
	if PresetFor(mantle.PhaseStable) != PresetBeethoven || PresetFor(mantle.PhaseVoid) != PresetBeethoven {
		t.Error("Expected non-chaos phases to map to Beethoven preset")
	}
	if got := RootFor(33.33); math.Abs(got-33.33*parameter.RPMToHz) > 1e-9 {
		t.Errorf("Unexpected root %f", got)
	}
	if RootFor(-10) != RootFor(10) {
		t.Error("Expected rpm sign to be ignored")
	}
}

// TestToneLengthAndBounds verifies the tone ends after its duration and never clips
func TestToneLengthAndBounds(t *testing.T) {
	tone := NewTone(Triad(220), 100*time.Millisecond, testRate)
	samples := drain(tone)

	if len(samples) != testRate.N(100*time.Millisecond) {
		t.Fatalf("Expected %d samples, got %d", testRate.N(100*time.Millisecond), len(samples))
	}

	var peak float64
	for i, s := range samples {
		if s[0] != s[1] {
			t.Fatalf("Sample %d: channels differ", i)
		}
		peak = max(peak, math.Abs(s[0]))
	}
	if peak > 1 {
		t.Errorf("Expected peak within [-1, 1], got %f", peak)
	}
	if peak == 0 {
		t.Error("Expected audible output")
	}

	// Envelope starts at silence
	if samples[0][0] != 0 {
		t.Errorf("Expected first sample silent, got %f", samples[0][0])
	}

	n, ok := tone.Stream(make([][2]float64, 8))
	if n != 0 || ok {
		t.Errorf("Expected drained tone to report (0, false), got (%d, %v)", n, ok)
	}
}

func TestToneShorterThanEnvelope(t *testing.T) {
	tone := NewTone(Triad(440), 5*time.Millisecond, testRate)
	if got := len(drain(tone)); got != testRate.N(5*time.Millisecond) {
		t.Errorf("Expected %d samples, got %d", testRate.N(5*time.Millisecond), got)
	}
}

func TestSequenceConcatenatesNotes(t *testing.T) {
	noteDur := 50 * time.Millisecond
	seq := Sequence([]float64{220, 277, 440}, noteDur, testRate)
	if got, want := len(drain(seq)), 3*testRate.N(noteDur); got != want {
		t.Errorf("Expected %d samples, got %d", want, got)
	}

	if got := len(drain(Sequence(nil, noteDur, testRate))); got != 0 {
		t.Errorf("Expected empty sequence, got %d samples", got)
	}
}

func TestVolumeSilence(t *testing.T) {
	s := newVolume(NewTone(Triad(220), 20*time.Millisecond, testRate), 0)
	for _, v := range drain(s) {
		if v[0] != 0 || v[1] != 0 {
			t.Fatal("Expected zero volume to be silent")
		}
	}
}

// TestPlayerGracefulDegradation verifies a player without a speaker accepts every call
func TestPlayerGracefulDegradation(t *testing.T) {
	p := NewPlayer()
	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	// Disabled by default, so Start never touches the device
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if p.Ready() {
		t.Fatal("Expected disabled player to stay silent")
	}

	if p.PlayTriad(220) {
		t.Error("Expected PlayTriad to be a no-op while silent")
	}
	if err := p.PlayPreset("Beethoven"); err != nil {
		t.Errorf("PlayPreset failed: %v", err)
	}
	if err := p.PlayPreset("Unknown"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("Expected ErrUnknownPreset, got %v", err)
	}

	if !p.ToggleMute() || !p.Muted() {
		t.Error("Expected mute on after toggle")
	}
	if p.ToggleMute() {
		t.Error("Expected mute off after second toggle")
	}

	if err := p.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestPlayerOnStateDetectsPhaseChange(t *testing.T) {
	p := NewPlayer()
	p.Init()

	if p.OnState(mantle.State{Phase: mantle.PhaseStable}) {
		t.Error("Expected first state to set baseline only")
	}
	if p.OnState(mantle.State{Phase: mantle.PhaseStable, RPM: 40}) {
		t.Error("Expected no cue without phase change")
	}
	if !p.OnState(mantle.State{Phase: mantle.PhaseChaos, RPM: 50}) {
		t.Error("Expected cue on phase change")
	}
	if !p.OnState(mantle.State{Phase: mantle.PhaseStable, RPM: 30}) {
		t.Error("Expected cue on phase return")
	}
}

func TestPlayerInitDefaultsSampleRate(t *testing.T) {
	p := NewPlayer()
	if err := p.Init(&Config{Volume: 1}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if p.sampleRate() != beep.SampleRate(parameter.AudioSampleRate) {
		t.Errorf("Expected default sample rate, got %d", p.sampleRate())
	}
}
