package audio

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/parameter"
)

// ErrUnknownPreset is returned for preset names outside the built-in set
var ErrUnknownPreset = errors.New("audio: unknown preset")

// Preset names
const (
	PresetBeethoven = "Beethoven"
	PresetChaos     = "Chaos"
)

var presets = map[string][]float64{
	PresetBeethoven: {220, 277, 440},
	PresetChaos:     {110, 165, 220},
}

// Triad returns fundamental, octave and fifth for a root frequency
func Triad(root float64) [3]float64 {
	return [3]float64{
		root * parameter.TriadFundamental,
		root * parameter.TriadOctave,
		root * parameter.TriadFifth,
	}
}

// Preset returns the root note sequence for a named preset
// Names are case-sensitive
func Preset(name string) ([]float64, error) {
	notes, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	out := make([]float64, len(notes))
	copy(out, notes)
	return out, nil
}

// PresetNames lists the built-in presets in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetFor picks the preset that accompanies a mantle phase
func PresetFor(phase mantle.Phase) string {
	if phase == mantle.PhaseChaos {
		return PresetChaos
	}
	return PresetBeethoven
}

// RootFor maps mantle rpm to a triad root frequency
func RootFor(rpm float64) float64 {
	if rpm < 0 {
		rpm = -rpm
	}
	return rpm * parameter.RPMToHz
}
