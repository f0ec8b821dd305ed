package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/triad/parameter"
)

// ToneStreamer sums the three partials of a triad as sine waves under an attack/release envelope
type ToneStreamer struct {
	freqs  [3]float64
	phases [3]float64
	rate   beep.SampleRate

	position int
	total    int
	attack   int
	release  int
}

// NewTone creates a finite triad tone of the given duration
func NewTone(freqs [3]float64, duration time.Duration, rate beep.SampleRate) *ToneStreamer {
	total := rate.N(duration)
	attack := min(rate.N(parameter.TriadAttack), total)
	release := min(rate.N(parameter.TriadRelease), total-attack)

	return &ToneStreamer{
		freqs:   freqs,
		rate:    rate,
		total:   total,
		attack:  attack,
		release: release,
	}
}

// Len returns the tone length in samples
func (t *ToneStreamer) Len() int {
	return t.total
}

func (t *ToneStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.position >= t.total {
			return i, i > 0
		}

		var val float64
		for k, f := range t.freqs {
			val += math.Sin(2 * math.Pi * t.phases[k])
			t.phases[k] += f / float64(t.rate)
			t.phases[k] -= math.Floor(t.phases[k])
		}
		val *= parameter.TriadPartialGain * t.gain()

		samples[i][0] = val
		samples[i][1] = val
		t.position++
	}
	return len(samples), true
}

func (t *ToneStreamer) Err() error { return nil }

// gain is the envelope level at the current position
func (t *ToneStreamer) gain() float64 {
	if t.attack > 0 && t.position < t.attack {
		return float64(t.position) / float64(t.attack)
	}
	releaseStart := t.total - t.release
	if t.release > 0 && t.position >= releaseStart {
		return float64(t.total-t.position) / float64(t.release)
	}
	return 1
}

// Sequence streams each note as a triad, back to back
func Sequence(notes []float64, noteDur time.Duration, rate beep.SampleRate) beep.Streamer {
	tones := make([]beep.Streamer, 0, len(notes))
	for _, root := range notes {
		tones = append(tones, NewTone(Triad(root), noteDur, rate))
	}
	return beep.Seq(tones...)
}

// newVolume applies a linear volume, 0 meaning silent
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}
