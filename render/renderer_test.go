package render

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/triad/field"
	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/particle"
	"github.com/lixenwraith/triad/status"
	"github.com/lixenwraith/triad/vmath"
)

func newScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Screen init failed: %v", err)
	}
	screen.SetSize(w, h)
	return screen
}

func rowText(screen tcell.Screen, y, w int) string {
	var b strings.Builder
	for x := 0; x < w; x++ {
		mainc, _, _, _ := screen.GetContent(x, y)
		if mainc == 0 {
			mainc = ' '
		}
		b.WriteRune(mainc)
	}
	return b.String()
}

func TestGlyphBands(t *testing.T) {
	tests := []struct {
		z    float32
		want rune
	}{
		{500, '@'},
		{251, '@'},
		{250, 'o'},
		{0.1, 'o'},
		{0, '.'},
		{-24, '.'},
	}
	for _, tt := range tests {
		if got, _ := Glyph(tt.z); got != tt.want {
			t.Errorf("Glyph(%v) = %q, want %q", tt.z, got, tt.want)
		}
	}
}

func TestLayerStyleByParity(t *testing.T) {
	if LayerStyle(0) != LayerStyle(2) || LayerStyle(1) != LayerStyle(3) {
		t.Error("Expected style to depend only on layer parity")
	}
	if LayerStyle(0) == LayerStyle(1) {
		t.Error("Expected even and odd layers to differ")
	}
}

// TestDrawProjectsAroundCentroid verifies a particle at the centroid lands in the middle of the field area
func TestDrawProjectsAroundCentroid(t *testing.T) {
	const w, h = 40, 12
	screen := newScreen(t, w, h)
	defer screen.Fini()

	r := New()
	r.Scale = 1

	ps := []particle.Particle{
		{X: 10, Y: 10, Z: 400, Layer: 0}, // centroid, high
		{X: 12, Y: 10, Z: 100, Layer: 1}, // one unit right, doubled for aspect
		{X: 10, Y: 12, Z: 0, Layer: 2},   // two rows down
		{X: 500, Y: 10, Z: 0},            // off screen
	}
	stats := field.Stats{Tick: 7, Centroid: vmath.Vec3F{X: 10, Y: 10}}
	r.Draw(screen, ps, stats, mantle.State{RPM: 33.33, Phase: mantle.PhaseStable})

	rows := h - 2
	cx, cy := w/2, 1+rows/2

	check := func(x, y int, want rune, style tcell.Style) {
		t.Helper()
		mainc, _, got, _ := screen.GetContent(x, y)
		if mainc != want {
			t.Errorf("Cell (%d,%d): expected %q, got %q", x, y, want, mainc)
		}
		if got != style {
			t.Errorf("Cell (%d,%d): unexpected style", x, y)
		}
	}
	check(cx, cy, '@', LayerStyle(0))
	check(cx+4, cy, 'o', LayerStyle(1))
	check(cx, cy+2, '.', LayerStyle(2))

	hud := rowText(screen, 0, w)
	if !strings.Contains(hud, "tick 7") || !strings.Contains(hud, "STABLE") {
		t.Errorf("Unexpected HUD %q", hud)
	}
}

func TestDrawHigherGlyphWinsSharedCell(t *testing.T) {
	screen := newScreen(t, 20, 10)
	defer screen.Fini()

	r := New()
	r.Scale = 1
	ps := []particle.Particle{
		{Z: 400, Layer: 1},
		{Z: 0, Layer: 0},
		{Z: 50, Layer: 0},
	}
	r.Draw(screen, ps, field.Stats{}, mantle.State{})

	mainc, _, style, _ := screen.GetContent(10, 1+4)
	if mainc != '@' || style != LayerStyle(1) {
		t.Errorf("Expected high glyph of layer 1 to win, got %q", mainc)
	}

	// Buffer resets between frames
	r.Draw(screen, ps[1:2], field.Stats{}, mantle.State{})
	if mainc, _, _, _ := screen.GetContent(10, 1+4); mainc != '.' {
		t.Errorf("Expected settled glyph on second frame, got %q", mainc)
	}
}

func TestDrawAutoFitKeepsSpreadVisible(t *testing.T) {
	screen := newScreen(t, 80, 24)
	defer screen.Fini()

	ps := []particle.Particle{{X: 30}, {X: -30}, {Y: 30}, {Y: -30}}
	var acc vmath.Accumulator
	for _, p := range ps {
		acc.Add(vmath.V3F(p.X, p.Y, p.Z))
	}
	stats := field.Stats{Centroid: acc.Centroid(), Spread: acc.Spread()}

	New().Draw(screen, ps, stats, mantle.State{})

	found := 0
	for y := 1; y < 23; y++ {
		found += strings.Count(rowText(screen, y, 80), ".")
	}
	if found != len(ps) {
		t.Errorf("Expected all %d particles visible, found %d", len(ps), found)
	}
}

func TestDrawTinyScreen(t *testing.T) {
	screen := newScreen(t, 5, 1)
	defer screen.Fini()

	// HUD only, no panic
	New().Draw(screen, []particle.Particle{{}}, field.Stats{}, mantle.State{Phase: mantle.PhaseChaos})
	if got := rowText(screen, 0, 5); got != " tick" {
		t.Errorf("Expected clipped HUD, got %q", got)
	}
}

func TestDrawMetricsFooter(t *testing.T) {
	screen := newScreen(t, 60, 5)
	defer screen.Fini()

	r := New()
	r.Muted = true
	r.Draw(screen, nil, field.Stats{}, mantle.State{})
	r.DrawMetrics(screen, []status.Metric{{Key: "sim.ticks", Value: "3"}, {Key: "net.peers", Value: "0"}})

	footer := rowText(screen, 4, 60)
	if !strings.HasPrefix(footer, "sim.ticks=3  net.peers=0") {
		t.Errorf("Unexpected footer %q", footer)
	}
	if hud := rowText(screen, 0, 60); !strings.Contains(hud, "MUTED") {
		t.Errorf("Expected mute indicator, got %q", hud)
	}
}
