// Package render draws the particle field and HUD onto a tcell screen
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/triad/field"
	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/parameter"
	"github.com/lixenwraith/triad/particle"
	"github.com/lixenwraith/triad/status"
	"github.com/lixenwraith/triad/vmath"
)

// glyph ranks, higher wins a shared cell
const (
	rankEmpty uint8 = iota
	rankSettled
	rankMid
	rankHigh
)

var (
	hudStyle    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
	footerStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	mutedStyle  = tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorNavy).Bold(true)

	// Even layers turn clockwise, odd counter-clockwise
	evenStyle = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	oddStyle  = tcell.StyleDefault.Foreground(tcell.ColorFuchsia)

	chaosStyle = tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorMaroon)
	voidStyle  = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorBlack)
)

// Renderer projects particles orthographically around the field centroid
type Renderer struct {
	// Scale is cells per world unit on the vertical axis, 0 fits the spread to the screen
	Scale float64
	// Muted shows an indicator on the HUD
	Muted bool

	ranks []uint8
	w, h  int
}

// New creates an auto-fitting renderer
func New() *Renderer {
	return &Renderer{}
}

// Draw clears the screen and draws the HUD line and every visible particle
// Caller is responsible for Show
func (r *Renderer) Draw(screen tcell.Screen, ps []particle.Particle, stats field.Stats, state mantle.State) {
	screen.Clear()
	w, h := screen.Size()
	if w <= 0 || h <= 0 {
		return
	}

	r.drawHUD(screen, w, stats, state)

	top := parameter.RenderHUDRows
	rows := h - parameter.RenderHUDRows - parameter.RenderFooterRows
	if rows <= 0 {
		return
	}
	r.resize(w, rows)

	scale := r.scaleFor(stats.Spread, w, rows)
	cx := float64(w) / 2
	cy := float64(rows) / 2

	for _, p := range ps {
		off := vmath.V3FSub(vmath.V3F(p.X, p.Y, p.Z), stats.Centroid)
		sx := int(math.Floor(cx + off.X*scale*parameter.RenderAspect))
		sy := int(math.Floor(cy + off.Y*scale))
		if sx < 0 || sx >= w || sy < 0 || sy >= rows {
			continue
		}

		ch, rank := Glyph(p.Z)
		idx := sy*w + sx
		if rank <= r.ranks[idx] {
			continue
		}
		r.ranks[idx] = rank
		screen.SetContent(sx, top+sy, ch, nil, LayerStyle(p.Layer))
	}
}

// DrawMetrics writes a status snapshot on the bottom row
func (r *Renderer) DrawMetrics(screen tcell.Screen, metrics []status.Metric) {
	w, h := screen.Size()
	if h <= parameter.RenderHUDRows {
		return
	}

	var b strings.Builder
	for i, m := range metrics {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(m.Key)
		b.WriteByte('=')
		b.WriteString(m.Value)
	}
	drawText(screen, 0, h-1, w, b.String(), footerStyle)
}

// Glyph picks the character for a depth band and its overlap rank
func Glyph(z float32) (rune, uint8) {
	switch {
	case z > parameter.RenderHighBand:
		return parameter.GlyphHigh, rankHigh
	case z > 0:
		return parameter.GlyphMid, rankMid
	default:
		return parameter.GlyphSettled, rankSettled
	}
}

// LayerStyle colors a particle by rotation direction
func LayerStyle(layer uint8) tcell.Style {
	if particle.RotationDir(layer) > 0 {
		return evenStyle
	}
	return oddStyle
}

func (r *Renderer) drawHUD(screen tcell.Screen, w int, stats field.Stats, state mantle.State) {
	style := hudStyle
	switch state.Phase {
	case mantle.PhaseChaos:
		style = chaosStyle
	case mantle.PhaseVoid:
		style = voidStyle
	}

	line := fmt.Sprintf(" tick %d  %s  rpm %.2f  entropy %.3f  collapsing %d  settled %d  transient %d",
		stats.Tick, strings.ToUpper(state.Phase.String()), state.RPM, state.Entropy,
		stats.Collapsing, stats.Settled, stats.Transient)

	for x := 0; x < w; x++ {
		screen.SetContent(x, 0, ' ', nil, style)
	}

	x := 0
	if r.Muted {
		x = drawText(screen, 0, 0, w, " MUTED", mutedStyle)
	}
	drawText(screen, x, 0, w, line, style)
}

func (r *Renderer) scaleFor(spread float64, w, rows int) float64 {
	if r.Scale > 0 {
		return r.Scale
	}
	extent := max(spread*parameter.RenderFitSpread, 1)
	vertical := float64(rows) / 2 / extent
	horizontal := float64(w) / 2 / (extent * parameter.RenderAspect)
	return min(vertical, horizontal)
}

func (r *Renderer) resize(w, rows int) {
	n := w * rows
	if r.w != w || r.h != rows || len(r.ranks) != n {
		r.ranks = make([]uint8, n)
		r.w, r.h = w, rows
		return
	}
	clear(r.ranks)
}

// drawText writes s from x, clipped at limit, and returns the column after the last rune
func drawText(screen tcell.Screen, x, y, limit int, s string, style tcell.Style) int {
	for _, ch := range s {
		if x >= limit {
			break
		}
		screen.SetContent(x, y, ch, nil, style)
		x++
	}
	return x
}
