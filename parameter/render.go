package parameter

// Terminal view
const (
	// RenderHUDRows is the number of rows reserved above the field
	RenderHUDRows = 1

	// RenderFooterRows is the number of rows reserved below the field for metrics
	RenderFooterRows = 1

	// RenderAspect compensates for terminal cells being about twice as tall as wide
	RenderAspect = 2.0

	// RenderFitSpread is how many spreads from the centroid fit inside the half-height
	RenderFitSpread = 2.5

	// RenderHighBand is the z above which a particle draws as the high glyph
	RenderHighBand = DefaultSpawnDepth / 2

	GlyphHigh    = '@'
	GlyphMid     = 'o'
	GlyphSettled = '.'
)
