package vmath

import (
	"math"
)

// Vec3F is a float64 3D vector for telemetry and projection math
// V3F builds one from float32 particle state
type Vec3F struct {
	X, Y, Z float64
}

// V3F builds a Vec3F from float32 components
func V3F(x, y, z float32) Vec3F {
	return Vec3F{float64(x), float64(y), float64(z)}
}

func V3FAdd(a, b Vec3F) Vec3F {
	return Vec3F{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func V3FSub(a, b Vec3F) Vec3F {
	return Vec3F{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func V3FScale(v Vec3F, s float64) Vec3F {
	return Vec3F{v.X * s, v.Y * s, v.Z * s}
}

// Accumulator sums points for centroid and spread without storing them
// Zero value is ready to use
type Accumulator struct {
	n     int
	sum   Vec3F
	sumSq float64
}

// Add folds one point in
func (a *Accumulator) Add(v Vec3F) {
	a.n++
	a.sum = V3FAdd(a.sum, v)
	a.sumSq += v.X*v.X + v.Y*v.Y
}

// Count returns the number of points added
func (a *Accumulator) Count() int {
	return a.n
}

// Centroid returns the mean point, zero vector when empty
func (a *Accumulator) Centroid() Vec3F {
	if a.n == 0 {
		return Vec3F{}
	}
	return V3FScale(a.sum, 1.0/float64(a.n))
}

// Spread returns the RMS planar distance from the centroid
func (a *Accumulator) Spread() float64 {
	if a.n == 0 {
		return 0
	}
	c := a.Centroid()
	variance := a.sumSq/float64(a.n) - (c.X*c.X + c.Y*c.Y)
	if variance < 0 {
		// Cancellation noise on tight clusters
		return 0
	}
	return math.Sqrt(variance)
}
