package placement

import (
	"math"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

// MaxWidthFracThatFits returns the largest width fraction for which an
// unrotated box of the given aspect, centered at (cx, cy), stays inside fit.
func MaxWidthFracThatFits(cx, cy, aspect float64, fit geometry.Rect) float64 {
	if fit.IsEmpty() {
		return 0
	}
	if aspect <= 0 {
		aspect = 1
	}
	c := geometry.NormalizedToAbsolute(geometry.Point{X: cx, Y: cy}, fit)

	dx := math.Min(c.X-fit.MinX(), fit.MaxX()-c.X)
	dy := math.Min(c.Y-fit.MinY(), fit.MaxY()-c.Y)

	maxHalfW := math.Min(dx, dy/aspect)
	return geometry.Clamp(maxHalfW*2/fit.W, 0, 1)
}

// ClampCenter moves an absolute center so that a box of the given size stays
// inside fit.
func ClampCenter(c geometry.Point, size geometry.Size, fit geometry.Rect) geometry.Point {
	halfW, halfH := size.W/2, size.H/2
	return geometry.Point{
		X: geometry.Clamp(c.X, fit.MinX()+halfW, fit.MaxX()-halfW),
		Y: geometry.Clamp(c.Y, fit.MinY()+halfH, fit.MaxY()-halfH),
	}
}

// ClampToFit returns p adjusted so its unrotated bounding box lies inside fit.
//
// The width is first bounded by lim, then shrunk to what fits around the
// current center. If that would collapse the placement below MinHalfExtent
// the width is held at the floor and the center moves inward instead.
func ClampToFit(p PlacedSignature, fit geometry.Rect, lim Limits) PlacedSignature {
	if fit.IsEmpty() {
		return p
	}
	aspect := p.Aspect()

	p.CX = geometry.Clamp(sanitize(p.CX), 0, 1)
	p.CY = geometry.Clamp(sanitize(p.CY), 0, 1)
	p.AngleDeg = geometry.NormalizeDegrees(p.AngleDeg)

	w := geometry.Clamp(sanitize(p.WidthFrac), lim.MinFrac, lim.MaxFrac)
	w = math.Min(w, MaxWidthFracThatFits(p.CX, p.CY, aspect, fit))

	// largest width that fits anywhere in the rectangle
	whole := math.Min(1, fit.H/(aspect*fit.W))
	floor := math.Min(2*MinHalfExtent/fit.W, whole)
	if w < floor {
		w = floor
	}
	p.WidthFrac = w

	size := p.AbsoluteSize(fit)
	c := ClampCenter(p.AbsoluteCenter(fit), size, fit)
	n := geometry.AbsoluteToNormalized(c, fit)
	p.CX = geometry.Clamp(n.X, 0, 1)
	p.CY = geometry.Clamp(n.Y, 0, 1)
	return p
}

// InBounds reports whether p's unrotated box lies inside fit within eps
func InBounds(p PlacedSignature, fit geometry.Rect, eps float64) bool {
	return fit.ContainsRect(p.Bounds(fit), eps)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
