// Package geometry provides the rectangle, point and affine helpers shared by
// the placement model, the gesture mapper and the PDF synthesizer.
//
// All rectangles use a top-left origin with y growing downwards (screen and
// raster space). The PDF synthesizer flips into PDF user space exactly once.
package geometry

import (
	"cmp"
	"fmt"
	"math"
)

// Point is a position in absolute (pixel or point) space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the vector from q to p
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the euclidean distance between p and q
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Size is a width/height pair
type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// IsEmpty reports whether either dimension is zero or negative
func (s Size) IsEmpty() bool {
	return s.W <= 0 || s.H <= 0
}

// Aspect returns H/W, falling back to 1 for a degenerate size
func (s Size) Aspect() float64 {
	if s.W <= 0 || s.H <= 0 {
		return 1
	}
	return s.H / s.W
}

func (s Size) String() string {
	return fmt.Sprintf("%gx%g", s.W, s.H)
}

// Rect is an axis-aligned rectangle with a top-left origin
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// RectFromSize returns the rectangle of the given size at the origin
func RectFromSize(s Size) Rect {
	return Rect{W: s.W, H: s.H}
}

func (r Rect) MinX() float64 { return r.X }
func (r Rect) MinY() float64 { return r.Y }
func (r Rect) MaxX() float64 { return r.X + r.W }
func (r Rect) MaxY() float64 { return r.Y + r.H }
func (r Rect) MidX() float64 { return r.X + r.W/2 }
func (r Rect) MidY() float64 { return r.Y + r.H/2 }

// Origin returns the top-left corner
func (r Rect) Origin() Point { return Point{X: r.X, Y: r.Y} }

// Size returns the rectangle dimensions
func (r Rect) Size() Size { return Size{W: r.W, H: r.H} }

// Center returns the midpoint
func (r Rect) Center() Point { return Point{X: r.MidX(), Y: r.MidY()} }

// IsEmpty reports whether the rectangle has no area
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// Contains reports whether p lies inside r, edges included
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX() && p.X <= r.MaxX() && p.Y >= r.MinY() && p.Y <= r.MaxY()
}

// ContainsRect reports whether o lies fully inside r within tolerance eps
func (r Rect) ContainsRect(o Rect, eps float64) bool {
	return o.MinX() >= r.MinX()-eps && o.MaxX() <= r.MaxX()+eps &&
		o.MinY() >= r.MinY()-eps && o.MaxY() <= r.MaxY()+eps
}

// Inset shrinks the rectangle by dx on the left and right and dy on the top and bottom
func (r Rect) Inset(dx, dy float64) Rect {
	out := Rect{X: r.X + dx, Y: r.Y + dy, W: r.W - 2*dx, H: r.H - 2*dy}
	if out.W < 0 {
		out.W = 0
	}
	if out.H < 0 {
		out.H = 0
	}
	return out
}

// CenteredRect returns the rectangle of size s centered on c
func CenteredRect(c Point, s Size) Rect {
	return Rect{X: c.X - s.W/2, Y: c.Y - s.H/2, W: s.W, H: s.H}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.W, r.H)
}

// Clamp bounds v to [lo, hi]. When lo > hi the result is lo.
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

// AspectFit returns the largest rectangle with image's aspect ratio that fits
// centered inside a container of the given size. A degenerate image or
// container yields the zero Rect.
func AspectFit(image, container Size) Rect {
	if image.IsEmpty() || container.IsEmpty() {
		return Rect{}
	}
	s := math.Min(container.W/image.W, container.H/image.H)
	w := image.W * s
	h := image.H * s
	return Rect{
		X: (container.W - w) / 2,
		Y: (container.H - h) / 2,
		W: w,
		H: h,
	}
}

// AspectFitIn is AspectFit positioned inside the container rectangle
func AspectFitIn(image Size, container Rect) Rect {
	fit := AspectFit(image, container.Size())
	if fit.IsEmpty() {
		return Rect{}
	}
	fit.X += container.X
	fit.Y += container.Y
	return fit
}

// NormalizedToAbsolute maps a point in [0,1]x[0,1] fit space to absolute space
func NormalizedToAbsolute(p Point, fit Rect) Point {
	return Point{
		X: fit.X + p.X*fit.W,
		Y: fit.Y + p.Y*fit.H,
	}
}

// AbsoluteToNormalized is the inverse of NormalizedToAbsolute. A degenerate
// fit rectangle maps every point to the origin.
func AbsoluteToNormalized(p Point, fit Rect) Point {
	if fit.IsEmpty() {
		return Point{}
	}
	return Point{
		X: (p.X - fit.X) / fit.W,
		Y: (p.Y - fit.Y) / fit.H,
	}
}

// NormalizeDegrees folds an angle into [-180, 180]
func NormalizeDegrees(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	d := math.Mod(deg, 360)
	switch {
	case d > 180:
		d -= 360
	case d < -180:
		d += 360
	}
	return d
}

// Radians converts degrees to radians
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
