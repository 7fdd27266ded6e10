package bgremoval

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

// Mode selects what a stroke does to the working buffer
type Mode int

const (
	// Paint lays down opaque black ink
	Paint Mode = iota
	// Erase makes covered pixels fully transparent
	Erase
)

func (m Mode) String() string {
	switch m {
	case Paint:
		return "paint"
	case Erase:
		return "erase"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "paint"/"draw" and "erase"
func ParseMode(s string) (Mode, error) {
	switch s {
	case "paint", "draw":
		return Paint, nil
	case "erase":
		return Erase, nil
	}
	return 0, fmt.Errorf("unknown stroke mode %q", s)
}

// MaxBrushSize is the brush diameter at the top of the slider
const MaxBrushSize = 30.0

// BrushSizeFromSlider maps a slider value in [0,1] to a brush diameter in
// image pixels
func BrushSizeFromSlider(v float64) float64 {
	return math.Max(1, v*MaxBrushSize)
}

// Stroke is one drag across the working buffer. Points are in image pixel
// coordinates, in the order they were sampled.
type Stroke struct {
	Mode      Mode
	BrushSize float64
	Points    []geometry.Point
}

// Radius is the radius of each stamped circle
func (s Stroke) Radius() float64 {
	return math.Max(0.5, s.BrushSize/2)
}

// StampCenters returns the circle centers stamped between a and b: steps+1
// evenly spaced points including both ends, where steps depends on the
// distance and the stamp step max(0.5, radius*0.6).
func StampCenters(a, b geometry.Point, radius float64) []geometry.Point {
	d := b.Sub(a)
	dist := math.Max(1, math.Hypot(d.X, d.Y))
	step := math.Max(0.5, radius*0.6)
	steps := max(1, int(dist/step))

	centers := make([]geometry.Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		centers = append(centers, geometry.Point{X: a.X + d.X*t, Y: a.Y + d.Y*t})
	}
	return centers
}

// coverage rasterizes the stroke into an alpha mask the size of bounds
func (s Stroke) coverage(bounds image.Rectangle) *image.Alpha {
	mask := image.NewAlpha(bounds)
	if len(s.Points) == 0 || bounds.Empty() {
		return mask
	}

	r := s.Radius()
	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	off := geometry.Point{X: float64(bounds.Min.X), Y: float64(bounds.Min.Y)}

	prev := s.Points[0]
	stamp := func(c geometry.Point) {
		circle(z, c.Sub(off), r)
	}
	if len(s.Points) == 1 {
		for _, c := range StampCenters(prev, prev, r) {
			stamp(c)
		}
	}
	for _, p := range s.Points[1:] {
		for _, c := range StampCenters(prev, p, r) {
			stamp(c)
		}
		prev = p
	}

	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	for i, a := range mask.Pix {
		if a >= fullCoverage {
			mask.Pix[i] = 0xff
		}
	}
	return mask
}

// fullCoverage is the mask value from which a pixel counts as inside the brush
const fullCoverage = 0xfa

// kappa places cubic control points so four segments approximate a circle
const kappa = 0.5522847498

func circle(z *vector.Rasterizer, c geometry.Point, r float64) {
	x, y, k := float32(c.X), float32(c.Y), float32(r*kappa)
	rr := float32(r)
	z.MoveTo(x+rr, y)
	z.CubeTo(x+rr, y+k, x+k, y+rr, x, y+rr)
	z.CubeTo(x-k, y+rr, x-rr, y+k, x-rr, y)
	z.CubeTo(x-rr, y-k, x-k, y-rr, x, y-rr)
	z.CubeTo(x+k, y-rr, x+rr, y-k, x+rr, y)
	z.ClosePath()
}

// apply modifies dst under the stroke's coverage
func (s Stroke) apply(dst *image.NRGBA) {
	mask := s.coverage(dst.Bounds())

	switch s.Mode {
	case Erase:
		b := dst.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				m := mask.AlphaAt(x, y).A
				if m == 0 {
					continue
				}
				i := dst.PixOffset(x, y) + 3
				dst.Pix[i] = uint8(uint32(dst.Pix[i]) * uint32(255-m) / 255)
			}
		}
	default:
		draw.DrawMask(dst, dst.Bounds(), image.Black, image.Point{}, mask, dst.Bounds().Min, draw.Over)
	}
}
