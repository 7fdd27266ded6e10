package bgremoval

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

func TestBrushSizeFromSlider(t *testing.T) {
	assert.Equal(t, 1.0, BrushSizeFromSlider(0))
	assert.Equal(t, 1.0, BrushSizeFromSlider(0.01))
	assert.Equal(t, 15.0, BrushSizeFromSlider(0.5))
	assert.Equal(t, 30.0, BrushSizeFromSlider(1))
}

func TestStrokeRadius(t *testing.T) {
	assert.Equal(t, 0.5, Stroke{BrushSize: 0}.Radius())
	assert.Equal(t, 0.5, Stroke{BrushSize: 0.4}.Radius())
	assert.Equal(t, 7.5, Stroke{BrushSize: 15}.Radius())
}

func TestStampCenters(t *testing.T) {
	tests := map[string]struct {
		a, b   geometry.Point
		radius float64
		want   int
	}{
		"horizontal":    {a: geometry.Point{}, b: geometry.Point{X: 10}, radius: 5, want: 4},
		"single point":  {a: geometry.Point{X: 3, Y: 3}, b: geometry.Point{X: 3, Y: 3}, radius: 0.5, want: 3},
		"large brush":   {a: geometry.Point{}, b: geometry.Point{X: 2}, radius: 15, want: 2},
		"dense stamps":  {a: geometry.Point{}, b: geometry.Point{Y: 10}, radius: 0.5, want: 21},
		"diagonal long": {a: geometry.Point{}, b: geometry.Point{X: 30, Y: 40}, radius: 5, want: 17},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := StampCenters(tt.a, tt.b, tt.radius)
			require.Len(t, got, tt.want)
			assert.Equal(t, tt.a, got[0])
			assert.InDelta(t, tt.b.X, got[len(got)-1].X, 1e-9)
			assert.InDelta(t, tt.b.Y, got[len(got)-1].Y, 1e-9)
		})
	}
}

func TestStampCentersLeaveNoGaps(t *testing.T) {
	for _, r := range []float64{0.5, 1, 3, 15} {
		got := StampCenters(geometry.Point{}, geometry.Point{X: 97, Y: 13}, r)
		for i := 1; i < len(got); i++ {
			assert.Less(t, got[i].Dist(got[i-1]), 2*r, "radius %g", r)
		}
	}
}

func TestStrokeErase(t *testing.T) {
	img := uniform(30, 30, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	Stroke{Mode: Erase, BrushSize: 6, Points: []geometry.Point{{X: 5, Y: 15}, {X: 25, Y: 15}}}.apply(img)

	for _, x := range []int{6, 10, 15, 20, 24} {
		assert.Equal(t, uint8(0), img.NRGBAAt(x, 15).A, "x=%d", x)
	}
	assert.Equal(t, uint8(255), img.NRGBAAt(15, 5).A)
	assert.Equal(t, uint8(255), img.NRGBAAt(15, 25).A)
	assert.Equal(t, uint8(255), img.NRGBAAt(15, 15).R, "erase leaves color untouched")
}

func TestStrokePaint(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 30, 30))
	Stroke{Mode: Paint, BrushSize: 6, Points: []geometry.Point{{X: 15, Y: 5}, {X: 15, Y: 25}}}.apply(img)

	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(15, 15))
	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(15, 7))
	assert.Equal(t, uint8(0), img.NRGBAAt(5, 15).A)
}

func TestStrokeNoPoints(t *testing.T) {
	img := uniform(4, 4, color.NRGBA{A: 255})
	Stroke{Mode: Erase, BrushSize: 10}.apply(img)
	assert.Equal(t, uint8(255), img.NRGBAAt(1, 1).A)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("erase")
	require.NoError(t, err)
	assert.Equal(t, Erase, m)

	m, err = ParseMode("draw")
	require.NoError(t, err)
	assert.Equal(t, Paint, m)

	_, err = ParseMode("smudge")
	assert.Error(t, err)
	assert.Equal(t, "paint", Paint.String())
}

func TestTrim(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	img.SetNRGBA(3, 4, color.NRGBA{A: 255})
	img.SetNRGBA(6, 7, color.NRGBA{A: 6})
	img.SetNRGBA(9, 9, color.NRGBA{A: 5})

	r, ok := ContentBounds(img, DefaultAlphaThreshold)
	require.True(t, ok)
	assert.Equal(t, image.Rect(3, 4, 7, 8), r)

	out := Trim(img, DefaultAlphaThreshold)
	assert.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(6), out.NRGBAAt(3, 3).A)

	empty := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	_, ok = ContentBounds(empty, DefaultAlphaThreshold)
	assert.False(t, ok)
	assert.Equal(t, empty.Bounds(), Trim(empty, DefaultAlphaThreshold).Bounds())
}

func TestRotateCCW(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 2, A: 255})

	out := rotateCCW(img)
	assert.Equal(t, image.Rect(0, 0, 1, 2), out.Bounds())
	assert.Equal(t, uint8(2), out.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(1), out.NRGBAAt(0, 1).R)
	assert.Nil(t, rotateCCW(nil))
}
