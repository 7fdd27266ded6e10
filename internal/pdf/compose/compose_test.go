package compose

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"regexp"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
)

func whitePage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func inkAsset(w, h int) *placement.Asset {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.SetNRGBA(x, h/2, color.NRGBA{A: 255})
	}
	return &placement.Asset{ID: "ink", Image: img}
}

type drawnXObject struct {
	name string
	m    [6]float64
}

func (d drawnXObject) at(x, y float64) (float64, float64) {
	return d.m[0]*x + d.m[2]*y + d.m[4], d.m[1]*x + d.m[3]*y + d.m[5]
}

func (d drawnXObject) width() float64 {
	return math.Hypot(d.m[0], d.m[1])
}

func readBack(t *testing.T, data []byte) *pdf.Reader {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return r
}

func drawnOn(p pdf.Page) []drawnXObject {
	var out []drawnXObject
	var cm [6]float64
	pdf.Interpret(p.V.Key("Contents"), func(stk *pdf.Stack, op string) {
		switch op {
		case "cm":
			for i := 5; i >= 0; i-- {
				cm[i] = stk.Pop().Float64()
			}
		case "Do":
			out = append(out, drawnXObject{name: stk.Pop().Name(), m: cm})
		}
	})
	return out
}

// mediaBox resolves the page's MediaBox, which may be inherited from the
// page tree
func mediaBox(p pdf.Page) [4]float64 {
	var box [4]float64
	mb := p.V.Key("MediaBox")
	for v := p.V; mb.IsNull() && !v.IsNull(); v = v.Key("Parent") {
		mb = v.Key("MediaBox")
	}
	for i := 0; i < 4 && i < mb.Len(); i++ {
		box[i] = mb.Index(i).Float64()
	}
	return box
}

func TestComposeSignedScan(t *testing.T) {
	asset := inkAsset(400, 100)
	sig := placement.PlacedSignature{ID: "s1", Asset: asset, CX: 0.5, CY: 0.85, WidthFrac: 0.32}

	tests := []struct {
		name       string
		sizing     PageSizing
		wantBox    [4]float64
		wantCenter [2]float64
		wantWidth  float64
	}{
		{
			name:    "a4 with margin",
			sizing:  SizingA4,
			wantBox: [4]float64{0, 0, 595, 842},
			// fit is 547 x 765.8 at (24, 38.1) in top-left space
			wantCenter: [2]float64{297.5, 842 - (38.1 + 0.85*765.8)},
			wantWidth:  0.32 * 547,
		},
		{
			name:       "native image size",
			sizing:     SizingNative,
			wantBox:    [4]float64{0, 0, 1000, 1400},
			wantCenter: [2]float64{500, 1400 - 0.85*1400},
			wantWidth:  320,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Sizing = tt.sizing

			var buf bytes.Buffer
			res, err := Compose([]Page{{Image: whitePage(1000, 1400), Placements: []placement.PlacedSignature{sig}}}, &buf, opts)
			require.NoError(t, err)
			require.Len(t, res.Pages, 1)
			assert.Equal(t, int64(buf.Len()), res.Bytes)

			r := readBack(t, buf.Bytes())
			require.Equal(t, 1, r.NumPage())
			page := r.Page(1)
			assert.Equal(t, tt.wantBox, mediaBox(page))

			drawn := drawnOn(page)
			require.Len(t, drawn, 2)
			assert.Equal(t, "X1", drawn[0].name)
			assert.Equal(t, "X2", drawn[1].name)

			cx, cy := drawn[1].at(0.5, 0.5)
			assert.InDelta(t, tt.wantCenter[0], cx, 1)
			assert.InDelta(t, tt.wantCenter[1], cy, 1)
			assert.InDelta(t, tt.wantWidth, drawn[1].width(), 1)

			pl := res.Pages[0].Placements[0]
			assert.InDelta(t, tt.wantCenter[0], pl.Center.X, 1e-6)
			assert.InDelta(t, tt.wantCenter[1], pl.Center.Y, 1e-6)
		})
	}
}

func TestComposePageImageFillsFit(t *testing.T) {
	var buf bytes.Buffer
	_, err := Compose([]Page{{Image: whitePage(1000, 1400)}}, &buf, DefaultOptions())
	require.NoError(t, err)

	drawn := drawnOn(readBack(t, buf.Bytes()).Page(1))
	require.Len(t, drawn, 1)

	x0, y0 := drawn[0].at(0, 0)
	x1, y1 := drawn[0].at(1, 1)
	assert.InDelta(t, 24, x0, 0.01)
	assert.InDelta(t, 842-38.1-765.8, y0, 0.01)
	assert.InDelta(t, 24+547, x1, 0.01)
	assert.InDelta(t, 842-38.1, y1, 0.01)
}

func TestComposeRotationIsClockwiseOnScreen(t *testing.T) {
	asset := inkAsset(200, 100)
	sig := placement.PlacedSignature{ID: "r", Asset: asset, CX: 0.5, CY: 0.5, WidthFrac: 0.2, AngleDeg: 90}

	opts := DefaultOptions()
	opts.Sizing = SizingNative

	var buf bytes.Buffer
	_, err := Compose([]Page{{Image: whitePage(1000, 1000), Placements: []placement.PlacedSignature{sig}}}, &buf, opts)
	require.NoError(t, err)

	drawn := drawnOn(readBack(t, buf.Bytes()).Page(1))
	require.Len(t, drawn, 2)

	// the right edge of the signature turns to point down the page
	cx, cy := drawn[1].at(0.5, 0.5)
	rx, ry := drawn[1].at(1, 0.5)
	assert.InDelta(t, 500, cx, 0.01)
	assert.InDelta(t, 500, cy, 0.01)
	assert.InDelta(t, cx, rx, 0.01)
	assert.InDelta(t, cy-100, ry, 0.01)
}

func TestComposeMultiPageSharesAssets(t *testing.T) {
	asset := inkAsset(300, 90)
	a := placement.PlacedSignature{ID: "a", Asset: asset, CX: 0.3, CY: 0.3, WidthFrac: 0.2}
	b := placement.PlacedSignature{ID: "b", Asset: asset, CX: 0.7, CY: 0.7, WidthFrac: 0.4, AngleDeg: -30}

	pages := []Page{
		{Image: whitePage(600, 800), Placements: []placement.PlacedSignature{a}},
		{Image: whitePage(800, 600), Placements: []placement.PlacedSignature{b, a}},
		{Image: whitePage(500, 500)},
	}

	var buf bytes.Buffer
	_, err := Compose(pages, &buf, DefaultOptions())
	require.NoError(t, err)

	// three page images, then the shared signature and its mask
	images := regexp.MustCompile(`/Subtype\s*/Image\b`).FindAll(buf.Bytes(), -1)
	assert.Len(t, images, 5)

	r := readBack(t, buf.Bytes())
	require.Equal(t, 3, r.NumPage())
	assert.Len(t, drawnOn(r.Page(1)), 2)
	assert.Len(t, drawnOn(r.Page(2)), 3)
	assert.Len(t, drawnOn(r.Page(3)), 1)

	// z-order follows slice order
	names := drawnOn(r.Page(2))
	cx, _ := names[1].at(0.5, 0.5)
	assert.Greater(t, cx, 297.5)
}

func TestComposeEmptyInput(t *testing.T) {
	var buf bytes.Buffer
	res, err := Compose(nil, &buf, DefaultOptions())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeEmptyInput))
	assert.Zero(t, buf.Len())
}

func TestComposeMissingPageImage(t *testing.T) {
	var buf bytes.Buffer
	_, err := Compose([]Page{{Image: whitePage(10, 10)}, {}}, &buf, DefaultOptions())
	require.Error(t, err)

	var se *pdferrors.SignError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, pdferrors.ErrorTypeDecodeFailure, se.Type)
	assert.Equal(t, 2, se.PageNumber)
	assert.Zero(t, buf.Len())
}

type failingWriter struct{ after int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("disk full")
	}
	f.after--
	return len(p), nil
}

func TestComposeWriteFailure(t *testing.T) {
	_, err := Compose([]Page{{Image: whitePage(10, 10)}}, &failingWriter{after: 3}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeWriteFailure))
	assert.Contains(t, err.Error(), "disk full")
}

func TestComposeSkipsPlacementsWithoutImage(t *testing.T) {
	var buf bytes.Buffer
	res, err := Compose([]Page{{
		Image:      whitePage(100, 100),
		Placements: []placement.PlacedSignature{{ID: "ghost", CX: 0.5, CY: 0.5, WidthFrac: 0.3}},
	}}, &buf, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Pages[0].Placements)
	assert.Len(t, drawnOn(readBack(t, buf.Bytes()).Page(1)), 1)
}

func xobject(t *testing.T, p pdf.Page, name string) pdf.Value {
	t.Helper()
	v := p.Resources().Key("XObject").Key(name)
	require.False(t, v.IsNull(), "no XObject %s", name)
	return v
}

func streamData(t *testing.T, v pdf.Value) []byte {
	t.Helper()
	rc := v.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestComposeGrayPage(t *testing.T) {
	page := image.NewGray(image.Rect(0, 0, 40, 30))
	draw.Draw(page, page.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	var buf bytes.Buffer
	_, err := Compose([]Page{{Image: page, Placements: []placement.PlacedSignature{
		{ID: "g", Asset: inkAsset(20, 10), CX: 0.5, CY: 0.5, WidthFrac: 0.5},
	}}}, &buf, DefaultOptions())
	require.NoError(t, err)

	p := readBack(t, buf.Bytes()).Page(1)

	pg := xobject(t, p, "X1")
	assert.Equal(t, "DeviceGray", pg.Key("ColorSpace").Name())
	assert.Equal(t, int64(8), pg.Key("BitsPerComponent").Int64())
	assert.Len(t, streamData(t, pg), 40*30)
	assert.True(t, pg.Key("Mask").IsNull())

	sig := xobject(t, p, "X2")
	assert.Equal(t, "DeviceRGB", sig.Key("ColorSpace").Name())
	assert.Len(t, streamData(t, sig), 20*10*3)
	assert.True(t, sig.Key("Mask").Key("ImageMask").Bool())
}

func TestComposeProducer(t *testing.T) {
	var buf bytes.Buffer
	_, err := Compose([]Page{{Image: whitePage(10, 10)}}, &buf, DefaultOptions())
	require.NoError(t, err)

	r := readBack(t, buf.Bytes())
	assert.Equal(t, "mcp-pdf-signer", r.Trailer().Key("Info").Key("Producer").Text())
}

func TestParseSizing(t *testing.T) {
	s, err := ParseSizing("Native")
	require.NoError(t, err)
	assert.Equal(t, SizingNative, s)

	s, err = ParseSizing("")
	require.NoError(t, err)
	assert.Equal(t, SizingA4, s)
	assert.Equal(t, "a4", s.String())

	_, err = ParseSizing("letter")
	assert.Error(t, err)
}
