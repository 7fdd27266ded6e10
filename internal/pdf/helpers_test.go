package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-signer/internal/pdf/compose"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
)

func whitePage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func inkAsset(w, h int) *placement.Asset {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.SetNRGBA(x, h/2, color.NRGBA{A: 255})
	}
	return &placement.Asset{ID: "sign_test", Image: img}
}

// composed renders white pages; the first carries one signature
func composed(t *testing.T, pages int) []byte {
	t.Helper()
	in := make([]compose.Page, pages)
	for i := range in {
		in[i] = compose.Page{Image: whitePage(100, 140)}
	}
	in[0].Placements = []placement.PlacedSignature{{
		ID: "p1", Asset: inkAsset(40, 10), CX: 0.5, CY: 0.85, WidthFrac: 0.32,
	}}

	var buf bytes.Buffer
	_, err := compose.Compose(in, &buf, compose.DefaultOptions())
	require.NoError(t, err)
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	if !mod.IsZero() {
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	writeFile(t, path, buf.Bytes(), time.Time{})
}
