package pdf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/compose"
	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/signing"
)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = 10 * 1024 * 1024
	}
	svc, err := NewService(opts)
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)

	work := t.TempDir()
	svc := newTestService(t, Options{WorkDir: work})
	assert.DirExists(t, filepath.Join(work, "Signatures"))
	assert.Equal(t, filepath.Join(work, "Signed"), svc.OutputDir())
	assert.Equal(t, filepath.Join(work, "Signatures"), svc.Signatures().Dir())
	assert.NoError(t, svc.ValidateConfiguration())
}

func TestService_ValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "zero size", opts: Options{MaxFileSize: -1}, wantErr: "greater than 0"},
		{name: "over 1GB", opts: Options{MaxFileSize: 2 << 30}, wantErr: "cannot exceed 1GB"},
		{name: "scale", opts: Options{MaxFileSize: 1024, ImportScale: 8}, wantErr: "import scale"},
		{name: "valid", opts: Options{MaxFileSize: 1024, ImportScale: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.WorkDir = t.TempDir()
			svc, err := NewService(tt.opts)
			require.NoError(t, err)
			err = svc.ValidateConfiguration()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestService_LoadImages(t *testing.T) {
	work := t.TempDir()
	svc := newTestService(t, Options{WorkDir: work})

	writePNG(t, filepath.Join(work, "scan", "p1.png"), whitePage(100, 140))
	writePNG(t, filepath.Join(work, "scan", "p2.png"), whitePage(140, 100))
	writeFile(t, filepath.Join(work, "scan", "p3.jpg"), []byte("not a jpeg"), time.Time{})

	sess, res, err := svc.LoadImages(context.Background(), LoadImagesRequest{Paths: []string{filepath.Join(work, "scan")}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 2, sess.PageCount())
	assert.Len(t, res.Skipped, 1)
	assert.Equal(t, filepath.Join(work, "scan", "p1.png"), res.Sources[0])

	t.Run("outside the configured directories", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "p.png")
		writePNG(t, outside, whitePage(10, 10))
		_, _, err := svc.LoadImages(context.Background(), LoadImagesRequest{Paths: []string{outside}})
		assert.ErrorContains(t, err, "security validation failed")
	})

	t.Run("nothing decodes", func(t *testing.T) {
		_, _, err := svc.LoadImages(context.Background(), LoadImagesRequest{Paths: []string{filepath.Join(work, "scan", "p3.jpg")}})
		assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeEmptyInput))
	})

	t.Run("no paths", func(t *testing.T) {
		_, _, err := svc.LoadImages(context.Background(), LoadImagesRequest{})
		assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeEmptyInput))
	})
}

func TestService_ImportPDF(t *testing.T) {
	work := t.TempDir()
	svc := newTestService(t, Options{WorkDir: work})

	var buf bytes.Buffer
	_, err := compose.Compose([]compose.Page{{Image: whitePage(100, 140)}}, &buf, compose.Options{Sizing: compose.SizingNative})
	require.NoError(t, err)
	src := filepath.Join(work, "in.pdf")
	writeFile(t, src, buf.Bytes(), time.Time{})

	sess, res, err := svc.ImportPDF(context.Background(), ImportPDFRequest{Path: src})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PageCount)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2.0, res.Scale)
	assert.Equal(t, geometry.Size{W: 200, H: 280}, sess.Pages()[0].Size())

	_, res, err = svc.ImportPDF(context.Background(), ImportPDFRequest{Path: src, Scale: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Scale)

	_, _, err = svc.ImportPDF(context.Background(), ImportPDFRequest{Path: filepath.Join(work, "missing.pdf")})
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInvalidInput))
}

func TestService_ExportVerifyList(t *testing.T) {
	work := t.TempDir()
	svc := newTestService(t, Options{WorkDir: work, Verify: true})
	ctx := context.Background()

	writePNG(t, filepath.Join(work, "p1.png"), whitePage(1000, 1400))
	sess, _, err := svc.LoadImages(ctx, LoadImagesRequest{Paths: []string{filepath.Join(work, "p1.png")}})
	require.NoError(t, err)

	asset, err := svc.Signatures().Save(inkAsset(400, 100).Image)
	require.NoError(t, err)
	_, err = sess.AddSignature(ctx, 0, asset)
	require.NoError(t, err)

	res, err := svc.Export(ctx, sess, "")
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, svc.OutputDir(), filepath.Dir(res.Path))
	assert.FileExists(t, res.Path)
	assert.Equal(t, 1, res.Placements)

	verified, err := svc.VerifyOutput(ctx, VerifyRequest{Path: res.Path})
	require.NoError(t, err)
	require.True(t, verified.Valid, verified.Message)
	require.Len(t, verified.Pages, 1)
	assert.Equal(t, 2, verified.Pages[0].Images)

	listed, err := svc.ListSigned(ctx, ListSignedRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, listed.TotalCount)
	assert.Equal(t, filepath.Base(res.Path), listed.Files[0].Name)

	t.Run("outside directories are refused", func(t *testing.T) {
		_, err := svc.Export(ctx, sess, t.TempDir())
		assert.ErrorContains(t, err, "security validation failed")
		_, err = svc.VerifyOutput(ctx, VerifyRequest{Path: filepath.Join(t.TempDir(), "x.pdf")})
		assert.ErrorContains(t, err, "security validation failed")
		_, err = svc.ListSigned(ctx, ListSignedRequest{Directory: t.TempDir()})
		assert.ErrorContains(t, err, "security validation failed")
	})

	t.Run("no session", func(t *testing.T) {
		_, err := svc.Export(ctx, nil, "")
		assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeEmptyInput))
	})
}

func TestService_Entitlement(t *testing.T) {
	work := t.TempDir()
	svc := newTestService(t, Options{WorkDir: work, Entitlement: signing.StaticEntitlement(false)})
	ctx := context.Background()

	writePNG(t, filepath.Join(work, "p1.png"), whitePage(100, 140))
	sess, _, err := svc.LoadImages(ctx, LoadImagesRequest{Paths: []string{filepath.Join(work, "p1.png")}})
	require.NoError(t, err)

	asset, err := svc.Signatures().Save(inkAsset(40, 10).Image)
	require.NoError(t, err)
	_, err = sess.AddSignature(ctx, 0, asset)
	assert.ErrorIs(t, err, signing.ErrNotEntitled)

	res, err := svc.Export(ctx, sess, "")
	require.NoError(t, err, "plain scans export without an entitlement")
	assert.False(t, res.Verified)
	assert.Zero(t, res.Placements)
}

func TestService_OpenEditor(t *testing.T) {
	work := t.TempDir()
	svc := newTestService(t, Options{WorkDir: work})

	photo := filepath.Join(work, "photo.png")
	writePNG(t, photo, whitePage(30, 20))
	ed, err := svc.OpenEditor(photo)
	require.NoError(t, err)
	defer ed.Close()
	assert.Equal(t, geometry.Size{W: 30, H: 20}, ed.Size())

	outside := filepath.Join(t.TempDir(), "photo.png")
	writePNG(t, outside, whitePage(30, 20))
	_, err = svc.OpenEditor(outside)
	assert.ErrorContains(t, err, "security validation failed")

	require.NoError(t, os.WriteFile(filepath.Join(work, "bad.png"), []byte("x"), 0o644))
	_, err = svc.OpenEditor(filepath.Join(work, "bad.png"))
	assert.Error(t, err)
}
