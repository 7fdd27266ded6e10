// Package importer produces page images from outside sources: image files
// standing in for a document camera, and existing PDF documents.
package importer

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

// PageImage is one captured or imported page. The image is never modified
// after it is produced.
type PageImage struct {
	Image  image.Image `json:"-"`
	Source string      `json:"source"`
	Page   int         `json:"page,omitempty"`
}

// Size returns the pixel dimensions of the page
func (p PageImage) Size() geometry.Size {
	if p.Image == nil {
		return geometry.Size{}
	}
	b := p.Image.Bounds()
	return geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// Scanner produces an ordered list of page images
type Scanner interface {
	Scan(ctx context.Context) ([]PageImage, error)
}

// ScannerFunc adapts a function to the Scanner interface
type ScannerFunc func(ctx context.Context) ([]PageImage, error)

// Scan calls f(ctx)
func (f ScannerFunc) Scan(ctx context.Context) ([]PageImage, error) {
	return f(ctx)
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".tif": true, ".tiff": true, ".bmp": true, ".webp": true,
}

// IsImageFile reports whether name has a supported image extension
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// FileScanner reads page images from files. Directories contribute their
// image files in name order.
type FileScanner struct {
	Paths []string
}

// Scan decodes every path, skipping files that fail to decode
func (s FileScanner) Scan(ctx context.Context) ([]PageImage, error) {
	pages, _, err := s.ScanReport(ctx)
	return pages, err
}

// ScanReport is Scan that also returns the skipped files
func (s FileScanner) ScanReport(ctx context.Context) ([]PageImage, *errors.ErrorCollection, error) {
	skipped := errors.NewErrorCollection("")

	files, err := expandPaths(s.Paths)
	if err != nil {
		return nil, skipped, err
	}

	pages := make([]PageImage, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		img, err := DecodeImageFile(path)
		if err != nil {
			log.Printf("[SCAN] skipping %s: %v", path, err)
			skipped.Add(errors.Wrap(errors.ErrorTypeDecodeFailure, "decode page image", err).WithFile(path))
			continue
		}
		pages = append(pages, PageImage{Image: img, Source: path, Page: len(pages) + 1})
	}
	return pages, skipped, nil
}

// DecodeImageFile decodes a PNG, JPEG, GIF, TIFF, BMP or WebP file
func DecodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decode %s: empty %s image", filepath.Base(path), format)
	}
	return img, nil
}

func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", p, err)
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsImageFile(e.Name()) {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, n := range names {
			files = append(files, filepath.Join(p, n))
		}
	}
	return files, nil
}
