// Package compose synthesizes a PDF from page images and their signature
// placements.
package compose

import (
	"fmt"
	"strings"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

// PageSizing selects how the output page size is derived
type PageSizing int

const (
	// SizingA4 uses a fixed A4 page with a uniform margin
	SizingA4 PageSizing = iota
	// SizingNative uses the page image's pixel size as points, without margin
	SizingNative
)

// A4 page size in points
var A4 = geometry.Size{W: 595, H: 842}

// DefaultMargin is the A4 content inset in points
const DefaultMargin = 24.0

func (s PageSizing) String() string {
	switch s {
	case SizingA4:
		return "a4"
	case SizingNative:
		return "native"
	default:
		return "unknown"
	}
}

// ParseSizing parses "a4" or "native"
func ParseSizing(v string) (PageSizing, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "a4":
		return SizingA4, nil
	case "native", "image":
		return SizingNative, nil
	default:
		return SizingA4, fmt.Errorf("unknown page sizing %q (want a4 or native)", v)
	}
}

// Options configures the synthesizer
type Options struct {
	Sizing   PageSizing
	PageSize geometry.Size // used with SizingA4, defaults to A4
	Margin   float64       // used with SizingA4
	Producer string
}

// DefaultOptions returns A4 output with a 24pt margin
func DefaultOptions() Options {
	return Options{
		Sizing:   SizingA4,
		PageSize: A4,
		Margin:   DefaultMargin,
		Producer: "mcp-pdf-signer",
	}
}

func (o Options) normalized() Options {
	if o.PageSize.IsEmpty() {
		o.PageSize = A4
	}
	if o.Margin < 0 {
		o.Margin = 0
	}
	return o
}
