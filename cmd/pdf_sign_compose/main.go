package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/compose"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/importer"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/output"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
)

var (
	outputPath   = flag.String("out", "", "Output PDF path (default: Signed-<timestamp>.pdf next to the plan)")
	sizing       = flag.String("sizing", "a4", "Page sizing: a4, native")
	margin       = flag.Float64("margin", compose.DefaultMargin, "A4 page margin in points")
	importScale  = flag.Float64("scale", importer.DefaultImportScale, "Rasterization scale for PDF pages")
	outputFormat = flag.String("format", "text", "Output format: text, json")
	help         = flag.Bool("help", false, "Show help message")
)

// Plan lists the output pages in order and the signatures drawn on each
type Plan struct {
	Pages []PlanPage `json:"pages"`
}

// PlanPage takes its raster from an image file, or from one page of a PDF
type PlanPage struct {
	Image      string          `json:"image,omitempty"`
	PDF        string          `json:"pdf,omitempty"`
	Page       int             `json:"page,omitempty"` // 1-based, with PDF
	Placements []PlanPlacement `json:"placements,omitempty"`
}

// PlanPlacement positions a signature image in normalized page coordinates
type PlanPlacement struct {
	Signature string  `json:"signature"`
	CX        float64 `json:"cx"`
	CY        float64 `json:"cy"`
	Width     float64 `json:"width"`
	Angle     float64 `json:"angle,omitempty"`
}

// ComposeResult is what the tool reports
type ComposeResult struct {
	OutputPath  string               `json:"output_path"`
	Bytes       int64                `json:"bytes"`
	Pages       []compose.PageLayout `json:"pages"`
	ComposeTime string               `json:"compose_time"`
}

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: plan file required\n\n")
		printUsage()
		os.Exit(1)
	}

	planPath := flag.Arg(0)
	plan, err := loadPlan(planPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sz, err := compose.ParseSizing(*sizing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	opts := compose.DefaultOptions()
	opts.Sizing = sz
	opts.Margin = *margin

	dest := *outputPath
	if dest == "" {
		dest = filepath.Join(filepath.Dir(planPath), output.Name(output.DefaultPrefix, time.Now()))
	}

	result, err := composePlan(context.Background(), plan, filepath.Dir(planPath), dest, opts, *importScale)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error composing PDF: %v\n", err)
		os.Exit(1)
	}

	if err := outputResults(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error outputting results: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("PDF Sign Compose - Render scanned pages and signature images into a PDF")
	fmt.Println()
	printUsage()
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -out       Output PDF path")
	fmt.Println("  -sizing    Page sizing: a4 (default), native")
	fmt.Println("  -margin    A4 page margin in points (default 24)")
	fmt.Println("  -scale     Rasterization scale for pages taken from a PDF (default 2)")
	fmt.Println("  -format    Output format: text (default), json")
	fmt.Println("  -help      Show this help message")
	fmt.Println()
	fmt.Println("PLAN FILE:")
	fmt.Println(`  {"pages": [`)
	fmt.Println(`    {"image": "scan-1.png", "placements": [`)
	fmt.Println(`      {"signature": "Signatures/abc.png", "cx": 0.7, "cy": 0.85, "width": 0.3, "angle": -5}`)
	fmt.Println(`    ]},`)
	fmt.Println(`    {"pdf": "contract.pdf", "page": 2}`)
	fmt.Println(`  ]}`)
	fmt.Println()
	fmt.Println("  Relative paths are resolved against the plan's directory. cx and cy place")
	fmt.Println("  the signature center as fractions of the page image; width is the")
	fmt.Println("  signature width as a fraction of the page image width.")
}

func printUsage() {
	fmt.Println("USAGE:")
	fmt.Println("  pdf_sign_compose [OPTIONS] <plan.json>")
}

func loadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", filepath.Base(path), err)
	}
	if len(plan.Pages) == 0 {
		return nil, fmt.Errorf("plan %s has no pages", filepath.Base(path))
	}
	return &plan, nil
}

// pageLoader resolves plan paths and caches decoded images and imported
// documents, so a signature used on several pages is shared
type pageLoader struct {
	base       string
	scale      float64
	importer   *importer.PDFImporter
	documents  map[string]*importer.ImportResult
	signatures map[string]*placement.Asset
}

func (l *pageLoader) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.base, path)
}

func (l *pageLoader) page(ctx context.Context, p PlanPage) (importer.PageImage, error) {
	switch {
	case p.Image != "" && p.PDF != "":
		return importer.PageImage{}, fmt.Errorf("page sets both image and pdf")
	case p.Image != "":
		path := l.resolve(p.Image)
		img, err := importer.DecodeImageFile(path)
		if err != nil {
			return importer.PageImage{}, err
		}
		return importer.PageImage{Image: img, Source: path}, nil
	case p.PDF != "":
		path := l.resolve(p.PDF)
		doc, ok := l.documents[path]
		if !ok {
			var err error
			doc, err = l.importer.ImportFile(ctx, path, l.scale)
			if err != nil {
				return importer.PageImage{}, err
			}
			l.documents[path] = doc
		}
		number := p.Page
		if number == 0 {
			number = 1
		}
		for _, page := range doc.Pages {
			if page.Page == number {
				return page, nil
			}
		}
		return importer.PageImage{}, fmt.Errorf("%s has no usable page %d", filepath.Base(path), number)
	default:
		return importer.PageImage{}, fmt.Errorf("page needs an image or a pdf")
	}
}

func (l *pageLoader) signature(path string) (*placement.Asset, error) {
	path = l.resolve(path)
	if asset, ok := l.signatures[path]; ok {
		return asset, nil
	}
	img, err := importer.DecodeImageFile(path)
	if err != nil {
		return nil, err
	}
	asset := &placement.Asset{ID: filepath.Base(path), Path: path, Image: img}
	l.signatures[path] = asset
	return asset, nil
}

func composePlan(ctx context.Context, plan *Plan, base, dest string, opts compose.Options, scale float64) (*ComposeResult, error) {
	start := time.Now()
	loader := &pageLoader{
		base:       base,
		scale:      scale,
		importer:   importer.NewPDFImporter(),
		documents:  make(map[string]*importer.ImportResult),
		signatures: make(map[string]*placement.Asset),
	}
	limits := placement.DefaultLimits()

	pages := make([]compose.Page, 0, len(plan.Pages))
	for i, p := range plan.Pages {
		img, err := loader.page(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		page := compose.Page{Image: img.Image}
		for j, pp := range p.Placements {
			asset, err := loader.signature(pp.Signature)
			if err != nil {
				return nil, fmt.Errorf("page %d placement %d: %w", i+1, j+1, err)
			}
			page.Placements = append(page.Placements, placement.PlacedSignature{
				ID:        fmt.Sprintf("p%d-%d", i+1, j+1),
				Asset:     asset,
				CX:        geometry.Clamp(pp.CX, 0, 1),
				CY:        geometry.Clamp(pp.CY, 0, 1),
				WidthFrac: geometry.Clamp(pp.Width, limits.MinFrac, limits.MaxFrac),
				AngleDeg:  geometry.NormalizeDegrees(pp.Angle),
			})
		}
		pages = append(pages, page)
	}

	var buf bytes.Buffer
	res, err := compose.Compose(pages, &buf, opts)
	if err != nil {
		return nil, err
	}
	if err := output.ReplaceAtomic(dest, buf.Bytes()); err != nil {
		return nil, err
	}

	return &ComposeResult{
		OutputPath:  dest,
		Bytes:       res.Bytes,
		Pages:       res.Pages,
		ComposeTime: time.Since(start).String(),
	}, nil
}

func outputResults(result *ComposeResult) error {
	switch *outputFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "text":
		fmt.Printf("✅ Wrote %s (%d bytes) in %s\n", result.OutputPath, result.Bytes, result.ComposeTime)
		for _, page := range result.Pages {
			fmt.Printf("  Page %d: %s, image at %s, %d signature(s)\n",
				page.Index+1, page.PageSize, page.Fit, len(page.Placements))
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", *outputFormat)
	}
}
