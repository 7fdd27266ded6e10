package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
	"github.com/a3tai/mcp-pdf-signer/internal/signing"
)

const maxListedFiles = 10

func formatSkipped(skipped []string) string {
	if len(skipped) == 0 {
		return ""
	}
	text := fmt.Sprintf("\n⚠️  Skipped %d input(s):\n", len(skipped))
	for _, msg := range skipped {
		text += fmt.Sprintf("  • %s\n", msg)
	}
	return text
}

func formatPlacement(page int, p placement.PlacedSignature, fit geometry.Rect) string {
	text := fmt.Sprintf("Placement %s on page %d", p.ID, page)
	if p.Selected {
		text += " (selected)"
	}
	text += "\n"
	if p.Asset != nil {
		text += fmt.Sprintf("  Signature: %s\n", p.Asset.ID)
	}
	text += fmt.Sprintf("  Center: (%.3f, %.3f) of the page\n", p.CX, p.CY)
	text += fmt.Sprintf("  Width: %.1f%% of the page\n", p.WidthFrac*100)
	text += fmt.Sprintf("  Angle: %.1f°\n", p.AngleDeg)
	text += fmt.Sprintf("  On screen: %s\n", p.Bounds(fit))
	return text
}

func formatSession(ctx context.Context, sess *signing.Session) string {
	text := fmt.Sprintf("Document: %d page(s), viewport %s", sess.PageCount(), sess.Viewport())
	if !sess.Entitled(ctx) {
		text += ", signing disabled"
	}
	text += "\n"

	for i, p := range sess.Pages() {
		text += fmt.Sprintf("\nPage %d: %s", i, p.Size())
		if p.Source != "" {
			text += fmt.Sprintf(" from %s", p.Source)
		}
		text += "\n"
		fit, err := sess.FitRect(i)
		if err != nil {
			continue
		}
		text += fmt.Sprintf("  Fit: %s\n", fit)
		placements, _ := sess.Placements(i)
		if len(placements) == 0 {
			text += "  No placements\n"
			continue
		}
		for _, pl := range placements {
			text += indent(formatPlacement(i, pl, fit))
		}
	}
	return text
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(strings.TrimSuffix(s, "\n"), "\n", "\n  ") + "\n"
}

func formatExportResult(result *signing.ExportResult) string {
	text := fmt.Sprintf("✅ Signed PDF written to %s\n", result.Path)
	text += fmt.Sprintf("Size: %d bytes\n", result.Bytes)
	text += fmt.Sprintf("Pages: %d\n", result.PageCount)
	text += fmt.Sprintf("Signatures: %d\n", result.Placements)
	if result.Verified {
		text += "Verified: the document reads back cleanly\n"
	}
	for _, page := range result.Pages {
		text += fmt.Sprintf("  Page %d: %s, image at %s, %d signature(s)\n",
			page.Index, page.PageSize, page.Fit, len(page.Placements))
	}
	return text
}

func formatListSignedResult(result *pdf.ListSignedResult) string {
	text := fmt.Sprintf("Found %d signed PDF file(s) in directory: %s\n", result.TotalCount, result.Directory)
	if result.SearchQuery != "" {
		text += fmt.Sprintf("Search query: %s\n", result.SearchQuery)
	}
	if len(result.Files) < result.TotalCount {
		text += fmt.Sprintf("Showing the newest %d\n", len(result.Files))
	}
	text += "\nFiles:\n"

	for i, file := range result.Files {
		text += fmt.Sprintf("%d. %s\n", i+1, file.Name)
		text += fmt.Sprintf("   Path: %s\n", file.Path)
		text += fmt.Sprintf("   Size: %d bytes\n", file.Size)
		text += fmt.Sprintf("   Modified: %s\n", file.ModifiedTime)
		if i < len(result.Files)-1 {
			text += "\n"
		}
	}

	return text
}

func (s *Server) formatServerInfoResult(result *pdf.ServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Work Directory: %s\n", result.WorkDirectory)
	text += fmt.Sprintf("✍️  Signature Directory: %s\n", result.SignatureDirectory)
	text += fmt.Sprintf("📤 Output Directory: %s\n", result.OutputDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	if s.config.Entitled {
		text += "🔐 Signing: enabled\n\n"
	} else {
		text += "🔐 Signing: disabled, plain scans can still be exported\n\n"
	}

	if len(result.SignedFiles) > 0 {
		text += fmt.Sprintf("📂 Recently Signed (%d PDF files):\n", len(result.SignedFiles))
		for i, file := range result.SignedFiles {
			if i >= maxListedFiles {
				text += fmt.Sprintf("   ... and %d more files\n", len(result.SignedFiles)-maxListedFiles)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Recently Signed: No signed PDF files yet\n\n"
	}

	s.mu.Lock()
	if s.session != nil {
		text += fmt.Sprintf("📄 Open Document: %d page(s), %d signature(s) placed\n\n",
			s.session.PageCount(), s.session.Overlay().Count())
	}
	if s.editor != nil {
		text += "🖌️  Signature photo open for background removal\n\n"
	}
	s.mu.Unlock()

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Description: %s\n", tool.Description)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	if len(result.SupportedFormats) > 0 {
		text += "\n🖼️  Supported Image Formats:\n"
		for _, format := range result.SupportedFormats {
			text += fmt.Sprintf("  • %s\n", format)
		}
	}

	text += "\n" + result.UsageGuidance

	return text
}
