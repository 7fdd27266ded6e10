package descriptions

// Tool describes one MCP tool for listings and the server info guide
type Tool struct {
	Name       string
	Summary    string
	Usage      string
	Parameters string
}

// Long-form descriptions for the tools an agent reaches for first
const (
	SignServerInfoDescription = `Get server information, the configured directories, recently signed files and a usage guide.

**When to use:** Starting a signing workflow, or checking where signatures are loaded from and where signed PDFs are written.

**Why it's useful:** Lists every tool with its parameters and shows the state of the signature store and output directory in one call.

**Best practices:** Call once at the start of a session; the signed-file listing is cached for a short time.`

	ScanLoadImagesDescription = `Load captured page images (PNG, JPEG, GIF, TIFF, BMP, WebP) as the pages of a new signing session.

**When to use:** The document to sign was photographed or scanned to image files.

**Examples:**
• Single page: "Load ~/Scans/lease-p1.jpg"
• Whole folder: "Load every page in ~/Scans/lease/" (directories contribute their images in name order)

**Common workflows:**
1. Load images → signature_add → gesture_drag / gesture_pinch → pdf_export
2. Load images → pdf_export (plain scan to PDF, no signature)

**Best practices:** Files that cannot be decoded are skipped and reported; the session starts with the pages that loaded. Loading replaces any open session.`

	PDFImportDescription = `Import an existing PDF as a signing session. Each page is rasterized at the page size times scale onto a white canvas.

**When to use:** The document arrived as a PDF and needs a visual signature.

**Why it's useful:** Page dimensions come from the PDF itself, so the export keeps the original proportions.

**Best practices:** The default scale 2.0 is sharp enough for print; scale is clamped to [1, 4]. Pages whose raster cannot be decoded are skipped.`

	SignatureAddDescription = `Place a saved signature on a page. The new placement starts centered horizontally near the bottom of the page at 32% of the page width, and is selected.

**When to use:** After signature_list shows the signature to use.

**Best practices:** Placement ids are returned and stay stable; use them with the gesture tools. Requires an active entitlement.`

	GestureDragDescription = `Move a placement by a translation measured on the viewport, like the end of a drag gesture.

**When to use:** Repositioning a signature. Translations are in viewport units; the placement is clamped so it never leaves the page.

**Best practices:** Use gesture_preview to see where an in-flight gesture would land without committing it.`

	PDFExportDescription = `Render the session into a PDF and write it atomically as Signed-<timestamp>.pdf.

**When to use:** When placements are final, or to turn a plain scan into a PDF.

**Why it's useful:** Output is deterministic: pages are laid out by the configured sizing policy (A4 with margin, or native image size) and signatures are drawn with their transparency. The document is read back and validated before it is written.

**Best practices:** Exporting twice never overwrites; a collision gets a short random suffix.`

	BgStartDescription = `Open a signature photo for background removal and start segmentation in the background.

**When to use:** Turning a photo of a handwritten signature into a transparent signature asset.

**Common workflows:**
1. bg_start → bg_status until done → bg_stroke to touch up → bg_save
2. bg_start → bg_rotate → bg_save

**Best practices:** Strokes can be applied while segmentation is still running. If segmentation fails or times out the original image is kept and can be cleaned up manually.`
)

// Tools lists every tool in the order they are registered
var Tools = []Tool{
	{
		Name:       "sign_server_info",
		Summary:    "Get server information, directories, recent exports and usage guidance",
		Usage:      "Use this tool first to learn the workflow and the configured directories.",
		Parameters: "No parameters required",
	},
	{
		Name:       "scan_load_images",
		Summary:    "Start a session from captured page images",
		Usage:      "Use this tool when the pages are photos or scans stored as image files.",
		Parameters: "paths (required): image files or directories",
	},
	{
		Name:       "pdf_import",
		Summary:    "Start a session from an existing PDF",
		Usage:      "Use this tool to sign a document that is already a PDF.",
		Parameters: "path (required): PDF file, scale (optional): raster scale in [1, 4], default 2",
	},
	{
		Name:       "session_pages",
		Summary:    "Describe the open session: pages, fit rectangles and placements",
		Usage:      "Use this tool to inspect the current state before and after gestures.",
		Parameters: "No parameters required",
	},
	{
		Name:       "signature_list",
		Summary:    "List saved signatures, newest first",
		Usage:      "Use this tool to find the signature id to place.",
		Parameters: "No parameters required",
	},
	{
		Name:       "signature_delete",
		Summary:    "Delete saved signatures",
		Usage:      "Use this tool to remove signatures from the gallery; several ids can be deleted at once.",
		Parameters: "ids (required): signature ids",
	},
	{
		Name:       "signature_add",
		Summary:    "Place a saved signature on a page",
		Usage:      "Use this tool to add a signature; it becomes the selected placement.",
		Parameters: "page (required): zero-based page index, signature_id (required)",
	},
	{
		Name:       "signature_select",
		Summary:    "Toggle the selection of a placement",
		Usage:      "Use this tool to select a placement before editing it.",
		Parameters: "page (required), placement_id (required)",
	},
	{
		Name:       "signature_deselect",
		Summary:    "Clear the selection on a page",
		Usage:      "Use this tool like tapping on empty page space.",
		Parameters: "page (required)",
	},
	{
		Name:       "signature_remove",
		Summary:    "Remove a placement from a page",
		Usage:      "Use this tool to undo a placement; the saved signature is kept.",
		Parameters: "page (required), placement_id (required)",
	},
	{
		Name:       "gesture_drag",
		Summary:    "Move a placement",
		Usage:      "Use this tool to commit a drag; dx and dy are in viewport units.",
		Parameters: "page, placement_id, dx, dy (all required)",
	},
	{
		Name:       "gesture_pinch",
		Summary:    "Scale a placement about its center",
		Usage:      "Use this tool to commit a pinch; scale is the magnification factor.",
		Parameters: "page, placement_id, scale (all required)",
	},
	{
		Name:       "gesture_resize",
		Summary:    "Resize a placement with its corner handle",
		Usage:      "Use this tool to commit a corner drag; dx and dy are in viewport units.",
		Parameters: "page, placement_id, dx, dy (all required)",
	},
	{
		Name:       "gesture_preview",
		Summary:    "Show where in-flight gestures would put a placement",
		Usage:      "Use this tool to try a gesture without committing it.",
		Parameters: "page, placement_id (required); dx, dy, scale, resize_dx, resize_dy (optional)",
	},
	{
		Name:       "signature_rotate",
		Summary:    "Set the rotation of a placement",
		Usage:      "Use this tool to rotate a signature; angles are in degrees.",
		Parameters: "page, placement_id, angle (all required)",
	},
	{
		Name:       "page_remove",
		Summary:    "Remove a page and its placements",
		Usage:      "Use this tool to drop a page from the document; later pages move up.",
		Parameters: "page (required)",
	},
	{
		Name:       "pdf_export",
		Summary:    "Render and save the signed PDF",
		Usage:      "Use this tool when placements are final.",
		Parameters: "directory (optional): output directory, defaults to the configured one",
	},
	{
		Name:       "pdf_list_signed",
		Summary:    "List exported PDFs, newest first, with optional fuzzy search",
		Usage:      "Use this tool to find earlier exports.",
		Parameters: "query (optional): fuzzy filename search, limit (optional)",
	},
	{
		Name:       "pdf_verify",
		Summary:    "Check that a PDF reads back cleanly",
		Usage:      "Use this tool to verify an exported file.",
		Parameters: "path (required)",
	},
	{
		Name:       "bg_start",
		Summary:    "Open a signature photo and start background removal",
		Usage:      "Use this tool to create a new transparent signature from a photo.",
		Parameters: "path (required): image file, timeout (optional): seconds",
	},
	{
		Name:       "bg_status",
		Summary:    "Report segmentation progress of the open photo",
		Usage:      "Use this tool to wait for bg_start to finish.",
		Parameters: "wait (optional): seconds to wait for completion",
	},
	{
		Name:       "bg_stroke",
		Summary:    "Paint or erase along a path",
		Usage:      "Use this tool to touch up the removed background.",
		Parameters: "mode (required): paint|erase, points (required): x,y pairs, brush (optional): slider in [0, 1], view_width/view_height (optional): map points from a view",
	},
	{
		Name:       "bg_restore",
		Summary:    "Discard touch-ups and return to the segmentation result",
		Usage:      "Use this tool to start over.",
		Parameters: "No parameters required",
	},
	{
		Name:       "bg_rotate",
		Summary:    "Rotate the photo by 90 degrees counter-clockwise",
		Usage:      "Use this tool when the photo was taken sideways.",
		Parameters: "No parameters required",
	},
	{
		Name:       "bg_save",
		Summary:    "Trim the result and save it as a signature",
		Usage:      "Use this tool to finish background removal.",
		Parameters: "threshold (optional): alpha below which pixels count as empty, default 5",
	},
}

// ToolDescriptions maps tool names to their long-form descriptions
var ToolDescriptions = map[string]string{
	"sign_server_info": SignServerInfoDescription,
	"scan_load_images": ScanLoadImagesDescription,
	"pdf_import":       PDFImportDescription,
	"signature_add":    SignatureAddDescription,
	"gesture_drag":     GestureDragDescription,
	"pdf_export":       PDFExportDescription,
	"bg_start":         BgStartDescription,
}

// Lookup returns the tool with the given name
func Lookup(name string) (Tool, bool) {
	for _, t := range Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// GetToolDescription returns the long-form description of a tool, falling
// back to its summary
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	if t, ok := Lookup(toolName); ok {
		return t.Summary
	}
	return "Tool description not available"
}

// GetAllToolNames returns the names of all tools in registration order
func GetAllToolNames() []string {
	names := make([]string, len(Tools))
	for i, t := range Tools {
		names[i] = t.Name
	}
	return names
}
