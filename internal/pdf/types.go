package pdf

// FileInfo represents basic information about a PDF file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// ImportPDFRequest represents a request to rasterize an existing PDF into
// page images
type ImportPDFRequest struct {
	Path  string  `json:"path"`
	Scale float64 `json:"scale,omitempty"`
}

// ImportPDFResult describes an imported document
type ImportPDFResult struct {
	Path      string   `json:"path"`
	PageCount int      `json:"page_count"`
	Imported  int      `json:"imported"`
	Scale     float64  `json:"scale"`
	Skipped   []string `json:"skipped,omitempty"`
}

// LoadImagesRequest represents a request to load captured page images
type LoadImagesRequest struct {
	Paths []string `json:"paths"`
}

// LoadImagesResult describes the loaded pages
type LoadImagesResult struct {
	Loaded  int      `json:"loaded"`
	Sources []string `json:"sources"`
	Skipped []string `json:"skipped,omitempty"`
}

// VerifyRequest represents a request to check a produced PDF
type VerifyRequest struct {
	Path string `json:"path"`
}

// PageReport describes one page of a verified document
type PageReport struct {
	Number   int        `json:"number"`
	MediaBox [4]float64 `json:"media_box"`
	Images   int        `json:"images"`
}

// VerifyResult represents the outcome of verifying a PDF
type VerifyResult struct {
	Path    string       `json:"path"`
	Valid   bool         `json:"valid"`
	Message string       `json:"message,omitempty"`
	Size    int64        `json:"size"`
	Pages   []PageReport `json:"pages,omitempty"`
}

// ListSignedRequest represents a request to list produced PDFs
type ListSignedRequest struct {
	Directory string `json:"directory"`
	Query     string `json:"query,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ListSignedResult represents the produced PDFs, newest first
type ListSignedResult struct {
	Files       []FileInfo `json:"files"`
	TotalCount  int        `json:"total_count"`
	Directory   string     `json:"directory"`
	SearchQuery string     `json:"search_query,omitempty"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}

// ServerInfoResult represents comprehensive server information
type ServerInfoResult struct {
	ServerName         string     `json:"server_name"`
	Version            string     `json:"version"`
	WorkDirectory      string     `json:"work_directory"`
	SignatureDirectory string     `json:"signature_directory"`
	OutputDirectory    string     `json:"output_directory"`
	MaxFileSize        int64      `json:"max_file_size"`
	AvailableTools     []ToolInfo `json:"available_tools"`
	SignedFiles        []FileInfo `json:"signed_files"`
	UsageGuidance      string     `json:"usage_guidance"`
	SupportedFormats   []string   `json:"supported_formats"`
}
