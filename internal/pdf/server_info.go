package pdf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-signer/internal/descriptions"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
)

// DirectoryCache provides TTL-based caching for directory listings
type DirectoryCache struct {
	entries map[string]*CacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
}

// CacheEntry represents a cached directory listing
type CacheEntry struct {
	files      []FileInfo
	lastUpdate time.Time
}

// NewDirectoryCache creates a new directory cache with specified TTL
func NewDirectoryCache(ttl time.Duration) *DirectoryCache {
	return &DirectoryCache{
		entries: make(map[string]*CacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves cached directory contents if valid
func (c *DirectoryCache) Get(path string) *CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[path]
	if !exists {
		return nil
	}

	if time.Since(entry.lastUpdate) > c.ttl {
		return nil
	}

	return entry
}

// Set stores directory contents in cache
func (c *DirectoryCache) Set(path string, files []FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = &CacheEntry{
		files:      files,
		lastUpdate: time.Now(),
	}
}

// Invalidate drops the entry for path
func (c *DirectoryCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Clear removes expired entries from cache
func (c *DirectoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for path, entry := range c.entries {
		if now.Sub(entry.lastUpdate) > c.ttl {
			delete(c.entries, path)
		}
	}
}

// ServerInfo assembles the server info report. The listing of recent
// exports is cached so repeated calls stay cheap.
type ServerInfo struct {
	cache     *DirectoryCache
	service   *Service
	listLimit int
	timeLimit time.Duration
}

// NewServerInfo creates a new server info handler
func NewServerInfo(service *Service) *ServerInfo {
	return &ServerInfo{
		cache:     NewDirectoryCache(5 * time.Minute),
		service:   service,
		listLimit: 20,
		timeLimit: 3 * time.Second,
	}
}

// Invalidate forgets the cached listing of dir
func (p *ServerInfo) Invalidate(dir string) {
	p.cache.Invalidate(dir)
}

// GetServerInfo performs cached server info retrieval
func (p *ServerInfo) GetServerInfo(ctx context.Context, serverName, version string) (*ServerInfoResult, error) {
	dir := p.service.opts.OutputDir

	var files []FileInfo
	if cached := p.cache.Get(dir); cached != nil {
		files = cached.files
	} else {
		scanCtx, cancel := context.WithTimeout(ctx, p.timeLimit)
		defer cancel()

		res, err := p.service.search.ListSigned(scanCtx, ListSignedRequest{Directory: dir, Limit: p.listLimit})
		switch {
		case err == nil:
			files = res.Files
			p.cache.Set(dir, files)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			// A missing output directory just means nothing was exported yet
			files = []FileInfo{}
		}
	}

	return &ServerInfoResult{
		ServerName:         serverName,
		Version:            version,
		WorkDirectory:      p.service.opts.WorkDir,
		SignatureDirectory: p.service.opts.SignatureDir,
		OutputDirectory:    dir,
		MaxFileSize:        p.service.opts.MaxFileSize,
		AvailableTools:     p.getAvailableTools(),
		SignedFiles:        files,
		UsageGuidance:      p.getUsageGuidance(),
		SupportedFormats:   p.service.GetSupportedImageFormats(),
	}, nil
}

// getAvailableTools returns the list of available tools
func (p *ServerInfo) getAvailableTools() []ToolInfo {
	tools := make([]ToolInfo, len(descriptions.Tools))
	for i, t := range descriptions.Tools {
		tools[i] = ToolInfo{
			Name:        t.Name,
			Description: t.Summary,
			Usage:       t.Usage,
			Parameters:  t.Parameters,
		}
	}
	return tools
}

// getUsageGuidance returns comprehensive usage guidance
func (p *ServerInfo) getUsageGuidance() string {
	opts := p.service.opts
	maxFileSizeMB := opts.MaxFileSize / (1024 * 1024)

	return fmt.Sprintf(`PDF Signer MCP Server Usage Guide:

1. OPEN A DOCUMENT:
   - Use 'scan_load_images' for photographed or scanned pages
   - Use 'pdf_import' for an existing PDF (scale defaults to %.1f)
   - Opening a document replaces the current session

2. PICK A SIGNATURE:
   - Use 'signature_list' to see saved signatures, newest first
   - No signature yet? Use 'bg_start' with a photo of one, touch it up with
     'bg_stroke', then 'bg_save'

3. PLACE IT:
   - Use 'signature_add' with a page index and a signature id
   - Adjust with 'gesture_drag', 'gesture_pinch', 'gesture_resize' and
     'signature_rotate'; try moves first with 'gesture_preview'
   - Use 'session_pages' to see every placement

4. EXPORT:
   - Use 'pdf_export'; files are named Signed-<timestamp>.pdf and never overwrite
   - Use 'pdf_list_signed' and 'pdf_verify' to find and check exports

IMPORTANT NOTES:
- Page indices are zero-based
- Gesture translations are in viewport units; placements always stay on the page
- Signature width stays between %.0f%% and %.0f%% of the page width
- The server reads files up to %dMB
- Paths must be inside %s, %s or %s`,
		opts.ImportScale,
		limitOrDefault(opts.Limits.MinFrac, placement.DefaultMinFrac)*100, limitOrDefault(opts.Limits.MaxFrac, placement.DefaultMaxFrac)*100,
		maxFileSizeMB,
		opts.WorkDir, opts.SignatureDir, opts.OutputDir)
}

func limitOrDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// ClearCache clears expired cache entries
func (p *ServerInfo) ClearCache() {
	p.cache.Clear()
}

// GetCacheStats returns cache statistics
func (p *ServerInfo) GetCacheStats() map[string]interface{} {
	p.cache.mu.RLock()
	defer p.cache.mu.RUnlock()

	stats := make(map[string]interface{})
	stats["total_entries"] = len(p.cache.entries)

	validEntries := 0
	for _, entry := range p.cache.entries {
		if time.Since(entry.lastUpdate) <= p.cache.ttl {
			validEntries++
		}
	}

	stats["valid_entries"] = validEntries
	stats["cache_ttl_minutes"] = p.cache.ttl.Minutes()

	return stats
}
