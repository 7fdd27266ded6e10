// Package signature manages the directory of saved signature images that
// the placement palette is built from.
package signature

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/output"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
)

const (
	filePrefix = "sign_"
	fileExt    = ".png"
)

// Entry is one saved signature
type Entry struct {
	Asset   *placement.Asset `json:"asset"`
	ModTime time.Time        `json:"modified"`
	Bytes   int64            `json:"bytes"`
	Width   int              `json:"width"`
	Height  int              `json:"height"`
}

// ChangeKind says what changed in the store
type ChangeKind int

const (
	Saved ChangeKind = iota
	Deleted
	Reloaded
)

func (k ChangeKind) String() string {
	switch k {
	case Saved:
		return "saved"
	case Deleted:
		return "deleted"
	case Reloaded:
		return "reloaded"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is broadcast to subscribers after the store changed
type Change struct {
	Kind ChangeKind
	IDs  []string
}

// Store lists the PNG files of one directory, newest first. Entries keep
// their *placement.Asset across reloads as long as the file is unchanged, so
// placements referring to an asset stay valid.
type Store struct {
	dir string

	// opMu serializes Reload, Save and Delete so a listing scanned before a
	// Save or Delete is never swapped in after it
	opMu sync.Mutex

	mu      sync.RWMutex
	entries []Entry

	obsMu     sync.Mutex
	observers map[int]func(Change)
	nextObs   int
}

// NewStore opens the store rooted at dir, creating the directory if needed.
// Call Reload to populate it.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "signature directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "create signature directory", err).WithFile(dir)
	}
	return &Store{dir: dir, observers: make(map[int]func(Change))}, nil
}

// Dir returns the directory backing the store
func (s *Store) Dir() string { return s.dir }

// Reload re-reads the directory into a fresh listing and swaps it in. Files
// that fail to decode are logged and skipped.
func (s *Store) Reload(ctx context.Context) error {
	entries, err := s.swapIn(ctx)
	if err != nil {
		return err
	}
	s.notify(Change{Kind: Reloaded, IDs: ids(entries)})
	return nil
}

func (s *Store) swapIn(ctx context.Context) ([]Entry, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	known := make(map[string]Entry, len(s.entries))
	for _, e := range s.entries {
		known[e.Asset.ID] = e
	}
	s.mu.RUnlock()

	entries, err := s.scan(ctx, known)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return entries, nil
}

// ReloadAsync runs Reload in its own goroutine. The channel receives the
// result and is closed.
func (s *Store) ReloadAsync(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- s.Reload(ctx)
	}()
	return ch
}

func (s *Store) scan(ctx context.Context, known map[string]Entry) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeDecodeFailure, "read signature directory", err).WithFile(s.dir)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), fileExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			log.Printf("[SIGNATURES] stat %s: %v", name, err)
			continue
		}

		id := strings.TrimSuffix(name, filepath.Ext(name))
		if prev, ok := known[id]; ok && prev.ModTime.Equal(info.ModTime()) && prev.Bytes == info.Size() {
			entries = append(entries, prev)
			continue
		}

		path := filepath.Join(s.dir, name)
		img, err := decodePNG(path)
		if err != nil {
			log.Printf("[SIGNATURES] skipping %s: %v", name, err)
			continue
		}
		entries = append(entries, newEntry(id, path, img, info))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].ModTime.After(entries[j].ModTime)
		}
		return entries[i].Asset.ID < entries[j].Asset.ID
	})
	return entries, nil
}

func newEntry(id, path string, img image.Image, info os.FileInfo) Entry {
	b := img.Bounds()
	return Entry{
		Asset:   &placement.Asset{ID: id, Path: path, Image: img},
		ModTime: info.ModTime(),
		Bytes:   info.Size(),
		Width:   b.Dx(),
		Height:  b.Dy(),
	}
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeDecodeFailure, "decode signature", err).WithFile(path)
	}
	if img.Bounds().Empty() {
		return nil, errors.New(errors.ErrorTypeDecodeFailure, "signature image is empty").WithFile(path)
	}
	return img, nil
}

// List returns the entries, newest first
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the asset with the given id
func (s *Store) Get(id string) (*placement.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.Asset.ID == id {
			return e.Asset, true
		}
	}
	return nil, false
}

// Save encodes img as PNG, writes it atomically under a fresh name and adds
// it to the front of the listing
func (s *Store) Save(img image.Image) (*placement.Asset, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New(errors.ErrorTypeEmptyInput, "signature image is empty")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "encode signature", err)
	}

	entry, err := s.insert(img, buf.Bytes())
	if err != nil {
		return nil, err
	}
	id := entry.Asset.ID

	log.Printf("[SIGNATURES] saved %s (%dx%d)", id, entry.Width, entry.Height)
	s.notify(Change{Kind: Saved, IDs: []string{id}})
	return entry.Asset, nil
}

func (s *Store) insert(img image.Image, data []byte) (Entry, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	id := filePrefix + uuid.NewString()
	path := filepath.Join(s.dir, id+fileExt)
	if err := output.ReplaceAtomic(path, data); err != nil {
		return Entry{}, errors.Wrap(errors.ErrorTypeWriteFailure, "save signature", err).WithFile(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, errors.Wrap(errors.ErrorTypeWriteFailure, "stat saved signature", err).WithFile(path)
	}

	entry := newEntry(id, path, img, info)
	s.mu.Lock()
	s.entries = append([]Entry{entry}, s.entries...)
	s.mu.Unlock()
	return entry, nil
}

// Delete removes the files of the given signatures, then their entries. A
// file that cannot be removed is logged and its entry pruned anyway. Unknown
// ids are reported as NotFound errors.
func (s *Store) Delete(idList ...string) error {
	if len(idList) == 0 {
		return nil
	}
	missing := errors.NewErrorCollection(s.dir)

	s.opMu.Lock()
	s.mu.Lock()
	want := make(map[string]bool, len(idList))
	for _, id := range idList {
		want[id] = true
	}
	kept := s.entries[:0:0]
	var removed []string
	for _, e := range s.entries {
		if !want[e.Asset.ID] {
			kept = append(kept, e)
			continue
		}
		if err := os.Remove(e.Asset.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("[SIGNATURES] remove %s: %v", e.Asset.Path, err)
		}
		removed = append(removed, e.Asset.ID)
		delete(want, e.Asset.ID)
	}
	s.entries = kept
	s.mu.Unlock()
	s.opMu.Unlock()

	for _, id := range idList {
		if want[id] {
			missing.Add(errors.Newf(errors.ErrorTypeNotFound, "signature %s not found", id))
			delete(want, id)
		}
	}

	if len(removed) > 0 {
		s.notify(Change{Kind: Deleted, IDs: removed})
	}
	return missing.Err()
}

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify(c Change) {
	s.obsMu.Lock()
	fns := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Asset.ID
	}
	return out
}
