// Package output persists produced documents: collision-resistant names,
// atomic writes and exclusion from device backups.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPrefix is the file name prefix of exported documents
	DefaultPrefix = "Signed"

	timestampLayout = "2006-01-02T15-04-05"
	maxCollisions   = 8
)

// Name returns "<prefix>-<UTC timestamp>.pdf" with no characters that are
// reserved on common file systems
func Name(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s-%s.pdf", prefix, t.UTC().Format(timestampLayout))
}

// WriteAtomic writes data to dir/name through a hidden temporary file in the
// same directory, so readers never observe a partial file. When the name is
// taken a short random suffix is added before the extension. The written
// path is returned.
func WriteAtomic(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := writeTemp(dir, name, data)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	// Link fails when the name is taken, so an existing file is never replaced
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for i := 0; ; i++ {
		err := os.Link(tmp, candidate)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("move %s into place: %w", filepath.Base(candidate), err)
		}
		if i == maxCollisions {
			return "", fmt.Errorf("no free file name for %s in %s", name, dir)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%s%s", base, shortID(), ext))
	}

	if err := syncDir(dir); err != nil {
		log.Printf("[OUTPUT] sync %s: %v", dir, err)
	}
	if err := ExcludeFromBackup(candidate); err != nil {
		log.Printf("[OUTPUT] exclude %s from backup: %v", candidate, err)
	}
	return candidate, nil
}

// ReplaceAtomic writes data to path through a temporary file, replacing any
// existing file
func ReplaceAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := writeTemp(dir, filepath.Base(path), data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move %s into place: %w", filepath.Base(path), err)
	}
	if err := ExcludeFromBackup(path); err != nil {
		log.Printf("[OUTPUT] exclude %s from backup: %v", path, err)
	}
	return nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temporary file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write temporary file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("sync temporary file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close temporary file: %w", err)
	}
	return tmp, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
