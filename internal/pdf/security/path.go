// Package security confines file access to the directories the server was
// configured with.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator provides security validation for file paths. A path is
// allowed when it lies within any of the configured roots.
type PathValidator struct {
	roots []string
}

// NewPathValidator creates a validator for the given roots. The first root
// is the default directory.
func NewPathValidator(roots ...string) (*PathValidator, error) {
	var clean []string
	for _, r := range roots {
		if r == "" {
			continue
		}
		clean = append(clean, r)
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	// Roots may not exist yet; they are created on first write
	return &PathValidator{roots: clean}, nil
}

// ValidatePath checks if a path is within one of the configured roots
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a null byte")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	isWithin, err := v.IsPathWithinDirectory(absPath)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	if !isWithin {
		return fmt.Errorf("path is outside configured directories: %s", path)
	}

	return nil
}

// IsPathWithinDirectory checks if a path is within one of the configured roots
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	for _, root := range v.roots {
		ok, err := within(path, root)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func within(path, root string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	// Clean paths to remove any .. or . segments
	cleanPath := filepath.Clean(absPath)
	cleanDir := filepath.Clean(absRoot)

	realPath := resolveExisting(cleanPath)

	realDir := resolveExisting(cleanDir)

	return hasDirPrefix(realPath, realDir) || hasDirPrefix(realPath, cleanDir), nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of path,
// so a file about to be created under a symlinked directory resolves the
// same way as its parent
func resolveExisting(path string) string {
	rest := ""
	cur := path
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			if rest == "" {
				return resolved
			}
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

func hasDirPrefix(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}

// GetConfiguredDirectory returns the default directory
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.roots[0]
}

// Roots returns every configured root
func (v *PathValidator) Roots() []string {
	return append([]string(nil), v.roots...)
}

// NormalizePath returns an absolute path within the configured roots.
// Relative paths are taken relative to the default directory.
func (v *PathValidator) NormalizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.roots[0], path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if err := v.ValidatePath(absPath); err != nil {
		return "", err
	}

	return absPath, nil
}

// ValidateDirectory checks if a directory path is within the configured roots
func (v *PathValidator) ValidateDirectory(dirPath string) error {
	if err := v.ValidatePath(dirPath); err != nil {
		return err
	}

	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Directory doesn't exist yet, which is okay
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dirPath)
	}

	return nil
}

// SanitizePath strips null bytes and normalizes the path
func (v *PathValidator) SanitizePath(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	return v.NormalizePath(path)
}
