package security

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestNewPathValidator(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name      string
		roots     []string
		wantError bool
	}{
		{name: "valid directory", roots: []string{tempDir}},
		{name: "empty directory", roots: []string{""}, wantError: true},
		{name: "no roots", wantError: true},
		{name: "non-existent directory", roots: []string{"/non/existent/path"}},
		{name: "empty roots are skipped", roots: []string{"", tempDir}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, err := NewPathValidator(tt.roots...)
			if tt.wantError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if validator.GetConfiguredDirectory() == "" {
				t.Error("Expected a default directory")
			}
		})
	}
}

func TestPathValidator_ValidatePath(t *testing.T) {
	work := t.TempDir()
	signatures := t.TempDir()
	outside := t.TempDir()

	subDir := filepath.Join(work, "Signed")
	if err := os.Mkdir(subDir, 0o755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}

	validator, err := NewPathValidator(work, signatures)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{name: "root itself", path: work},
		{name: "file in root", path: filepath.Join(work, "scan.png")},
		{name: "file in subdirectory", path: filepath.Join(subDir, "Signed-2025-06-01T09-30-00.pdf")},
		{name: "file in second root", path: filepath.Join(signatures, "sign_a.png")},
		{name: "file outside", path: filepath.Join(outside, "x.pdf"), wantError: true},
		{name: "traversal", path: filepath.Join(work, "..", filepath.Base(outside), "x.pdf"), wantError: true},
		{name: "sibling with common prefix", path: work + "-other/x.pdf", wantError: true},
		{name: "empty path", path: "", wantError: true},
		{name: "null byte", path: filepath.Join(work, "a\x00.pdf"), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidatePath(tt.path)
			if tt.wantError && err == nil {
				t.Errorf("Expected error for %q but got none", tt.path)
			}
			if !tt.wantError && err != nil {
				t.Errorf("Unexpected error for %q: %v", tt.path, err)
			}
		})
	}
}

func TestPathValidator_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	work := t.TempDir()
	outside := t.TempDir()

	validator, err := NewPathValidator(work)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	escape := filepath.Join(work, "escape")
	if err := os.Symlink(outside, escape); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	if err := validator.ValidatePath(filepath.Join(escape, "new.pdf")); err == nil {
		t.Error("Expected a path through a symlink pointing outside to be rejected")
	}

	linkedRoot := filepath.Join(outside, "work-link")
	if err := os.Symlink(work, linkedRoot); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	viaLink, err := NewPathValidator(linkedRoot)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	if err := viaLink.ValidatePath(filepath.Join(work, "a.pdf")); err != nil {
		t.Errorf("Expected the real path of a symlinked root to be accepted: %v", err)
	}
}

func TestPathValidator_NormalizePath(t *testing.T) {
	work := t.TempDir()
	validator, err := NewPathValidator(work)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	got, err := validator.NormalizePath("Signed/out.pdf")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := filepath.Join(work, "Signed", "out.pdf"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	if _, err := validator.NormalizePath("../escape.pdf"); err == nil {
		t.Error("Expected relative traversal to be rejected")
	}
	if _, err := validator.NormalizePath(""); err == nil {
		t.Error("Expected empty path to be rejected")
	}

	sanitized, err := validator.SanitizePath("out\x00.pdf")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := filepath.Join(work, "out.pdf"); sanitized != want {
		t.Errorf("Expected %s, got %s", want, sanitized)
	}
}

func TestPathValidator_ValidateDirectory(t *testing.T) {
	work := t.TempDir()
	validator, err := NewPathValidator(work)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	file := filepath.Join(work, "file.pdf")
	if err := os.WriteFile(file, []byte("%PDF-"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	if err := validator.ValidateDirectory(work); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := validator.ValidateDirectory(filepath.Join(work, "later")); err != nil {
		t.Errorf("Expected a missing directory to be allowed: %v", err)
	}
	if err := validator.ValidateDirectory(file); err == nil {
		t.Error("Expected a file to be rejected")
	}
	if err := validator.ValidateDirectory(filepath.Dir(work)); err == nil {
		t.Error("Expected the parent directory to be rejected")
	}

	roots := validator.Roots()
	roots[0] = "changed"
	if validator.GetConfiguredDirectory() != work {
		t.Error("Roots must return a copy")
	}
}
