// Package security confines the files the filler reads and writes to a
// configured directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator resolves input PDFs and output files inside a root directory
type PathValidator struct {
	root string
}

// NewPathValidator creates a new path validator for the given directory. The
// directory does not have to exist yet.
func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute configured directory
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve returns the absolute form of path, relative paths being taken from
// the root, and fails when it escapes the root
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if !v.Contains(abs) {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}
	return abs, nil
}

// Contains reports whether path lies inside the root, both lexically and
// after resolving symlinks
func (v *PathValidator) Contains(path string) bool {
	clean := filepath.Clean(path)

	realRoot := v.root
	if resolved, err := filepath.EvalSymlinks(v.root); err == nil {
		realRoot = resolved
	}

	if !within(clean, v.root) && !within(clean, realRoot) {
		return false
	}

	// A symlink inside the root may still point elsewhere
	real := clean
	if resolved, err := filepath.EvalSymlinks(clean); err == nil {
		real = resolved
	} else if resolvedDir, err := filepath.EvalSymlinks(filepath.Dir(clean)); err == nil {
		real = filepath.Join(resolvedDir, filepath.Base(clean))
	}
	return within(real, v.root) || within(real, realRoot)
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// ResolveInput resolves path and checks that it names an existing, non-empty
// .pdf file no larger than maxSize bytes (no limit when maxSize <= 0)
func (v *PathValidator) ResolveInput(path string, maxSize int64) (string, error) {
	abs, err := v.Resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if !strings.EqualFold(filepath.Ext(abs), ".pdf") {
		return "", fmt.Errorf("file is not a PDF: %s", path)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("file is empty: %s", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return "", fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), maxSize)
	}

	return abs, nil
}

// ResolveOutputDir resolves dir and checks that it is a directory if it exists
func (v *PathValidator) ResolveOutputDir(dir string) (string, error) {
	if dir == "" {
		return v.root, nil
	}
	abs, err := v.Resolve(dir)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", dir)
	}
	return abs, nil
}

// OutputFile returns the path for writing name into dir. Only the base name
// of name is used and a .pdf extension is added when missing.
func (v *PathValidator) OutputFile(dir, name string) (string, error) {
	resolvedDir, err := v.ResolveOutputDir(dir)
	if err != nil {
		return "", err
	}

	base := filepath.Base(strings.ReplaceAll(name, "\x00", ""))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("invalid output file name: %q", name)
	}
	if !strings.EqualFold(filepath.Ext(base), ".pdf") {
		base += ".pdf"
	}

	return v.Resolve(filepath.Join(resolvedDir, base))
}
