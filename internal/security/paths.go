// Package security guards the file paths the CLI writes artifacts to.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxFilenameLen bounds names derived from user input.
const maxFilenameLen = 128

// WithinDir reports an error when path resolves outside dir. Symlinks in
// dir, and in whichever ancestors of path already exist, are resolved
// first, so a link pointing elsewhere cannot be used to escape.
func WithinDir(path, dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	canonDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("resolve directory symlinks: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	canonPath := canonicalise(absPath)

	rel, err := filepath.Rel(canonDir, canonPath)
	if err != nil {
		return fmt.Errorf("path %s is outside %s: %w", path, dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}

// canonicalise resolves symlinks in the longest existing prefix of p.
func canonicalise(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	for parent := filepath.Dir(p); ; parent = filepath.Dir(parent) {
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, p)
			return filepath.Join(resolved, rel)
		}
		if filepath.Dir(parent) == parent {
			return p
		}
	}
}

// SanitizeFilename keeps ASCII letters, digits, dot, underscore and dash,
// collapsing every other run of characters into one underscore.
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// ArtifactPath builds dir/<sanitised stem>.<ext> and checks it stays in dir.
func ArtifactPath(dir, stem, ext string) (string, error) {
	p := filepath.Join(dir, SanitizeFilename(stem)+"."+strings.TrimPrefix(ext, "."))
	if err := WithinDir(p, dir); err != nil {
		return "", err
	}
	return p, nil
}
