// Package security guards the paths geko writes to.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a path would leave its root directory.
var ErrPathTraversal = errors.New("path escapes output directory")

// ResolveOutputPath joins name onto root after checking, without touching
// the filesystem, that the result stays inside root. name must be relative.
func ResolveOutputPath(root, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty output name")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s is absolute", ErrPathTraversal, name)
	}
	clean := filepath.Clean(name)
	if escapes(clean) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, name)
	}
	return filepath.Join(root, clean), nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel)
}

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir
// on disk. Symlinks are resolved for both; for a path that does not exist
// yet, the nearest existing parent is resolved instead so a link in the
// parent chain cannot redirect the write.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}
	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalSafeDir, canonicalize(absPath))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPathTraversal, err)
	}
	if escapes(rel) {
		return fmt.Errorf("%w: %s attempts to escape %s", ErrPathTraversal, filePath, safeDir)
	}
	return nil
}

// canonicalize resolves symlinks in abs, or in its deepest existing parent.
func canonicalize(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rel)
		}
		if filepath.Dir(dir) == dir {
			return abs
		}
	}
}

// SanitizeFilename makes a safe file name from an arbitrary string such as a
// checkpoint title. Characters other than ASCII letters, digits, dot,
// underscore and dash become a single underscore; the result is capped at
// 128 bytes and never empty.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
