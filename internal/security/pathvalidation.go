// Package security guards the file names the pipeline derives from region
// directories and manifest entries.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateName checks that name can be used as a single path element. kind
// names the thing being checked in the error ("region", "feature", ...).
func ValidateName(kind, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%s name is empty", kind)
	case name == "." || name == "..":
		return fmt.Errorf("%s name %q is not allowed", kind, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%s name %q must not be hidden", kind, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return fmt.Errorf("%s name %q contains a path separator", kind, name)
	}
	return nil
}

// JoinWithin joins elem onto dir and rejects results that escape dir. The
// check is lexical, so it works for in-memory trees as well as disk.
func JoinWithin(dir string, elem ...string) (string, error) {
	base := filepath.Clean(dir)
	joined := filepath.Join(append([]string{base}, elem...)...)

	rel, err := filepath.Rel(base, joined)
	if err != nil {
		return "", fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path traversal detected: %s attempts to escape %s", filepath.Join(elem...), dir)
	}
	return joined, nil
}

// SanitizeFilename makes a safe filename from an arbitrary column or region
// label. Runs of characters outside [A-Za-z0-9._-] become one underscore and
// the result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if ok {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
