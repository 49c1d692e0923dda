// Package security validates file system paths supplied on the command line
// before the session writes journals, plots or reports to them.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonicalPath returns the absolute, symlink-resolved form of p. Paths that
// do not exist yet are resolved through their nearest existing ancestor, so
// /tmp/link/new.db is caught when link points elsewhere.
func canonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir,
// following symlinks on both sides.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	target, err := canonicalPath(filePath)
	if err != nil {
		return err
	}
	absDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}
	dir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}
	return nil
}

// ValidatePathWithinAllowedDirs checks if a file path is within any of the allowed directories.
func ValidatePathWithinAllowedDirs(filePath string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	for _, dir := range allowedDirs {
		if err := ValidatePathWithinDirectory(filePath, dir); err == nil {
			return nil
		}
	}
	return fmt.Errorf("path must be within one of the allowed directories: %v", allowedDirs)
}

// OutputDirs returns the directories session output may be written to: the
// temp directory and the working directory.
func OutputDirs() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return []string{os.TempDir(), cwd}, nil
}

// ValidateOutputFile checks that path lies within OutputDirs and, when
// extensions are given, that it carries one of them.
func ValidateOutputFile(path string, extensions ...string) error {
	if len(extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		ok := false
		for _, e := range extensions {
			if ext == e {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("output file %q must have one of the extensions %v", path, extensions)
		}
	}
	dirs, err := OutputDirs()
	if err != nil {
		return err
	}
	return ValidatePathWithinAllowedDirs(path, dirs)
}

// PrepareOutputDir validates dir against OutputDirs and creates it.
func PrepareOutputDir(dir string) error {
	dirs, err := OutputDirs()
	if err != nil {
		return err
	}
	if err := ValidatePathWithinAllowedDirs(dir, dirs); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// SanitizeFilename makes a safe file name from an arbitrary identifier.
// Characters other than ASCII letters, digits, dot, underscore and dash
// collapse to a single underscore, and the result is capped at 128 bytes.
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
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
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
