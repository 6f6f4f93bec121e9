package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// System directories that are never eligible for cleanup regardless of the
// configured roots. Intermediate file paths come from stored session state,
// so deletion is gated even when that state claims a system path.
var forbiddenPrefixes = []string{
	"/etc",
	"/usr",
	"/bin",
	"/sbin",
	"/lib",
	"/boot",
	"/dev",
	"/proc",
	"/sys",
}

// SafeToDelete reports whether path may be removed. The path must be
// absolute, outside all system directories, and inside one of the allowed
// roots.
func SafeToDelete(path string, allowedRoots []string) bool {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	if cleaned == "" || cleaned == "." || cleaned == "/" {
		return false
	}
	if !filepath.IsAbs(cleaned) {
		return false
	}
	lower := strings.ToLower(cleaned)
	// Windows system paths show up in state written on other platforms.
	if strings.Contains(lower, `c:\windows`) || strings.Contains(lower, "c:/windows") {
		return false
	}
	for _, prefix := range forbiddenPrefixes {
		if cleaned == prefix || strings.HasPrefix(cleaned, prefix+string(filepath.Separator)) {
			return false
		}
	}
	for _, root := range allowedRoots {
		root = filepath.Clean(strings.TrimSpace(root))
		if root == "" || root == "/" {
			continue
		}
		if cleaned == root || strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// RemoveFiles deletes the given paths, applying the safety gate to each.
// Missing files count as removed; unsafe paths are refused and reported.
// The returned error slice holds one entry per failed or refused path.
func RemoveFiles(paths []string, allowedRoots []string) (removed int, errs []error) {
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if !SafeToDelete(path, allowedRoots) {
			errs = append(errs, &UnsafePathError{Path: path})
			continue
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				removed++
				continue
			}
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}

// CleanupPattern removes files under dir matching the glob pattern,
// subject to the same safety gate as RemoveFiles. Subdirectories are not
// descended into and directory matches are skipped.
func CleanupPattern(dir, pattern string, allowedRoots []string) (removed int, errs []error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, []error{err}
	}
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		if info.IsDir() {
			continue
		}
		count, removeErrs := RemoveFiles([]string{match}, allowedRoots)
		removed += count
		errs = append(errs, removeErrs...)
	}
	return removed, errs
}

// UnsafePathError marks a deletion refused by the safety gate.
type UnsafePathError struct {
	Path string
}

func (e *UnsafePathError) Error() string {
	return "refusing to delete path outside allowed roots: " + e.Path
}
