// SPDX-License-Identifier: MIT

// Package paths confines artifact paths to the output directory.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	playlistExt = []string{".m3u", ".m3u8"}
	guideExt    = []string{".xml", ".xml.gz"}
)

// PlaylistPath validates a playlist file name and returns its absolute
// path under dir.
func PlaylistPath(dir, name string) (string, error) {
	return resolve("playlist", dir, name, playlistExt)
}

// GuidePath validates a guide file name and returns its absolute path
// under dir.
func GuidePath(dir, name string) (string, error) {
	return resolve("guide", dir, name, guideExt)
}

// IsGzip reports whether an output path asks for gzip compression.
func IsGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

func resolve(kind, dir, name string, exts []string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", fmt.Errorf("%s output directory is empty", kind)
	}
	raw := strings.TrimSpace(name)
	if raw == "" {
		return "", fmt.Errorf("%s file name is empty", kind)
	}

	clean := filepath.Clean(raw)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%s file name must be relative: %s", kind, name)
	}
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%s file name escapes the output directory: %s", kind, name)
	}
	if !hasExt(clean, exts) {
		return "", fmt.Errorf("%s file name must end with one of %v: %s", kind, exts, name)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output directory: %w", err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}

	full := filepath.Join(resolvedRoot, clean)
	info, statErr := os.Stat(full)
	switch {
	case statErr == nil && info.IsDir():
		return "", fmt.Errorf("%s path points to a directory: %s", kind, name)
	case statErr == nil:
		resolved, err := filepath.EvalSymlinks(full)
		if err != nil {
			return "", fmt.Errorf("resolve %s path: %w", kind, err)
		}
		rel, err := filepath.Rel(resolvedRoot, resolved)
		if err != nil || !filepath.IsLocal(rel) {
			return "", fmt.Errorf("%s path escapes the output directory: %s", kind, name)
		}
	case !errors.Is(statErr, os.ErrNotExist):
		return "", fmt.Errorf("stat %s path: %w", kind, statErr)
	}
	return full, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) {
			return true
		}
	}
	return false
}
