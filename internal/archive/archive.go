// Package archive turns downloaded repository archives into canonical
// relative-path file maps and packages file subtrees back into
// reproducible zip archives.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

const (
	// MaxFileSize is the maximum uncompressed size of a single archive entry (100MB).
	MaxFileSize = 100 * 1024 * 1024

	// MaxTotalSize is the maximum uncompressed size of all archive entries (500MB).
	MaxTotalSize = 500 * 1024 * 1024

	// MaxFiles is the maximum number of file entries accepted in one archive.
	MaxFiles = 10000
)

// ArchiveError is returned when raw bytes cannot be read as a zip archive.
// Callers treat it as malformed content rather than a transient failure.
//
//nolint:revive // ArchiveError reads better at call sites than archive.Error
type ArchiveError struct {
	Err error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("invalid zip archive: %v", e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// IsArchiveError reports whether err is, or wraps, an ArchiveError.
func IsArchiveError(err error) bool {
	var archiveErr *ArchiveError
	return errors.As(err, &archiveErr)
}

// Files maps a canonical relative path to the file's bytes.
// Paths use forward slashes and never start with "/" or "./".
type Files map[string][]byte

// Paths returns the file paths in lexical order.
func (f Files) Paths() []string {
	paths := make([]string, 0, len(f))
	for p := range f {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Subtree returns the files below dir with dir stripped from their paths.
// An empty dir (or ".") returns a copy of every file.
func (f Files) Subtree(dir string) Files {
	dir = CleanDir(dir)
	out := make(Files)
	for p, data := range f {
		if dir == "" {
			out[p] = data
			continue
		}
		if rel, ok := strings.CutPrefix(p, dir+"/"); ok && rel != "" {
			out[rel] = data
		}
	}
	return out
}

// CleanDir normalizes a relative directory reference such as "./skills/",
// "/skills" or "." into the form used by Files ("skills" or "").
func CleanDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ""
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(dir, "\\", "/"))
	return strings.TrimPrefix(cleaned, "/")
}

// Normalize reads zip bytes and returns the contained files keyed by
// canonical relative path. Directory entries are dropped. When every entry
// sits under one shared top-level directory, as code-host zipballs do, that
// directory is stripped from every path.
func Normalize(data []byte) (Files, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ArchiveError{Err: err}
	}

	type entry struct {
		name string
		file *zip.File
	}

	entries := make([]entry, 0, len(reader.File))
	for _, zf := range reader.File {
		name, ok := canonicalEntryName(zf.Name)
		if !ok {
			continue
		}
		if zf.FileInfo().IsDir() || strings.HasSuffix(zf.Name, "/") {
			// Directory entries still count when deciding on a shared root.
			entries = append(entries, entry{name: name})
			continue
		}
		entries = append(entries, entry{name: name, file: zf})
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.name)
	}
	root := sharedRoot(names)

	files := make(Files)
	var total int64
	for _, e := range entries {
		if e.file == nil {
			continue
		}

		name := e.name
		if root != "" {
			name = strings.TrimPrefix(name, root+"/")
			if name == e.name || name == "" {
				continue
			}
		}

		if len(files) >= MaxFiles {
			return nil, &ArchiveError{Err: fmt.Errorf("archive contains more than %d files", MaxFiles)}
		}

		content, err := readEntry(e.file)
		if err != nil {
			return nil, &ArchiveError{Err: err}
		}

		total += int64(len(content))
		if total > MaxTotalSize {
			return nil, &ArchiveError{Err: fmt.Errorf("archive exceeds maximum size of %d bytes", MaxTotalSize)}
		}

		files[name] = content
	}

	return files, nil
}

// canonicalEntryName cleans an entry name and rejects names that escape the
// archive root.
func canonicalEntryName(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == "/" {
		return "", false
	}
	if strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", false
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	return cleaned, cleaned != ""
}

// sharedRoot returns the single top-level segment every entry lives under,
// or "" when entries sit at the root or under more than one segment.
func sharedRoot(names []string) string {
	root := ""
	nested := false
	for _, n := range names {
		first, _, hasChild := strings.Cut(n, "/")
		if root == "" {
			root = first
		}
		if first != root {
			return ""
		}
		nested = nested || hasChild
	}
	// A lone top-level file is content, not a wrapper directory.
	if !nested {
		return ""
	}
	return root
}

func readEntry(zf *zip.File) ([]byte, error) {
	if zf.UncompressedSize64 > MaxFileSize {
		return nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", zf.Name, MaxFileSize)
	}

	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", zf.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", zf.Name, err)
	}
	if len(content) > MaxFileSize {
		return nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", zf.Name, MaxFileSize)
	}
	return content, nil
}
