package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SelectOptions controls which local files end up in a bundle.
type SelectOptions struct {
	Include []string
	Exclude []string
	// MaxFiles stops selection after this many files (0 = no limit).
	MaxFiles int
}

// maxFileBytes is the per-file size limit for local selection.
const maxFileBytes = 1 << 20 // 1MB

// FromDir walks root and returns an archive-shaped bundle of the text files
// matching the include/exclude filters, sorted by slash-separated path.
func FromDir(root string, opts SelectOptions) (Bundle, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if len(opts.Include) > 0 && !MatchesAny(rel, opts.Include) {
			return nil
		}
		if len(opts.Exclude) > 0 && MatchesAny(rel, opts.Exclude) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)

	b := Bundle{Name: filepath.Base(root), Shape: ShapeArchive}
	for _, rel := range files {
		if opts.MaxFiles > 0 && len(b.Entries) >= opts.MaxFiles {
			break
		}
		data, err := readLimited(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return Bundle{}, err
		}
		if IsBinary(data) {
			continue
		}
		b.Entries = append(b.Entries, Entry{Name: rel, Content: Decode(data)})
	}
	return b, nil
}

// IsBinary reports whether data is not some flavour of text.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return false
		}
	}
	return true
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
		}
	}
	return false
}

// WriteArchive writes b as a zip archive, one member per entry.
func WriteArchive(w io.Writer, b Bundle) error {
	zw := zip.NewWriter(w)
	for _, e := range b.Entries {
		fw, err := zw.Create(e.Name)
		if err != nil {
			return fmt.Errorf("adding %s: %w", e.Name, err)
		}
		if _, err := io.WriteString(fw, e.Content); err != nil {
			return fmt.Errorf("writing %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return nil
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxFileBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
