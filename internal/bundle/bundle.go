package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Shape records how a bundle was assembled.
type Shape string

const (
	// ShapeArchive is a bundle built from the ordered members of an archive.
	ShapeArchive Shape = "archive"
	// ShapeBlob is a bundle built from a single concatenated text blob.
	ShapeBlob Shape = "blob"
)

// Entry is one named piece of bundle content.
type Entry struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Bundle is the full set of content submitted for one analysis run.
type Bundle struct {
	Name    string
	Shape   Shape
	Entries []Entry
}

// Len returns the number of entries.
func (b Bundle) Len() int { return len(b.Entries) }

// Empty reports whether the bundle has no entries.
func (b Bundle) Empty() bool { return len(b.Entries) == 0 }

// zipMagic is the local file header signature that starts every zip archive.
var zipMagic = []byte("PK\x03\x04")

// emptyZipMagic is the end-of-central-directory signature of an empty archive.
var emptyZipMagic = []byte("PK\x05\x06")

// IsArchive reports whether data looks like a zip archive.
func IsArchive(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic) || bytes.HasPrefix(data, emptyZipMagic)
}

// Parse builds a bundle from raw uploaded bytes, choosing the archive shape
// when the zip signature is present and the blob shape otherwise.
func Parse(name string, data []byte) (Bundle, error) {
	if IsArchive(data) {
		return FromArchive(name, data)
	}
	return FromText(name, data), nil
}

// FromArchive reads every regular file of a zip archive in archive order.
// Directory members are skipped.
func FromArchive(name string, data []byte) (Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Bundle{}, fmt.Errorf("opening archive: %w", err)
	}

	b := Bundle{Name: name, Shape: ShapeArchive}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		content, err := readMember(f)
		if err != nil {
			return Bundle{}, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		b.Entries = append(b.Entries, Entry{Name: f.Name, Content: Decode(content)})
	}
	return b, nil
}

// FromText wraps a text blob as a single-entry bundle. A blob with no
// content yields an empty bundle.
func FromText(name string, data []byte) Bundle {
	b := Bundle{Name: name, Shape: ShapeBlob}
	if len(data) == 0 {
		return b
	}
	b.Entries = []Entry{{Name: name, Content: Decode(data)}}
	return b
}

// FromEntries builds an archive-shaped bundle from already decoded entries.
func FromEntries(name string, entries ...Entry) Bundle {
	return Bundle{Name: name, Shape: ShapeArchive, Entries: entries}
}

// Map returns a copy of b with fn applied to each entry's content.
func (b Bundle) Map(fn func(name, content string) string) Bundle {
	out := Bundle{Name: b.Name, Shape: b.Shape, Entries: make([]Entry, len(b.Entries))}
	for i, e := range b.Entries {
		out.Entries[i] = Entry{Name: e.Name, Content: fn(e.Name, e.Content)}
	}
	return out
}

// Decode converts bytes to a string as UTF-8, honouring a leading BOM and
// replacing invalid sequences with U+FFFD. It never fails.
func Decode(data []byte) string {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}

// maxMemberBytes caps how much of a single archive member is read.
const maxMemberBytes = 8 << 20

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxMemberBytes))
}
