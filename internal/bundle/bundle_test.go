package bundle

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeZip(t *testing.T, members ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m[0])
		require.NoError(t, err)
		if m[1] != "" {
			_, err = w.Write([]byte(m[1]))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParse_Archive(t *testing.T) {
	data := makeZip(t,
		[2]string{"b.txt", "second"},
		[2]string{"dir/", ""},
		[2]string{"a.txt", "first"},
	)

	b, err := Parse("ip_bundle.zip", data)
	require.NoError(t, err)
	assert.Equal(t, ShapeArchive, b.Shape)
	require.Len(t, b.Entries, 2)
	assert.Equal(t, "b.txt", b.Entries[0].Name, "archive order is preserved")
	assert.Equal(t, "a.txt", b.Entries[1].Name)
	assert.Equal(t, "first", b.Entries[1].Content)
}

func TestParse_EmptyArchive(t *testing.T) {
	b, err := Parse("empty.zip", makeZip(t))
	require.NoError(t, err)
	assert.True(t, b.Empty())
	assert.Equal(t, ShapeArchive, b.Shape)
}

func TestParse_Blob(t *testing.T) {
	b, err := Parse("notes.txt", []byte("plain text"))
	require.NoError(t, err)
	assert.Equal(t, ShapeBlob, b.Shape)
	require.Len(t, b.Entries, 1)
	assert.Equal(t, "plain text", b.Entries[0].Content)
}

func TestParse_CorruptArchive(t *testing.T) {
	_, err := Parse("broken.zip", []byte("PK\x03\x04garbage"))
	assert.Error(t, err)
}

func TestFromText_Empty(t *testing.T) {
	assert.True(t, FromText("x", nil).Empty())
}

func TestDecode_Lossy(t *testing.T) {
	got := Decode([]byte{'o', 'k', 0xff, 0xfe, '!'})
	assert.Contains(t, got, "ok")
	assert.Contains(t, got, "!")
	assert.Contains(t, got, "�")
}

func TestDecode_StripsBOM(t *testing.T) {
	assert.Equal(t, "hi", Decode([]byte("\xef\xbb\xbfhi")))
}

func TestMap(t *testing.T) {
	b := FromEntries("x", Entry{Name: "a", Content: "1"})
	out := b.Map(func(name, content string) string { return name + content })
	assert.Equal(t, "a1", out.Entries[0].Content)
	assert.Equal(t, "1", b.Entries[0].Content, "original must not change")
}

func TestFromDir(t *testing.T) {
	root := t.TempDir()
	write := func(rel string, data []byte) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
	write("main.go", []byte("package main\n"))
	write("docs/readme.md", []byte("# hi\n"))
	write("vendor/lib/x.go", []byte("package lib\n"))
	write(".git/config", []byte("[core]\n"))
	write("logo.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))

	b, err := FromDir(root, SelectOptions{Exclude: []string{"vendor/**"}})
	require.NoError(t, err)

	var names []string
	for _, e := range b.Entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"docs/readme.md", "main.go"}, names)
}

func TestFromDir_MaxFiles(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, n), []byte(n), 0o644))
	}
	b, err := FromDir(root, SelectOptions{MaxFiles: 2})
	require.NoError(t, err)
	assert.Len(t, b.Entries, 2)
}

func TestWriteArchive_RoundTrip(t *testing.T) {
	in := FromEntries("x", Entry{Name: "a.txt", Content: "alpha"}, Entry{Name: "b/c.txt", Content: "gamma"})
	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, in))

	out, err := Parse("x", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, in.Entries, out.Entries)
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"main.go", []string{"*.go"}, true},
		{"pkg/main.go", []string{"**/*.go"}, true},
		{"vendor/a/b.go", []string{"vendor/**"}, true},
		{"src/app.py", []string{"*.go"}, false},
		{"config/.env", []string{"**/.env"}, true},
	}
	for _, tt := range tests {
		if got := MatchesAny(tt.path, tt.patterns); got != tt.want {
			t.Errorf("MatchesAny(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
}
