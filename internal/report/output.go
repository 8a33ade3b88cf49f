package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Writer writes a document in a specific format.
type Writer interface {
	Write(w io.Writer, doc Document) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return MarkdownWriter{}, nil
	case "html":
		return HTMLWriter{}, nil
	case "json":
		return JSONWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Extension returns the file extension for format, including the dot.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "html":
		return ".html"
	case "json":
		return ".json"
	default:
		return ".md"
	}
}

// WriteReport writes doc to outPath, or to stdout when outPath is empty.
func WriteReport(doc Document, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writer.Write(w, doc)
}

// MarkdownWriter writes the Markdown rendering.
type MarkdownWriter struct{}

func (MarkdownWriter) Write(w io.Writer, doc Document) error {
	_, err := io.WriteString(w, doc.Markdown)
	return err
}

// HTMLWriter writes the HTML rendering.
type HTMLWriter struct{}

func (HTMLWriter) Write(w io.Writer, doc Document) error {
	_, err := io.WriteString(w, doc.HTML)
	return err
}

// JSONWriter writes the document's structured content.
type JSONWriter struct{}

func (JSONWriter) Write(w io.Writer, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
