package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dlyoglab/ipcheck/internal/report"
)

// ErrNoRecipient is returned when a message has nowhere to go.
var ErrNoRecipient = errors.New("no recipient configured")

// Message is one report addressed to its recipients.
type Message struct {
	To       []string
	Subject  string
	Document report.Document
}

// Deliverer sends a message.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// Func adapts a function to Deliverer.
type Func func(ctx context.Context, msg Message) error

func (f Func) Deliver(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Writer renders messages to an io.Writer in the given report format.
type Writer struct {
	W      io.Writer
	Format string
}

func (d Writer) Deliver(_ context.Context, msg Message) error {
	w, err := report.GetWriter(d.Format)
	if err != nil {
		return err
	}
	return w.Write(d.W, msg.Document)
}

// File writes each message to Path, or to a file named after the run inside
// Dir when Path is empty. Error reports never replace Path; they are written
// next to it under their run name.
type File struct {
	Path   string
	Dir    string
	Format string
}

func (d File) Deliver(_ context.Context, msg Message) error {
	path := d.Path
	switch {
	case path == "":
		path = filepath.Join(d.Dir, fileName(msg.Document)+report.Extension(d.Format))
	case msg.Document.IsError():
		path = filepath.Join(filepath.Dir(path), fileName(msg.Document)+report.Extension(d.Format))
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	return report.WriteReport(msg.Document, d.Format, path)
}

func fileName(doc report.Document) string {
	name := "ipcheck-report"
	if doc.IsError() {
		name = "ipcheck-error"
	}
	if doc.Meta.RunID != "" {
		name += "-" + doc.Meta.RunID
	}
	return strings.ReplaceAll(name, string(filepath.Separator), "_")
}

// Multi delivers to every deliverer in order. When any fail it returns a
// *MultiError naming them.
type Multi []Deliverer

func (m Multi) Deliver(ctx context.Context, msg Message) error {
	var merr MultiError
	for _, d := range m {
		if err := d.Deliver(ctx, msg); err != nil {
			merr.Failed = append(merr.Failed, d)
			merr.Errs = append(merr.Errs, err)
		}
	}
	if len(merr.Errs) == 0 {
		return nil
	}
	return &merr
}

// MultiError holds the deliverers of a Multi that did not accept a message.
type MultiError struct {
	Failed Multi
	Errs   []error
}

func (e *MultiError) Error() string   { return errors.Join(e.Errs...).Error() }
func (e *MultiError) Unwrap() []error { return e.Errs }
