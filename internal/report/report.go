package report

import (
	"bytes"
	"time"

	"github.com/nao1215/markdown"

	"github.com/dlyoglab/ipcheck/internal/analysis"
)

const (
	// Title heads every document.
	Title = "DLyog IP Checker Report"
	// Copyright closes every document.
	Copyright = "© DLyog Lab"
	// Disclaimer is printed above the copyright line.
	Disclaimer = "Disclaimer: this analysis is part of an AI experiment and may contain " +
		"inaccuracies. For professional advice on intellectual property, always " +
		"consult a qualified IP attorney."

	// Subject is used for reports built from a run outcome.
	Subject = "DLyog IP Check Report"
	// ErrorSubject is used for error reports.
	ErrorSubject = "DLyog IP Check – Error"

	// NothingToAnalyze is shown when the bundle produced no units.
	NothingToAnalyze = "Nothing to analyze: the bundle contained no analyzable content."
)

// Meta describes the run a report belongs to. Zero fields are omitted.
type Meta struct {
	RunID       string    `json:"runId,omitempty"`
	Source      string    `json:"source,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	GeneratedAt time.Time `json:"generatedAt,omitzero"`
}

// Failure is a fault captured outside the per-unit path.
type Failure struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	// Detail is diagnostic text such as a stack trace.
	Detail string `json:"detail,omitempty"`
}

// Document is a rendered report.
type Document struct {
	Subject  string            `json:"subject"`
	Meta     Meta              `json:"meta"`
	Outcome  *analysis.Outcome `json:"outcome,omitempty"`
	Failure  *Failure          `json:"failure,omitempty"`
	Markdown string            `json:"-"`
	HTML     string            `json:"-"`
}

// IsError reports whether d was built from a failure.
func (d Document) IsError() bool { return d.Failure != nil }

// Build renders the outcome of a run.
func Build(out analysis.Outcome, meta Meta) Document {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	writeHeader(md)
	writeMeta(md, meta, &out)
	writeStatus(md, out)

	var skipped []analysis.Entry
	for _, e := range out.Entries {
		if e.Result.Kind == analysis.KindSkipped {
			skipped = append(skipped, e)
			continue
		}
		writeEntry(md, e)
	}
	if len(skipped) > 0 {
		writeSkipped(md, skipped, out)
	}

	writeFooter(md)
	_ = md.Build()

	return finish(Document{Subject: Subject, Meta: meta, Outcome: &out}, buf.String())
}

// BuildError renders a captured failure inside the standard shell.
func BuildError(f Failure, meta Meta) Document {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	writeHeader(md)
	writeMeta(md, meta, nil)
	md.Cautionf("The IP check could not be completed. Stage: %s.", orDefault(f.Stage, "unknown"))
	md.PlainText("")
	md.H2("Error")
	md.PlainText("")
	md.PlainText(orDefault(f.Message, "unknown error"))
	md.PlainText("")
	if f.Detail != "" {
		literalBlock(md, f.Detail)
		md.PlainText("")
	}
	writeFooter(md)
	_ = md.Build()

	return finish(Document{Subject: ErrorSubject, Meta: meta, Failure: &f}, buf.String())
}

func finish(d Document, md string) Document {
	d.Markdown = md
	d.HTML = renderHTML(md)
	return d
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
