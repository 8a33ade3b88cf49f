package report

import (
	"fmt"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/dlyoglab/ipcheck/internal/analysis"
)

func writeHeader(md *markdown.Markdown) {
	md.H1(Title)
	md.PlainText("")
}

func writeMeta(md *markdown.Markdown, meta Meta, out *analysis.Outcome) {
	var rows [][]string
	if meta.RunID != "" {
		rows = append(rows, []string{"Run", "`" + meta.RunID + "`"})
	}
	if meta.Source != "" {
		rows = append(rows, []string{"Bundle", "`" + meta.Source + "`"})
	}
	if meta.Provider != "" {
		analyzer := meta.Provider
		if meta.Model != "" {
			analyzer += " / " + meta.Model
		}
		rows = append(rows, []string{"Analyzer", analyzer})
	}
	if !meta.GeneratedAt.IsZero() {
		rows = append(rows, []string{"Generated", meta.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST")})
	}
	if out != nil {
		rows = append(rows, []string{"Units analyzed", fmt.Sprintf("%d of %d", out.Processed(), out.TotalUnits)})
	}
	if len(rows) == 0 {
		return
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeStatus(md *markdown.Markdown, out analysis.Outcome) {
	counts := out.Counts()
	switch {
	case len(out.Entries) == 0:
		md.Note(NothingToAnalyze)
	case out.TruncatedForTime && out.Processed() == 0:
		md.Warningf("The time budget was exhausted before any unit could be analyzed. %d unit(s) were not checked.", out.TotalUnits)
	case out.TruncatedForTime:
		md.Warningf("Partial report: the time budget ran out after %d of %d unit(s).", out.Processed(), out.TotalUnits)
	case counts[analysis.KindFailed] > 0:
		md.Importantf("%d unit(s) could not be analyzed. Their errors are listed below.", counts[analysis.KindFailed])
	default:
		md.Tip("All units were analyzed.")
	}
	md.PlainText("")
}

func writeEntry(md *markdown.Markdown, e analysis.Entry) {
	md.H2(e.Unit.Label)
	md.PlainText("")
	if e.Unit.Truncated {
		md.PlainText("_Content was truncated to the unit size limit before analysis._")
		md.PlainText("")
	}

	switch e.Result.Kind {
	case analysis.KindParsed:
		writeFindings(md, e.Result.Findings)
	case analysis.KindRaw:
		md.PlainText("The analysis service returned unstructured output:")
		md.PlainText("")
		literalBlock(md, e.Result.Text)
	case analysis.KindFailed:
		md.PlainTextf("**Error analysing %s:** %s", e.Unit.Label, inline(e.Result.Reason))
	}
	md.PlainText("")
}

func writeFindings(md *markdown.Markdown, f *analysis.Findings) {
	if f == nil || (f.Summary == nil && len(f.Validation) == 0 && f.Verdict == nil) {
		md.PlainText("_No findings were returned for this unit._")
		return
	}
	if f.Summary != nil {
		md.PlainTextf("**Summary:** %s", inline(f.Summary.String()))
		md.PlainText("")
	}
	if len(f.Validation) > 0 {
		md.PlainText("**Validation:**")
		md.PlainText("")
		md.PlainText(validationList(f.Validation))
		md.PlainText("")
	}
	if f.Verdict != nil {
		md.PlainTextf("**Verdict:** %s", inline(f.Verdict.String()))
	}
}

// validationList renders items as a bulleted list with nested children
// indented one level.
func validationList(items analysis.Validation) string {
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		writeItem(&sb, "", it)
		for _, child := range it.Children {
			sb.WriteByte('\n')
			writeItem(&sb, "  ", child)
		}
	}
	return sb.String()
}

func writeItem(sb *strings.Builder, indent string, it analysis.ValidationItem) {
	sb.WriteString(indent)
	sb.WriteString("- **")
	sb.WriteString(it.Key)
	sb.WriteString(":**")
	if it.Value != "" {
		sb.WriteByte(' ')
		sb.WriteString(inline(it.Value))
	}
}

// inline keeps upstream text on one line so it cannot open a new block.
func inline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func writeSkipped(md *markdown.Markdown, skipped []analysis.Entry, out analysis.Outcome) {
	md.H2("Skipped")
	md.PlainText("")
	for _, e := range skipped {
		md.PlainTextf("**%s:** %s", e.Unit.Label, inline(e.Result.Reason))
		md.PlainText("")
	}
	if rest := out.TotalUnits - len(out.Entries); rest > 0 {
		md.PlainTextf("%d further unit(s) were not attempted.", rest)
		md.PlainText("")
	}
}

func writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*%s*", Disclaimer)
	md.PlainText("")
	md.PlainText(Copyright)
}

// literalBlock writes text verbatim inside a fenced block whose fence is
// longer than any backtick run in text.
func literalBlock(md *markdown.Markdown, text string) {
	if !strings.Contains(text, "```") {
		md.CodeBlocks(markdown.SyntaxHighlight("text"), text)
		return
	}
	fence := strings.Repeat("`", longestBacktickRun(text)+1)
	md.PlainText(fence + "text\n" + text + "\n" + fence)
}

func longestBacktickRun(s string) int {
	best, cur := 0, 0
	for _, r := range s {
		if r == '`' {
			cur++
			best = max(best, cur)
			continue
		}
		cur = 0
	}
	return best
}
