// Package report renders a run outcome, or a captured failure, into a
// single document for delivery.
//
// Every document shares the same shell: the report title at the top and a
// footer carrying the disclaimer and copyright line. Markdown is produced
// with github.com/nao1215/markdown and converted to the HTML email body
// with goldmark. Raw HTML in analyzer output is not passed through.
//
// Output writers mirror the CLI's --format flag: markdown, html and json.
package report
