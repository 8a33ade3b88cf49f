// Package delivery transmits a finished report to its recipients.
//
// SMTP sends a multipart message: the Markdown rendering as the plain-text
// body and the HTML rendering as its alternative. File and Writer are used
// by the CLI for local runs.
package delivery
