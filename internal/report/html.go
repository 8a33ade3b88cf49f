package report

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var converter = goldmark.New(goldmark.WithExtensions(extension.GFM))

var shell = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; color: #24292f; background: #f6f8fa; margin: 0; padding: 24px; }
.report { max-width: 860px; margin: 0 auto; background: #fff; border: 1px solid #d0d7de; border-radius: 6px; padding: 24px 32px; }
h1 { color: #0b3d91; border-bottom: 2px solid #0b3d91; padding-bottom: 8px; }
h2 { border-bottom: 1px solid #d0d7de; padding-bottom: 4px; margin-top: 32px; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 4px 12px; text-align: left; }
pre { background: #f6f8fa; border: 1px solid #d0d7de; padding: 12px; overflow-x: auto; white-space: pre-wrap; }
blockquote { border-left: 4px solid #bf8700; margin: 0; padding: 4px 16px; color: #57606a; }
hr { border: 0; border-top: 1px solid #d0d7de; margin-top: 32px; }
</style>
</head>
<body>
<div class="report">
{{.Body}}
</div>
</body>
</html>
`))

// renderHTML converts md to HTML and wraps it in the styled shell. If the
// conversion fails the Markdown source is shown preformatted.
func renderHTML(md string) string {
	var body bytes.Buffer
	if err := converter.Convert([]byte(md), &body); err != nil {
		body.Reset()
		body.WriteString("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}

	var out bytes.Buffer
	_ = shell.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{Title: Title, Body: template.HTML(body.String())})
	return out.String()
}
