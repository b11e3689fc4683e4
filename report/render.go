package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Format selects a renderer.
type Format string

const (
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts json, html, md or markdown (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "html":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("report: unknown format %q", s)
}

// Page is everything a renderer prints for one analysis.
type Page struct {
	Title   string          `json:"title,omitempty"`
	RunID   string          `json:"run_id,omitempty"`
	Source  string          `json:"source,omitempty"`
	Results []ElementResult `json:"results"`
	Report  Report          `json:"report"`
}

// Render writes p to w in format f.
func Render(w io.Writer, f Format, p Page) error {
	switch f {
	case FormatJSON:
		return RenderJSON(w, p)
	case FormatHTML:
		return RenderHTML(w, p)
	case FormatMarkdown:
		return RenderMarkdown(w, p)
	}
	return fmt.Errorf("report: unknown format %q", f)
}

// RenderJSON writes p as indented JSON. Non-ASCII labels are kept as is.
func RenderJSON(w io.Writer, p Page) error {
	if p.Results == nil {
		p.Results = []ElementResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("report: json: %w", err)
	}
	return nil
}

// RenderHTML writes p as a standalone HTML document.
func RenderHTML(w io.Writer, p Page) error {
	body, err := renderBody(p)
	if err != nil {
		return err
	}
	err = docTmpl.Execute(w, struct {
		Title string
		Body  template.HTML
	}{title(p), template.HTML(body)})
	if err != nil {
		return fmt.Errorf("report: html: %w", err)
	}
	return nil
}

// RenderMarkdown writes p as CommonMark, converted from the HTML body.
func RenderMarkdown(w io.Writer, p Page) error {
	body, err := renderBody(p)
	if err != nil {
		return err
	}
	md, err := mdConverter().ConvertString(body)
	if err != nil {
		return fmt.Errorf("report: markdown: %w", err)
	}
	if _, err := io.WriteString(w, strings.TrimSpace(md)+"\n"); err != nil {
		return fmt.Errorf("report: markdown: %w", err)
	}
	return nil
}

// renderBody executes the report fragment and runs it through the sanitizer.
// Labels and ids come from untrusted layouts.
func renderBody(p Page) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Page
		Title string
	}{p, title(p)}
	if err := bodyTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("report: html: %w", err)
	}
	return sanitizer().Sanitize(buf.String()), nil
}

func title(p Page) string {
	if p.Title != "" {
		return p.Title
	}
	if p.Source != "" {
		return "Accessibility report: " + p.Source
	}
	return "Accessibility report"
}

var sanitizer = sync.OnceValue(bluemonday.UGCPolicy)

var mdConverter = sync.OnceValue(func() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
})

type bucketView struct {
	Heading string
	Entries []Entry
}

var funcs = template.FuncMap{
	"score": func(f float64) string { return fmt.Sprintf("%.2f", f) },
	"pct":   func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"inc":   func(i int) int { return i + 1 },
	"join":  strings.Join,
	"name": func(r ElementResult) string {
		if r.ResourceID != "" {
			return r.ResourceID
		}
		if r.Text != "" {
			return r.Text
		}
		return r.ClassName
	},
	"bucket": func(heading string, entries []Entry) bucketView {
		return bucketView{heading, entries}
	},
	"orNone": func(s string) string {
		if s == "" {
			return "none"
		}
		return s
	},
}

var bodyTmpl = template.Must(template.New("body").Funcs(funcs).Parse(`<h1>{{.Title}}</h1>
{{- if .RunID}}
<p>Run <code>{{.RunID}}</code></p>
{{- end}}
<h2>Summary</h2>
<ul>
<li>Total elements: {{.Report.Summary.TotalElements}}</li>
<li>With contentDescription: {{.Report.Summary.WithDescription}}</li>
<li>Without contentDescription: {{.Report.Summary.WithoutDescription}}</li>
<li>Coverage: {{pct .Report.Summary.CoveragePercentage}}</li>
</ul>
{{- template "bucket" (bucket "High priority" .Report.Suggestions.High)}}
{{- template "bucket" (bucket "Medium priority" .Report.Suggestions.Medium)}}
{{- template "bucket" (bucket "Low priority" .Report.Suggestions.Low)}}
<h2>Elements</h2>
{{- if .Results}}
<table>
<thead><tr><th>#</th><th>Element</th><th>Class</th><th>Current</th><th>Suggested</th><th>Confidence</th><th>Priority</th><th>Alternatives</th></tr></thead>
<tbody>
{{- range $i, $r := .Results}}
<tr><td>{{inc $i}}</td><td>{{name $r}}</td><td>{{$r.ClassName}}</td><td>{{orNone $r.CurrentDescription}}</td><td>{{$r.GeneratedLabel}}</td><td>{{$r.ConfidenceTier}} ({{score $r.ConfidenceScore}})</td><td>{{$r.Priority}}</td><td>{{join $r.Alternatives ", "}}</td></tr>
{{- end}}
</tbody>
</table>
{{- else}}
<p>No UI elements found.</p>
{{- end}}
{{define "bucket"}}
<h2>{{.Heading}} suggestions ({{len .Entries}})</h2>
{{- if .Entries}}
<ul>
{{- range .Entries}}
<li><code>{{orNone .ResourceID}}</code> {{.Type}}: {{.Suggested}} ({{score .Confidence}})</li>
{{- end}}
</ul>
{{- else}}
<p>None.</p>
{{- end}}{{end}}`))

var docTmpl = template.Must(template.New("doc").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: .25rem .5rem; text-align: left; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))
