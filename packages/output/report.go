package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/recorder"
	"github.com/dustin/go-humanize"
)

const DefaultReportTitle = "Test Report"

type reportConfig struct {
	title string
	now   func() time.Time
}

type ReportOption func(*reportConfig)

func WithTitle(title string) ReportOption {
	return func(c *reportConfig) {
		if title != "" {
			c.title = title
		}
	}
}

// WithClock sets the generation time printed in the report heading.
func WithClock(now func() time.Time) ReportOption {
	return func(c *reportConfig) {
		c.now = now
	}
}

type htmlReport struct {
	Title     string
	Generated string
	Total     int
	Failed    int
	Latency   Latency
	Entries   []recorder.Entry
}

var reportFuncs = template.FuncMap{
	"statusClass": func(e recorder.Entry) string {
		if e.Failed() {
			return "status-failure"
		}
		return "status-success"
	},
	"content": func(raw json.RawMessage) string {
		if len(raw) == 0 {
			return ""
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		var buf bytes.Buffer
		if json.Indent(&buf, raw, "", "  ") != nil {
			return string(raw)
		}
		return buf.String()
	},
	"bytes": func(n int) string { return humanize.Bytes(uint64(n)) },
	"ms":    func(sec float64) string { return fmt.Sprintf("%.0fms", sec*1000) },
	"redirect": func(v *bool) string {
		if v == nil {
			return "default"
		}
		return fmt.Sprint(*v)
	},
}

var reportTemplate = template.Must(template.New("report").Funcs(reportFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; background-color: #f9f9f9; }
h1 { text-align: center; color: #333; }
.summary { text-align: center; color: #555; margin-bottom: 20px; }
.log { border: 1px solid #ccc; margin-bottom: 20px; padding: 10px; border-radius: 5px; background-color: #fff; }
.log-header { cursor: pointer; padding: 5px; background-color: #f7f7f7; border-bottom: 1px solid #ccc; }
.log-header:hover { background-color: #eaeaea; }
.log-body { display: none; padding: 10px; }
.status-success { color: green; }
.status-failure { color: red; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; vertical-align: top; }
th { background-color: #f2f2f2; width: 12em; }
pre { margin: 0; white-space: pre-wrap; word-break: break-all; }
</style>
</head>
<body>
<h1>{{.Title}} - {{.Generated}}</h1>
<div class="summary">{{.Total}} requests, {{.Failed}} failed{{if .Latency.Count}}, {{.Latency}}{{end}}</div>
{{range .Entries}}
<div class="log">
<div class="log-header" onclick="toggleLog(this)">
{{.Name}} - {{.Request.Method}} {{.Request.URL}} - Status: {{if .Response}}<span class="{{statusClass .}}"><b>{{.Response.StatusCode}}</b></span>{{else}}<span class="status-failure"><b>{{.Error}}</b></span>{{end}}
</div>
<div class="log-body">
<h3>Request</h3>
<table>
<tr><th>Method</th><td>{{.Request.Method}}</td></tr>
<tr><th>URL</th><td>{{.Request.URL}}</td></tr>
<tr><th>Params</th><td>{{range $k, $v := .Request.Params}}{{$k}}={{$v}}<br>{{end}}</td></tr>
<tr><th>Headers</th><td>{{range $k, $v := .Request.Headers}}{{$k}}: {{$v}}<br>{{end}}</td></tr>
<tr><th>Cookies</th><td>{{range $k, $v := .Request.Cookies}}{{$k}}={{$v}}<br>{{end}}</td></tr>
<tr><th>Body</th><td><pre>{{.Request.Body}}</pre></td></tr>
<tr><th>Redirect</th><td>{{redirect .Request.Redirect}}</td></tr>
<tr><th>Files</th><td>{{range .Request.Files}}{{.}}<br>{{end}}</td></tr>
<tr><th>Timeout</th><td>{{if .Request.Timeout}}{{.Request.Timeout}}s{{end}}</td></tr>
</table>
<h3>Response</h3>
{{if .Response}}<table>
<tr><th>Status Code</th><td>{{.Response.StatusCode}}</td></tr>
<tr><th>Headers</th><td>{{range $k, $v := .Response.Headers}}{{$k}}: {{$v}}<br>{{end}}</td></tr>
<tr><th>Content</th><td><pre>{{content .Response.Content}}</pre></td></tr>
<tr><th>Size</th><td>{{bytes .Response.Size}}</td></tr>
<tr><th>Time</th><td>{{ms .Response.Time}}</td></tr>
</table>{{else}}<p class="status-failure">{{.Error}}</p>{{end}}
</div>
</div>
{{end}}
<script>
function toggleLog(header) {
  const body = header.nextElementSibling;
  body.style.display = body.style.display === 'block' ? 'none' : 'block';
}
</script>
</body>
</html>
`))

// WriteHTMLReport renders entries as a collapsible HTML page.
func WriteHTMLReport(w io.Writer, entries []recorder.Entry, opts ...ReportOption) error {
	cfg := reportConfig{title: DefaultReportTitle, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	data := htmlReport{
		Title:     cfg.title,
		Generated: cfg.now().Format("2006-01-02 15:04:05"),
		Total:     len(entries),
		Latency:   SummarizeLatency(EntryLatencies(entries)),
		Entries:   entries,
	}
	for _, e := range entries {
		if e.Failed() {
			data.Failed++
		}
	}
	return reportTemplate.Execute(w, data)
}

// WriteJSONReport writes entries as an indented JSON array.
func WriteJSONReport(w io.Writer, entries []recorder.Entry) error {
	if entries == nil {
		entries = []recorder.Entry{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	return encoder.Encode(entries)
}

// SaveReport writes a report to path. format is "html" or "json"; when
// empty it is taken from the file extension.
func SaveReport(path, format string, entries []recorder.Entry, opts ...ReportOption) error {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	format = strings.ToLower(format)
	if format == "htm" {
		format = "html"
	}
	if format != "html" && format != "json" {
		return fmt.Errorf("%w %q for report (known: html, json)", ErrUnknownFormat, format)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}

	if format == "html" {
		err = WriteHTMLReport(f, entries, opts...)
	} else {
		err = WriteJSONReport(f, entries)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s report: %w", format, err)
	}
	return nil
}
