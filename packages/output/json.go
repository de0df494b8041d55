package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/core/runner"
)

type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Tests    []JSONTest  `json:"tests"`
	Latency  *Latency    `json:"latency,omitempty"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type JSONTest struct {
	Name       string         `json:"name"`
	File       string         `json:"file"`
	Suite      string         `json:"suite,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Passed     bool           `json:"passed"`
	Skipped    bool           `json:"skipped,omitempty"`
	SkipReason string         `json:"skipReason,omitempty"`
	Duration   float64        `json:"duration"`
	Error      string         `json:"error,omitempty"`
	Request    *JSONRequest   `json:"request,omitempty"`
	Response   *JSONResponse  `json:"response,omitempty"`
	Failures   []failure      `json:"failures,omitempty"`
	Captures   map[string]any `json:"captures,omitempty"`
}

type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Size       int               `json:"size"`
	Duration   float64           `json:"duration"`
}

// JSONFormatter buffers every file and writes a single document on Flush.
type JSONFormatter struct {
	writer  io.Writer
	results []JSONTest
	elapsed []time.Duration
	now     func() time.Time
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		test := JSONTest{
			Name:       r.Name,
			File:       result.File,
			Suite:      result.Suite,
			Tags:       r.Tags,
			Passed:     r.Passed,
			Skipped:    r.Skipped,
			SkipReason: skipReason(r),
			Duration:   float64(r.Duration.Milliseconds()),
			Captures:   r.Captures,
		}
		if r.Error != nil {
			test.Error = r.Error.Error()
		}
		if r.Request != nil {
			test.Request = &JSONRequest{
				Method:  r.Request.Method,
				URL:     r.Request.URL,
				Headers: r.Request.Headers,
			}
		}
		if r.Response != nil {
			test.Response = &JSONResponse{
				StatusCode: r.Response.StatusCode(),
				Status:     r.Response.Status(),
				Headers:    r.Response.Headers().Map(),
				Size:       len(r.Response.RawBody()),
				Duration:   float64(r.Response.Elapsed().Milliseconds()),
			}
			f.elapsed = append(f.elapsed, r.Response.Elapsed())
		}
		for _, err := range r.Failures {
			test.Failures = append(test.Failures, describeFailure(err))
		}
		f.results = append(f.results, test)
	}
}

// FormatError is a no-op; errors are reported per test.
func (f *JSONFormatter) FormatError(err error) {}

func (f *JSONFormatter) FormatHeader(version string) {}

func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var summary JSONSummary
	for _, t := range f.results {
		switch {
		case t.Skipped:
			summary.Skipped++
		case t.Passed:
			summary.Passed++
		default:
			summary.Failed++
		}
	}
	summary.Total = len(f.results)

	out := JSONOutput{
		Summary:  summary,
		Tests:    f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     f.now().Format(time.RFC3339),
	}
	if out.Tests == nil {
		out.Tests = []JSONTest{}
	}
	if len(f.elapsed) > 0 {
		l := SummarizeLatency(f.elapsed)
		out.Latency = &l
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
