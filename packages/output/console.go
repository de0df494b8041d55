package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/core/runner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// formatValue keeps large values on one line.
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case string:
		v = fmt.Sprintf("%q", val)
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool

	files   int
	passed  int
	failed  int
	skipped int
	elapsed []time.Duration
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := result.File
	if result.Suite != "" {
		title = result.Suite + " (" + result.File + ")"
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+title))

	for _, r := range result.Results {
		if r.Skipped {
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if reason := skipReason(r); reason != "" {
				fmt.Fprintf(f.writer, " (%s)", reason)
			}
			fmt.Fprintln(f.writer)
			continue
		}

		if r.Error != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Name, red(fmt.Sprintf("(%v)", r.Error)))
			continue
		}

		symbol := green("✓")
		if !r.Passed {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if r.Response != nil {
			f.elapsed = append(f.elapsed, r.Response.Elapsed())
			if f.verbose {
				fmt.Fprintf(f.writer, "    %s %s  %s\n", r.Request.Method, r.Request.URL, r.Response.Status())
				fmt.Fprintf(f.writer, "    Size: %s\n", humanize.Bytes(uint64(len(r.Response.RawBody()))))
			}
		}

		for _, err := range r.Failures {
			d := describeFailure(err)
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), d)
			if d.Operator != "" {
				fmt.Fprintf(f.writer, "      Expected: %s %s\n", d.Operator, formatValue(d.Expected, 100))
				fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(d.Actual, 100))
			}
		}

		if f.verbose && len(r.Captures) > 0 {
			fmt.Fprintf(f.writer, "    Captures:\n")
			names := make([]string, 0, len(r.Captures))
			for name := range r.Captures {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(f.writer, "      %s = %s\n", name, formatValue(r.Captures[name], 100))
			}
		}
	}

	f.files++
	f.passed += result.Passed
	f.failed += result.Failed
	f.skipped += result.Skipped

	fmt.Fprintln(f.writer)
	f.writeCounts(result.Passed, result.Failed, result.Skipped)
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
}

func (f *ConsoleFormatter) writeCounts(passed, failed, skipped int) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(f.writer, "Tests: ")
	if passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", passed)))
	}
	if failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	if skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", passed+failed+skipped)
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("reqflow"), version)
}

// Flush prints totals across files, and latency percentiles when verbose.
func (f *ConsoleFormatter) Flush(totalDuration time.Duration) error {
	if f.files > 1 {
		bold := color.New(color.Bold).SprintFunc()
		fmt.Fprintf(f.writer, "\n%s\n", bold(fmt.Sprintf("%d files", f.files)))
		f.writeCounts(f.passed, f.failed, f.skipped)
		fmt.Fprintf(f.writer, "Time:  %dms\n", totalDuration.Milliseconds())
	}
	if f.verbose && len(f.elapsed) > 0 {
		fmt.Fprintf(f.writer, "Latency: %s\n", SummarizeLatency(f.elapsed))
	}
	fmt.Fprintln(f.writer)
	return nil
}
