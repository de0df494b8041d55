package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/core/runner"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
)

var ErrUnknownFormat = errors.New("unknown output format")

// skipFiltered is the skip reason the runner uses for checks excluded by
// name or tag filters. Formatters do not repeat it.
const skipFiltered = "filtered out"

type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	Flush(totalDuration time.Duration) error
}

type Options struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
}

var formats = map[string]func(Options) Formatter{
	"console": func(o Options) Formatter {
		return NewConsoleFormatter(WithWriter(o.Writer), WithVerbose(o.Verbose), WithNoColor(o.NoColor))
	},
	"json":  func(o Options) Formatter { return NewJSONFormatter(JSONWithWriter(o.Writer)) },
	"junit": func(o Options) Formatter { return NewJUnitFormatter(JUnitWithWriter(o.Writer)) },
	"tap":   func(o Options) Formatter { return NewTAPFormatter(TAPWithWriter(o.Writer)) },
}

// Formats lists the names accepted by New.
func Formats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the formatter registered under name. An empty name selects
// the console formatter.
func New(name string, opts Options) (Formatter, error) {
	if name == "" {
		name = "console"
	}
	build, ok := formats[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownFormat, name, strings.Join(Formats(), ", "))
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	return build(opts), nil
}

type failure struct {
	Subject  string `json:"subject,omitempty"`
	Operator string `json:"operator,omitempty"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Message  string `json:"message"`
}

func describeFailure(err error) failure {
	var af *response.AssertionFailure
	if errors.As(err, &af) {
		return failure{
			Subject:  af.Subject,
			Operator: af.Operator,
			Expected: af.Expected,
			Actual:   af.Actual,
			Message:  af.Message,
		}
	}
	return failure{Message: err.Error()}
}

func (f failure) String() string {
	if f.Subject == "" {
		return f.Message
	}
	return f.Subject + ": " + f.Message
}

func skipReason(r *runner.RequestResult) string {
	if r.SkipReason == skipFiltered {
		return ""
	}
	return r.SkipReason
}
