package capture

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/abdul-hamid-achik/reqflow/packages/response"
)

// ErrNotFound is returned when a header or cookie is absent.
var ErrNotFound = errors.New("capture source not found")

type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceCookie
	SourceStatus
	SourceDuration
)

func (s Source) String() string {
	switch s {
	case SourceBody:
		return "body"
	case SourceHeader:
		return "header"
	case SourceCookie:
		return "cookie"
	case SourceStatus:
		return "status"
	case SourceDuration:
		return "duration"
	default:
		return "unknown"
	}
}

type Capture struct {
	Name   string
	Source Source
	Path   string
}

// Parse reads a capture expression such as "header:X-Request-Id".
func Parse(name, expr string) (*Capture, error) {
	expr = strings.TrimSpace(expr)
	c := &Capture{Name: name}

	switch {
	case expr == "":
		return nil, fmt.Errorf("capture %q: empty expression", name)
	case expr == "status":
		c.Source = SourceStatus
	case expr == "duration":
		c.Source = SourceDuration
	case expr == "body":
		c.Source = SourceBody
	default:
		prefix, rest, found := strings.Cut(expr, ":")
		if !found {
			c.Source, c.Path = SourceBody, expr
			break
		}
		switch prefix {
		case "body":
			c.Source = SourceBody
		case "header":
			c.Source = SourceHeader
		case "cookie":
			c.Source = SourceCookie
		default:
			return nil, fmt.Errorf("capture %q: unknown source %q", name, prefix)
		}
		c.Path = strings.TrimSpace(rest)
		if c.Path == "" && c.Source != SourceBody {
			return nil, fmt.Errorf("capture %q: %s needs a name", name, prefix)
		}
	}
	return c, nil
}

// ParseAll parses a name to expression map, ordered by name.
func ParseAll(exprs map[string]string) ([]*Capture, error) {
	names := make([]string, 0, len(exprs))
	for name := range exprs {
		names = append(names, name)
	}
	sort.Strings(names)

	captures := make([]*Capture, 0, len(names))
	for _, name := range names {
		c, err := Parse(name, exprs[name])
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, nil
}

func (c *Capture) Extract(resp *response.Response) (any, error) {
	switch c.Source {
	case SourceStatus:
		return resp.StatusCode(), nil
	case SourceDuration:
		return resp.Elapsed().Milliseconds(), nil
	case SourceHeader:
		if v, ok := resp.Header(c.Path); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: header %s", ErrNotFound, c.Path)
	case SourceCookie:
		if v, ok := resp.Cookie(c.Path); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: cookie %s", ErrNotFound, c.Path)
	default:
		if c.Path == "" {
			return resp.Content(), nil
		}
		return resp.Query(c.Path)
	}
}

// ExtractAll returns every value that could be extracted. Failures are
// collected, one per capture.
func ExtractAll(resp *response.Response, captures []*Capture) (map[string]any, error) {
	results := make(map[string]any, len(captures))
	var result *multierror.Error

	for _, c := range captures {
		v, err := c.Extract(resp)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("capture %s: %w", c.Name, err))
			continue
		}
		results[c.Name] = v
	}

	return results, result.ErrorOrNil()
}
