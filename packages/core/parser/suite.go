package parser

import (
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/auth/oauth2"
)

type Suite struct {
	Path         string                    `yaml:"-"`
	Name         string                    `yaml:"name"`
	BaseURL      string                    `yaml:"baseUrl"`
	EnvFile      string                    `yaml:"envFile"`
	Variables    map[string]any            `yaml:"variables"`
	Environments map[string]map[string]any `yaml:"environments"`
	Headers      map[string]string         `yaml:"headers"`
	Auth         *Auth                     `yaml:"auth"`
	Timeout      time.Duration             `yaml:"timeout"`
	Parallel     bool                      `yaml:"parallel"`
	Concurrency  int                       `yaml:"concurrency"`
	Rate         float64                   `yaml:"rate"`
	Bail         bool                      `yaml:"bail"`
	WaitFor      *WaitFor                  `yaml:"waitFor"`
	Checks       []*Check                  `yaml:"checks"`
}

// HasChaining reports whether any check captures values or depends on
// another check, which rules out parallel execution.
func (s *Suite) HasChaining() bool {
	for _, c := range s.Checks {
		if len(c.Captures) > 0 || len(c.Depends) > 0 {
			return true
		}
	}
	return false
}

// Check returns the check with the given name.
func (s *Suite) Check(name string) (*Check, bool) {
	for _, c := range s.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// WaitFor delays a run until url answers with Status.
type WaitFor struct {
	URL      string        `yaml:"url"`
	Status   int           `yaml:"status"`
	Timeout  time.Duration `yaml:"timeout"`
	Interval time.Duration `yaml:"interval"`
}

type Check struct {
	Name            string            `yaml:"name"`
	Description     string            `yaml:"description"`
	Tags            []string          `yaml:"tags"`
	Skip            string            `yaml:"skip"`
	Only            bool              `yaml:"only"`
	Depends         []string          `yaml:"depends"`
	Method          string            `yaml:"method"`
	Path            string            `yaml:"path"`
	Query           map[string]any    `yaml:"query"`
	Headers         map[string]string `yaml:"headers"`
	Cookies         map[string]string `yaml:"cookies"`
	JSON            any               `yaml:"json"`
	Form            map[string]string `yaml:"form"`
	Body            string            `yaml:"body"`
	Files           map[string]string `yaml:"files"`
	GraphQL         *GraphQL          `yaml:"graphql"`
	Auth            *Auth             `yaml:"auth"`
	FollowRedirects *bool             `yaml:"followRedirects"`
	Timeout         time.Duration     `yaml:"timeout"`
	ForceJSON       bool              `yaml:"forceJson"`
	Captures        map[string]string `yaml:"capture"`
	Expect          *Expect           `yaml:"expect"`
	Save            string            `yaml:"save"`
	Line            int               `yaml:"-"`
}

func (c *Check) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (c *Check) bodyKinds() int {
	n := 0
	if c.JSON != nil {
		n++
	}
	if len(c.Form) > 0 {
		n++
	}
	if c.Body != "" {
		n++
	}
	if len(c.Files) > 0 {
		n++
	}
	if c.GraphQL != nil {
		n++
	}
	return n
}

type GraphQL struct {
	Query         string         `yaml:"query"`
	Mutation      string         `yaml:"mutation"`
	Variables     map[string]any `yaml:"variables"`
	OperationName string         `yaml:"operationName"`
}

// Auth holds exactly one credential kind.
type Auth struct {
	Basic  *BasicAuth     `yaml:"basic"`
	Bearer string         `yaml:"bearer"`
	APIKey *APIKeyAuth    `yaml:"apiKey"`
	OAuth2 *oauth2.Config `yaml:"oauth2"`
}

func (a *Auth) kinds() int {
	n := 0
	if a.Basic != nil {
		n++
	}
	if a.Bearer != "" {
		n++
	}
	if a.APIKey != nil {
		n++
	}
	if a.OAuth2 != nil {
		n++
	}
	return n
}

type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type APIKeyAuth struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`

	// In is "header" (default) or "query".
	In string `yaml:"in"`
}

type Expect struct {
	Status         *int               `yaml:"status"`
	StatusRange    []int              `yaml:"statusRange"`
	MaxTime        time.Duration      `yaml:"maxTime"`
	Headers        map[string]Matcher `yaml:"headers"`
	HeadersPresent []string           `yaml:"headersPresent"`
	Cookies        map[string]Matcher `yaml:"cookies"`
	Body           BodyChecks         `yaml:"body"`
	Content        *Matcher           `yaml:"content"`
	Errors         *Matcher           `yaml:"errors"`

	// Schema is a file path relative to the suite, or an inline JSON Schema.
	Schema     any    `yaml:"schema"`
	SchemaJSON []byte `yaml:"-"`
}

// BodyCheck pairs a path with the matcher applied to the value found there.
type BodyCheck struct {
	Path    string
	Matcher Matcher
}

// BodyChecks keeps the order in which paths were written.
type BodyChecks []BodyCheck

// ParseError points at the suite location that could not be loaded.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	case e.File != "":
		return e.File + ": " + e.Message
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}
