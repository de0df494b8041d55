package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWaitTimeout  = 30 * time.Second
	DefaultWaitInterval = 500 * time.Millisecond
)

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// ParseFile reads and validates a suite. Relative schema and upload paths
// are resolved against the suite's directory.
func ParseFile(path string) (*Suite, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(content, path)
}

func Parse(content []byte, filename string) (*Suite, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(content))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{File: filename, Message: "suite is empty"}
		}
		return nil, &ParseError{File: filename, Message: err.Error()}
	}

	var suite Suite
	if err := root.Decode(&suite); err != nil {
		return nil, &ParseError{File: filename, Message: err.Error()}
	}
	suite.Path = filename
	recordLines(&root, &suite)

	if err := suite.normalize(filepath.Dir(filename)); err != nil {
		return nil, err
	}
	return &suite, nil
}

// recordLines copies the line of every check mapping onto the decoded checks.
func recordLines(root *yaml.Node, suite *Suite) {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "checks" {
			continue
		}
		items := doc.Content[i+1].Content
		for j, item := range items {
			if j < len(suite.Checks) && suite.Checks[j] != nil {
				suite.Checks[j].Line = item.Line
			}
		}
	}
}

func (s *Suite) errorf(line int, format string, args ...any) error {
	return &ParseError{File: s.Path, Line: line, Message: fmt.Sprintf(format, args...)}
}

// normalize fills defaults and rejects suites the runner cannot execute.
func (s *Suite) normalize(dir string) error {
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	}
	if len(s.Checks) == 0 {
		return s.errorf(0, "suite has no checks")
	}
	if s.Concurrency < 0 {
		return s.errorf(0, "concurrency must not be negative")
	}
	if s.Rate < 0 {
		return s.errorf(0, "rate must not be negative")
	}
	if s.Auth != nil {
		if err := s.validateAuth(0, s.Auth); err != nil {
			return err
		}
	}
	if w := s.WaitFor; w != nil {
		if w.URL == "" {
			return s.errorf(0, "waitFor needs a url")
		}
		if w.Status == 0 {
			w.Status = 200
		}
		if w.Timeout <= 0 {
			w.Timeout = DefaultWaitTimeout
		}
		if w.Interval <= 0 {
			w.Interval = DefaultWaitInterval
		}
	}

	names := make(map[string]int, len(s.Checks))
	for i, c := range s.Checks {
		if c == nil {
			return s.errorf(0, "check %d is empty", i+1)
		}
		if err := s.normalizeCheck(c, dir); err != nil {
			return err
		}
		if prev, dup := names[c.Name]; dup {
			return s.errorf(c.Line, "duplicate check name %q (first defined on line %d)", c.Name, prev)
		}
		names[c.Name] = c.Line
	}

	for _, c := range s.Checks {
		for _, dep := range c.Depends {
			if _, ok := names[dep]; !ok {
				return s.errorf(c.Line, "check %q depends on unknown check %q", c.Name, dep)
			}
			if dep == c.Name {
				return s.errorf(c.Line, "check %q depends on itself", c.Name)
			}
		}
	}
	return nil
}

func (s *Suite) normalizeCheck(c *Check, dir string) error {
	if c.Method == "" {
		c.Method = "GET"
		if c.GraphQL != nil {
			c.Method = "POST"
		}
	}
	c.Method = strings.ToUpper(c.Method)
	if !validMethods[c.Method] {
		return s.errorf(c.Line, "unsupported method %q", c.Method)
	}
	if c.Path == "" && s.BaseURL == "" {
		return s.errorf(c.Line, "check needs a path or the suite a baseUrl")
	}
	if c.Name == "" {
		c.Name = strings.TrimSpace(c.Method + " " + c.Path)
	}
	if c.bodyKinds() > 1 {
		return s.errorf(c.Line, "check %q sets more than one of json, form, body, files and graphql", c.Name)
	}
	if c.GraphQL != nil {
		if (c.GraphQL.Query == "") == (c.GraphQL.Mutation == "") {
			return s.errorf(c.Line, "check %q: graphql needs exactly one of query and mutation", c.Name)
		}
	}
	if c.Timeout < 0 {
		return s.errorf(c.Line, "check %q: timeout must not be negative", c.Name)
	}
	for field, path := range c.Files {
		if !filepath.IsAbs(path) && !strings.Contains(path, "{{") {
			c.Files[field] = filepath.Join(dir, path)
		}
	}
	if c.Auth != nil {
		if err := s.validateAuth(c.Line, c.Auth); err != nil {
			return err
		}
	}
	if c.Expect != nil {
		if err := s.normalizeExpect(c, dir); err != nil {
			return err
		}
	}
	return nil
}

func (s *Suite) validateAuth(line int, a *Auth) error {
	if a.kinds() != 1 {
		return s.errorf(line, "auth must set exactly one of basic, bearer, apiKey and oauth2")
	}
	if a.APIKey != nil && a.APIKey.In != "" && a.APIKey.In != "header" && a.APIKey.In != "query" {
		return s.errorf(line, "apiKey.in must be header or query, got %q", a.APIKey.In)
	}
	return nil
}

func (s *Suite) normalizeExpect(c *Check, dir string) error {
	e := c.Expect
	if e.StatusRange != nil {
		if len(e.StatusRange) != 2 || e.StatusRange[0] > e.StatusRange[1] {
			return s.errorf(c.Line, "check %q: statusRange must be [min, max]", c.Name)
		}
	}

	var matchers []Matcher
	for _, m := range e.Headers {
		matchers = append(matchers, m)
	}
	for _, m := range e.Cookies {
		matchers = append(matchers, m)
	}
	for _, b := range e.Body {
		matchers = append(matchers, b.Matcher)
	}
	if e.Content != nil {
		matchers = append(matchers, *e.Content)
	}
	if e.Errors != nil {
		matchers = append(matchers, *e.Errors)
	}
	for _, m := range matchers {
		if _, err := m.Compile(nil); err != nil {
			return s.errorf(m.Line, "check %q: %v", c.Name, err)
		}
		if err := validatePattern(m); err != nil {
			return s.errorf(m.Line, "check %q: %v", c.Name, err)
		}
	}

	switch schema := e.Schema.(type) {
	case nil:
	case string:
		path := schema
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return s.errorf(c.Line, "check %q: reading schema: %v", c.Name, err)
		}
		e.SchemaJSON = data
	case map[string]any:
		data, err := json.Marshal(schema)
		if err != nil {
			return s.errorf(c.Line, "check %q: encoding schema: %v", c.Name, err)
		}
		e.SchemaJSON = data
	default:
		return s.errorf(c.Line, "check %q: schema must be a file path or a mapping", c.Name)
	}
	return nil
}
