package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/reqflow/packages/assertions"
	"github.com/abdul-hamid-achik/reqflow/packages/capture"
	"github.com/abdul-hamid-achik/reqflow/packages/core/env"
	"github.com/abdul-hamid-achik/reqflow/packages/core/parser"
	"github.com/abdul-hamid-achik/reqflow/packages/graphql"
	"github.com/abdul-hamid-achik/reqflow/packages/http"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
)

// executeCheck sends one check and evaluates all of its expectations.
// Captures are published to the resolver only when publish is set.
func (r *Runner) executeCheck(ctx context.Context, suite *parser.Suite, c *parser.Check, resolver *env.Resolver, publish bool) *RequestResult {
	result := &RequestResult{
		Name:     c.Name,
		Tags:     c.Tags,
		Captures: make(map[string]any),
	}
	log := r.logger.WithFields(logrus.Fields{"suite": suite.Name, "check": c.Name})

	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	req, err := r.buildRequest(suite, c, resolver)
	if err != nil {
		result.Error = err
		return result
	}
	result.Request = req

	raw, err := r.client.Do(ctx, req)
	if err != nil {
		result.Error = err
		log.WithError(err).Debug("check could not be sent")
		return result
	}

	var opts []response.Option
	if c.GraphQL != nil {
		opts = append(opts, response.WithKind(response.GraphQL))
	}
	if c.ForceJSON {
		opts = append(opts, response.WithForceJSON())
	}
	resp, err := response.New(raw, opts...)
	if err != nil {
		result.Error = err
		return result
	}
	result.Response = resp

	result.Failures = evaluate(resp, c.Expect, resolver)

	if len(c.Captures) > 0 {
		captures, err := capture.ParseAll(c.Captures)
		if err == nil {
			var values map[string]any
			values, err = capture.ExtractAll(resp, captures)
			for name, value := range values {
				result.Captures[name] = value
				if publish {
					resolver.SetCapture(c.Name, name, value)
				}
			}
		}
		if err != nil {
			result.Failures = append(result.Failures, err)
		}
	}

	if c.Save != "" {
		path := resolver.Resolve(c.Save)
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(suite.Path), path)
		}
		if err := resp.Expect().SaveToFile(path).Err(); err != nil {
			result.Failures = append(result.Failures, err)
		}
	}

	result.Passed = len(result.Failures) == 0
	log.WithFields(logrus.Fields{
		"passed":   result.Passed,
		"failures": len(result.Failures),
	}).Debug("check evaluated")
	return result
}

func (r *Runner) buildRequest(suite *parser.Suite, c *parser.Check, resolver *env.Resolver) (*http.Request, error) {
	target := http.JoinURL(resolver.Resolve(suite.BaseURL), resolver.Resolve(c.Path))

	var req *http.Request
	if c.GraphQL != nil {
		gql := &graphql.Request{
			Name:          c.Name,
			Operation:     c.GraphQL.Query,
			Variables:     resolveMap(resolver, c.GraphQL.Variables),
			OperationName: c.GraphQL.OperationName,
		}
		if c.GraphQL.Mutation != "" {
			gql.Operation, gql.Mutation = c.GraphQL.Mutation, true
		}
		gql.Operation = resolver.Resolve(gql.Operation)

		var err error
		req, err = graphql.NewClientWith(r.client, target).NewHTTPRequest(gql)
		if err != nil {
			return nil, err
		}
		req.Method = c.Method
	} else {
		req = http.NewRequest(c.Method, target)
		req.Name = c.Name
		if err := setBody(req, c, resolver); err != nil {
			return nil, err
		}
	}

	req.BaseDir = filepath.Dir(suite.Path)
	for k, v := range suite.Headers {
		req.SetHeader(k, resolver.Resolve(v))
	}
	for k, v := range c.Headers {
		req.SetHeader(k, resolver.Resolve(v))
	}
	for k, v := range c.Query {
		req.SetQueryParam(k, stringValue(resolver.ResolveDeep(v)))
	}
	for k, v := range c.Cookies {
		req.SetCookie(k, resolver.Resolve(v))
	}

	if c.FollowRedirects != nil {
		follow := *c.FollowRedirects
		req.FollowRedirects = &follow
	}
	req.Timeout = c.Timeout
	if req.Timeout == 0 {
		req.Timeout = suite.Timeout
	}

	a := c.Auth
	if a == nil {
		a = suite.Auth
	}
	authenticator, err := buildAuth(a, resolver.Resolve)
	if err != nil {
		return nil, err
	}
	req.Auth = authenticator
	return req, nil
}

func setBody(req *http.Request, c *parser.Check, resolver *env.Resolver) error {
	switch {
	case c.JSON != nil:
		return req.SetJSON(resolver.ResolveDeep(c.JSON))
	case len(c.Form) > 0:
		return req.SetForm(resolver.ResolveAll(c.Form))
	case c.Body != "":
		return req.SetBody(resolver.Resolve(c.Body))
	case len(c.Files) > 0:
		for _, field := range sortedKeys(c.Files) {
			if err := req.AddFile(field, resolver.Resolve(c.Files[field])); err != nil {
				return err
			}
		}
	}
	return nil
}

func resolveMap(resolver *env.Resolver, m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return resolver.ResolveDeep(m).(map[string]any)
}

// evaluate runs every expectation and returns all failures, in the order
// the expectations are listed.
func evaluate(resp *response.Response, e *parser.Expect, resolver *env.Resolver) []error {
	if e == nil {
		if err := resp.CheckStatusInRange(200, 299); err != nil {
			return []error{err}
		}
		return nil
	}

	var failures []error
	add := func(err error) {
		if err != nil {
			failures = append(failures, err)
		}
	}
	compile := func(m parser.Matcher, check func(p assertions.Predicate) error) {
		p, err := m.Compile(resolver.ResolveDeep)
		if err != nil {
			add(fmt.Errorf("%w: %w", errInvalidMatcher, err))
			return
		}
		add(check(p))
	}

	if e.Status != nil {
		add(resp.CheckStatus(*e.Status))
	}
	if len(e.StatusRange) == 2 {
		add(resp.CheckStatusInRange(e.StatusRange[0], e.StatusRange[1]))
	}
	if e.MaxTime > 0 {
		add(resp.CheckElapsedAtMost(e.MaxTime))
	}
	for _, name := range sortedKeys(e.Headers) {
		compile(e.Headers[name], func(p assertions.Predicate) error { return resp.CheckHeader(name, p) })
	}
	for _, name := range e.HeadersPresent {
		add(resp.CheckHeaderPresent(name))
	}
	for _, name := range sortedKeys(e.Cookies) {
		compile(e.Cookies[name], func(p assertions.Predicate) error { return resp.CheckCookie(name, p) })
	}
	for _, b := range e.Body {
		path := resolver.Resolve(b.Path)
		compile(b.Matcher, func(p assertions.Predicate) error { return resp.CheckBodyPath(path, p) })
	}
	if e.Content != nil {
		compile(*e.Content, resp.CheckContent)
	}
	if e.Errors != nil {
		compile(*e.Errors, resp.CheckErrors)
	}
	if len(e.SchemaJSON) > 0 {
		add(resp.CheckSchema(e.SchemaJSON))
	}
	return failures
}

var errInvalidMatcher = errors.New("invalid matcher")

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
