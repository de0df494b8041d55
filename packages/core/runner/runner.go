package runner

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/reqflow/packages/auth"
	"github.com/abdul-hamid-achik/reqflow/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/reqflow/packages/core/env"
	"github.com/abdul-hamid-achik/reqflow/packages/core/parser"
	"github.com/abdul-hamid-achik/reqflow/packages/fanout"
	"github.com/abdul-hamid-achik/reqflow/packages/http"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
)

// DefaultConcurrency is the default number of concurrent checks in parallel mode.
const DefaultConcurrency = fanout.DefaultConcurrency

type Runner struct {
	client   *http.Client
	config   *Config
	logger   logrus.FieldLogger
	recorder http.Recorder
}

type Config struct {
	Environment     string
	EnvFile         string
	Variables       map[string]any
	Headers         map[string]string
	Timeout         time.Duration
	FollowRedirects bool
	MaxRedirects    int
	ValidateSSL     bool
	Proxy           string
	CookieJar       bool
	Bail            bool
	NameFilter      string
	TagsFilter      []string
	Parallel        bool
	Concurrency     int
	Rate            float64
}

// DefaultRunnerConfig follows redirects and validates certificates.
func DefaultRunnerConfig() *Config {
	return &Config{
		FollowRedirects: true,
		ValidateSSL:     true,
		CookieJar:       true,
	}
}

type Option func(*Runner)

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithRecorder receives every exchange of every check.
func WithRecorder(rec http.Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = DefaultRunnerConfig()
	}

	r := &Runner{config: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.logger = l
	}

	clientOpts := []http.ClientOption{
		http.WithFollowRedirects(cfg.FollowRedirects),
		http.WithValidateSSL(cfg.ValidateSSL),
		http.WithDefaultHeaders(cfg.Headers),
		http.WithLogger(r.logger),
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRedirects > 0 {
		clientOpts = append(clientOpts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
	}
	if cfg.CookieJar {
		clientOpts = append(clientOpts, http.WithCookieJar())
	}
	if r.recorder != nil {
		clientOpts = append(clientOpts, http.WithRecorder(r.recorder))
	}
	r.client = http.NewClient(clientOpts...)

	return r
}

type RunResult struct {
	File     string
	Suite    string
	Results  []*RequestResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

// Success reports whether no check failed.
func (r *RunResult) Success() bool { return r.Failed == 0 }

type RequestResult struct {
	Name       string
	Tags       []string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Request    *http.Request
	Response   *response.Response
	// Failures holds every expectation that did not hold.
	Failures []error
	Captures map[string]any
	// Error is set when no response could be obtained.
	Error error
}

func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	suite, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.Run(ctx, suite)
}

// Run executes every selected check of suite. The returned error covers
// problems preparing the run; check failures are reported in the result.
func (r *Runner) Run(ctx context.Context, suite *parser.Suite) (*RunResult, error) {
	start := time.Now()
	log := r.logger.WithField("suite", suite.Name)

	resolver, err := r.newResolver(suite, log)
	if err != nil {
		return nil, err
	}

	if suite.WaitFor != nil {
		if err := r.waitForService(ctx, suite.WaitFor, resolver, log); err != nil {
			return nil, err
		}
	}

	ordered, err := topologicalSort(suite.Checks)
	if err != nil {
		return nil, err
	}

	result := &RunResult{File: suite.Path, Suite: suite.Name}
	hasOnly := false
	for _, c := range suite.Checks {
		if c.Only {
			hasOnly = true
			break
		}
	}

	var selected []*parser.Check
	for _, c := range ordered {
		switch {
		case !r.shouldRun(c, hasOnly):
			result.add(skipped(c, "filtered out"))
		case c.Skip != "":
			result.add(skipped(c, c.Skip))
		default:
			selected = append(selected, c)
		}
	}

	log.WithField("checks", len(selected)).Info("running suite")

	parallel := (r.config.Parallel || suite.Parallel) && !suite.HasChaining()
	if parallel {
		for _, res := range r.runParallel(ctx, suite, selected, resolver) {
			result.add(res)
		}
	} else {
		r.runSequential(ctx, suite, selected, resolver, result)
	}

	result.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"passed":   result.Passed,
		"failed":   result.Failed,
		"skipped":  result.Skipped,
		"duration": result.Duration,
	}).Info("suite finished")
	return result, nil
}

func (r *RunResult) add(res *RequestResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.Skipped:
		r.Skipped++
	case res.Passed:
		r.Passed++
	default:
		r.Failed++
	}
}

func skipped(c *parser.Check, reason string) *RequestResult {
	return &RequestResult{Name: c.Name, Tags: c.Tags, Skipped: true, SkipReason: reason}
}

// newResolver layers suite variables, the selected environment and
// configured overrides, in that order.
func (r *Runner) newResolver(suite *parser.Suite, log logrus.FieldLogger) (*env.Resolver, error) {
	var envFiles []string
	if r.config.EnvFile != "" {
		envFiles = append(envFiles, r.config.EnvFile)
	}
	if suite.EnvFile != "" {
		path := suite.EnvFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(suite.Path), path)
		}
		envFiles = append(envFiles, path)
	}
	for _, path := range envFiles {
		if _, err := env.LoadAndExportDotEnv(path); err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
	}

	var environment map[string]any
	if name := r.config.Environment; name != "" && len(suite.Environments) > 0 {
		if _, ok := suite.Environments[name]; !ok {
			return nil, fmt.Errorf("suite %s has no environment %q", suite.Name, name)
		}
		environment = env.SelectEnvironment(name, suite.Environments).Variables
	}

	resolver := env.NewResolver()
	resolver.SetWarnFunc(log.Warnf)
	resolver.SetVariables(env.MergeVariables(suite.Variables, environment, r.config.Variables))
	return resolver, nil
}

func (r *Runner) runSequential(ctx context.Context, suite *parser.Suite, checks []*parser.Check, resolver *env.Resolver, result *RunResult) {
	executed := make(map[string]*RequestResult)

	for i, c := range checks {
		if err := ctx.Err(); err != nil {
			for _, rest := range checks[i:] {
				result.add(&RequestResult{Name: rest.Name, Tags: rest.Tags, Error: err})
			}
			return
		}

		if dep := failedDependency(c, executed); dep != "" {
			res := skipped(c, fmt.Sprintf("dependency %q did not pass", dep))
			executed[c.Name] = res
			result.add(res)
			continue
		}

		res := r.executeCheck(ctx, suite, c, resolver, true)
		executed[c.Name] = res
		result.add(res)

		if !res.Passed && (suite.Bail || r.config.Bail) {
			for _, rest := range checks[i+1:] {
				result.add(skipped(rest, "bailed out after a failure"))
			}
			return
		}
	}
}

func failedDependency(c *parser.Check, executed map[string]*RequestResult) string {
	for _, dep := range c.Depends {
		if res, ok := executed[dep]; !ok || !res.Passed {
			return dep
		}
	}
	return ""
}

func (r *Runner) runParallel(ctx context.Context, suite *parser.Suite, checks []*parser.Check, resolver *env.Resolver) []*RequestResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = suite.Concurrency
	}
	rateLimit := r.config.Rate
	if rateLimit <= 0 {
		rateLimit = suite.Rate
	}

	results := make([]*RequestResult, len(checks))
	errs := fanout.Each(ctx, len(checks), func(ctx context.Context, i int) error {
		results[i] = r.executeCheck(ctx, suite, checks[i], resolver, false)
		return nil
	}, fanout.WithConcurrency(concurrency), fanout.WithRate(rateLimit))

	for i, err := range errs {
		if results[i] == nil {
			results[i] = &RequestResult{Name: checks[i].Name, Tags: checks[i].Tags, Error: err}
		}
	}
	return results
}

// topologicalSort orders checks so that dependencies come first, keeping
// the written order otherwise.
func topologicalSort(checks []*parser.Check) ([]*parser.Check, error) {
	inDegree := make(map[string]int, len(checks))
	dependents := make(map[string][]string)
	byName := make(map[string]*parser.Check, len(checks))
	position := make(map[string]int, len(checks))

	for i, c := range checks {
		inDegree[c.Name] = 0
		byName[c.Name] = c
		position[c.Name] = i
	}
	for _, c := range checks {
		for _, dep := range c.Depends {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("check %q depends on unknown check %q", c.Name, dep)
			}
			dependents[dep] = append(dependents[dep], c.Name)
			inDegree[c.Name]++
		}
	}

	var ready []string
	for _, c := range checks {
		if inDegree[c.Name] == 0 {
			ready = append(ready, c.Name)
		}
	}

	sorted := make([]*parser.Check, 0, len(checks))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		sorted = append(sorted, byName[current])

		for _, next := range dependents[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sort.SliceStable(ready, func(a, b int) bool { return position[ready[a]] < position[ready[b]] })
	}

	if len(sorted) != len(checks) {
		return nil, fmt.Errorf("circular dependency detected in checks")
	}
	return sorted, nil
}

func (r *Runner) shouldRun(c *parser.Check, hasOnly bool) bool {
	if hasOnly && !c.Only {
		return false
	}
	if r.config.NameFilter != "" && !matchesPattern(c.Name, r.config.NameFilter) {
		return false
	}
	if len(r.config.TagsFilter) > 0 && !hasAnyTag(c, r.config.TagsFilter) {
		return false
	}
	return true
}

// matchesPattern supports a leading and/or trailing * wildcard.
func matchesPattern(name, pattern string) bool {
	prefix := strings.HasPrefix(pattern, "*")
	suffix := strings.HasSuffix(pattern, "*")
	core := strings.Trim(pattern, "*")

	switch {
	case prefix && suffix:
		return strings.Contains(name, core)
	case prefix:
		return strings.HasSuffix(name, core)
	case suffix:
		return strings.HasPrefix(name, core)
	}
	return name == pattern
}

func hasAnyTag(c *parser.Check, filters []string) bool {
	for _, f := range filters {
		if c.HasTag(f) {
			return true
		}
	}
	return false
}

// buildAuth turns the check's auth block, or the suite's, into an
// authenticator with placeholders resolved.
func buildAuth(a *parser.Auth, resolve func(string) string) (http.Authenticator, error) {
	switch {
	case a == nil:
		return nil, nil
	case a.Basic != nil:
		return auth.NewBasic(resolve(a.Basic.Username), resolve(a.Basic.Password))
	case a.Bearer != "":
		return auth.NewBearer(resolve(a.Bearer))
	case a.APIKey != nil:
		if a.APIKey.In == "query" {
			return auth.NewAPIKeyQuery(resolve(a.APIKey.Name), resolve(a.APIKey.Value))
		}
		return auth.NewAPIKey(resolve(a.APIKey.Name), resolve(a.APIKey.Value))
	case a.OAuth2 != nil:
		cfg := *a.OAuth2
		cfg.TokenURL = resolve(cfg.TokenURL)
		cfg.ClientID = resolve(cfg.ClientID)
		cfg.ClientSecret = resolve(cfg.ClientSecret)
		cfg.Username = resolve(cfg.Username)
		cfg.Password = resolve(cfg.Password)
		return oauth2.NewProvider(&cfg)
	}
	return nil, nil
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
