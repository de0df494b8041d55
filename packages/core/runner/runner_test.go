package runner

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/reqflow/packages/core/parser"
	"github.com/abdul-hamid-achik/reqflow/packages/http"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := nethttp.NewServeMux()
	mux.HandleFunc("POST /login", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "hunter2" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		nethttp.SetCookie(w, &nethttp.Cookie{Name: "session", Value: "s1"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token": "abc", "user": {"id": 7}}`))
	})
	mux.HandleFunc("GET /users", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", "req-1")
		fmt.Fprintf(w, `{"users": [{"name": "ada"}, {"name": "bob", "email": null}], "total": 2, "limit": %q}`, r.URL.Query().Get("limit"))
	})
	mux.HandleFunc("GET /users/7", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 7, "name": "ada"}`))
	})
	mux.HandleFunc("GET /fail", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusInternalServerError)
	})
	mux.HandleFunc("GET /ok", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /graphql", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var payload struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"data": map[string]any{
			"launch": map[string]any{"id": payload.Variables["id"], "mission": "Starlink"},
		}}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runSuite(t *testing.T, cfg *Config, content string, opts ...Option) *RunResult {
	t.Helper()
	result, err := NewRunner(cfg, opts...).RunFile(context.Background(), writeSuite(t, content))
	require.NoError(t, err)
	return result
}

func resultByName(t *testing.T, result *RunResult, name string) *RequestResult {
	t.Helper()
	for _, r := range result.Results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result for %q", name)
	return nil
}

func TestNewRunner(t *testing.T) {
	r := NewRunner(nil)
	assert.NotNil(t, r.client)
	assert.True(t, r.config.FollowRedirects)
	assert.True(t, r.config.ValidateSSL)
}

func TestRunner_Chain(t *testing.T) {
	server := newAPI(t)
	suite := `
baseUrl: ` + server.URL + `
variables:
  password: hunter2
checks:
  - name: list users
    path: /users
    depends: [login]
    query:
      limit: 10
    auth:
      bearer: "{{token}}"
    expect:
      status: 200
      headers:
        Content-Type: {contains: application/json}
      headersPresent: [X-Request-Id]
      body:
        users[0].name: ada
        users: {length: 2}
        users[1].email: {isNull: true}
        total: {gte: 1, lt: 100}
        limit: "10"

  - name: login
    method: POST
    path: /login
    json:
      username: ada
      password: "{{password}}"
    capture:
      token: body:token
      userId: user.id
    expect:
      status: 200
      cookies:
        session: s1

  - name: get user
    path: /users/{{login.userId}}
    depends: [login]
    expect:
      body:
        id: "{{userId}}"
`
	result := runSuite(t, nil, suite)

	require.Len(t, result.Results, 3)
	assert.Equal(t, "login", result.Results[0].Name)
	assert.Equal(t, "list users", result.Results[1].Name)
	assert.Equal(t, "get user", result.Results[2].Name)

	for _, r := range result.Results {
		assert.True(t, r.Passed, "%s: error=%v failures=%v", r.Name, r.Error, r.Failures)
	}
	assert.Equal(t, 3, result.Passed)
	assert.True(t, result.Success())

	login := result.Results[0]
	assert.Equal(t, "abc", login.Captures["token"])
	assert.Equal(t, float64(7), login.Captures["userId"])
	assert.Equal(t, http.JoinURL(server.URL, "/login"), login.Request.URL)
}

func TestRunner_CollectsAllFailures(t *testing.T) {
	server := newAPI(t)
	suite := `
baseUrl: ` + server.URL + `
checks:
  - name: user
    path: /users/7
    expect:
      status: 201
      body:
        name: bob
        id: {type: number}
        missing.path: 1
`
	result := runSuite(t, nil, suite)

	res := result.Results[0]
	assert.False(t, res.Passed)
	assert.NoError(t, res.Error)
	require.Len(t, res.Failures, 3)
	assert.ErrorIs(t, res.Failures[0], response.ErrAssertion)
	assert.ErrorIs(t, res.Failures[1], response.ErrAssertion)
	assert.ErrorIs(t, res.Failures[2], response.ErrPathResolution)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Success())
}

func TestRunner_DefaultExpectation(t *testing.T) {
	server := newAPI(t)
	suite := `
baseUrl: ` + server.URL + `
checks:
  - path: /ok
  - path: /fail
`
	result := runSuite(t, nil, suite)

	assert.True(t, resultByName(t, result, "GET /ok").Passed)
	assert.False(t, resultByName(t, result, "GET /fail").Passed)
}

func TestRunner_DependencyFailed(t *testing.T) {
	server := newAPI(t)
	suite := `
baseUrl: ` + server.URL + `
checks:
  - name: broken
    path: /fail
  - name: after
    path: /ok
    depends: [broken]
  - name: independent
    path: /ok
`
	result := runSuite(t, nil, suite)

	after := resultByName(t, result, "after")
	assert.True(t, after.Skipped)
	assert.Equal(t, `dependency "broken" did not pass`, after.SkipReason)
	assert.True(t, resultByName(t, result, "independent").Passed)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
}

func TestRunner_Bail(t *testing.T) {
	server := newAPI(t)
	suite := `
baseUrl: ` + server.URL + `
checks:
  - name: first
    path: /fail
  - name: second
    path: /ok
`
	result := runSuite(t, &Config{Bail: true}, suite)

	second := resultByName(t, result, "second")
	assert.True(t, second.Skipped)
	assert.Equal(t, "bailed out after a failure", second.SkipReason)
	assert.Nil(t, second.Request)
}

func TestRunner_SkipOnlyAndFilters(t *testing.T) {
	server := newAPI(t)
	base := `
baseUrl: ` + server.URL + `
checks:
  - name: smoke ok
    path: /ok
    tags: [smoke]
  - name: slow ok
    path: /ok
    tags: [slow]
  - name: skipped
    path: /ok
    skip: not today
`

	result := runSuite(t, nil, base)
	assert.Equal(t, "not today", resultByName(t, result, "skipped").SkipReason)
	assert.Equal(t, 2, result.Passed)

	cfg := DefaultRunnerConfig()
	cfg.TagsFilter = []string{"smoke"}
	result = runSuite(t, cfg, base)
	assert.Equal(t, "filtered out", resultByName(t, result, "slow ok").SkipReason)
	assert.True(t, resultByName(t, result, "smoke ok").Passed)

	cfg = DefaultRunnerConfig()
	cfg.NameFilter = "slow*"
	result = runSuite(t, cfg, base)
	assert.Equal(t, 1, result.Passed)
	assert.True(t, resultByName(t, result, "slow ok").Passed)

	only := base + "  - name: focused\n    path: /ok\n    only: true\n"
	result = runSuite(t, nil, only)
	assert.Equal(t, 1, result.Passed)
	assert.True(t, resultByName(t, result, "focused").Passed)
	assert.Equal(t, 3, result.Skipped)
}

func TestRunner_Parallel(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	var once sync.Once

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if n >= 2 {
			once.Do(func() { close(release) })
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"path": %q}`, r.URL.Path)
	}))
	defer server.Close()

	suite := `
baseUrl: ` + server.URL + `
parallel: true
concurrency: 2
checks:
  - {name: a, path: /a, expect: {body: {path: /a}}}
  - {name: b, path: /b, expect: {body: {path: /b}}}
  - {name: c, path: /c, expect: {body: {path: /c}}}
  - {name: d, path: /d, expect: {body: {path: /d}}}
`
	result := runSuite(t, nil, suite)

	require.Len(t, result.Results, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, name, result.Results[i].Name)
		assert.True(t, result.Results[i].Passed, "%s: %v %v", name, result.Results[i].Error, result.Results[i].Failures)
	}
	assert.Equal(t, int32(2), peak.Load())
}

func TestRunner_NetworkError(t *testing.T) {
	server := httptest.NewServer(nethttp.NotFoundHandler())
	url := server.URL
	server.Close()

	result := runSuite(t, nil, "checks:\n  - path: "+url+"/gone\n")

	res := result.Results[0]
	assert.False(t, res.Passed)
	assert.Error(t, res.Error)
	assert.Nil(t, res.Response)
	assert.Equal(t, 1, result.Failed)
}

func TestRunner_CanceledContext(t *testing.T) {
	server := newAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRunner(nil).RunFile(ctx, writeSuite(t, "baseUrl: "+server.URL+"\nchecks:\n  - path: /ok\n  - path: /fail\n"))
	require.NoError(t, err)

	require.Len(t, result.Results, 2)
	for _, r := range result.Results {
		assert.ErrorIs(t, r.Error, context.Canceled)
	}
	assert.Equal(t, 2, result.Failed)
}

func TestRunner_Environments(t *testing.T) {
	server := newAPI(t)
	suite := `
baseUrl: "{{host}}"
variables:
  host: http://127.0.0.1:1
environments:
  local:
    host: ` + server.URL + `
checks:
  - path: /ok
`
	cfg := DefaultRunnerConfig()
	cfg.Environment = "local"
	result := runSuite(t, cfg, suite)
	assert.True(t, result.Results[0].Passed)

	cfg.Environment = "staging"
	_, err := NewRunner(cfg).RunFile(context.Background(), writeSuite(t, suite))
	assert.ErrorContains(t, err, `has no environment "staging"`)

	cfg = DefaultRunnerConfig()
	cfg.Variables = map[string]any{"host": server.URL}
	result = runSuite(t, cfg, suite)
	assert.True(t, result.Results[0].Passed)
}

func TestRunner_EnvFile(t *testing.T) {
	server := newAPI(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REQFLOW_RUNNER_PASSWORD=hunter2\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("REQFLOW_RUNNER_PASSWORD") })

	suite := `
baseUrl: ` + server.URL + `
envFile: .env
checks:
  - method: POST
    path: /login
    json: {password: "{{$REQFLOW_RUNNER_PASSWORD}}"}
`
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suite), 0o644))

	result, err := NewRunner(nil).RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, result.Results[0].Passed)

	cfg := DefaultRunnerConfig()
	cfg.EnvFile = filepath.Join(dir, "missing.env")
	_, err = NewRunner(cfg).RunFile(context.Background(), path)
	assert.ErrorContains(t, err, "loading environment")
}

func TestRunner_GraphQL(t *testing.T) {
	server := newAPI(t)
	suite := `
baseUrl: ` + server.URL + `
variables:
  launchId: "109"
checks:
  - name: launch
    path: /graphql
    graphql:
      query: "query($id: ID!) { launch(id: $id) { id mission } }"
      variables: {id: "{{launchId}}"}
    expect:
      content:
        launch: {id: "109", mission: Starlink}
      errors: {isNull: true}
      body:
        launch.mission: {startsWith: Star}
`
	result := runSuite(t, nil, suite)

	res := result.Results[0]
	require.True(t, res.Passed, "%v %v", res.Error, res.Failures)
	assert.Equal(t, response.GraphQL, res.Response.Kind())
	assert.Equal(t, "POST", res.Request.Method)
}

func TestRunner_SaveResponse(t *testing.T) {
	server := newAPI(t)
	dir := t.TempDir()
	suite := `
baseUrl: ` + server.URL + `
checks:
  - path: /users/7
    save: out/user.json
`
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suite), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0o755))

	result, err := NewRunner(nil).RunFile(context.Background(), path)
	require.NoError(t, err)
	require.True(t, result.Results[0].Passed)

	saved, err := os.ReadFile(filepath.Join(dir, "out", "user.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 7, "name": "ada"}`, string(saved))
}

type spyRecorder struct {
	mu   sync.Mutex
	urls []string
}

func (s *spyRecorder) Record(ex http.Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, ex.URL)
}

func TestRunner_RecorderAndLogger(t *testing.T) {
	server := newAPI(t)
	spy := &spyRecorder{}
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	suite := "baseUrl: " + server.URL + "\nchecks:\n  - path: /ok\n  - path: /users/7\n"
	runSuite(t, nil, suite, WithRecorder(spy), WithLogger(logger))

	assert.Equal(t, []string{server.URL + "/ok", server.URL + "/users/7"}, spy.urls)

	var finished *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "suite finished" {
			finished = e
		}
	}
	require.NotNil(t, finished)
	assert.Equal(t, 2, finished.Data["passed"])
}

func TestRunner_WaitFor(t *testing.T) {
	var calls atomic.Int32
	server := newAPI(t)
	health := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(nethttp.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}))
	defer health.Close()

	suite := `
baseUrl: ` + server.URL + `
waitFor:
  url: ` + health.URL + `
  status: 204
  interval: 10ms
checks:
  - path: /ok
`
	result := runSuite(t, nil, suite)
	assert.True(t, result.Results[0].Passed)
	assert.Equal(t, int32(3), calls.Load())

	never := `
waitFor:
  url: ` + health.URL + `
  status: 418
  timeout: 50ms
  interval: 10ms
checks:
  - path: ` + server.URL + `/ok
`
	_, err := NewRunner(nil).RunFile(context.Background(), writeSuite(t, never))
	assert.ErrorContains(t, err, "got status 204, expected 418")
}

func TestTopologicalSort(t *testing.T) {
	checks := []*parser.Check{
		{Name: "c", Depends: []string{"b"}},
		{Name: "a"},
		{Name: "b", Depends: []string{"a"}},
		{Name: "d"},
	}

	sorted, err := topologicalSort(checks)
	require.NoError(t, err)

	names := make([]string, len(sorted))
	for i, c := range sorted {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)

	_, err = topologicalSort([]*parser.Check{
		{Name: "x", Depends: []string{"y"}},
		{Name: "y", Depends: []string{"x"}},
	})
	assert.ErrorContains(t, err, "circular dependency")
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"get user", "get user", true},
		{"get user", "get*", true},
		{"get user", "*user", true},
		{"get user", "*t u*", true},
		{"get user", "user*", false},
		{"get user", "get", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesPattern(tt.name, tt.pattern), "%s ~ %s", tt.name, tt.pattern)
	}
}

func TestBuildAuth_InvalidCredentials(t *testing.T) {
	_, err := buildAuth(&parser.Auth{Bearer: "{{missing}}"}, func(s string) string { return "" })
	assert.Error(t, err)

	a, err := buildAuth(nil, func(s string) string { return s })
	assert.NoError(t, err)
	assert.Nil(t, a)
}
