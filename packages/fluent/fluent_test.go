package fluent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/assertions"
	"github.com/abdul-hamid-achik/reqflow/packages/auth"
	"github.com/abdul-hamid-achik/reqflow/packages/auth/oauth2"
	reqhttp "github.com/abdul-hamid-achik/reqflow/packages/http"
	"github.com/abdul-hamid-achik/reqflow/packages/recorder"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer answers with a JSON description of the request it received.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cookies := map[string]string{}
		for _, c := range r.Cookies() {
			cookies[c.Name] = c.Value
		}
		args := map[string]string{}
		for k := range r.URL.Query() {
			args[k] = r.URL.Query().Get(k)
		}
		headers := map[string]string{}
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Path", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"method":  r.Method,
			"path":    r.URL.Path,
			"args":    args,
			"headers": headers,
			"cookies": cookies,
			"data":    string(body),
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGivenWhenThen(t *testing.T) {
	server := echoServer(t)
	client := reqhttp.NewClient(reqhttp.WithBaseURL(server.URL))

	Given(client).
		QueryParam("page", 2).
		Header("Accept", "application/json").
		Cookie("session", "abc").
		When("get", "/users").
		Then(context.Background()).
		Status(200).
		StatusInRange(200, 299).
		Body("method", "GET").
		Body("path", "/users").
		Body("args.page", "2").
		Body("headers.Accept", "application/json").
		Body("cookies.session", "abc").
		Header("X-Request-Path", assertions.Equals("/users")).
		ElapsedAtMost(5 * time.Second).
		Require(t)
}

func TestGivenURL(t *testing.T) {
	server := echoServer(t)

	resp, err := GivenURL(server.URL).When("DELETE", "/items/7").Send(context.Background())
	require.NoError(t, err)
	v, err := resp.Query("path")
	require.NoError(t, err)
	assert.Equal(t, "/items/7", v)
}

func TestBodies(t *testing.T) {
	server := echoServer(t)
	client := reqhttp.NewClient(reqhttp.WithBaseURL(server.URL))

	t.Run("json", func(t *testing.T) {
		Given(client).
			JSON(map[string]any{"name": "widget"}).
			When("POST", "/items").
			Then(context.Background()).
			Body("headers.Content-Type", "application/json").
			BodyPath("data", assertions.Contains(`"name":"widget"`)).
			Require(t)
	})

	t.Run("form", func(t *testing.T) {
		Given(client).
			Form(map[string]string{"q": "a b"}).
			When("POST", "/search").
			Then(context.Background()).
			Body("data", "q=a+b").
			Require(t)
	})

	t.Run("file upload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello upload"), 0644))

		Given(client).
			FileUpload("doc", path).
			When("POST", "/upload").
			Then(context.Background()).
			BodyPath("headers.Content-Type", assertions.StartsWith("multipart/form-data")).
			BodyPath("data", assertions.Contains("hello upload")).
			Require(t)
	})
}

func TestAuthentication(t *testing.T) {
	server := echoServer(t)
	client := reqhttp.NewClient(reqhttp.WithBaseURL(server.URL))

	tests := []struct {
		name string
		when func(*WhenStep) *WhenStep
		path string
		want string
	}{
		{
			name: "basic",
			when: func(w *WhenStep) *WhenStep { return w.WithBasicAuth("user", "pass") },
			path: "headers.Authorization",
			want: "Basic dXNlcjpwYXNz",
		},
		{
			name: "bearer",
			when: func(w *WhenStep) *WhenStep { return w.WithBearer("tok") },
			path: "headers.Authorization",
			want: "Bearer tok",
		},
		{
			name: "api key header",
			when: func(w *WhenStep) *WhenStep { return w.WithAPIKey("X-Api-Key", "k1") },
			path: "headers.X-Api-Key",
			want: "k1",
		},
		{
			name: "api key query",
			when: func(w *WhenStep) *WhenStep { return w.WithAPIKeyQuery("key", "k2") },
			path: "args.key",
			want: "k2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.when(Given(client).When("GET", "/secure")).
				Then(context.Background()).
				Body(tt.path, tt.want).
				Require(t)
		})
	}
}

func TestWithOAuth2(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "issued", "token_type": "Bearer", "expires_in": 60}`))
	}))
	defer tokens.Close()
	server := echoServer(t)

	Given(reqhttp.NewClient(reqhttp.WithBaseURL(server.URL))).
		When("GET", "/me").
		WithOAuth2(&oauth2.Config{TokenURL: tokens.URL, ClientID: "c", ClientSecret: "s"}, oauth2.WithCache(oauth2.NewTokenCache())).
		Then(context.Background()).
		Body("headers.Authorization", "Bearer issued").
		Require(t)
}

func TestBuilderErrors(t *testing.T) {
	server := echoServer(t)
	client := reqhttp.NewClient(reqhttp.WithBaseURL(server.URL))

	tests := []struct {
		name   string
		exp    func() *response.Expectation
		target error
	}{
		{
			name:   "missing client",
			exp:    func() *response.Expectation { return Given(nil).When("GET", "/").Then(context.Background()) },
			target: ErrInvalidArgument,
		},
		{
			name:   "missing url",
			exp:    func() *response.Expectation { return GivenURL("").When("GET", "/").Then(context.Background()) },
			target: ErrInvalidArgument,
		},
		{
			name: "two bodies",
			exp: func() *response.Expectation {
				return Given(client).JSON(1).Body("x").When("POST", "/").Then(context.Background())
			},
			target: ErrInvalidArgument,
		},
		{
			name:   "empty method",
			exp:    func() *response.Expectation { return Given(client).When(" ", "/").Then(context.Background()) },
			target: ErrInvalidArgument,
		},
		{
			name:   "empty header name",
			exp:    func() *response.Expectation { return Given(client).Header("", "v").When("GET", "/").Then(context.Background()) },
			target: ErrInvalidArgument,
		},
		{
			name: "non-positive timeout",
			exp: func() *response.Expectation {
				return Given(client).When("GET", "/").Timeout(0).Then(context.Background())
			},
			target: ErrInvalidArgument,
		},
		{
			name: "empty basic credentials",
			exp: func() *response.Expectation {
				return Given(client).When("GET", "/").WithBasicAuth("", "").Then(context.Background())
			},
			target: auth.ErrInvalidCredentials,
		},
		{
			name: "empty bearer token",
			exp: func() *response.Expectation {
				return Given(client).When("GET", "/").WithBearer("").Then(context.Background())
			},
			target: auth.ErrInvalidCredentials,
		},
		{
			name: "missing upload",
			exp: func() *response.Expectation {
				return Given(client).FileUpload("f", filepath.Join(t.TempDir(), "nope")).When("POST", "/").Then(context.Background())
			},
			target: os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := tt.exp().Status(200)
			assert.ErrorIs(t, exp.Err(), tt.target)
			assert.Nil(t, exp.Response())
		})
	}
}

func TestFirstBuilderErrorWins(t *testing.T) {
	exp := Given(nil).Header("", "v").When("", "/").Then(context.Background())
	require.Error(t, exp.Err())
	assert.Contains(t, exp.Err().Error(), "a client is required")
}

func TestFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	client := reqhttp.NewClient(reqhttp.WithBaseURL(server.URL))

	Given(client).When("GET", "/old").FollowRedirects(false).Then(context.Background()).
		Status(301).
		Header("Location", assertions.Equals("/new")).
		Require(t)

	Given(client).When("GET", "/old").Then(context.Background()).Status(200).Require(t)
}

func TestForceJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()
	client := reqhttp.NewClient(reqhttp.WithBaseURL(server.URL))

	Given(client).When("GET", "/").ForceJSON().Then(context.Background()).Body("ok", true).Require(t)

	err := Given(client).When("GET", "/").Then(context.Background()).Body("ok", true).Err()
	assert.ErrorIs(t, err, response.ErrUnsupportedContent)
}

func TestRecordedByName(t *testing.T) {
	server := echoServer(t)
	rec := recorder.New()
	client := reqhttp.NewClient(reqhttp.WithBaseURL(server.URL), reqhttp.WithRecorder(rec))

	Given(client).Named("create item").JSON(map[string]int{"n": 1}).When("POST", "/items").Then(context.Background()).Status(200).Require(t)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "create item", entries[0].Name)
	assert.Equal(t, "POST", entries[0].Request.Method)
	assert.Equal(t, server.URL+"/items", entries[0].Request.URL)
}
