// Package fluent is a given/when/then DSL over the reqflow HTTP client.
//
//	fluent.Given(client).
//		QueryParam("page", 2).
//		When("GET", "/users").
//		Then(ctx).
//		Status(200).
//		BodyPath("[0].id", assertions.IsNotNull()).
//		Require(t)
//
// Builder mistakes do not panic: the first one is kept and returned by the
// Expectation that Then produces.
package fluent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/auth"
	"github.com/abdul-hamid-achik/reqflow/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/reqflow/packages/http"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
)

// ErrInvalidArgument marks misuse of the builder.
var ErrInvalidArgument = errors.New("invalid argument")

// GivenStep collects everything sent with the request except the method,
// the path and the credentials.
type GivenStep struct {
	client *http.Client
	req    *http.Request
	err    error
}

// Given starts a scenario against client.
func Given(client *http.Client) *GivenStep {
	g := &GivenStep{client: client, req: http.NewRequest("", "")}
	if client == nil {
		g.err = fmt.Errorf("%w: a client is required", ErrInvalidArgument)
	}
	return g
}

// GivenURL starts a scenario with a new client rooted at baseURL.
func GivenURL(baseURL string, opts ...http.ClientOption) *GivenStep {
	if baseURL == "" {
		return Given(nil)
	}
	return Given(http.NewClient(append(opts, http.WithBaseURL(baseURL))...))
}

func (g *GivenStep) fail(err error) *GivenStep {
	if g.err == nil {
		g.err = err
	}
	return g
}

func (g *GivenStep) invalid(format string, args ...any) *GivenStep {
	return g.fail(fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...)))
}

// Named labels the exchange in the recorder.
func (g *GivenStep) Named(name string) *GivenStep {
	g.req.Name = name
	return g
}

func (g *GivenStep) QueryParam(key string, value any) *GivenStep {
	if key == "" {
		return g.invalid("query parameter name is empty")
	}
	g.req.SetQueryParam(key, fmt.Sprint(value))
	return g
}

func (g *GivenStep) QueryParams(params map[string]any) *GivenStep {
	for k, v := range params {
		g.QueryParam(k, v)
	}
	return g
}

func (g *GivenStep) Header(key, value string) *GivenStep {
	if key == "" {
		return g.invalid("header name is empty")
	}
	g.req.SetHeader(key, value)
	return g
}

// Headers merges headers into those already set.
func (g *GivenStep) Headers(headers map[string]string) *GivenStep {
	for k, v := range headers {
		g.Header(k, v)
	}
	return g
}

func (g *GivenStep) Cookie(name, value string) *GivenStep {
	if name == "" {
		return g.invalid("cookie name is empty")
	}
	g.req.SetCookie(name, value)
	return g
}

func (g *GivenStep) Cookies(cookies map[string]string) *GivenStep {
	for k, v := range cookies {
		g.Cookie(k, v)
	}
	return g
}

func (g *GivenStep) body(err error) *GivenStep {
	if err == nil {
		return g
	}
	if errors.Is(err, http.ErrBodyAlreadySet) {
		return g.fail(fmt.Errorf("%w: %w", ErrInvalidArgument, err))
	}
	return g.fail(err)
}

// JSON sets a JSON body. Only one body may be set.
func (g *GivenStep) JSON(v any) *GivenStep {
	return g.body(g.req.SetJSON(v))
}

// Form sets an url-encoded body.
func (g *GivenStep) Form(fields map[string]string) *GivenStep {
	return g.body(g.req.SetForm(fields))
}

// Body sets a raw body.
func (g *GivenStep) Body(content string) *GivenStep {
	return g.body(g.req.SetBody(content))
}

// FileUpload attaches the file at path as the multipart part field.
func (g *GivenStep) FileUpload(field, path string) *GivenStep {
	if _, err := os.Stat(path); err != nil {
		return g.fail(fmt.Errorf("file %s not found: %w", path, err))
	}
	return g.body(g.req.AddFile(field, path))
}

// When fixes the method and the path, resolved against the client's base
// URL when relative.
func (g *GivenStep) When(method, path string) *WhenStep {
	w := &WhenStep{client: g.client, req: g.req, err: g.err}
	if strings.TrimSpace(method) == "" {
		w.fail(fmt.Errorf("%w: method is empty", ErrInvalidArgument))
	}
	w.req.Method = strings.ToUpper(method)
	w.req.URL = path
	return w
}

// WhenStep holds the request about to be sent.
type WhenStep struct {
	client   *http.Client
	req      *http.Request
	respOpts []response.Option
	err      error
}

func (w *WhenStep) fail(err error) *WhenStep {
	if w.err == nil {
		w.err = err
	}
	return w
}

func (w *WhenStep) authenticate(a http.Authenticator, err error) *WhenStep {
	if err != nil {
		return w.fail(err)
	}
	w.req.Auth = a
	return w
}

func (w *WhenStep) WithBasicAuth(username, password string) *WhenStep {
	a, err := auth.NewBasic(username, password)
	return w.authenticate(a, err)
}

// WithBearer sends token as a bearer token. This is also how a
// pre-issued OAuth2 access token is used.
func (w *WhenStep) WithBearer(token string) *WhenStep {
	a, err := auth.NewBearer(token)
	return w.authenticate(a, err)
}

func (w *WhenStep) WithAPIKey(name, value string) *WhenStep {
	a, err := auth.NewAPIKey(name, value)
	return w.authenticate(a, err)
}

func (w *WhenStep) WithAPIKeyQuery(name, value string) *WhenStep {
	a, err := auth.NewAPIKeyQuery(name, value)
	return w.authenticate(a, err)
}

// WithOAuth2 fetches (or reuses) a token from the configured endpoint.
func (w *WhenStep) WithOAuth2(cfg *oauth2.Config, opts ...oauth2.ProviderOption) *WhenStep {
	p, err := oauth2.NewProvider(cfg, opts...)
	return w.authenticate(p, err)
}

func (w *WhenStep) FollowRedirects(follow bool) *WhenStep {
	w.req.FollowRedirects = &follow
	return w
}

func (w *WhenStep) Timeout(d time.Duration) *WhenStep {
	if d <= 0 {
		return w.fail(fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidArgument, d))
	}
	w.req.SetTimeout(d)
	return w
}

// ForceJSON parses the body as JSON whatever its content type.
func (w *WhenStep) ForceJSON() *WhenStep {
	w.respOpts = append(w.respOpts, response.WithForceJSON())
	return w
}

// Request exposes the request as it will be sent.
func (w *WhenStep) Request() *http.Request { return w.req }

// Send performs the exchange and decodes the response.
func (w *WhenStep) Send(ctx context.Context) (*response.Response, error) {
	if w.err != nil {
		return nil, w.err
	}
	raw, err := w.client.Do(ctx, w.req)
	if err != nil {
		return nil, err
	}
	return response.New(raw, w.respOpts...)
}

// Then sends the request and starts the checks. A builder or transport
// error becomes the Expectation's error.
func (w *WhenStep) Then(ctx context.Context) *response.Expectation {
	resp, err := w.Send(ctx)
	if err != nil {
		return response.Failed(err)
	}
	return resp.Expect()
}
