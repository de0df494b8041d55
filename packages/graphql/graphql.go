// Package graphql sends GraphQL operations over the reqflow HTTP client and
// decodes the answers as GraphQL responses, so that Content is the "data"
// member and Errors the "errors" member.
package graphql

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/reqflow/packages/auth"
	"github.com/abdul-hamid-achik/reqflow/packages/fluent"
	"github.com/abdul-hamid-achik/reqflow/packages/http"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
)

// Request is a single GraphQL operation.
type Request struct {
	Name          string
	Operation     string
	Variables     map[string]any
	OperationName string
	Mutation      bool
	Headers       map[string]string
}

// Payload is the JSON document posted to the endpoint.
func (r *Request) Payload() map[string]any {
	p := map[string]any{
		"query":     r.Operation,
		"variables": r.Variables,
	}
	if r.OperationName != "" {
		p["operationName"] = r.OperationName
	}
	return p
}

// Client posts operations to one endpoint.
type Client struct {
	http     *http.Client
	endpoint string
}

// NewClient builds a client for endpoint with its own transport.
func NewClient(endpoint string, opts ...http.ClientOption) *Client {
	return &Client{http: http.NewClient(opts...), endpoint: endpoint}
}

// NewClientWith reuses an existing transport, sharing its recorder, jar
// and logger.
func NewClientWith(c *http.Client, endpoint string) *Client {
	return &Client{http: c, endpoint: endpoint}
}

func (c *Client) Endpoint() string { return c.endpoint }

// NewHTTPRequest builds the POST carrying req, without sending it.
func (c *Client) NewHTTPRequest(req *Request) (*http.Request, error) {
	if req.Operation == "" {
		return nil, fmt.Errorf("%w: the query is required", fluent.ErrInvalidArgument)
	}

	hreq := http.NewRequest("POST", c.endpoint)
	hreq.Name = req.Name
	for k, v := range req.Headers {
		hreq.SetHeader(k, v)
	}
	if err := hreq.SetJSON(req.Payload()); err != nil {
		return nil, err
	}
	return hreq, nil
}

// Send posts req and decodes the response. Auth, when non-nil, is applied
// to the outgoing request.
func (c *Client) Send(ctx context.Context, req *Request, a http.Authenticator) (*response.Response, error) {
	hreq, err := c.NewHTTPRequest(req)
	if err != nil {
		return nil, err
	}
	hreq.Auth = a

	return Decode(c.http.Do(ctx, hreq))
}

// Decode wraps a transport result as a GraphQL response.
func Decode(raw *response.Raw, err error) (*response.Response, error) {
	if err != nil {
		return nil, err
	}
	return response.New(raw, response.WithKind(response.GraphQL))
}

// GivenStep builds an operation.
type GivenStep struct {
	client *Client
	req    *Request
	err    error
}

// Given starts a GraphQL scenario against client.
func Given(client *Client) *GivenStep {
	g := &GivenStep{client: client, req: &Request{Headers: map[string]string{}}}
	if client == nil {
		g.err = fmt.Errorf("%w: a client is required", fluent.ErrInvalidArgument)
	}
	return g
}

func (g *GivenStep) fail(err error) *GivenStep {
	if g.err == nil {
		g.err = err
	}
	return g
}

func (g *GivenStep) setOperation(op string, mutation bool) *GivenStep {
	if g.req.Operation != "" {
		return g.fail(fmt.Errorf("%w: operation already set", fluent.ErrInvalidArgument))
	}
	g.req.Operation = op
	g.req.Mutation = mutation
	return g
}

func (g *GivenStep) Query(q string) *GivenStep { return g.setOperation(q, false) }

func (g *GivenStep) Mutation(m string) *GivenStep { return g.setOperation(m, true) }

func (g *GivenStep) Variables(v map[string]any) *GivenStep {
	g.req.Variables = v
	return g
}

func (g *GivenStep) OperationName(name string) *GivenStep {
	g.req.OperationName = name
	return g
}

func (g *GivenStep) Header(key, value string) *GivenStep {
	g.req.Headers[key] = value
	return g
}

func (g *GivenStep) Named(name string) *GivenStep {
	g.req.Name = name
	return g
}

// OperationText returns the query or mutation as given.
func (g *GivenStep) OperationText() string { return g.req.Operation }

func (g *GivenStep) When() *WhenStep {
	return &WhenStep{client: g.client, req: g.req, err: g.err}
}

// Then is a shortcut for When().Then(ctx).
func (g *GivenStep) Then(ctx context.Context) *response.Expectation {
	return g.When().Then(ctx)
}

// WhenStep carries the operation and its credentials.
type WhenStep struct {
	client *Client
	req    *Request
	auth   http.Authenticator
	err    error
}

func (w *WhenStep) authenticate(a http.Authenticator, err error) *WhenStep {
	if err != nil {
		if w.err == nil {
			w.err = err
		}
		return w
	}
	w.auth = a
	return w
}

func (w *WhenStep) WithBearer(token string) *WhenStep {
	a, err := auth.NewBearer(token)
	return w.authenticate(a, err)
}

func (w *WhenStep) WithAPIKey(name, value string) *WhenStep {
	a, err := auth.NewAPIKey(name, value)
	return w.authenticate(a, err)
}

func (w *WhenStep) Send(ctx context.Context) (*response.Response, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.client.Send(ctx, w.req, w.auth)
}

func (w *WhenStep) Then(ctx context.Context) *response.Expectation {
	resp, err := w.Send(ctx)
	if err != nil {
		return response.Failed(err)
	}
	return resp.Expect()
}
