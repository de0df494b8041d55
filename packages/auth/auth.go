// Package auth applies credentials to outgoing requests.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/reqflow/packages/http"
)

// ErrInvalidCredentials is returned when a scheme is given empty credentials.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Basic is HTTP Basic authentication.
type Basic struct {
	Username string
	Password string
}

func NewBasic(username, password string) (*Basic, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: basic auth requires a username and a password", ErrInvalidCredentials)
	}
	return &Basic{Username: username, Password: password}, nil
}

func (b *Basic) Apply(_ context.Context, req *http.Request) error {
	creds := b.Username + ":" + b.Password
	req.SetHeader("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	return nil
}

// Bearer sends a token in the Authorization header.
type Bearer struct {
	Token string
}

func NewBearer(token string) (*Bearer, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: bearer auth requires a token", ErrInvalidCredentials)
	}
	return &Bearer{Token: token}, nil
}

func (b *Bearer) Apply(_ context.Context, req *http.Request) error {
	req.SetHeader("Authorization", "Bearer "+b.Token)
	return nil
}

// APIKey sends a key either as a header or as a query parameter.
type APIKey struct {
	Name    string
	Value   string
	InQuery bool
}

// NewAPIKey returns a header API key. An empty name defaults to X-API-Key.
func NewAPIKey(name, value string) (*APIKey, error) {
	if name == "" {
		name = "X-API-Key"
	}
	if value == "" {
		return nil, fmt.Errorf("%w: api key %s is empty", ErrInvalidCredentials, name)
	}
	return &APIKey{Name: name, Value: value}, nil
}

// NewAPIKeyQuery returns an API key sent as the query parameter name.
func NewAPIKeyQuery(name, value string) (*APIKey, error) {
	if name == "" || value == "" {
		return nil, fmt.Errorf("%w: api key query parameter requires a name and a value", ErrInvalidCredentials)
	}
	return &APIKey{Name: name, Value: value, InQuery: true}, nil
}

func (k *APIKey) Apply(_ context.Context, req *http.Request) error {
	if k.InQuery {
		req.SetQueryParam(k.Name, k.Value)
		return nil
	}
	req.SetHeader(k.Name, k.Value)
	return nil
}
