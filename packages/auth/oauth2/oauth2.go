// Package oauth2 fetches and caches OAuth2 access tokens for reqflow requests.
package oauth2

import (
	"context"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/abdul-hamid-achik/reqflow/packages/auth"
	"github.com/abdul-hamid-achik/reqflow/packages/http"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
)

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string    `yaml:"tokenUrl" json:"tokenUrl"`
	ClientID     string    `yaml:"clientId" json:"clientId"`
	ClientSecret string    `yaml:"clientSecret" json:"clientSecret"`
	Scopes       []string  `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	Username     string    `yaml:"username,omitempty" json:"username,omitempty"` // For password grant
	Password     string    `yaml:"password,omitempty" json:"password,omitempty"` // For password grant
	GrantType    GrantType `yaml:"grantType,omitempty" json:"grantType,omitempty"`
}

// Validate reports missing settings as auth.ErrInvalidCredentials.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("%w: oauth2 requires a token URL", auth.ErrInvalidCredentials)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%w: oauth2 requires a client ID", auth.ErrInvalidCredentials)
	}
	switch c.grantType() {
	case ClientCredentials:
	case Password:
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("%w: oauth2 password grant requires a username and a password", auth.ErrInvalidCredentials)
		}
	default:
		return fmt.Errorf("unsupported OAuth2 grant type: %s", c.GrantType)
	}
	return nil
}

func (c *Config) grantType() GrantType {
	if c.GrantType == "" {
		return ClientCredentials
	}
	return c.GrantType
}

func (c *Config) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", c.grantType(), c.TokenURL, c.ClientID, c.Username, strings.Join(c.Scopes, ","))
}

// Provider handles OAuth2 token acquisition and implements http.Authenticator.
type Provider struct {
	config     *Config
	httpClient *nethttp.Client
	cache      *TokenCache
}

type ProviderOption func(*Provider)

// WithHTTPClient sets the client used against the token endpoint.
func WithHTTPClient(c *nethttp.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithCache replaces the shared GlobalCache.
func WithCache(c *TokenCache) ProviderOption {
	return func(p *Provider) {
		p.cache = c
	}
}

// NewProvider validates config and returns a Provider backed by GlobalCache.
func NewProvider(config *Config, opts ...ProviderOption) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{
		config: config,
		cache:  GlobalCache,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Token retrieves a valid access token, fetching a new one if necessary
func (p *Provider) Token(ctx context.Context) (*xoauth2.Token, error) {
	key := p.config.cacheKey()
	if token := p.cache.Get(key); token.Valid() {
		return token, nil
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, xoauth2.HTTPClient, p.httpClient)
	}

	token, err := p.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching oauth2 token from %s: %w", p.config.TokenURL, err)
	}

	p.cache.Set(key, token)
	return token, nil
}

func (p *Provider) fetch(ctx context.Context) (*xoauth2.Token, error) {
	switch p.config.grantType() {
	case Password:
		cfg := &xoauth2.Config{
			ClientID:     p.config.ClientID,
			ClientSecret: p.config.ClientSecret,
			Endpoint:     xoauth2.Endpoint{TokenURL: p.config.TokenURL},
			Scopes:       p.config.Scopes,
		}
		return cfg.PasswordCredentialsToken(ctx, p.config.Username, p.config.Password)
	default:
		cfg := &clientcredentials.Config{
			ClientID:     p.config.ClientID,
			ClientSecret: p.config.ClientSecret,
			TokenURL:     p.config.TokenURL,
			Scopes:       p.config.Scopes,
		}
		return cfg.Token(ctx)
	}
}

// Apply sets the Authorization header from a cached or freshly fetched token.
func (p *Provider) Apply(ctx context.Context, req *http.Request) error {
	token, err := p.Token(ctx)
	if err != nil {
		return err
	}
	req.SetHeader("Authorization", token.Type()+" "+token.AccessToken)
	return nil
}
