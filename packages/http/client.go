package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/response"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Exchange is one request as sent, with its outcome. Raw is nil when Err is
// set.
type Exchange struct {
	Request *Request
	URL     string
	Raw     *response.Raw
	Err     error
}

// Recorder receives every exchange the client completes.
type Recorder interface {
	Record(ex Exchange)
}

type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	baseURL        string
	useJar         bool
	jar            http.CookieJar
	defaultHeaders map[string]string
	recorder       Recorder
	logger         logrus.FieldLogger
}

type ClientOption func(*Client)

type followKey struct{}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			c.logger.WithError(err).WithField("proxy", c.proxyURL).Warn("ignoring invalid proxy URL")
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		follow := c.followRedirect
		if v, ok := req.Context().Value(followKey{}).(bool); ok {
			follow = v
		}
		if !follow {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	if c.useJar && c.jar == nil {
		// cookiejar.New never fails with nil options.
		c.jar, _ = cookiejar.New(nil)
	}

	c.httpClient = &http.Client{
		Transport:     transport,
		Timeout:       c.timeout,
		CheckRedirect: redirectPolicy,
		Jar:           c.jar,
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithBaseURL resolves relative request URLs against base.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.baseURL = base
	}
}

// WithCookieJar keeps cookies across requests made by the client.
func WithCookieJar() ClientOption {
	return func(c *Client) {
		c.useJar = true
	}
}

func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// BaseURL returns the URL relative requests are resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends req and returns the undecoded exchange. Elapsed covers the round
// trip and the body read, nothing else.
func (c *Client) Do(ctx context.Context, req *Request) (*response.Raw, error) {
	target, raw, err := c.do(ctx, req)
	if c.recorder != nil {
		c.recorder.Record(Exchange{Request: req, URL: target, Raw: raw, Err: err})
	}
	return raw, err
}

func (c *Client) do(ctx context.Context, req *Request) (string, *response.Raw, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	if req.FollowRedirects != nil {
		ctx = context.WithValue(ctx, followKey{}, *req.FollowRedirects)
	}

	if req.Auth != nil {
		if err := req.Auth.Apply(ctx, req); err != nil {
			return req.BuildURL(c.baseURL), nil, err
		}
	}

	target := req.BuildURL(c.baseURL)
	if err := ValidateURL(target); err != nil {
		return target, nil, err
	}

	var body io.Reader
	var contentType string

	if len(req.Multipart) > 0 {
		multipartBody, ct, err := BuildMultipartBody(req.Multipart, req.BaseDir)
		if err != nil {
			return target, nil, err
		}
		body = multipartBody
		contentType = ct
	} else if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return target, nil, err
	}

	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// Set multipart content type if present (must be after headers to override)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	for name, value := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	log := c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    target,
	})

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.WithError(err).Debug("request failed")
		return target, nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return target, nil, fmt.Errorf("reading response body: %w", err)
	}

	log.WithFields(logrus.Fields{
		"status":  httpResp.StatusCode,
		"elapsed": elapsed,
		"bytes":   len(respBody),
	}).Debug("request completed")

	return target, &response.Raw{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    response.HeadersFromHTTP(httpResp.Header),
		Body:       respBody,
		Elapsed:    elapsed,
		Cookies:    c.collectCookies(httpResp),
	}, nil
}

// collectCookies returns the cookies set by the final response, plus those
// held by the jar for its URL.
func (c *Client) collectCookies(resp *http.Response) map[string]string {
	cookies := make(map[string]string)
	if c.jar != nil && resp.Request != nil {
		for _, ck := range c.jar.Cookies(resp.Request.URL) {
			cookies[ck.Name] = ck.Value
		}
	}
	for _, ck := range resp.Cookies() {
		cookies[ck.Name] = ck.Value
	}
	return cookies
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}

// BuildMultipartBody creates a multipart form data body from multipart fields
func BuildMultipartBody(fields []MultipartField, baseDir string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, field := range fields {
		if field.File {
			filePath := field.Path
			if !filepath.IsAbs(filePath) && baseDir != "" {
				filePath = filepath.Join(baseDir, filePath)
			}

			if err := validatePathWithinBase(filePath, baseDir); err != nil {
				return nil, "", err
			}

			file, err := os.Open(filePath)
			if err != nil {
				return nil, "", fmt.Errorf("opening upload %s: %w", field.Name, err)
			}

			part, err := writer.CreateFormFile(field.Name, filepath.Base(filePath))
			if err != nil {
				file.Close()
				return nil, "", err
			}

			_, err = io.Copy(part, file)
			file.Close()
			if err != nil {
				return nil, "", err
			}
		} else {
			err := writer.WriteField(field.Name, field.Value)
			if err != nil {
				return nil, "", err
			}
		}
	}

	err := writer.Close()
	if err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}
