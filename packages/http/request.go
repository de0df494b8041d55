package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrBodyAlreadySet is returned when a second body is attached to a Request.
var ErrBodyAlreadySet = errors.New("request body already set")

// Authenticator attaches credentials to a Request before it is sent.
type Authenticator interface {
	Apply(ctx context.Context, req *Request) error
}

// MultipartField is a form field or a file part of a multipart body.
type MultipartField struct {
	Name  string
	Value string
	Path  string
	File  bool
}

type Request struct {
	Name        string
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string]string
	Cookies     map[string]string
	Body        string
	Multipart   []MultipartField
	BaseDir     string // Base directory for resolving relative file paths
	Timeout     time.Duration
	// FollowRedirects overrides the client setting when non-nil.
	FollowRedirects *bool
	Auth            Authenticator
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:      strings.ToUpper(method),
		URL:         requestURL,
		Headers:     make(map[string]string),
		QueryParams: make(map[string]string),
		Cookies:     make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// Header looks a header up case-insensitively.
func (r *Request) Header(key string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (r *Request) SetQueryParam(key, value string) *Request {
	r.QueryParams[key] = value
	return r
}

func (r *Request) SetCookie(name, value string) *Request {
	r.Cookies[name] = value
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) hasBody() bool {
	return r.Body != "" || len(r.Multipart) > 0
}

// SetBody attaches a raw body.
func (r *Request) SetBody(body string) error {
	if r.hasBody() {
		return ErrBodyAlreadySet
	}
	r.Body = body
	return nil
}

// SetJSON marshals v as the body and defaults Content-Type to
// application/json.
func (r *Request) SetJSON(v any) error {
	if r.hasBody() {
		return ErrBodyAlreadySet
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding JSON body: %w", err)
	}
	r.Body = string(data)
	r.defaultContentType("application/json")
	return nil
}

// SetForm url-encodes fields as the body.
func (r *Request) SetForm(fields map[string]string) error {
	if r.hasBody() {
		return ErrBodyAlreadySet
	}
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	r.Body = values.Encode()
	r.defaultContentType("application/x-www-form-urlencoded")
	return nil
}

// AddFile adds a file part. The file is read when the request is sent.
func (r *Request) AddFile(field, path string) error {
	if r.Body != "" {
		return ErrBodyAlreadySet
	}
	r.Multipart = append(r.Multipart, MultipartField{Name: field, Path: path, File: true})
	return nil
}

// AddFormField adds a plain field to a multipart body.
func (r *Request) AddFormField(name, value string) error {
	if r.Body != "" {
		return ErrBodyAlreadySet
	}
	r.Multipart = append(r.Multipart, MultipartField{Name: name, Value: value})
	return nil
}

func (r *Request) defaultContentType(ct string) {
	if _, ok := r.Header("Content-Type"); !ok {
		r.SetHeader("Content-Type", ct)
	}
}

// BuildURL resolves the request URL against baseURL and appends the query
// parameters.
func (r *Request) BuildURL(baseURL string) string {
	target := JoinURL(baseURL, r.URL)

	if len(r.QueryParams) == 0 {
		return target
	}

	u, err := url.Parse(target)
	if err != nil {
		return target
	}

	q := u.Query()
	for k, v := range r.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// JoinURL prefixes target with baseURL unless target is already absolute.
func JoinURL(baseURL, target string) string {
	if baseURL == "" || strings.Contains(target, "://") {
		return target
	}
	if target == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(target, "/")
}

func ParseFormBody(body string) map[string]string {
	result := make(map[string]string)
	pairs := strings.Split(body, "&")
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			key, _ := url.QueryUnescape(kv[0])
			value, _ := url.QueryUnescape(kv[1])
			result[key] = value
		}
	}
	return result
}
