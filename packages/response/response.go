package response

import (
	"encoding/json"
	"maps"
	"mime"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/htmlindex"
)

// Kind selects how the logical content of a body is derived.
type Kind int

const (
	REST Kind = iota
	GraphQL
)

func (k Kind) String() string {
	if k == GraphQL {
		return "GRAPHQL"
	}
	return "REST"
}

// BodyKind is the outcome of decoding the payload.
type BodyKind int

const (
	BodyAbsent BodyKind = iota
	BodyJSON
	BodyText
	BodyBinary
)

func (k BodyKind) String() string {
	switch k {
	case BodyJSON:
		return "json"
	case BodyText:
		return "text"
	case BodyBinary:
		return "binary"
	default:
		return "absent"
	}
}

// Raw is what the transport hands over after one round trip.
type Raw struct {
	StatusCode int
	Status     string
	Headers    Headers
	Body       []byte
	// Encoding is the charset the transport reported, empty when unknown.
	Encoding string
	Elapsed  time.Duration
	// Cookies is nil when the transport had no cookie jar.
	Cookies map[string]string
}

type options struct {
	kind      Kind
	forceJSON bool
}

// Option configures how New decodes a body.
type Option func(*options)

// WithKind sets the protocol the response belongs to.
func WithKind(k Kind) Option {
	return func(o *options) {
		o.kind = k
	}
}

// WithForceJSON parses the body as JSON whatever the Content-Type says. A
// parse failure is returned immediately; there is no fallback to text.
func WithForceJSON() Option {
	return func(o *options) {
		o.forceJSON = true
	}
}

// Response is an immutable, decoded view of one exchange.
type Response struct {
	statusCode  int
	status      string
	headers     Headers
	elapsed     time.Duration
	raw         []byte
	encoding    string
	contentType string
	kind        Kind
	cookies     map[string]string

	bodyKind   BodyKind
	body       any
	text       string
	content    any
	contentDoc gjson.Result
	errors     any
}

// New decodes raw once and returns the resulting Response. A nil raw
// yields ErrNoResponse.
func New(raw *Raw, opts ...Option) (*Response, error) {
	if raw == nil {
		return nil, ErrNoResponse
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	r := &Response{
		statusCode: raw.StatusCode,
		status:     raw.Status,
		headers:    append(Headers(nil), raw.Headers...),
		elapsed:    raw.Elapsed,
		raw:        raw.Body,
		encoding:   raw.Encoding,
		kind:       o.kind,
		cookies:    make(map[string]string, len(raw.Cookies)),
	}
	if r.raw == nil {
		r.raw = []byte{}
	}
	if r.elapsed < 0 {
		r.elapsed = 0
	}
	maps.Copy(r.cookies, raw.Cookies)
	r.contentType, _ = r.headers.Get("Content-Type")
	if r.encoding == "" {
		r.encoding = charsetOf(r.contentType)
	}

	switch {
	case o.forceJSON:
		if err := r.decodeJSON(true); err != nil {
			return nil, err
		}
	case strings.Contains(r.contentType, "application/json"):
		if err := r.decodeJSON(false); err != nil {
			return nil, err
		}
	case strings.Contains(r.contentType, "text/"):
		r.bodyKind = BodyText
		r.text = decodeText(r.raw, r.encoding)
		r.body = r.text
		r.content = r.text
	case len(r.raw) == 0:
		r.bodyKind = BodyAbsent
		r.text = ""
	default:
		r.bodyKind = BodyBinary
		r.body = r.raw
		r.content = r.raw
		r.text = decodeText(r.raw, r.encoding)
	}

	return r, nil
}

func (r *Response) decodeJSON(forced bool) error {
	var v any
	if err := json.Unmarshal(r.raw, &v); err != nil {
		return &DecodeError{ContentType: r.contentType, Forced: forced, Err: err}
	}

	r.bodyKind = BodyJSON
	r.body = v
	r.text = decodeText(r.raw, r.encoding)
	r.content = v

	if m, ok := v.(map[string]any); ok {
		r.errors = m["errors"]
		if r.kind == GraphQL {
			if data, ok := m["data"]; ok {
				r.content = data
			}
		}
	}

	// Paths resolve against the decoded value, so duplicate keys keep the
	// last occurrence in both Content and Query.
	doc, err := json.Marshal(r.content)
	if err != nil {
		return &DecodeError{ContentType: r.contentType, Forced: forced, Err: err}
	}
	r.contentDoc = gjson.ParseBytes(doc)
	return nil
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// decodeText decodes b with the named charset, falling back to UTF-8 when
// the name is empty or unknown. Invalid UTF-8 is replaced, not rejected.
func decodeText(b []byte, charset string) string {
	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "utf8") {
		if enc, err := htmlindex.Get(charset); err == nil {
			if out, err := enc.NewDecoder().Bytes(b); err == nil {
				return string(out)
			}
		}
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

func (r *Response) StatusCode() int { return r.statusCode }

// Status is the status line text, e.g. "200 OK".
func (r *Response) Status() string { return r.status }

// Headers returns a copy of the collapsed header list.
func (r *Response) Headers() Headers { return append(Headers(nil), r.headers...) }

// Header looks a header up ignoring case.
func (r *Response) Header(name string) (string, bool) { return r.headers.Get(name) }

func (r *Response) ContentType() string { return r.contentType }

// Encoding is the charset used to decode text, empty when UTF-8 was assumed.
func (r *Response) Encoding() string { return r.encoding }

func (r *Response) Elapsed() time.Duration { return r.elapsed }

// ElapsedSeconds is the round trip time in seconds.
func (r *Response) ElapsedSeconds() float64 { return r.elapsed.Seconds() }

func (r *Response) Kind() Kind { return r.kind }

func (r *Response) BodyKind() BodyKind { return r.bodyKind }

// RawBody returns the undecoded payload. Callers must not modify it.
func (r *Response) RawBody() []byte { return r.raw }

// Body returns the decoded body: a JSON value, a string, the raw bytes, or
// nil when the payload was absent.
func (r *Response) Body() any { return r.body }

// JSON returns the decoded JSON value and whether the body was structured.
func (r *Response) JSON() (any, bool) {
	return r.body, r.bodyKind == BodyJSON
}

// Text returns the body as a string.
func (r *Response) Text() string { return r.text }

// Content returns the logical payload: the "data" member of a GraphQL
// object body, otherwise the decoded body unchanged.
func (r *Response) Content() any { return r.content }

// Errors returns the "errors" member of an object body, or nil.
func (r *Response) Errors() any { return r.errors }

// Cookies returns a copy of the cookies the transport collected.
func (r *Response) Cookies() map[string]string { return maps.Clone(r.cookies) }

func (r *Response) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

func (r *Response) IsSuccess() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.statusCode >= 300 && r.statusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.statusCode >= 400 && r.statusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.statusCode >= 500
}
