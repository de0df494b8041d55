// Package recorder keeps an in-memory log of every HTTP exchange made
// through a client, for reports and persistence.
package recorder

import (
	"encoding/json"
	"maps"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/reqflow/packages/http"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
	"github.com/google/uuid"
)

// RequestSnapshot is what was sent.
type RequestSnapshot struct {
	Method   string            `json:"method"`
	URL      string            `json:"url"`
	Params   map[string]string `json:"params"`
	Headers  map[string]string `json:"headers"`
	Cookies  map[string]string `json:"cookies"`
	Body     string            `json:"body,omitempty"`
	Files    []string          `json:"files,omitempty"`
	Redirect *bool             `json:"redirect,omitempty"`
	Timeout  float64           `json:"timeout,omitempty"`
}

// ResponseSnapshot is what came back. Content holds the body as JSON when
// it parses, as text when it is valid UTF-8, and is omitted otherwise.
type ResponseSnapshot struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Content    json.RawMessage   `json:"content,omitempty"`
	Size       int               `json:"size"`
	Time       float64           `json:"time"`
}

type Entry struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Timestamp time.Time         `json:"timestamp"`
	Request   RequestSnapshot   `json:"request"`
	Response  *ResponseSnapshot `json:"response,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Failed reports whether the exchange errored or returned a status >= 400.
func (e Entry) Failed() bool {
	return e.Response == nil || e.Response.StatusCode >= 400
}

// Recorder is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func New() *Recorder {
	return &Recorder{now: time.Now}
}

// Record implements http.Recorder.
func (r *Recorder) Record(ex http.Exchange) {
	entry := Entry{
		ID:        uuid.NewString(),
		Name:      ex.Request.Name,
		Timestamp: r.now(),
		Request:   snapshotRequest(ex.Request, ex.URL),
	}
	if ex.Err != nil {
		entry.Error = ex.Err.Error()
	}
	if ex.Raw != nil {
		entry.Response = snapshotResponse(ex.Raw)
	}
	r.Add(entry)
}

// Add appends an entry, filling in a missing ID.
func (r *Recorder) Add(e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// Entries returns the log in recording order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

func snapshotRequest(req *http.Request, url string) RequestSnapshot {
	if url == "" {
		url = req.URL
	}
	s := RequestSnapshot{
		Method:   req.Method,
		URL:      url,
		Params:   maps.Clone(req.QueryParams),
		Headers:  maps.Clone(req.Headers),
		Cookies:  maps.Clone(req.Cookies),
		Body:     req.Body,
		Redirect: req.FollowRedirects,
		Timeout:  req.Timeout.Seconds(),
	}
	for _, f := range req.Multipart {
		if f.File {
			s.Files = append(s.Files, f.Name+"="+f.Path)
		}
	}
	sort.Strings(s.Files)
	return s
}

func snapshotResponse(raw *response.Raw) *ResponseSnapshot {
	s := &ResponseSnapshot{
		StatusCode: raw.StatusCode,
		Headers:    raw.Headers.Map(),
		Size:       len(raw.Body),
		Time:       raw.Elapsed.Seconds(),
	}
	switch {
	case len(raw.Body) == 0:
	case json.Valid(raw.Body):
		s.Content = append(json.RawMessage(nil), raw.Body...)
	case utf8.Valid(raw.Body):
		s.Content, _ = json.Marshal(string(raw.Body))
	}
	return s
}
