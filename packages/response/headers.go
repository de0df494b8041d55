package response

import (
	"net/http"
	"sort"
	"strings"
)

// Header is one response header after collapsing repeated values.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered, case-insensitive header list. Setting a name that
// is already present replaces its value in place, so repeated headers
// collapse to the last value seen.
type Headers []Header

// Set adds or replaces the value for name.
func (h *Headers) Set(name, value string) {
	for i := range *h {
		if strings.EqualFold((*h)[i].Name, name) {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, Header{Name: name, Value: value})
}

// Get returns the value for name, ignoring case.
func (h Headers) Get(name string) (string, bool) {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value, true
		}
	}
	return "", false
}

// Map returns the headers as a plain map keyed by the original names.
func (h Headers) Map() map[string]string {
	m := make(map[string]string, len(h))
	for _, hdr := range h {
		m[hdr.Name] = hdr.Value
	}
	return m
}

// HeadersFromHTTP converts net/http headers, keeping the last value of each
// name. Names are sorted because http.Header does not preserve wire order.
func HeadersFromHTTP(src http.Header) Headers {
	names := make([]string, 0, len(src))
	for k := range src {
		names = append(names, k)
	}
	sort.Strings(names)

	h := make(Headers, 0, len(names))
	for _, name := range names {
		values := src[name]
		if len(values) == 0 {
			continue
		}
		h.Set(name, values[len(values)-1])
	}
	return h
}

// HeadersFromMap converts a plain map with names in sorted order.
func HeadersFromMap(src map[string]string) Headers {
	names := make([]string, 0, len(src))
	for k := range src {
		names = append(names, k)
	}
	sort.Strings(names)

	h := make(Headers, 0, len(names))
	for _, name := range names {
		h.Set(name, src[name])
	}
	return h
}
