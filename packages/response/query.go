package response

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

type segmentKind int

const (
	segmentKey segmentKind = iota
	segmentIndex
	segmentWildcard
)

type segment struct {
	kind  segmentKind
	key   string
	index int
}

// parsePath splits a dotted/bracketed path, optionally rooted at "$", into
// segments: "$.items[0].tags[*]" -> items, 0, tags, *. "[*]" and "#" fan out
// over an array; every other name is a literal key.
func parsePath(path string) ([]segment, bool) {
	p := strings.TrimPrefix(strings.TrimSpace(path), "$")
	var segs []segment
	for p != "" {
		switch {
		case p[0] == '.':
			p = p[1:]
		case strings.HasPrefix(p, "['") || strings.HasPrefix(p, `["`):
			end := strings.IndexByte(p[2:], p[1])
			if end < 0 || 3+end >= len(p) || p[3+end] != ']' {
				return nil, false
			}
			segs = append(segs, segment{kind: segmentKey, key: p[2 : 2+end]})
			p = p[4+end:]
		case p[0] == '[':
			end := strings.IndexByte(p, ']')
			if end < 0 {
				return nil, false
			}
			inner := strings.TrimSpace(p[1:end])
			p = p[end+1:]
			if inner == "*" {
				segs = append(segs, segment{kind: segmentWildcard})
				continue
			}
			n, err := strconv.Atoi(inner)
			if err != nil || n < 0 {
				return nil, false
			}
			segs = append(segs, segment{kind: segmentIndex, index: n})
		default:
			end := strings.IndexAny(p, ".[")
			if end < 0 {
				end = len(p)
			}
			name := p[:end]
			p = p[end:]
			if name == "#" {
				segs = append(segs, segment{kind: segmentWildcard})
				continue
			}
			segs = append(segs, segment{kind: segmentKey, key: name})
		}
	}
	return segs, true
}

// firstMatch walks segs depth-first and returns the first leaf in document
// order. A wildcard branch that resolves nothing does not stop the search.
func firstMatch(doc gjson.Result, segs []segment) (gjson.Result, bool) {
	if len(segs) == 0 {
		return doc, doc.Exists()
	}
	s, rest := segs[0], segs[1:]
	switch s.kind {
	case segmentWildcard:
		if !doc.IsArray() {
			return gjson.Result{}, false
		}
		for _, item := range doc.Array() {
			if res, ok := firstMatch(item, rest); ok {
				return res, true
			}
		}
		return gjson.Result{}, false
	case segmentIndex:
		if !doc.IsArray() {
			return gjson.Result{}, false
		}
		return firstMatch(doc.Get(strconv.Itoa(s.index)), rest)
	default:
		if doc.IsArray() && isDigits(s.key) {
			return firstMatch(doc.Get(s.key), rest)
		}
		if !doc.IsObject() {
			return gjson.Result{}, false
		}
		return firstMatch(doc.Get(gjson.Escape(s.key)), rest)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Query resolves a path against the logical content and returns the first
// matching value. An empty path or "$" returns the whole content.
//
// When a path matches several elements (a wildcard over an array) only the
// first one in document order is returned.
func (r *Response) Query(path string) (any, error) {
	if r.bodyKind != BodyJSON {
		return nil, &UnsupportedContentError{ContentType: r.contentType, Path: path}
	}

	segs, ok := parsePath(path)
	if !ok {
		return nil, &PathResolutionError{Path: path}
	}
	if len(segs) == 0 {
		return r.content, nil
	}

	res, ok := firstMatch(r.contentDoc, segs)
	if !ok {
		return nil, &PathResolutionError{Path: path}
	}
	return res.Value(), nil
}

// Has reports whether path resolves against the logical content.
func (r *Response) Has(path string) bool {
	_, err := r.Query(path)
	return err == nil
}
