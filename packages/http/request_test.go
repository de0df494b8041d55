package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_BuildURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		base     string
		query    map[string]string
		expected string
	}{
		{name: "absolute", url: "https://api.example.com/users", expected: "https://api.example.com/users"},
		{name: "relative with base", url: "/users", base: "https://api.example.com/", expected: "https://api.example.com/users"},
		{name: "relative without slash", url: "users", base: "https://api.example.com", expected: "https://api.example.com/users"},
		{name: "absolute ignores base", url: "http://other.test/x", base: "https://api.example.com", expected: "http://other.test/x"},
		{name: "empty path uses base", url: "", base: "https://api.example.com", expected: "https://api.example.com"},
		{name: "query params", url: "https://api.example.com/users?sort=asc", query: map[string]string{"page": "2"}, expected: "https://api.example.com/users?page=2&sort=asc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("GET", tt.url)
			for k, v := range tt.query {
				req.SetQueryParam(k, v)
			}
			assert.Equal(t, tt.expected, req.BuildURL(tt.base))
		})
	}
}

func TestRequest_BodyOnlyOnce(t *testing.T) {
	req := NewRequest("POST", "http://example.com")
	require.NoError(t, req.SetJSON(map[string]int{"a": 1}))

	assert.ErrorIs(t, req.SetBody("x"), ErrBodyAlreadySet)
	assert.ErrorIs(t, req.SetForm(map[string]string{"a": "b"}), ErrBodyAlreadySet)
	assert.ErrorIs(t, req.AddFile("f", "x.txt"), ErrBodyAlreadySet)

	ct, ok := req.Header("content-type")
	assert.True(t, ok)
	assert.Equal(t, "application/json", ct)
}

func TestRequest_ExplicitContentTypeWins(t *testing.T) {
	req := NewRequest("POST", "http://example.com").SetHeader("Content-Type", "application/vnd.api+json")
	require.NoError(t, req.SetJSON([]int{1}))

	ct, _ := req.Header("Content-Type")
	assert.Equal(t, "application/vnd.api+json", ct)
	assert.Equal(t, "[1]", req.Body)
}

func TestRequest_MethodUppercased(t *testing.T) {
	assert.Equal(t, "PATCH", NewRequest("patch", "http://example.com").Method)
}

func TestParseFormBody(t *testing.T) {
	got := ParseFormBody("name=John+Doe&email=john%40example.com&broken")
	assert.Equal(t, map[string]string{"name": "John Doe", "email": "john@example.com"}, got)
}
