package auth

import (
	"context"
	"testing"

	"github.com/abdul-hamid-achik/reqflow/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasic(t *testing.T) {
	b, err := NewBasic("user", "pass")
	require.NoError(t, err)

	req := http.NewRequest("GET", "http://example.com")
	require.NoError(t, b.Apply(context.Background(), req))
	assert.Equal(t, "Basic dXNlcjpwYXNz", req.Headers["Authorization"])
}

func TestBearer(t *testing.T) {
	b, err := NewBearer("abc")
	require.NoError(t, err)

	req := http.NewRequest("GET", "http://example.com")
	require.NoError(t, b.Apply(context.Background(), req))
	assert.Equal(t, "Bearer abc", req.Headers["Authorization"])
}

func TestAPIKey(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		k, err := NewAPIKey("", "secret")
		require.NoError(t, err)

		req := http.NewRequest("GET", "http://example.com")
		require.NoError(t, k.Apply(context.Background(), req))
		assert.Equal(t, "secret", req.Headers["X-API-Key"])
	})

	t.Run("query", func(t *testing.T) {
		k, err := NewAPIKeyQuery("api_key", "secret")
		require.NoError(t, err)

		req := http.NewRequest("GET", "http://example.com")
		require.NoError(t, k.Apply(context.Background(), req))
		assert.Equal(t, "secret", req.QueryParams["api_key"])
		assert.Empty(t, req.Headers)
	})
}

func TestInvalidCredentials(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{name: "basic without password", fn: func() error { _, err := NewBasic("user", ""); return err }},
		{name: "basic without user", fn: func() error { _, err := NewBasic("", "pass"); return err }},
		{name: "empty bearer", fn: func() error { _, err := NewBearer(""); return err }},
		{name: "empty api key", fn: func() error { _, err := NewAPIKey("X-Key", ""); return err }},
		{name: "query key without name", fn: func() error { _, err := NewAPIKeyQuery("", "v"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn(), ErrInvalidCredentials)
		})
	}
}
