package recorder

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/http"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRaw(status int, body string) *response.Raw {
	return &response.Raw{
		StatusCode: status,
		Headers:    response.HeadersFromMap(map[string]string{"Content-Type": "application/json"}),
		Body:       []byte(body),
		Elapsed:    123 * time.Millisecond,
	}
}

func TestRecorder_Record(t *testing.T) {
	rec := New()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	req := http.NewRequest("GET", "https://example.com/users").
		SetQueryParam("page", "1").
		SetHeader("Accept", "application/json")
	req.Name = "list users"

	rec.Record(http.Exchange{Request: req, URL: "https://example.com/users?page=1", Raw: newRaw(200, `{"key": "value"}`)})

	entries := rec.Entries()
	require.Len(t, entries, 1)
	e := entries[0]

	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)
	assert.Equal(t, "list users", e.Name)
	assert.Equal(t, fixed, e.Timestamp)
	assert.Equal(t, "GET", e.Request.Method)
	assert.Equal(t, "https://example.com/users?page=1", e.Request.URL)
	assert.Equal(t, map[string]string{"page": "1"}, e.Request.Params)
	require.NotNil(t, e.Response)
	assert.Equal(t, 200, e.Response.StatusCode)
	assert.JSONEq(t, `{"key": "value"}`, string(e.Response.Content))
	assert.InDelta(t, 0.123, e.Response.Time, 1e-9)
	assert.False(t, e.Failed())
}

func TestRecorder_SnapshotIsolation(t *testing.T) {
	rec := New()
	req := http.NewRequest("POST", "https://example.com").SetHeader("X-A", "1")
	rec.Record(http.Exchange{Request: req, Raw: newRaw(201, `{}`)})

	req.SetHeader("X-A", "2")
	assert.Equal(t, "1", rec.Entries()[0].Request.Headers["X-A"])
}

func TestRecorder_ContentKinds(t *testing.T) {
	rec := New()
	req := http.NewRequest("GET", "https://example.com")

	rec.Record(http.Exchange{Request: req, Raw: newRaw(200, "plain text")})
	rec.Record(http.Exchange{Request: req, Raw: &response.Raw{StatusCode: 200, Body: []byte{0xff, 0xfe}}})
	rec.Record(http.Exchange{Request: req, Err: errors.New("connection refused")})

	entries := rec.Entries()
	require.Len(t, entries, 3)

	var text string
	require.NoError(t, json.Unmarshal(entries[0].Response.Content, &text))
	assert.Equal(t, "plain text", text)

	assert.Nil(t, entries[1].Response.Content)
	assert.Equal(t, 2, entries[1].Response.Size)

	assert.Nil(t, entries[2].Response)
	assert.Equal(t, "connection refused", entries[2].Error)
	assert.True(t, entries[2].Failed())
}

func TestRecorder_Clear(t *testing.T) {
	rec := New()
	assert.Zero(t, rec.Len())

	rec.Add(Entry{Name: "a"})
	rec.Add(Entry{Name: "b", ID: "fixed"})
	assert.Equal(t, 2, rec.Len())
	assert.NotEmpty(t, rec.Entries()[0].ID)
	assert.Equal(t, "fixed", rec.Entries()[1].ID)

	rec.Clear()
	assert.Empty(t, rec.Entries())
}

func TestRecorder_Concurrent(t *testing.T) {
	rec := New()
	req := http.NewRequest("GET", "https://example.com")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Record(http.Exchange{Request: req, Raw: newRaw(200, `{}`)})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, rec.Len())
}
