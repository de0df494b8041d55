package response

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/reqflow/packages/assertions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSON(t *testing.T, body string) *Response {
	t.Helper()
	raw := createRaw(200, body, map[string]string{
		"Content-Type": "application/json",
		"X-Trace":      "abc-123",
	})
	raw.Cookies = map[string]string{"session": "s3cr3t"}
	resp, err := New(raw)
	require.NoError(t, err)
	return resp
}

func TestCheckStatus(t *testing.T) {
	resp := newJSON(t, `{}`)

	assert.NoError(t, resp.CheckStatus(200))

	err := resp.CheckStatus(404)
	var failure *AssertionFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 404, failure.Expected)
	assert.Equal(t, 200, failure.Actual)
	assert.ErrorIs(t, err, ErrAssertion)
}

func TestCheckStatusInRange(t *testing.T) {
	resp := newJSON(t, `{}`)

	assert.NoError(t, resp.CheckStatusInRange(200, 299))
	assert.NoError(t, resp.CheckStatusInRange(200, 200))
	assert.ErrorIs(t, resp.CheckStatusInRange(201, 299), ErrAssertion)
}

func TestCheckBodyPath(t *testing.T) {
	resp := newJSON(t, `{"json": {"foo": "bar", "count": 3}}`)

	assert.NoError(t, resp.CheckBodyPath("json.foo", assertions.Equals("bar")))
	assert.NoError(t, resp.CheckBodyPath("json.foo", assertions.Contains("ar")))
	assert.NoError(t, resp.CheckBodyPath("json.count", assertions.GreaterThan(2)))

	t.Run("predicate failure", func(t *testing.T) {
		err := resp.CheckBodyPath("json.foo", assertions.Equals("baz"))
		var failure *AssertionFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, "body json.foo", failure.Subject)
		assert.Equal(t, "bar", failure.Actual)
	})

	t.Run("missing path is not a predicate failure", func(t *testing.T) {
		err := resp.CheckBodyPath("json.missing", assertions.IsNotNull())
		assert.ErrorIs(t, err, ErrPathResolution)
		assert.NotErrorIs(t, err, ErrAssertion)
	})

	t.Run("incomparable operands", func(t *testing.T) {
		err := resp.CheckBodyPath("json.foo", assertions.GreaterThan(1))
		assert.ErrorIs(t, err, ErrComparison)
		assert.NotErrorIs(t, err, ErrAssertion)
	})
}

func TestCheckBodyPath_TextBody(t *testing.T) {
	resp, err := New(createRaw(200, "ok", map[string]string{"Content-Type": "text/plain"}))
	require.NoError(t, err)

	err = resp.CheckBodyPath("json.status", assertions.Equals("ok"))
	assert.ErrorIs(t, err, ErrUnsupportedContent)
}

func TestCheckHeader(t *testing.T) {
	resp := newJSON(t, `{}`)

	assert.NoError(t, resp.CheckHeader("content-type", assertions.Contains("json")))
	assert.NoError(t, resp.CheckHeader("x-trace", assertions.Matches(`abc-\d+`)))
	assert.NoError(t, resp.CheckHeader("X-Missing", assertions.IsNull()))
	assert.ErrorIs(t, resp.CheckHeader("X-Trace", assertions.Equals("other")), ErrAssertion)

	assert.NoError(t, resp.CheckHeaderPresent("X-TRACE"))
	assert.ErrorIs(t, resp.CheckHeaderPresent("X-Missing"), ErrAssertion)
}

func TestCheckCookie(t *testing.T) {
	resp := newJSON(t, `{}`)

	assert.NoError(t, resp.CheckCookie("session", assertions.Equals("s3cr3t")))
	assert.NoError(t, resp.CheckCookie("other", assertions.IsNull()))
	assert.ErrorIs(t, resp.CheckCookie("session", assertions.Equals("nope")), ErrAssertion)
}

func TestCheckElapsedAtMost(t *testing.T) {
	resp := newJSON(t, `{}`)

	assert.NoError(t, resp.CheckElapsedAtMost(time.Second))
	assert.NoError(t, resp.CheckElapsedAtMost(100*time.Millisecond))

	err := resp.CheckElapsedAtMost(10 * time.Millisecond)
	require.ErrorIs(t, err, ErrAssertion)
	assert.Contains(t, err.Error(), "exceeds the maximum expected time")
}

func TestCheckContentAndErrors(t *testing.T) {
	resp, err := New(createRaw(200, `{"data": {"ok": true}, "errors": null}`, nil), WithKind(GraphQL))
	require.NoError(t, err)

	assert.NoError(t, resp.CheckContent(assertions.Equals(map[string]any{"ok": true})))
	assert.NoError(t, resp.CheckErrors(assertions.IsNull()))
}

func TestCheckSchema(t *testing.T) {
	resp := newJSON(t, `{"id": 1, "name": "Widget"}`)
	schema := []byte(`{"type": "object", "required": ["id", "name"]}`)

	assert.NoError(t, resp.CheckSchema(schema))
	assert.ErrorIs(t, resp.CheckSchema([]byte(`{"type": "array"}`)), ErrAssertion)
}

func TestExpectation_Chain(t *testing.T) {
	resp := newJSON(t, `{"json": {"foo": "bar"}}`)

	exp := resp.Expect().
		Status(200).
		StatusInRange(200, 299).
		Body("json.foo", "bar").
		BodyPath("json.foo", assertions.AnyOf(assertions.Equals("x"), assertions.StartsWith("b"))).
		Header("Content-Type", assertions.Equals("application/json")).
		HeaderPresent("X-Trace").
		Cookie("session", assertions.IsNotNull()).
		ElapsedAtMost(time.Second)

	assert.NoError(t, exp.Err())
	assert.Same(t, resp, exp.Response())
	exp.Require(t)
}

func TestExpectation_FailFast(t *testing.T) {
	resp := newJSON(t, `{"json": {"foo": "bar"}}`)

	exp := resp.Expect().
		Status(201).
		BodyPath("json.missing", assertions.IsNotNull())

	var failure *AssertionFailure
	require.ErrorAs(t, exp.Err(), &failure)
	assert.Equal(t, "status", failure.Subject)
	assert.NotErrorIs(t, exp.Err(), ErrPathResolution)
}

type fakeT struct {
	failed bool
	args   []any
}

func (f *fakeT) Helper() {}

func (f *fakeT) Fatal(args ...any) {
	f.failed = true
	f.args = args
}

func TestExpectation_Require(t *testing.T) {
	ft := &fakeT{}
	newJSON(t, `{}`).Expect().Status(500).Require(ft)

	assert.True(t, ft.failed)
	require.Len(t, ft.args, 1)
	assert.ErrorIs(t, ft.args[0].(error), ErrAssertion)
}

func TestExpectation_Failed(t *testing.T) {
	exp := Failed(os.ErrDeadlineExceeded).Status(200)

	assert.ErrorIs(t, exp.Err(), os.ErrDeadlineExceeded)
	assert.Nil(t, exp.Response())
}

func TestExpectation_SaveToFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("json as text", func(t *testing.T) {
		path := filepath.Join(dir, "body.json")
		require.NoError(t, newJSON(t, `{"a": 1}`).Expect().SaveToFile(path).Err())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, `{"a": 1}`, string(data))
	})

	t.Run("binary as bytes", func(t *testing.T) {
		raw := createRaw(200, "", map[string]string{"Content-Type": "application/octet-stream"})
		raw.Body = []byte{0x00, 0xff, 0x10}
		resp, err := New(raw)
		require.NoError(t, err)

		path := filepath.Join(dir, "file.bin")
		require.NoError(t, resp.Expect().SaveToFile(path).Err())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, raw.Body, data)
	})

	t.Run("unwritable path", func(t *testing.T) {
		err := newJSON(t, `{}`).Expect().SaveToFile(filepath.Join(dir, "missing", "x.json")).Err()
		assert.Error(t, err)
	})
}
