package builtin

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	r := NewRegistry()
	r.now = func() time.Time { return time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC) }

	tests := []struct {
		expr     string
		expected any
	}{
		{expr: "timestamp()", expected: int64(1709980200)},
		{expr: "date()", expected: "2024-03-09"},
		{expr: `date("02/01/2006")`, expected: "09/03/2024"},
		{expr: "now()", expected: "2024-03-09T10:30:00Z"},
		{expr: `base64("user:pass")`, expected: "dXNlcjpwYXNz"},
		{expr: "base64Decode(dXNlcjpwYXNz)", expected: "user:pass"},
		{expr: "urlEncode('a b&c')", expected: "a+b%26c"},
		{expr: "urlDecode(a+b%26c)", expected: "a b&c"},
		{expr: "sha256(abc)", expected: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := r.Call(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestCall_Generated(t *testing.T) {
	r := NewRegistry()

	v, err := r.Call("uuid()")
	require.NoError(t, err)
	_, err = uuid.Parse(v.(string))
	assert.NoError(t, err)

	v, err = r.Call("random(5, 7)")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v.(int), 5)
	assert.LessOrEqual(t, v.(int), 7)

	v, err = r.Call("randomString(12)")
	require.NoError(t, err)
	assert.Len(t, v.(string), 12)

	v, err = r.Call("randomEmail()")
	require.NoError(t, err)
	assert.Regexp(t, `^[a-z]{8}@[a-z]{6}\.test$`, v)
}

func TestCall_Env(t *testing.T) {
	t.Setenv("REQFLOW_TEST_VALUE", "from-env")

	v, err := NewRegistry().Call("env(REQFLOW_TEST_VALUE)")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestCall_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Call("nope()")
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = r.Call("not a call")
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = r.Call("random(a, 3)")
	assert.ErrorContains(t, err, "not an integer")

	_, err = r.Call("random(9, 3)")
	assert.Error(t, err)

	_, err = r.Call("base64()")
	assert.ErrorContains(t, err, "expected 1 argument")
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	r.Register("answer", func([]string) (any, error) { return 42, nil })

	v, err := r.Call("answer()")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, IsCall("answer()"))
	assert.False(t, IsCall("answer"))
}
