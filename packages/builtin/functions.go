package builtin

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownFunction is returned by Call for names that are not registered.
var ErrUnknownFunction = errors.New("unknown function")

// Func receives the already unquoted arguments.
type Func func(args []string) (any, error)

type Registry struct {
	funcs map[string]Func
	now   func() time.Time
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["uuid"] = func([]string) (any, error) { return uuid.NewString(), nil }
	r.funcs["now"] = func([]string) (any, error) { return r.now().UTC().Format(time.RFC3339), nil }
	r.funcs["timestamp"] = func([]string) (any, error) { return r.now().Unix(), nil }
	r.funcs["timestampMs"] = func([]string) (any, error) { return r.now().UnixMilli(), nil }
	r.funcs["date"] = r.date
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = func([]string) (any, error) {
		return randomString(8, lower) + "@" + randomString(6, lower) + ".test", nil
	}
	r.funcs["base64"] = unary(func(s string) (any, error) {
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	})
	r.funcs["base64Decode"] = unary(func(s string) (any, error) {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	})
	r.funcs["sha256"] = unary(func(s string) (any, error) {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:]), nil
	})
	r.funcs["urlEncode"] = unary(func(s string) (any, error) { return url.QueryEscape(s), nil })
	r.funcs["urlDecode"] = unary(func(s string) (any, error) { return url.QueryUnescape(s) })
	r.funcs["env"] = unary(func(s string) (any, error) { return os.Getenv(s), nil })
}

// Register adds or replaces a function.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr looks like name(args).
func IsCall(expr string) bool {
	return funcCallPattern.MatchString(expr)
}

// Call evaluates an expression of the form name(arg, "quoted arg").
func (r *Registry) Call(expr string) (any, error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, expr)
	}

	fn, ok := r.funcs[matches[1]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, matches[1])
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	v, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", matches[1], err)
	}
	return v, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inQuote && (ch == '"' || ch == '\'') {
			inQuote = true
			quoteChar = ch
		} else if inQuote && ch == quoteChar {
			inQuote = false
			quoteChar = 0
		} else if !inQuote && ch == ',' {
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func unary(fn func(string) (any, error)) Func {
	return func(args []string) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return fn(args[0])
	}
}

func (r *Registry) date(args []string) (any, error) {
	layout := "2006-01-02"
	if len(args) >= 1 {
		layout = args[0]
	}
	return r.now().UTC().Format(layout), nil
}

func intArg(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %q is not an integer", args[i])
	}
	return v, nil
}

func funcRandom(args []string) (any, error) {
	min, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	max, err := intArg(args, 1, 100)
	if err != nil {
		return nil, err
	}
	if max < min {
		return nil, fmt.Errorf("max %d is lower than min %d", max, min)
	}
	return rand.IntN(max-min+1) + min, nil
}

func funcRandomString(args []string) (any, error) {
	length, err := intArg(args, 0, 16)
	if err != nil {
		return nil, err
	}
	return randomString(length, alnum), nil
}

const (
	lower = "abcdefghijklmnopqrstuvwxyz"
	alnum = lower + "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[rand.IntN(len(charset))]
	}
	return string(result)
}
