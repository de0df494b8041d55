package assertions

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// MatchesSchema validates actual against an inline JSON Schema document.
func MatchesSchema(schema []byte) Predicate {
	return schemaPredicate("schema", gojsonschema.NewBytesLoader(schema))
}

// MatchesSchemaFile validates actual against a JSON Schema stored on disk.
func MatchesSchemaFile(path string) Predicate {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return schemaPredicate(path, gojsonschema.NewReferenceLoader("file://"+filepath.ToSlash(abs)))
}

func schemaPredicate(expected string, loader gojsonschema.JSONLoader) Predicate {
	return func(actual any) *Result {
		actualJSON, err := json.Marshal(actual)
		if err != nil {
			r := fail("schema", expected, actual, "failed to marshal actual value: %v", err)
			r.Err = err
			return r
		}

		result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(actualJSON))
		if err != nil {
			r := fail("schema", expected, actual, "schema validation error: %v", err)
			r.Err = err
			return r
		}

		if result.Valid() {
			return pass("schema", expected, actual)
		}

		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fail("schema", expected, actual, "%s", fmt.Sprintf("schema validation failed: %s", strings.Join(problems, "; ")))
	}
}
