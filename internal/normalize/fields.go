package normalize

import (
	"fmt"

	"secureingest/internal/schema"

	"github.com/theory/jsonpath"
)

// getString returns fields[key] as a string, or "" if absent or not a
// string. Used for optional fields where absence is not an error.
func getString(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// requireString returns fields[key] as a non-empty string or a
// schema.ErrSchemaViolation.
func requireString(fields map[string]any, key string) (string, error) {
	s := getString(fields, key)
	if s == "" {
		return "", fmt.Errorf("%w: missing or empty field %q", schema.ErrSchemaViolation, key)
	}
	return s, nil
}

// getMap returns fields[key] as a nested map, or nil if absent or not a map.
func getMap(fields map[string]any, key string) map[string]any {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// getBool returns fields[key] as a bool, or def if absent or not a bool.
func getBool(fields map[string]any, key string, def bool) bool {
	v, ok := fields[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// getNumber returns fields[key] as a float64 (the shape json.Unmarshal
// decodes all JSON numbers into when targeting map[string]any), or 0 if
// absent or not numeric.
func getNumber(fields map[string]any, key string) float64 {
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// selectFirstString evaluates a JSONPath expression against doc and
// returns the first matched value as a string, or "" on no match or a
// non-string match. Used for the small number of extractions that need
// to reach into source-irregular, possibly-array-shaped documents (e.g.
// cloud_audit's "first associated resource identifier"), where a
// declarative path expression is clearer than hand-written traversal.
func selectFirstString(expr string, doc any) string {
	path, err := jsonpath.Parse(expr)
	if err != nil {
		return ""
	}
	results := path.Select(doc)
	if len(results) == 0 {
		return ""
	}
	s, _ := results[0].(string)
	return s
}
