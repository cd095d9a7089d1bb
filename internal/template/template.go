// Package template implements the small placeholder language used by delivery rules:
// dotted-path lookups into decoded JSON and {{expr}} substitution.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// GetByPath walks obj one dotted segment at a time. The second return value is false
// when the path does not resolve: a missing key, an out-of-range index, or a nil
// intermediate value. A path that ends on an explicit JSON null resolves to (nil, true).
func GetByPath(obj any, path string) (any, bool) {
	current := obj
	for _, field := range strings.Split(path, ".") {
		if current == nil {
			return nil, false
		}
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[field]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := node[field]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(field)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Stringify renders a decoded JSON value the way it should appear inside delivered text.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any, []any:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	default:
		return fmt.Sprint(val)
	}
}

// Render replaces each {{expr}} with the value found at expr in data. Tokens whose path
// does not resolve are left in place.
func Render(tpl string, data any) string {
	out, _ := RenderWithMissing(tpl, data)
	return out
}

// RenderWithMissing behaves like Render and also reports the paths it could not resolve.
func RenderWithMissing(tpl string, data any) (string, []string) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tpl, func(token string) string {
		expr := strings.TrimSpace(token[2 : len(token)-2])
		v, ok := GetByPath(data, expr)
		if !ok {
			missing = append(missing, expr)
			return token
		}
		return Stringify(v)
	})
	return out, missing
}

// HasPlaceholder reports whether s still contains a {{...}} token.
func HasPlaceholder(s string) bool {
	return placeholderRe.MatchString(s)
}

// Substitute replaces literal {{key}} tokens with vars[key]. Unlike Render it does no
// path descent and no trimming, so "{{ orderId }}" is left alone.
// Values are inserted verbatim in one pass, so a value containing {{...}} is never
// expanded again.
func Substitute(s string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(token string) string {
		if value, ok := vars[token[2:len(token)-2]]; ok {
			return value
		}
		return token
	})
}
