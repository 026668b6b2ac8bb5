// internal/engine/dispatch/normalize.go
package dispatch

import (
	"encoding/json"
	"strings"
)

// NormalizeDepartments converts the raw stored department value into a
// canonical ordered set of names. The CRUD layer has stored this field as a
// plain string, a string array, a JSON-encoded string array, and a
// pipe-delimited string over the years; every shape is accepted here.
// Unparseable values degrade to an empty set rather than raising.
func NormalizeDepartments(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		return dedupe(v)
	case []interface{}:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return dedupe(names)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var names []string
			if err := json.Unmarshal([]byte(trimmed), &names); err != nil {
				return nil
			}
			return dedupe(names)
		}
		if strings.Contains(trimmed, "|") {
			return dedupe(strings.Split(trimmed, "|"))
		}
		return dedupe([]string{trimmed})
	default:
		return nil
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
