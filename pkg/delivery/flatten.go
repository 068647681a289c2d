package delivery

import (
	"encoding/json"
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Flatten turns nested maps into parent_child keys. Lists of scalars are joined with
// ", " and lists holding maps are encoded as a JSON string.
func Flatten(data map[string]any, prefix string) map[string]any {
	out := make(map[string]any)
	flattenInto(out, data, prefix)
	return out
}

func flattenInto(out map[string]any, data map[string]any, prefix string) {
	for k, v := range data {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}

		switch t := v.(type) {
		case map[string]any:
			flattenInto(out, t, key)
		case []string:
			out[key] = strings.Join(t, ", ")
		case []any:
			out[key] = flattenList(t)
		case []map[string]any:
			out[key] = encodeJSON(t)
		default:
			out[key] = v
		}
	}
}

func flattenList(list []any) any {
	if len(ectolinq.Filter(list, isNested)) > 0 {
		return encodeJSON(list)
	}
	return strings.Join(ectolinq.Map(list, normalizers.String), ", ")
}

func isNested(item any) bool {
	switch item.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
