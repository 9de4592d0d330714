package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/pario-ai/skillgate/pkg/models"
)

// injectionMarkers are substrings that suggest a parameter carries an attack.
// They produce warnings only.
var injectionMarkers = []struct {
	needle string
	label  string
}{
	{"<script", "Potential XSS"},
	{"javascript:", "Potential XSS"},
	{"drop table", "Potential SQL injection"},
	{";--", "Potential SQL injection"},
	{"../", "Path traversal"},
}

func securityWarnings(param string, v any) []string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	lower := strings.ToLower(s)
	var out []string
	for _, m := range injectionMarkers {
		if strings.Contains(lower, m.needle) {
			out = append(out, fmt.Sprintf("%s detected in %s", m.label, param))
		}
	}
	return out
}

// checkType reports whether v is acceptable for the declared type. Values
// usually arrive from encoding/json, so integers may be integral float64s.
func checkType(v any, want models.ParamType) bool {
	switch want {
	case models.ParamAny, "":
		return true
	case models.ParamString:
		_, ok := v.(string)
		return ok
	case models.ParamBoolean:
		_, ok := v.(bool)
		return ok
	case models.ParamInteger:
		switch n := v.(type) {
		case float64:
			return n == math.Trunc(n) && !math.IsInf(n, 0)
		case float32:
			return float64(n) == math.Trunc(float64(n))
		case json.Number:
			_, err := n.Int64()
			return err == nil
		}
		k := reflect.ValueOf(v).Kind()
		return k >= reflect.Int && k <= reflect.Uint64
	case models.ParamNumber:
		if _, ok := v.(json.Number); ok {
			return true
		}
		k := reflect.ValueOf(v).Kind()
		return k >= reflect.Int && k <= reflect.Float64
	case models.ParamObject:
		rv := reflect.ValueOf(v)
		return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
	case models.ParamArray:
		k := reflect.ValueOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array
	default:
		// Unknown declared types are not enforced.
		return true
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}
