package contextchain

import (
	"math"
	"reflect"
	"strings"

	"github.com/pario-ai/skillgate/pkg/models"
)

var uncertaintyPhrases = []string{
	"I think",
	"probably",
	"maybe",
	"I believe",
	"could be",
	"might be",
	"not sure",
	"I guess",
}

// ValidateContext screens entry content. Each finding costs 0.2 confidence.
func ValidateContext(entry models.ContextEntry) models.ContextValidation {
	issues := []string{}
	if isEmpty(entry.Content) {
		issues = append(issues, "content is empty")
	}

	text := strings.ToLower(contentText(entry.Content))
	for _, p := range uncertaintyPhrases {
		if strings.Contains(text, strings.ToLower(p)) {
			issues = append(issues, "uncertain language: "+p)
		}
	}

	return models.ContextValidation{
		Valid:      len(issues) == 0,
		Confidence: math.Max(0, 1.0-0.2*float64(len(issues))),
		Issues:     issues,
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
