package tools

import (
	"github.com/pario-ai/skillgate/pkg/models"
)

// Names of the built-in tools.
const (
	ToolGetPattern   = "get_pattern"
	ToolExecuteSkill = "execute_skill"
	ToolCacheGet     = "cache_get"
	ToolCacheSet     = "cache_set"
	ToolPeerRequest  = "peer_request"
)

func str(desc string) models.ParamSpec {
	return models.ParamSpec{Type: models.ParamString, Description: desc}
}

// BuiltinSchemas returns the schemas every validator starts with.
func BuiltinSchemas() []models.ToolSchema {
	return []models.ToolSchema{
		{
			Name:        ToolGetPattern,
			Description: "Retrieve a code pattern by ID",
			Required:    map[string]models.ParamSpec{"pattern_id": str("Pattern identifier")},
		},
		{
			Name:        ToolExecuteSkill,
			Description: "Execute a skill with context",
			Required:    map[string]models.ParamSpec{"skill_id": str("Skill to execute")},
			Optional: map[string]models.ParamSpec{
				"context": {Type: models.ParamObject, Description: "Execution context"},
			},
		},
		{
			Name:        ToolCacheGet,
			Description: "Get a value from the cache",
			Required:    map[string]models.ParamSpec{"key": str("Cache key")},
		},
		{
			Name:        ToolCacheSet,
			Description: "Store a value in the cache",
			Required: map[string]models.ParamSpec{
				"key":   str("Cache key"),
				"value": {Type: models.ParamAny, Description: "Value to cache"},
			},
			Optional: map[string]models.ParamSpec{
				"ttl": {Type: models.ParamInteger, Description: "Time to live in seconds"},
			},
		},
		{
			Name:        ToolPeerRequest,
			Description: "Send a request to a peer skill",
			Required: map[string]models.ParamSpec{
				"from_skill":   str("Requesting skill"),
				"to_skill":     str("Receiving skill"),
				"request_type": str("Request kind, e.g. get_pattern"),
			},
			Optional: map[string]models.ParamSpec{
				"payload": {Type: models.ParamObject, Description: "Request payload"},
			},
		},
	}
}
