package models

import "time"

// ToolStatus tracks a tool call through validation and execution.
type ToolStatus string

const (
	ToolValid     ToolStatus = "valid"
	ToolInvalid   ToolStatus = "invalid"
	ToolPending   ToolStatus = "pending"
	ToolExecuting ToolStatus = "executing"
	ToolSuccess   ToolStatus = "success"
	ToolFailed    ToolStatus = "failed"
	ToolCached    ToolStatus = "cached"
)

// ParamType is the declared JSON type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamObject  ParamType = "object"
	ParamArray   ParamType = "array"
	ParamAny     ParamType = "any"
)

// ParamSpec declares one tool parameter.
type ParamSpec struct {
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
}

// ToolSchema describes a callable tool.
type ToolSchema struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Required    map[string]ParamSpec `json:"required"`
	Optional    map[string]ParamSpec `json:"optional,omitempty"`
}

// Param looks up a parameter in either the required or optional set.
func (s ToolSchema) Param(name string) (ParamSpec, bool) {
	if p, ok := s.Required[name]; ok {
		return p, true
	}
	p, ok := s.Optional[name]
	return p, ok
}

// ValidationResult is the outcome of checking parameters against a schema.
type ValidationResult struct {
	Valid     bool           `json:"valid"`
	Errors    []string       `json:"errors"`
	Warnings  []string       `json:"warnings"`
	Sanitized map[string]any `json:"sanitized"`
}

// ToolCall is a validated invocation, mutated in place as it executes.
type ToolCall struct {
	CallID           string         `json:"call_id"`
	ToolName         string         `json:"tool_name"`
	Parameters       map[string]any `json:"parameters"`
	Status           ToolStatus     `json:"status"`
	ValidationErrors []string       `json:"validation_errors,omitempty"`
	Warnings         []string       `json:"warnings,omitempty"`
	Result           any            `json:"result,omitempty"`
	Duration         time.Duration  `json:"duration"`
	CacheHit         bool           `json:"cache_hit"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ToolStats summarizes the validator's call history.
type ToolStats struct {
	TotalCalls     int     `json:"total_calls"`
	Successful     int     `json:"successful"`
	Cached         int     `json:"cached"`
	Failed         int     `json:"failed"`
	Invalid        int     `json:"invalid"`
	SuccessRate    float64 `json:"success_rate"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	ToolsAvailable int     `json:"tools_available"`
}
