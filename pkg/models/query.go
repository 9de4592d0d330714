package models

import "time"

// QueryRequest is the caller-facing query envelope.
type QueryRequest struct {
	Query          string         `json:"query"`
	Context        map[string]any `json:"context,omitempty"`
	MinConfidence  float64        `json:"min_confidence,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

// QueryResult is the caller-facing answer envelope.
type QueryResult struct {
	Query           string          `json:"query"`
	Answer          any             `json:"answer,omitempty"`
	Status          ExecutionStatus `json:"status"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLevel string          `json:"confidence_level"`
	SkillUsed       string          `json:"skill_used"`
	ModelUsed       string          `json:"model_used"`
	Cost            float64         `json:"cost"`
	Duration        time.Duration   `json:"duration"`
	CacheHit        bool            `json:"cache_hit"`
	Warnings        []string        `json:"warnings,omitempty"`
	Error           string          `json:"error,omitempty"`
}
