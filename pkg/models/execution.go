package models

import "time"

// ExecutionStatus is the terminal state of one orchestration.
type ExecutionStatus string

const (
	StatusPending ExecutionStatus = "pending"
	StatusSuccess ExecutionStatus = "success"
	StatusFailed  ExecutionStatus = "failed"
	StatusCached  ExecutionStatus = "cached"
)

// ExecutionResult is returned by the orchestrator. Only its output projection
// is ever cached; the result itself is not persisted.
type ExecutionResult struct {
	ExecutionID string          `json:"execution_id"`
	SkillID     string          `json:"skill_id"`
	Status      ExecutionStatus `json:"status"`
	Output      any             `json:"output,omitempty"`
	Confidence  float64         `json:"confidence"`
	Cost        float64         `json:"cost"`
	Duration    time.Duration   `json:"duration"`
	CacheHit    bool            `json:"cache_hit"`
	ModelUsed   string          `json:"model_used"`
	Error       string          `json:"error,omitempty"`
}

// OrchestratorStats aggregates the orchestrator's in-memory execution history.
type OrchestratorStats struct {
	Executions   int     `json:"executions"`
	Successes    int     `json:"successes"`
	Failures     int     `json:"failures"`
	CacheHits    int     `json:"cache_hits"`
	SuccessRate  float64 `json:"success_rate"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	TotalCost    float64 `json:"total_cost"`
}
