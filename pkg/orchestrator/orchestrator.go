// Package orchestrator decides how a query is answered: from the fingerprint
// cache, by rejecting it, or by routing it to a skill on a backend tier.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/skillgate/pkg/cache/sqlite"
	"github.com/pario-ai/skillgate/pkg/config"
	"github.com/pario-ai/skillgate/pkg/hallucination"
	"github.com/pario-ai/skillgate/pkg/models"
	"github.com/pario-ai/skillgate/pkg/router"
	"github.com/pario-ai/skillgate/pkg/scoring"
)

// StatsKey is where SnapshotStats persists the execution totals.
const StatsKey = "metrics:orchestrator"

// Cache is the subset of the fingerprint cache the orchestrator needs.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, category models.CacheCategory) error
}

// Request is one query in a batch.
type Request struct {
	Intent        string         `json:"intent"`
	Context       map[string]any `json:"context,omitempty"`
	MinConfidence float64        `json:"min_confidence,omitempty"`
}

// cachedOutput is the projection of a successful result that gets cached.
type cachedOutput struct {
	SkillID   string `json:"skill_id"`
	Output    any    `json:"output"`
	ModelUsed string `json:"model_used"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExecutor replaces the default EchoExecutor.
func WithExecutor(e Executor) Option {
	return func(o *Orchestrator) { o.exec = e }
}

// WithScorer replaces the linear confidence scorer.
func WithScorer(s scoring.Scorer) Option {
	return func(o *Orchestrator) { o.scorer = s }
}

// WithIntentRouter replaces the default intent rules.
func WithIntentRouter(r *router.IntentRouter) Option {
	return func(o *Orchestrator) { o.intents = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator runs the cache → classify → score → route → execute pipeline.
type Orchestrator struct {
	cache    Cache
	backends *router.Router
	intents  *router.IntentRouter
	scorer   scoring.Scorer
	exec     Executor
	cfg      config.OrchestratorConfig
	logger   *zap.Logger
	metrics  *Metrics

	mu    sync.Mutex
	stats models.OrchestratorStats
}

// New creates an Orchestrator over cache and the backend tier router.
func New(cache Cache, backends *router.Router, cfg config.OrchestratorConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:    cache,
		backends: backends,
		intents:  router.NewIntentRouter(nil, nil),
		scorer:   scoring.NewLinear(),
		exec:     EchoExecutor{},
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CacheKey is the fingerprint an intent and its context are cached under.
func CacheKey(intent string, input map[string]any) string {
	if input == nil {
		input = map[string]any{}
	}
	return sqlite.GenerateKey(intent, input)
}

// PatternKey is the cache key of a stored pattern.
func PatternKey(id string) string {
	return "pattern:" + id
}

// Execute answers one query. Rejections and executor failures come back as a
// failed result with a nil error; only cache store failures return an error.
// A minConfidence of zero or less selects the configured threshold, so the
// lowest explicit threshold a caller can ask for is any small positive value.
// Once the executor returns, its result is cached even if ctx has been
// cancelled in the meantime.
func (o *Orchestrator) Execute(ctx context.Context, intent string, input map[string]any, minConfidence float64) (models.ExecutionResult, error) {
	start := time.Now()
	if input == nil {
		input = map[string]any{}
	}
	if minConfidence <= 0 {
		minConfidence = o.cfg.MinConfidence
	}

	res := models.ExecutionResult{
		ExecutionID: uuid.NewString(),
		Status:      models.StatusPending,
	}
	key := CacheKey(intent, input)

	var hit cachedOutput
	found, err := o.cache.Get(ctx, key, &hit)
	if err != nil {
		return res, fmt.Errorf("execution %s: %w", res.ExecutionID, err)
	}
	if found {
		res.SkillID = hit.SkillID
		res.Output = hit.Output
		res.Status = models.StatusCached
		res.Confidence = 1
		res.CacheHit = true
		res.ModelUsed = router.CacheModel
		return o.finish(res, start), nil
	}

	_, skill := o.intents.Route(intent)
	res.SkillID = skill

	res.Confidence = o.scorer.Score(scoring.Signals{
		ContextMatch: o.cfg.ContextMatch,
		Complexity:   complexity(input),
	})
	if res.Confidence < minConfidence {
		res.Status = models.StatusFailed
		res.Error = fmt.Sprintf("confidence %.2f below threshold %.2f", res.Confidence, minConfidence)
		res.ModelUsed = router.NoModel
		return o.finish(res, start), nil
	}

	route := o.backends.Resolve(res.Confidence)
	res.ModelUsed = route.Model

	out, err := o.exec.Execute(ctx, Task{
		ExecutionID: res.ExecutionID,
		Intent:      intent,
		SkillID:     skill,
		Model:       route.Model,
		Context:     input,
	})
	if err != nil {
		res.Status = models.StatusFailed
		res.Error = err.Error()
		return o.finish(res, start), nil
	}
	if out.Model != "" {
		res.ModelUsed = out.Model
	}
	res.Output = out.Value
	res.Cost = route.Cost + out.Cost

	if err := o.cache.Set(context.WithoutCancel(ctx), key, cachedOutput{
		SkillID:   res.SkillID,
		Output:    res.Output,
		ModelUsed: res.ModelUsed,
	}, models.CategoryExecution); err != nil {
		return res, fmt.Errorf("execution %s: %w", res.ExecutionID, err)
	}
	res.Status = models.StatusSuccess
	return o.finish(res, start), nil
}

// complexity is the length of the canonical JSON encoding of input.
func complexity(input map[string]any) float64 {
	data, err := json.Marshal(input)
	if err != nil {
		return 0
	}
	return float64(len(data))
}

func (o *Orchestrator) finish(res models.ExecutionResult, start time.Time) models.ExecutionResult {
	res.Duration = time.Since(start)

	o.mu.Lock()
	o.stats.Executions++
	switch res.Status {
	case models.StatusSuccess:
		o.stats.Successes++
	case models.StatusFailed:
		o.stats.Failures++
	case models.StatusCached:
		o.stats.CacheHits++
	}
	o.stats.TotalCost += res.Cost
	o.mu.Unlock()

	o.metrics.observe(res)
	fields := []zap.Field{
		zap.String("execution_id", res.ExecutionID),
		zap.String("skill", res.SkillID),
		zap.String("status", string(res.Status)),
		zap.Float64("confidence", res.Confidence),
		zap.String("model", res.ModelUsed),
		zap.Duration("duration", res.Duration),
	}
	if res.Status == models.StatusFailed {
		o.logger.Info("execution failed", append(fields, zap.String("reason", res.Error))...)
	} else {
		o.logger.Debug("execution finished", fields...)
	}
	return res
}

// ExecuteBatch runs reqs concurrently, at most MaxConcurrent at a time.
// Results keep the order of reqs. The first store failure cancels the rest.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, reqs []Request) ([]models.ExecutionResult, error) {
	results := make([]models.ExecutionResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	limit := o.cfg.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, req := range reqs {
		g.Go(func() error {
			res, err := o.Execute(gctx, req.Intent, req.Context, req.MinConfidence)
			if err != nil {
				return fmt.Errorf("batch item %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PeerRequest carries a message from one skill to another. A get_pattern
// request is answered from the stored patterns, falling back to the built-in
// ones; anything else is acknowledged.
func (o *Orchestrator) PeerRequest(ctx context.Context, from, to, requestType string, payload map[string]any) (map[string]any, error) {
	o.logger.Debug("peer request",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("type", requestType))

	if requestType != "get_pattern" {
		return map[string]any{"received": true, "from": from, "to": to}, nil
	}

	id, _ := payload["pattern"].(string)
	if id == "" {
		id, _ = payload["pattern_id"].(string)
	}
	if id == "" {
		return map[string]any{"error": "pattern id required"}, nil
	}

	var stored hallucination.Pattern
	found, err := o.cache.Get(ctx, PatternKey(id), &stored)
	if err != nil {
		return nil, fmt.Errorf("peer request: %w", err)
	}
	if found {
		return patternReply(stored), nil
	}
	for _, p := range hallucination.DefaultPatterns() {
		if p.ID == id {
			return patternReply(p), nil
		}
	}
	return map[string]any{"error": "not found"}, nil
}

func patternReply(p hallucination.Pattern) map[string]any {
	return map[string]any{"id": p.ID, "code": p.Code, "confidence": p.Confidence}
}

// Stats returns execution totals since the orchestrator was created.
func (o *Orchestrator) Stats() models.OrchestratorStats {
	o.mu.Lock()
	s := o.stats
	o.mu.Unlock()

	if s.Executions > 0 {
		n := float64(s.Executions)
		s.SuccessRate = float64(s.Successes) / n
		s.CacheHitRate = float64(s.CacheHits) / n
	}
	return s
}

// SnapshotStats persists the current totals under the metrics category.
func (o *Orchestrator) SnapshotStats(ctx context.Context) (models.OrchestratorStats, error) {
	s := o.Stats()
	if err := o.cache.Set(ctx, StatsKey, s, models.CategoryMetrics); err != nil {
		return s, fmt.Errorf("snapshot stats: %w", err)
	}
	return s, nil
}
