// Package api is the caller-facing facade shared by the HTTP and MCP
// transports. It turns orchestration results into query envelopes and owns
// the pattern knowledge base.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pario-ai/skillgate/pkg/contextchain"
	"github.com/pario-ai/skillgate/pkg/hallucination"
	"github.com/pario-ai/skillgate/pkg/models"
	"github.com/pario-ai/skillgate/pkg/orchestrator"
	"github.com/pario-ai/skillgate/pkg/registry"
	"github.com/pario-ai/skillgate/pkg/scoring"
	"github.com/pario-ai/skillgate/pkg/tools"
)

// ErrInvalidPattern is returned when a pattern is missing its id or code.
var ErrInvalidPattern = errors.New("invalid pattern")

// DefaultPatternConfidence applies when AddPattern is given no confidence.
const DefaultPatternConfidence = 0.85

// Store is the subset of the fingerprint cache the service uses directly.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, category models.CacheCategory) error
	ClearAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (models.CacheStats, error)
}

// Pattern is a knowledge-base entry.
type Pattern struct {
	ID          string   `json:"id"`
	Code        string   `json:"code"`
	Description string   `json:"description,omitempty"`
	Confidence  float64  `json:"confidence"`
	Tags        []string `json:"tags,omitempty"`
}

// Stats is the system-wide statistics snapshot.
type Stats struct {
	Cache         models.CacheStats        `json:"cache"`
	Orchestrator  models.OrchestratorStats `json:"orchestrator"`
	Tools         models.ToolStats         `json:"tools"`
	Context       models.ChainStats        `json:"context"`
	Hallucination map[string]any           `json:"hallucination"`
	Skills        int                      `json:"skills"`
}

// Service wires the components together.
type Service struct {
	store    Store
	orch     *orchestrator.Orchestrator
	chains   *contextchain.Manager
	tools    *tools.Validator
	detector *hallucination.Detector
	skills   *registry.Registry
	logger   *zap.Logger
}

// New creates a Service. A nil logger disables logging.
func New(store Store, orch *orchestrator.Orchestrator, chains *contextchain.Manager,
	validator *tools.Validator, detector *hallucination.Detector, skills *registry.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		orch:     orch,
		chains:   chains,
		tools:    validator,
		detector: detector,
		skills:   skills,
		logger:   logger,
	}
}

// Chains exposes the context manager.
func (s *Service) Chains() *contextchain.Manager { return s.chains }

// Tools exposes the tool validator.
func (s *Service) Tools() *tools.Validator { return s.tools }

// Query answers one query and wraps the outcome in a QueryResult. When a
// conversation id is given, the query and answer are appended to that chain.
func (s *Service) Query(ctx context.Context, req models.QueryRequest) (models.QueryResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return models.QueryResult{}, errors.New("query is required")
	}

	res, err := s.orch.Execute(ctx, req.Query, req.Context, req.MinConfidence)
	if err != nil {
		return models.QueryResult{}, err
	}
	out := s.envelope(req.Query, res)

	if req.ConversationID != "" {
		if err := s.record(ctx, req, res); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *Service) envelope(query string, res models.ExecutionResult) models.QueryResult {
	out := models.QueryResult{
		Query:           query,
		Answer:          res.Output,
		Status:          res.Status,
		Confidence:      res.Confidence,
		ConfidenceLevel: string(scoring.LevelFor(res.Confidence)),
		SkillUsed:       res.SkillID,
		ModelUsed:       res.ModelUsed,
		Cost:            res.Cost,
		Duration:        res.Duration,
		CacheHit:        res.CacheHit,
		Error:           res.Error,
	}
	if res.Status == models.StatusSuccess || res.Status == models.StatusCached {
		report := s.detector.Check(answerText(res.Output))
		out.Warnings = report.Warnings
		if report.Hallucination {
			out.Warnings = append(out.Warnings, fmt.Sprintf("possible hallucination (confidence %.2f)", report.Confidence))
		}
	}
	return out
}

func answerText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func (s *Service) record(ctx context.Context, req models.QueryRequest, res models.ExecutionResult) error {
	in := s.chains.CreateContext(req.Query, models.ContextUserInput, "user", contextchain.WithTarget(res.SkillID))
	if err := s.chains.AddToChain(ctx, req.ConversationID, in); err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	if res.Output == nil {
		return nil
	}
	out := s.chains.CreateContext(res.Output, models.ContextSkillOutput, res.SkillID,
		contextchain.WithRelevance(res.Confidence))
	if err := s.chains.AddToChain(ctx, req.ConversationID, out); err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

// BatchQuery answers reqs concurrently. Results keep the order of reqs.
func (s *Service) BatchQuery(ctx context.Context, reqs []models.QueryRequest) ([]models.QueryResult, error) {
	batch := make([]orchestrator.Request, len(reqs))
	for i, r := range reqs {
		if strings.TrimSpace(r.Query) == "" {
			return nil, fmt.Errorf("query %d is empty", i)
		}
		batch[i] = orchestrator.Request{Intent: r.Query, Context: r.Context, MinConfidence: r.MinConfidence}
	}
	results, err := s.orch.ExecuteBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	out := make([]models.QueryResult, len(results))
	for i, res := range results {
		out[i] = s.envelope(reqs[i].Query, res)
	}
	return out, nil
}

// GetPattern returns a stored pattern.
func (s *Service) GetPattern(ctx context.Context, id string) (Pattern, bool, error) {
	var p Pattern
	found, err := s.store.Get(ctx, orchestrator.PatternKey(id), &p)
	if err != nil || !found {
		return Pattern{}, false, err
	}
	return p, true, nil
}

// AddPattern stores p in the knowledge base and teaches it to the detector.
func (s *Service) AddPattern(ctx context.Context, p Pattern) error {
	if p.ID == "" || p.Code == "" {
		return fmt.Errorf("%w: id and code are required", ErrInvalidPattern)
	}
	if p.Confidence == 0 {
		p.Confidence = DefaultPatternConfidence
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidPattern, p.Confidence)
	}
	if err := s.store.Set(ctx, orchestrator.PatternKey(p.ID), p, models.CategoryPattern); err != nil {
		return fmt.Errorf("add pattern %s: %w", p.ID, err)
	}
	s.detector.AddKnownPattern(hallucination.Pattern{ID: p.ID, Code: p.Code, Confidence: p.Confidence})
	s.logger.Info("pattern added", zap.String("pattern", p.ID), zap.Float64("confidence", p.Confidence))
	return nil
}

// ListSkills returns every registered skill.
func (s *Service) ListSkills() []models.SkillInfo {
	return s.skills.List()
}

// GetSkill returns one skill.
func (s *Service) GetSkill(id string) (models.SkillInfo, bool) {
	return s.skills.Get(id)
}

// ResolveDependencies returns the load order for a skill, dependencies first.
func (s *Service) ResolveDependencies(id string) ([]string, error) {
	return s.skills.ResolveDependencies(id)
}

// MatchSkills suggests skills whose triggers appear in the text.
func (s *Service) MatchSkills(context, task string) []models.TriggerMatch {
	return s.skills.MatchTrigger(context, task)
}

// ClearCache drops every cache entry and reports how many were removed.
func (s *Service) ClearCache(ctx context.Context) (int64, error) {
	n, err := s.store.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("cache cleared", zap.Int64("entries", n))
	return n, nil
}

// Stats collects statistics from every component.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	cs, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Cache:         cs,
		Orchestrator:  s.orch.Stats(),
		Tools:         s.tools.Stats(),
		Context:       s.chains.Stats(),
		Hallucination: s.detector.Stats(),
		Skills:        len(s.skills.List()),
	}, nil
}
