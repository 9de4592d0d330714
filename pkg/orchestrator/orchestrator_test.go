package orchestrator

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/skillgate/pkg/cache/sqlite"
	"github.com/pario-ai/skillgate/pkg/config"
	"github.com/pario-ai/skillgate/pkg/hallucination"
	"github.com/pario-ai/skillgate/pkg/models"
	"github.com/pario-ai/skillgate/pkg/router"
)

func newTestCache(t *testing.T) *sqlite.Cache {
	t.Helper()
	c, err := sqlite.New(filepath.Join(t.TempDir(), "orchestrator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestOrchestrator(t *testing.T, c Cache, opts ...Option) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	return New(c, router.New(cfg), cfg.Orchestrator, opts...)
}

// countingExecutor records how often it was called.
type countingExecutor struct {
	calls atomic.Int32
	err   error
}

func (e *countingExecutor) Execute(ctx context.Context, task Task) (Output, error) {
	e.calls.Add(1)
	if e.err != nil {
		return Output{}, e.err
	}
	return EchoExecutor{}.Execute(ctx, task)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, any) (bool, error) {
	return false, sqlite.ErrStore
}

func (brokenCache) Set(context.Context, string, any, models.CacheCategory) error {
	return sqlite.ErrStore
}

func TestExecuteEmptyContext(t *testing.T) {
	o := newTestOrchestrator(t, newTestCache(t))

	res, err := o.Execute(context.Background(), "hello", nil, 0)
	require.NoError(t, err)

	want := 0.79 - 0.05*math.Log(2)
	assert.InDelta(t, want, res.Confidence, 1e-9)
	assert.Equal(t, models.StatusSuccess, res.Status)
	assert.Equal(t, "LLM", res.SkillID)
	// confidence of 0.755 routes to the top tier
	assert.Equal(t, "local", res.ModelUsed)
	assert.Zero(t, res.Cost)
	assert.False(t, res.CacheHit)
	assert.NotEmpty(t, res.ExecutionID)
}

func TestExecuteRepeatIsCached(t *testing.T) {
	exec := &countingExecutor{}
	o := newTestOrchestrator(t, newTestCache(t), WithExecutor(exec))
	ctx := context.Background()
	input := map[string]any{"file": "test.tsx"}

	first, err := o.Execute(ctx, "fix the lint error", input, 0)
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, first.Status)
	assert.Equal(t, "lint-fixer", first.SkillID)
	assert.Equal(t, "deepseek", first.ModelUsed, "confidence 0.64 routes to the middle tier")

	second, err := o.Execute(ctx, "fix the lint error", map[string]any{"file": "test.tsx"}, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCached, second.Status)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1.0, second.Confidence)
	assert.Equal(t, router.CacheModel, second.ModelUsed)
	assert.Equal(t, "lint-fixer", second.SkillID)
	assert.Zero(t, second.Cost)
	assert.NotEqual(t, first.ExecutionID, second.ExecutionID)

	assert.EqualValues(t, 1, exec.calls.Load(), "cached answer must not reach the executor")
}

func TestExecuteBelowThresholdWritesNothing(t *testing.T) {
	c := newTestCache(t)
	exec := &countingExecutor{}
	o := newTestOrchestrator(t, c, WithExecutor(exec))
	ctx := context.Background()

	res, err := o.Execute(ctx, "hello", nil, 0.95)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "below threshold 0.95")
	assert.Equal(t, router.NoModel, res.ModelUsed)
	assert.Zero(t, exec.calls.Load())

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
}

func TestExecuteLargeContextRejectedByDefault(t *testing.T) {
	o := newTestOrchestrator(t, newTestCache(t))
	big := map[string]any{"payload": make([]int, 200)}

	res, err := o.Execute(context.Background(), "hello", big, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Less(t, res.Confidence, 0.60)
}

func TestExecuteExecutorError(t *testing.T) {
	c := newTestCache(t)
	o := newTestOrchestrator(t, c, WithExecutor(&countingExecutor{err: errors.New("backend unreachable")}))
	ctx := context.Background()

	res, err := o.Execute(ctx, "hello", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Equal(t, "backend unreachable", res.Error)

	found, err := c.Get(ctx, CacheKey("hello", nil), new(any))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExecuteCachesAfterCallerGivesUp(t *testing.T) {
	c := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	abandon := ExecutorFunc(func(ctx context.Context, task Task) (Output, error) {
		cancel()
		return Output{Value: "done", Model: task.Model}, nil
	})
	o := newTestOrchestrator(t, c, WithExecutor(abandon))

	res, err := o.Execute(ctx, "hello", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, res.Status)

	var cached cachedOutput
	found, err := c.Get(context.Background(), CacheKey("hello", nil), &cached)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "done", cached.Output)
}

func TestExecuteStoreFailure(t *testing.T) {
	o := newTestOrchestrator(t, brokenCache{})
	_, err := o.Execute(context.Background(), "hello", nil, 0)
	assert.ErrorIs(t, err, sqlite.ErrStore)
}

func TestExecuteBatch(t *testing.T) {
	o := newTestOrchestrator(t, newTestCache(t))

	reqs := []Request{
		{Intent: "fix bug"},
		{Intent: "convert to pdf"},
		{Intent: "hello", MinConfidence: 0.99},
		{Intent: "search docs", Context: map[string]any{"k": 1}},
	}
	results, err := o.ExecuteBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "lint-fixer", results[0].SkillID)
	assert.Equal(t, "docx", results[1].SkillID)
	assert.Equal(t, models.StatusFailed, results[2].Status)
	assert.Equal(t, "mas-rag-system", results[3].SkillID)
}

func TestExecuteBatchStoreFailure(t *testing.T) {
	o := newTestOrchestrator(t, brokenCache{})
	_, err := o.ExecuteBatch(context.Background(), []Request{{Intent: "a"}, {Intent: "b"}})
	assert.ErrorIs(t, err, sqlite.ErrStore)
}

func TestPeerRequest(t *testing.T) {
	c := newTestCache(t)
	o := newTestOrchestrator(t, c)
	ctx := context.Background()

	got, err := o.PeerRequest(ctx, "lint-fixer", "LLM", "notify", nil)
	require.NoError(t, err)
	assert.Equal(t, true, got["received"])

	got, err = o.PeerRequest(ctx, "a", "b", "get_pattern", map[string]any{"pattern": "lazy_init"})
	require.NoError(t, err)
	assert.Equal(t, 0.95, got["confidence"])

	stored := hallucination.Pattern{ID: "mine", Code: "x()", Confidence: 0.7}
	require.NoError(t, c.Set(ctx, PatternKey("mine"), stored, models.CategoryPattern))
	got, err = o.PeerRequest(ctx, "a", "b", "get_pattern", map[string]any{"pattern_id": "mine"})
	require.NoError(t, err)
	assert.Equal(t, "x()", got["code"])

	got, err = o.PeerRequest(ctx, "a", "b", "get_pattern", map[string]any{"pattern": "nope"})
	require.NoError(t, err)
	assert.Equal(t, "not found", got["error"])
}

func TestStatsAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestCache(t)
	o := newTestOrchestrator(t, c, WithMetrics(NewMetrics(reg)))
	ctx := context.Background()

	assert.Equal(t, models.OrchestratorStats{}, o.Stats())

	_, err := o.Execute(ctx, "hello", nil, 0)
	require.NoError(t, err)
	_, err = o.Execute(ctx, "hello", nil, 0)
	require.NoError(t, err)
	rejected, err := o.Execute(ctx, "hello again", nil, 0.99)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, rejected.Status)

	s := o.Stats()
	assert.Equal(t, 3, s.Executions)
	assert.Equal(t, 1, s.Successes)
	assert.Equal(t, 1, s.CacheHits)
	assert.Equal(t, 1, s.Failures)
	assert.InDelta(t, 1.0/3, s.SuccessRate, 1e-9)
	assert.InDelta(t, 1.0/3, s.CacheHitRate, 1e-9)

	m := o.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues("failed")))

	snap, err := o.SnapshotStats(ctx)
	require.NoError(t, err)
	var persisted models.OrchestratorStats
	found, err := c.Get(ctx, StatsKey, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap.Executions, persisted.Executions)

	entry, ok, err := c.Peek(ctx, StatsKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.CategoryMetrics, entry.Category)
}
