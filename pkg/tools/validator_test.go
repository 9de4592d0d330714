package tools

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/skillgate/pkg/cache/sqlite"
	"github.com/pario-ai/skillgate/pkg/models"
)

func newTestCache(t *testing.T) *sqlite.Cache {
	t.Helper()
	c, err := sqlite.New(filepath.Join(t.TempDir(), "tools.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type stubPeers struct {
	calls []string
}

func (s *stubPeers) PeerRequest(_ context.Context, from, to, typ string, payload map[string]any) (map[string]any, error) {
	s.calls = append(s.calls, typ)
	if typ == "get_pattern" {
		return map[string]any{"id": payload["pattern_id"], "code": "useState(() => value)"}, nil
	}
	return map[string]any{"received": true, "from": from, "to": to}, nil
}

func TestValidateGetPattern(t *testing.T) {
	v := New(nil)

	res := v.Validate(ToolGetPattern, map[string]any{})
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "pattern_id")

	res = v.Validate(ToolGetPattern, map[string]any{"pattern_id": "x"})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"pattern_id": "x"}, res.Sanitized)
}

func TestValidateUnknownTool(t *testing.T) {
	res := New(nil).Validate("rm_rf", map[string]any{"path": "/"})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Unknown tool: rm_rf"}, res.Errors)
	assert.Empty(t, res.Sanitized)
}

func TestValidateNullRequired(t *testing.T) {
	res := New(nil).Validate(ToolCacheSet, map[string]any{"key": "k", "value": nil})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Parameter value cannot be null"}, res.Errors)
}

func TestValidateTypes(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.RegisterTool(models.ToolSchema{
		Name: "typed",
		Optional: map[string]models.ParamSpec{
			"s": {Type: models.ParamString},
			"i": {Type: models.ParamInteger},
			"n": {Type: models.ParamNumber},
			"b": {Type: models.ParamBoolean},
			"o": {Type: models.ParamObject},
			"a": {Type: models.ParamArray},
			"x": {Type: models.ParamAny},
		},
	}))

	tests := []struct {
		name  string
		param string
		value any
		ok    bool
	}{
		{"string", "s", "hi", true},
		{"string rejects number", "s", 1.0, false},
		{"integral float is integer", "i", 3.0, true},
		{"fraction is not integer", "i", 3.5, false},
		{"native int", "i", 7, true},
		{"json number", "i", json.Number("12"), true},
		{"number", "n", 2.5, true},
		{"number rejects string", "n", "2.5", false},
		{"boolean", "b", true, true},
		{"boolean rejects string", "b", "true", false},
		{"object", "o", map[string]any{"k": 1}, true},
		{"object rejects array", "o", []any{1}, false},
		{"array", "a", []any{1, "two"}, true},
		{"typed slice", "a", []string{"x"}, true},
		{"any", "x", struct{}{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate("typed", map[string]any{tt.param: tt.value})
			assert.Equal(t, tt.ok, res.Valid, res.Errors)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	v := New(nil)

	res := v.Validate(ToolCacheGet, map[string]any{"key": "<script>alert(1)</script>"})
	assert.True(t, res.Valid, "security findings never block validity")
	assert.Equal(t, []string{"Potential XSS detected in key"}, res.Warnings)

	res = v.Validate(ToolCacheGet, map[string]any{"key": "../../etc; drop TABLE users;--"})
	assert.True(t, res.Valid)
	assert.Equal(t, []string{
		"Potential SQL injection detected in key",
		"Potential SQL injection detected in key",
		"Path traversal detected in key",
	}, res.Warnings)

	res = v.Validate(ToolCacheGet, map[string]any{"key": "k", "zeta": 1, "alpha": 2})
	assert.True(t, res.Valid)
	assert.Equal(t, []string{"Unknown parameter: alpha", "Unknown parameter: zeta"}, res.Warnings)
	assert.Equal(t, map[string]any{"key": "k"}, res.Sanitized)
}

func TestValidateErrorOrderIsDeterministic(t *testing.T) {
	v := New(nil)
	for range 10 {
		res := v.Validate(ToolPeerRequest, map[string]any{"payload": "nope"})
		assert.Equal(t, []string{
			"Missing required parameter: from_skill",
			"Missing required parameter: request_type",
			"Missing required parameter: to_skill",
			"Parameter payload has wrong type. Expected object, got string",
		}, res.Errors)
	}
}

func TestRegisterTool(t *testing.T) {
	v := New(nil)
	before := len(v.Tools())

	require.NoError(t, v.RegisterTool(models.ToolSchema{
		Name:     "lint_file",
		Required: map[string]models.ParamSpec{"path": {Type: models.ParamString}},
	}))
	assert.Len(t, v.Tools(), before+1)
	assert.True(t, v.Validate("lint_file", map[string]any{"path": "a.ts"}).Valid)

	assert.Error(t, v.RegisterTool(models.ToolSchema{}))
	assert.Error(t, v.RegisterTool(models.ToolSchema{
		Name:     "bad",
		Required: map[string]models.ParamSpec{"p": {Type: "date"}},
	}))

	// registries are per instance
	assert.Len(t, New(nil).Tools(), before)
}

func TestCreateCall(t *testing.T) {
	v := New(nil)

	ok := v.CreateCall(ToolGetPattern, map[string]any{"pattern_id": "lazy_init", "extra": true})
	assert.Equal(t, models.ToolValid, ok.Status)
	assert.Equal(t, map[string]any{"pattern_id": "lazy_init"}, ok.Parameters)
	assert.Regexp(t, `^call_\d+_1$`, ok.CallID)

	bad := v.CreateCall(ToolGetPattern, nil)
	assert.Equal(t, models.ToolInvalid, bad.Status)
	assert.Regexp(t, `^call_\d+_2$`, bad.CallID)

	assert.Len(t, v.History(), 2)
}

func TestExecuteInvalidIsNoop(t *testing.T) {
	v := New(newTestCache(t))
	call := v.CreateCall(ToolGetPattern, nil)

	called := false
	got, err := v.Execute(context.Background(), call, ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
		called = true
		return nil, nil
	}))
	require.NoError(t, err)
	assert.Same(t, call, got)
	assert.Equal(t, models.ToolInvalid, got.Status)
	assert.False(t, called)
}

func TestExecuteCacheThrough(t *testing.T) {
	v := New(newTestCache(t))
	ctx := context.Background()

	calls := 0
	exec := ExecutorFunc(func(_ context.Context, tool string, params map[string]any) (any, error) {
		calls++
		return map[string]any{"ran": params["skill_id"]}, nil
	})

	first, err := v.Execute(ctx, v.CreateCall(ToolExecuteSkill, map[string]any{"skill_id": "docx"}), exec)
	require.NoError(t, err)
	assert.Equal(t, models.ToolSuccess, first.Status)
	assert.False(t, first.CacheHit)

	second, err := v.Execute(ctx, v.CreateCall(ToolExecuteSkill, map[string]any{"skill_id": "docx"}), exec)
	require.NoError(t, err)
	assert.Equal(t, models.ToolCached, second.Status)
	assert.True(t, second.CacheHit)
	assert.Equal(t, map[string]any{"ran": "docx"}, second.Result)
	assert.Equal(t, 1, calls)
}

func TestExecuteNilResultNotCached(t *testing.T) {
	v := New(newTestCache(t))
	ctx := context.Background()

	calls := 0
	exec := ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
		calls++
		return nil, nil
	})
	for range 2 {
		call, err := v.Execute(ctx, v.CreateCall(ToolExecuteSkill, map[string]any{"skill_id": "x"}), exec)
		require.NoError(t, err)
		assert.Equal(t, models.ToolSuccess, call.Status)
	}
	assert.Equal(t, 2, calls)
}

func TestExecuteFailures(t *testing.T) {
	v := New(nil)
	ctx := context.Background()

	call, err := v.Execute(ctx, v.CreateCall(ToolExecuteSkill, map[string]any{"skill_id": "x"}),
		ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
			return nil, errors.New("backend down")
		}))
	require.NoError(t, err)
	assert.Equal(t, models.ToolFailed, call.Status)
	assert.Equal(t, []string{"backend down"}, call.ValidationErrors)

	call, err = v.Execute(ctx, v.CreateCall(ToolExecuteSkill, map[string]any{"skill_id": "x"}),
		ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
			panic("boom")
		}))
	require.NoError(t, err)
	assert.Equal(t, models.ToolFailed, call.Status)
	require.Len(t, call.ValidationErrors, 1)
	assert.Contains(t, call.ValidationErrors[0], "boom")

	// execute_skill has no built-in handler
	call, err = v.Execute(ctx, v.CreateCall(ToolExecuteSkill, map[string]any{"skill_id": "x"}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ToolFailed, call.Status)
	assert.Contains(t, call.ValidationErrors[0], ErrNoHandler.Error())
}

func TestBuiltinCacheTools(t *testing.T) {
	v := New(newTestCache(t))
	ctx := context.Background()

	set, err := v.Execute(ctx, v.CreateCall(ToolCacheSet, map[string]any{"key": "greeting", "value": "hi", "ttl": 60.0}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ToolSuccess, set.Status)
	assert.Equal(t, true, set.Result)

	get, err := v.Execute(ctx, v.CreateCall(ToolCacheGet, map[string]any{"key": "greeting"}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ToolSuccess, get.Status)
	assert.Equal(t, "hi", get.Result)
	assert.False(t, get.CacheHit, "cache tools bypass cache-through")

	_, err = v.Execute(ctx, v.CreateCall(ToolCacheSet, map[string]any{"key": "greeting", "value": "hello"}), nil)
	require.NoError(t, err)
	get, err = v.Execute(ctx, v.CreateCall(ToolCacheGet, map[string]any{"key": "greeting"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", get.Result)
}

func TestBuiltinCacheSetTTL(t *testing.T) {
	c := newTestCache(t)
	v := New(c)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  map[string]any
		wantTTL time.Duration // zero means no expiry
	}{
		{"category default", map[string]any{"key": "d", "value": "v"}, models.CategoryExecution.DefaultTTL()},
		{"explicit seconds", map[string]any{"key": "s", "value": "v", "ttl": 60.0}, time.Minute},
		{"zero never expires", map[string]any{"key": "z", "value": "v", "ttl": 0.0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := v.Execute(ctx, v.CreateCall(ToolCacheSet, tt.params), nil)
			require.NoError(t, err)
			require.Equal(t, models.ToolSuccess, call.Status)

			entry, ok, err := c.Peek(ctx, tt.params["key"].(string))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, models.CategoryExecution, entry.Category)
			if tt.wantTTL == 0 {
				assert.Nil(t, entry.ExpiresAt)
				return
			}
			require.NotNil(t, entry.ExpiresAt)
			assert.InDelta(t, tt.wantTTL.Seconds(), entry.ExpiresAt.Sub(entry.CreatedAt).Seconds(), 1)
		})
	}

	call, err := v.Execute(ctx, v.CreateCall(ToolCacheSet, map[string]any{"key": "n", "value": "v", "ttl": -5.0}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ToolFailed, call.Status)
	assert.Contains(t, call.ValidationErrors[0], "must not be negative")
}

func TestBuiltinPeerTools(t *testing.T) {
	ctx := context.Background()

	call, err := New(nil).Execute(ctx, New(nil).CreateCall(ToolGetPattern, map[string]any{"pattern_id": "p"}), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"pattern": "p", "found": false}, call.Result)

	peers := &stubPeers{}
	v := New(nil, WithPeers(peers))
	call, err = v.Execute(ctx, v.CreateCall(ToolGetPattern, map[string]any{"pattern_id": "lazy_init"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "useState(() => value)", call.Result.(map[string]any)["code"])

	call, err = v.Execute(ctx, v.CreateCall(ToolPeerRequest, map[string]any{
		"from_skill": "a", "to_skill": "b", "request_type": "ping",
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ToolSuccess, call.Status)
	assert.Equal(t, []string{"get_pattern", "ping"}, peers.calls)
}

func TestStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	v := New(newTestCache(t), WithMetrics(NewMetrics(reg)))
	ctx := context.Background()
	exec := ExecutorFunc(func(context.Context, string, map[string]any) (any, error) { return "ok", nil })

	v.CreateCall(ToolGetPattern, nil)
	for range 2 {
		_, err := v.Execute(ctx, v.CreateCall(ToolExecuteSkill, map[string]any{"skill_id": "s"}), exec)
		require.NoError(t, err)
	}

	s := v.Stats()
	assert.Equal(t, 3, s.TotalCalls)
	assert.Equal(t, 1, s.Invalid)
	assert.Equal(t, 1, s.Successful)
	assert.Equal(t, 1, s.Cached)
	assert.InDelta(t, 0.5, s.SuccessRate, 1e-9)
	assert.InDelta(t, 1.0/3, s.CacheHitRate, 1e-9)
	assert.Equal(t, len(BuiltinSchemas()), s.ToolsAvailable)

	assert.Equal(t, 1.0, testutil.ToFloat64(v.metrics.Calls.WithLabelValues(ToolExecuteSkill, "cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(v.metrics.Calls.WithLabelValues(ToolGetPattern, "invalid")))
}
