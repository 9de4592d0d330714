// Package tools validates structured tool calls against a schema registry
// and executes them with cache-through semantics.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/skillgate/pkg/cache/sqlite"
	"github.com/pario-ai/skillgate/pkg/models"
)

// ErrNoHandler is recorded when a valid call has neither an executor nor a
// built-in handler.
var ErrNoHandler = errors.New("no handler for tool")

// Cache is the subset of the fingerprint cache the validator needs.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, category models.CacheCategory) error
	SetWithTTL(ctx context.Context, key string, value any, category models.CacheCategory, ttl time.Duration) error
}

// Executor runs a validated call.
type Executor interface {
	Call(ctx context.Context, tool string, params map[string]any) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, tool string, params map[string]any) (any, error)

// Call implements Executor.
func (f ExecutorFunc) Call(ctx context.Context, tool string, params map[string]any) (any, error) {
	return f(ctx, tool, params)
}

// PeerHandler answers peer_request and get_pattern built-ins.
type PeerHandler interface {
	PeerRequest(ctx context.Context, from, to, requestType string, payload map[string]any) (map[string]any, error)
}

// Option configures a Validator.
type Option func(*Validator)

// WithPeers routes peer_request and get_pattern through h.
func WithPeers(h PeerHandler) Option {
	return func(v *Validator) { v.peers = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// Validator owns a per-instance schema registry and call history.
type Validator struct {
	cache   Cache
	peers   PeerHandler
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time

	mu      sync.Mutex
	schemas map[string]models.ToolSchema
	history []*models.ToolCall
	counter int
}

// New creates a Validator with the built-in schemas. cache may be nil, which
// disables cache-through and the cache built-ins.
func New(cache Cache, opts ...Option) *Validator {
	v := &Validator{
		cache:   cache,
		logger:  zap.NewNop(),
		now:     time.Now,
		schemas: make(map[string]models.ToolSchema),
	}
	for _, s := range BuiltinSchemas() {
		v.schemas[s.Name] = s
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// RegisterTool adds or replaces a schema.
func (v *Validator) RegisterTool(schema models.ToolSchema) error {
	if schema.Name == "" {
		return errors.New("register tool: name is required")
	}
	for name, p := range schema.Required {
		if _, dup := schema.Optional[name]; dup {
			return fmt.Errorf("register tool %s: parameter %q is both required and optional", schema.Name, name)
		}
		if !validType(p.Type) {
			return fmt.Errorf("register tool %s: parameter %q has unknown type %q", schema.Name, name, p.Type)
		}
	}
	for name, p := range schema.Optional {
		if !validType(p.Type) {
			return fmt.Errorf("register tool %s: parameter %q has unknown type %q", schema.Name, name, p.Type)
		}
	}

	v.mu.Lock()
	v.schemas[schema.Name] = schema
	v.mu.Unlock()
	v.logger.Debug("tool registered", zap.String("tool", schema.Name))
	return nil
}

func validType(t models.ParamType) bool {
	switch t {
	case models.ParamString, models.ParamInteger, models.ParamNumber, models.ParamBoolean,
		models.ParamObject, models.ParamArray, models.ParamAny:
		return true
	}
	return false
}

// Tools returns the registered schemas sorted by name.
func (v *Validator) Tools() []models.ToolSchema {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.ToolSchema, 0, len(v.schemas))
	for _, s := range v.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks params against the named schema. An unknown tool is
// invalid. Security findings and unknown parameters are warnings; unknown
// parameters are dropped from Sanitized.
func (v *Validator) Validate(name string, params map[string]any) models.ValidationResult {
	res := models.ValidationResult{
		Errors:    []string{},
		Warnings:  []string{},
		Sanitized: map[string]any{},
	}

	v.mu.Lock()
	schema, ok := v.schemas[name]
	v.mu.Unlock()
	if !ok {
		res.Errors = append(res.Errors, "Unknown tool: "+name)
		return res
	}

	for _, p := range sortedKeys(schema.Required) {
		val, present := params[p]
		switch {
		case !present:
			res.Errors = append(res.Errors, "Missing required parameter: "+p)
		case val == nil:
			res.Errors = append(res.Errors, fmt.Sprintf("Parameter %s cannot be null", p))
		}
	}

	for _, p := range sortedKeys(params) {
		val := params[p]
		spec, known := schema.Param(p)
		if !known {
			res.Warnings = append(res.Warnings, "Unknown parameter: "+p)
			continue
		}
		if val != nil && !checkType(val, spec.Type) {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"Parameter %s has wrong type. Expected %s, got %s", p, spec.Type, typeName(val)))
		}
		res.Warnings = append(res.Warnings, securityWarnings(p, val)...)
		res.Sanitized[p] = val
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CreateCall validates params and records a new call in the history.
func (v *Validator) CreateCall(name string, params map[string]any) *models.ToolCall {
	res := v.Validate(name, params)
	now := v.now()

	v.mu.Lock()
	v.counter++
	call := &models.ToolCall{
		CallID:           fmt.Sprintf("call_%d_%d", now.UnixMilli(), v.counter),
		ToolName:         name,
		Parameters:       res.Sanitized,
		Status:           models.ToolValid,
		ValidationErrors: res.Errors,
		Warnings:         res.Warnings,
		CreatedAt:        now,
	}
	if !res.Valid {
		call.Status = models.ToolInvalid
	}
	v.history = append(v.history, call)
	v.mu.Unlock()

	if len(res.Warnings) > 0 {
		v.logger.Warn("tool call warnings",
			zap.String("call_id", call.CallID),
			zap.String("tool", name),
			zap.Strings("warnings", res.Warnings))
	}
	v.metrics.observe(call)
	return call
}

// Execute runs a valid call, consulting the cache first. An invalid call is
// returned unchanged. Executor errors and panics leave the call failed with a
// nil error; a cache failure is returned as an error.
func (v *Validator) Execute(ctx context.Context, call *models.ToolCall, exec Executor) (*models.ToolCall, error) {
	if call.Status == models.ToolInvalid {
		return call, nil
	}

	start := v.now()
	v.setStatus(call, models.ToolExecuting)
	cacheThrough := v.cache != nil && call.ToolName != ToolCacheGet && call.ToolName != ToolCacheSet
	key := sqlite.GenerateKey(call.ToolName, call.Parameters)

	if cacheThrough {
		var cached any
		found, err := v.cache.Get(ctx, key, &cached)
		if err != nil {
			v.fail(call, start, err)
			return call, fmt.Errorf("tool %s: %w", call.ToolName, err)
		}
		if found {
			v.mu.Lock()
			call.Result = cached
			call.CacheHit = true
			call.Status = models.ToolCached
			call.Duration = v.now().Sub(start)
			v.mu.Unlock()
			v.metrics.observe(call)
			return call, nil
		}
	}

	result, err := v.run(ctx, call, exec)
	if err != nil {
		v.fail(call, start, err)
		v.logger.Info("tool call failed",
			zap.String("call_id", call.CallID),
			zap.String("tool", call.ToolName),
			zap.Error(err))
		return call, nil
	}

	if cacheThrough && result != nil {
		if err := v.cache.Set(ctx, key, result, models.CategoryExecution); err != nil {
			v.fail(call, start, err)
			return call, fmt.Errorf("tool %s: %w", call.ToolName, err)
		}
	}

	v.mu.Lock()
	call.Result = result
	call.Status = models.ToolSuccess
	call.Duration = v.now().Sub(start)
	v.mu.Unlock()
	v.metrics.observe(call)
	return call, nil
}

// run invokes exec or a built-in, converting a panic into an error.
func (v *Validator) run(ctx context.Context, call *models.ToolCall, exec Executor) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.ToolName, r)
		}
	}()
	if exec != nil {
		return exec.Call(ctx, call.ToolName, call.Parameters)
	}
	return v.builtin(ctx, call.ToolName, call.Parameters)
}

func (v *Validator) setStatus(call *models.ToolCall, s models.ToolStatus) {
	v.mu.Lock()
	call.Status = s
	v.mu.Unlock()
}

func (v *Validator) fail(call *models.ToolCall, start time.Time, err error) {
	v.mu.Lock()
	call.Status = models.ToolFailed
	call.Result = nil
	call.ValidationErrors = append(call.ValidationErrors, err.Error())
	call.Duration = v.now().Sub(start)
	v.mu.Unlock()
	v.metrics.observe(call)
}

// History returns a snapshot of recorded calls, oldest first.
func (v *Validator) History() []models.ToolCall {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.ToolCall, len(v.history))
	for i, c := range v.history {
		out[i] = *c
	}
	return out
}

// Stats summarizes the call history. The success rate excludes cached calls.
func (v *Validator) Stats() models.ToolStats {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := models.ToolStats{
		TotalCalls:     len(v.history),
		ToolsAvailable: len(v.schemas),
	}
	for _, c := range v.history {
		switch c.Status {
		case models.ToolSuccess:
			s.Successful++
		case models.ToolCached:
			s.Cached++
		case models.ToolFailed:
			s.Failed++
		case models.ToolInvalid:
			s.Invalid++
		}
	}
	s.SuccessRate = float64(s.Successful) / float64(max(1, s.TotalCalls-s.Cached))
	s.CacheHitRate = float64(s.Cached) / float64(max(1, s.TotalCalls))
	return s
}
