package contextchain

import (
	"maps"
	"time"

	"github.com/pario-ai/skillgate/pkg/models"
)

type entryConfig struct {
	target    string
	ttl       *time.Duration
	metadata  map[string]string
	relevance float64
}

// EntryOption customizes CreateContext.
type EntryOption func(*entryConfig)

// WithTarget sets the entry's target skill.
func WithTarget(skill string) EntryOption {
	return func(c *entryConfig) { c.target = skill }
}

// WithTTL overrides the default TTL. Zero means the entry never expires.
func WithTTL(d time.Duration) EntryOption {
	return func(c *entryConfig) { c.ttl = &d }
}

// WithMetadata attaches a copy of md to the entry.
func WithMetadata(md map[string]string) EntryOption {
	return func(c *entryConfig) { c.metadata = maps.Clone(md) }
}

// WithRelevance sets the initial relevance score.
func WithRelevance(score float64) EntryOption {
	return func(c *entryConfig) { c.relevance = score }
}

// CreateContext builds a new entry. It does not touch any chain.
func (m *Manager) CreateContext(content any, typ models.ContextType, sourceSkill string, opts ...EntryOption) models.ContextEntry {
	cfg := entryConfig{relevance: 1.0}
	for _, opt := range opts {
		opt(&cfg)
	}

	ttl := m.defaultTTL
	if cfg.ttl != nil {
		ttl = *cfg.ttl
	}

	now := m.now()
	e := models.ContextEntry{
		ID:             m.nextID(),
		Type:           typ,
		Content:        content,
		SourceSkill:    sourceSkill,
		TargetSkill:    cfg.target,
		CreatedAt:      now,
		RelevanceScore: cfg.relevance,
		Metadata:       cfg.metadata,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		e.ExpiresAt = &exp
	}
	return e
}
