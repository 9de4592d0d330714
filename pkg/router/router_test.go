package router

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pario-ai/skillgate/pkg/config"
)

func TestClassify(t *testing.T) {
	r := NewIntentRouter(nil, nil)

	tests := []struct {
		text   string
		intent Intent
		skill  string
	}{
		{"Fix the ESLint warning", IntentLint, "lint-fixer"},
		{"convert this to PDF", IntentDocument, "docx"},
		{"create a landing page", IntentGenerate, "LLM"},
		{"restyle the navbar CSS", IntentDesign, "frontend-design"},
		{"search the knowledge base", IntentRAG, "mas-rag-system"},
		{"hello there", IntentGeneral, "LLM"},
		// lint outranks generate even when both match
		{"create a fix for this bug", IntentLint, "lint-fixer"},
		// document outranks design
		{"style the word document", IntentDocument, "docx"},
		// substring match, not word match: "guide" contains "ui"
		{"write a guide", IntentDesign, "frontend-design"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			intent, skill := r.Route(tt.text)
			assert.Equal(t, tt.intent, intent)
			assert.Equal(t, tt.skill, skill)
		})
	}
}

func TestCustomRules(t *testing.T) {
	r := NewIntentRouter([]Rule{
		{IntentRAG, regexp.MustCompile(`lookup`)},
	}, map[Intent]string{IntentRAG: "kb", IntentGeneral: "fallback"})

	assert.Equal(t, IntentRAG, r.Classify("LOOKUP users"))
	assert.Equal(t, "kb", r.SkillFor(IntentRAG))
	assert.Equal(t, "fallback", r.SkillFor(IntentLint))
}

func TestResolveTiers(t *testing.T) {
	r := New(config.Default())

	tests := []struct {
		complexity float64
		tier       Tier
		model      string
	}{
		{0, TierA, "gemini"},
		{0.29, TierA, "gemini"},
		{0.3, TierB, "deepseek"},
		{0.69, TierB, "deepseek"},
		{0.7, TierC, "local"},
		{1, TierC, "local"},
	}
	for _, tt := range tests {
		route := r.Resolve(tt.complexity)
		assert.Equal(t, tt.tier, route.Tier, "complexity %v", tt.complexity)
		assert.Equal(t, tt.model, route.Model)
		assert.Zero(t, route.Cost)
	}
}

func TestResolveConfiguredModels(t *testing.T) {
	cfg := config.Default()
	cfg.Router.LowModel = "haiku"
	cfg.Router.HighThreshold = 0.9

	r := New(cfg)
	assert.Equal(t, "haiku", r.Resolve(0.1).Model)
	assert.Equal(t, TierB, r.Resolve(0.8).Tier)
}
