package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownContextType is returned when a string does not name a context type.
var ErrUnknownContextType = errors.New("unknown context type")

// ContextType classifies a fragment held in a context chain.
type ContextType string

const (
	ContextUserInput      ContextType = "user_input"
	ContextSkillInput     ContextType = "skill_input"
	ContextSkillOutput    ContextType = "skill_output"
	ContextPeerMessage    ContextType = "peer_message"
	ContextLearnedPattern ContextType = "learned_pattern"
	ContextTypeValidation ContextType = "validation"
)

// ParseContextType converts s to a ContextType, rejecting unknown values.
func ParseContextType(s string) (ContextType, error) {
	t := ContextType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case ContextUserInput, ContextSkillInput, ContextSkillOutput,
		ContextPeerMessage, ContextLearnedPattern, ContextTypeValidation:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownContextType, s)
}

// ContextEntry is a single fragment of interaction state.
type ContextEntry struct {
	ID             string            `json:"id"`
	Type           ContextType       `json:"type"`
	Content        any               `json:"content"`
	SourceSkill    string            `json:"source_skill"`
	TargetSkill    string            `json:"target_skill,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	RelevanceScore float64           `json:"relevance_score"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the entry has an expiry at or before now.
func (e ContextEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// ContextChain is a bounded, ordered buffer of entries for one conversation.
type ContextChain struct {
	ChainID    string         `json:"chain_id"`
	Entries    []ContextEntry `json:"entries"`
	MaxEntries int            `json:"max_entries"`
}

// ChainStats summarizes every resident chain.
type ChainStats struct {
	TotalChains  int     `json:"total_chains"`
	TotalEntries int     `json:"total_entries"`
	AvgChainSize float64 `json:"avg_chain_size"`
}

// ContextValidation is the outcome of screening an entry's content.
type ContextValidation struct {
	Valid      bool     `json:"valid"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues"`
}
