package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownCategory is returned when a string does not name a cache category.
var ErrUnknownCategory = errors.New("unknown cache category")

// CacheCategory tags a cache entry and governs its default TTL and nominal capacity.
type CacheCategory string

const (
	CategoryPattern   CacheCategory = "pattern"
	CategoryExecution CacheCategory = "execution"
	CategoryMetrics   CacheCategory = "metrics"
	CategoryKnowledge CacheCategory = "knowledge"
)

// CacheCategories lists every category in a stable order.
func CacheCategories() []CacheCategory {
	return []CacheCategory{CategoryPattern, CategoryExecution, CategoryMetrics, CategoryKnowledge}
}

// ParseCacheCategory converts s to a CacheCategory. Matching is case-insensitive;
// anything else is rejected rather than coerced.
func ParseCacheCategory(s string) (CacheCategory, error) {
	c := CacheCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Valid reports whether c is one of the defined categories.
func (c CacheCategory) Valid() bool {
	switch c {
	case CategoryPattern, CategoryExecution, CategoryMetrics, CategoryKnowledge:
		return true
	}
	return false
}

// DefaultTTL is the time-to-live applied when Set is called without an override.
func (c CacheCategory) DefaultTTL() time.Duration {
	switch c {
	case CategoryPattern:
		return 7 * 24 * time.Hour
	case CategoryExecution:
		return 24 * time.Hour
	case CategoryMetrics:
		return time.Hour
	case CategoryKnowledge:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Capacity is the advisory entry count target. It is reported, not enforced.
func (c CacheCategory) Capacity() int {
	switch c {
	case CategoryPattern:
		return 1000
	case CategoryExecution:
		return 500
	case CategoryMetrics:
		return 100
	case CategoryKnowledge:
		return 5000
	}
	return 0
}

// CacheEntry is one persisted cache row.
type CacheEntry struct {
	Key          string          `json:"key"`
	Value        json.RawMessage `json:"value"`
	Category     CacheCategory   `json:"category"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	HitCount     int64           `json:"hit_count"`
	LastAccessed time.Time       `json:"last_accessed"`
}

// Expired reports whether the entry has passed its expiry at now.
// Entries without an expiry never expire.
func (e CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// CategoryStats reports row counts for a single category.
type CategoryStats struct {
	Category CacheCategory `json:"category"`
	Entries  int64         `json:"entries"`
	Capacity int           `json:"capacity"`
}

// OverCapacity reports whether the category holds more rows than its target.
func (s CategoryStats) OverCapacity() bool {
	return s.Entries > int64(s.Capacity)
}

// CacheStats reports cache contents and this process's hit/miss counters.
type CacheStats struct {
	TotalEntries int64           `json:"total_entries"`
	TotalHits    int64           `json:"total_hits"`
	Hits         int64           `json:"hits"`
	Misses       int64           `json:"misses"`
	Categories   []CategoryStats `json:"categories"`
}

// HitRate is hits over lookups for this process, or 0 with no lookups.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
