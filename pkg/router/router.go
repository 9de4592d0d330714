package router

import (
	"github.com/pario-ai/skillgate/pkg/config"
)

// CacheModel is reported as the backend when an answer is served from cache.
const CacheModel = "cache"

// NoModel is reported when a query was rejected before reaching any backend.
const NoModel = "none"

// Tier is a logical backend class.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Route is a resolved backend choice. Every tier is assumed free.
type Route struct {
	Tier  Tier    `json:"tier"`
	Model string  `json:"model"`
	Cost  float64 `json:"cost"`
}

// Router resolves a complexity score to a backend tier.
type Router struct {
	cfg config.RouterConfig
}

// New creates a Router from the given configuration.
func New(cfg *config.Config) *Router {
	return &Router{cfg: cfg.Router}
}

// Resolve maps complexity in [0,1] to a tier: below the low threshold is
// tier A, below the high threshold tier B, anything else tier C.
func (r *Router) Resolve(complexity float64) Route {
	switch {
	case complexity < r.cfg.LowThreshold:
		return Route{Tier: TierA, Model: r.cfg.LowModel}
	case complexity < r.cfg.HighThreshold:
		return Route{Tier: TierB, Model: r.cfg.MediumModel}
	default:
		return Route{Tier: TierC, Model: r.cfg.HighModel}
	}
}
