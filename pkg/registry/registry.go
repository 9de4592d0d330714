// Package registry loads the skill manifest and answers lookups against it.
// The registry is read-only once loaded.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pario-ai/skillgate/pkg/models"
)

// ErrUnknownSkill is returned for lookups of skills not in the manifest.
var ErrUnknownSkill = errors.New("unknown skill")

const (
	defaultConfidence = 0.5
	maxTriggerMatches = 5
)

// manifest mirrors the on-disk document. JSON manifests parse as YAML.
type manifest struct {
	Skills        map[string]manifestSkill `yaml:"skills"`
	TriggerMatrix map[string]Trigger       `yaml:"triggerMatrix"`
}

type manifestSkill struct {
	Name         string   `yaml:"name"`
	Category     string   `yaml:"category"`
	Description  string   `yaml:"description"`
	PeerSkills   []string `yaml:"peerSkills"`
	Dependencies []string `yaml:"dependencies"`
	Confidence   *float64 `yaml:"confidence"`
	HasScripts   bool     `yaml:"hasScripts"`
}

// Trigger routes a keyword group to a primary skill. The trigger name's
// underscore-separated parts are its keywords.
type Trigger struct {
	Primary   string   `yaml:"primary" json:"primary"`
	Secondary []string `yaml:"secondary,omitempty" json:"secondary,omitempty"`
}

// Registry holds the loaded skills and trigger matrix.
type Registry struct {
	skills   map[string]models.SkillInfo
	triggers map[string]Trigger
}

// Load reads a manifest file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse builds a Registry from manifest bytes (YAML or JSON).
func Parse(data []byte) (*Registry, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	r := &Registry{
		skills:   make(map[string]models.SkillInfo, len(m.Skills)),
		triggers: m.TriggerMatrix,
	}
	if r.triggers == nil {
		r.triggers = make(map[string]Trigger)
	}
	for id, s := range m.Skills {
		info := models.SkillInfo{
			ID:           id,
			Name:         s.Name,
			Category:     s.Category,
			Description:  s.Description,
			PeerSkills:   s.PeerSkills,
			Dependencies: s.Dependencies,
			Confidence:   defaultConfidence,
			HasScripts:   s.HasScripts,
		}
		if info.Name == "" {
			info.Name = id
		}
		if info.Category == "" {
			info.Category = "unknown"
		}
		if s.Confidence != nil {
			info.Confidence = *s.Confidence
		}
		r.skills[id] = info
	}
	return r, nil
}

// Get returns the skill with id.
func (r *Registry) Get(id string) (models.SkillInfo, bool) {
	s, ok := r.skills[id]
	return s, ok
}

// List returns every skill sorted by ID.
func (r *Registry) List() []models.SkillInfo {
	out := make([]models.SkillInfo, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PeerSkills returns the peers declared for id, or nil for unknown skills.
func (r *Registry) PeerSkills(id string) []string {
	return r.skills[id].PeerSkills
}

// MatchTrigger returns up to five skills whose trigger keywords occur in the
// combined context and task text, highest confidence first.
func (r *Registry) MatchTrigger(context, task string) []models.TriggerMatch {
	combined := strings.ToLower(context + " " + task)

	names := make([]string, 0, len(r.triggers))
	for name := range r.triggers {
		names = append(names, name)
	}
	sort.Strings(names)

	var matches []models.TriggerMatch
	for _, name := range names {
		primary := r.triggers[name].Primary
		skill, ok := r.skills[primary]
		if !ok || !anyKeyword(combined, strings.Split(name, "_")) {
			continue
		}
		matches = append(matches, models.TriggerMatch{
			SkillID:    primary,
			Trigger:    name,
			Confidence: skill.Confidence,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	if len(matches) > maxTriggerMatches {
		matches = matches[:maxTriggerMatches]
	}
	return matches
}

func anyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ResolveDependencies returns id preceded by its transitive dependencies in
// install order. Cycles are broken at the first revisit.
func (r *Registry) ResolveDependencies(id string) ([]string, error) {
	if _, ok := r.skills[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSkill, id)
	}
	visited := make(map[string]bool)
	var order []string
	var visit func(string)
	visit = func(sid string) {
		if visited[sid] {
			return
		}
		visited[sid] = true
		for _, dep := range r.skills[sid].Dependencies {
			visit(dep)
		}
		order = append(order, sid)
	}
	visit(id)
	return order, nil
}
