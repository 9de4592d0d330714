// Package hallucination screens generated text for hedging language and
// unsupported claims, and verifies claims against known-good code patterns.
package hallucination

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pario-ai/skillgate/pkg/scoring"
)

var uncertaintyPatterns = compile(
	`\bI think\b`,
	`\bI believe\b`,
	`\bprobably\b`,
	`\bmaybe\b`,
	`\bmight be\b`,
	`\bcould be\b`,
	`\bI guess\b`,
	`\bnot sure\b`,
	`\bpossibly\b`,
	`\bperhaps\b`,
	`\bseems like\b`,
	`\bappears to\b`,
	`\bI assume\b`,
	`\bI suppose\b`,
	`\broughly\b`,
	`\bapproximately\b`,
	`\bsomewhere around\b`,
)

var factualPatterns = compile(
	`\b(is|are|was|were|has|have|had)\b.*\b(called|known as|defined as)\b`,
	`\baccording to\b`,
	`\bresearch shows\b`,
	`\bstudies indicate\b`,
	`\bdata suggests\b`,
	`\bdocumented\b`,
	`\bverified\b`,
	`\bproven\b`,
)

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Pattern is a known-good snippet. Text containing Code is trusted at Confidence.
type Pattern struct {
	ID         string  `json:"id"`
	Code       string  `json:"code"`
	Confidence float64 `json:"confidence"`
}

// DefaultPatterns returns the built-in known-good snippets.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{ID: "lazy_init", Code: "useState(() => value)", Confidence: 0.95},
		{ID: "mounted_state", Code: "const [mounted, setMounted] = useState(false)", Confidence: 0.88},
		{ID: "next_image", Code: `import Image from "next/image"`, Confidence: 0.95},
	}
}

// Report is the outcome of Check.
type Report struct {
	Hallucination   bool          `json:"hallucination"`
	Confidence      float64       `json:"confidence"`
	Level           scoring.Level `json:"level"`
	Warnings        []string      `json:"warnings,omitempty"`
	Suggestions     []string      `json:"suggestions,omitempty"`
	VerifiedFacts   []string      `json:"verified_facts,omitempty"`
	UncertainClaims []string      `json:"uncertain_claims,omitempty"`
}

// Verification is the outcome of VerifyFact.
type Verification struct {
	Claim      string  `json:"claim"`
	Verified   bool    `json:"verified"`
	Source     string  `json:"source,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Detector holds the known-pattern set and verification counters.
type Detector struct {
	mu       sync.RWMutex
	patterns map[string]Pattern
	checks   int
	verified int
}

// New creates a Detector seeded with DefaultPatterns.
func New() *Detector {
	d := &Detector{patterns: make(map[string]Pattern)}
	for _, p := range DefaultPatterns() {
		d.patterns[p.ID] = p
	}
	return d
}

// AddKnownPattern registers or replaces a known-good snippet.
func (d *Detector) AddKnownPattern(p Pattern) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns[p.ID] = p
}

// Patterns returns the known patterns sorted by ID.
func (d *Detector) Patterns() []Pattern {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Pattern, 0, len(d.patterns))
	for _, p := range d.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Check scores output. Base confidence is 0.8, less 0.1 per hedge, plus 0.05
// per factual claim and 0.1 if the text carries code. A known pattern raises
// confidence to at least that pattern's value.
func (d *Detector) Check(output string) Report {
	var r Report

	hedges := findAll(uncertaintyPatterns, output)
	if len(hedges) > 0 {
		r.UncertainClaims = append(r.UncertainClaims, hedges...)
		r.Warnings = append(r.Warnings, fmt.Sprintf("uncertainty detected: %d phrases", len(hedges)))
	}

	claims := findAll(factualPatterns, output)
	for _, c := range claims {
		if d.matchesKnown(c) {
			r.VerifiedFacts = append(r.VerifiedFacts, c)
		} else {
			r.UncertainClaims = append(r.UncertainClaims, c)
		}
	}

	conf := 0.8 - 0.1*float64(len(hedges)) + 0.05*float64(len(claims))
	if strings.Contains(output, "```") || strings.Contains(output, "useState") {
		conf += 0.1
	}
	conf = scoring.Clamp(conf)

	if p, ok := d.containedPattern(output); ok {
		if p.Confidence > conf {
			conf = p.Confidence
		}
		r.VerifiedFacts = append(r.VerifiedFacts, "pattern match: "+p.Code)
	}

	r.Confidence = conf
	r.Level = scoring.LevelFor(conf)
	r.Hallucination = conf < 0.40
	if conf < 0.60 {
		r.Suggestions = append(r.Suggestions, "consider adding source attribution")
	}
	if len(r.UncertainClaims) > 0 {
		r.Suggestions = append(r.Suggestions, "verify uncertain claims before presenting")
	}
	return r
}

// VerifyFact checks a single claim against the known patterns and then the
// supplied sources.
func (d *Detector) VerifyFact(claim string, sources ...string) Verification {
	v := Verification{Claim: claim, Confidence: 0.30}
	if p, ok := d.knownFor(claim); ok {
		v.Verified, v.Source = true, "known_pattern:"+p.ID
	} else {
		lower := strings.ToLower(claim)
		for _, s := range sources {
			if strings.Contains(lower, strings.ToLower(s)) {
				v.Verified, v.Source = true, s
				break
			}
		}
	}
	if v.Verified {
		v.Confidence = 0.95
	}

	d.mu.Lock()
	d.checks++
	if v.Verified {
		d.verified++
	}
	d.mu.Unlock()
	return v
}

// Stats reports verification counters.
func (d *Detector) Stats() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]any{
		"total_checks":      d.checks,
		"verified":          d.verified,
		"verification_rate": float64(d.verified) / float64(max(1, d.checks)),
		"known_patterns":    len(d.patterns),
	}
}

func findAll(patterns []*regexp.Regexp, text string) []string {
	var out []string
	for _, p := range patterns {
		out = append(out, p.FindAllString(text, -1)...)
	}
	return out
}

func (d *Detector) matchesKnown(claim string) bool {
	_, ok := d.knownFor(claim)
	return ok
}

// knownFor matches a claim by pattern code or by the pattern ID spelled with spaces.
func (d *Detector) knownFor(claim string) (Pattern, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	lower := strings.ToLower(claim)
	for _, id := range d.sortedIDs() {
		p := d.patterns[id]
		if strings.Contains(lower, strings.ToLower(p.Code)) ||
			strings.Contains(lower, strings.ReplaceAll(p.ID, "_", " ")) {
			return p, true
		}
	}
	return Pattern{}, false
}

func (d *Detector) containedPattern(text string) (Pattern, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range d.sortedIDs() {
		if p := d.patterns[id]; strings.Contains(text, p.Code) {
			return p, true
		}
	}
	return Pattern{}, false
}

// sortedIDs keeps matching deterministic. Callers hold d.mu.
func (d *Detector) sortedIDs() []string {
	ids := make([]string, 0, len(d.patterns))
	for id := range d.patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
