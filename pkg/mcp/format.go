package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/skillgate/pkg/models"
)

// formatQueryResult renders a query answer as text.
func formatQueryResult(r models.QueryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status:     %s\n", r.Status)
	fmt.Fprintf(&b, "Skill:      %s\n", r.SkillUsed)
	fmt.Fprintf(&b, "Model:      %s\n", r.ModelUsed)
	fmt.Fprintf(&b, "Confidence: %.2f (%s)\n", r.Confidence, r.ConfidenceLevel)
	fmt.Fprintf(&b, "Cache hit:  %t\n", r.CacheHit)
	if r.Error != "" {
		fmt.Fprintf(&b, "Error:      %s\n", r.Error)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "Warning:    %s\n", w)
	}
	if r.Answer != nil {
		b.WriteString("\n")
		switch a := r.Answer.(type) {
		case string:
			b.WriteString(a)
		default:
			b.WriteString(jsonText(a))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func jsonText(v any) string {
	res := jsonResult(v)
	return res.Content[0].Text
}

// formatCacheStats renders cache statistics with a per-category table.
func formatCacheStats(stats models.CacheStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.TotalEntries, stats.Hits, stats.Misses, stats.HitRate()*100)
	if len(stats.Categories) == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, "\n%-12s %10s %10s\n", "Category", "Entries", "Capacity")
	b.WriteString(strings.Repeat("-", 34) + "\n")
	for _, c := range stats.Categories {
		mark := ""
		if c.OverCapacity() {
			mark = " !"
		}
		fmt.Fprintf(&b, "%-12s %10d %10d%s\n", c.Category, c.Entries, c.Capacity, mark)
	}
	return b.String()
}

// formatSkills renders the skill registry as a table.
func formatSkills(skills []models.SkillInfo) string {
	if len(skills) == 0 {
		return "No skills registered."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-22s %-12s %10s\n", "ID", "Name", "Category", "Confidence")
	b.WriteString(strings.Repeat("-", 65) + "\n")
	for _, s := range skills {
		fmt.Fprintf(&b, "%-18s %-22s %-12s %10.2f\n", s.ID, s.Name, s.Category, s.Confidence)
	}
	return b.String()
}

// formatMatches renders trigger matches, best first.
func formatMatches(matches []models.TriggerMatch) string {
	if len(matches) == 0 {
		return "No skills match this task."
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%-18s via %-18s %.2f\n", m.SkillID, m.Trigger, m.Confidence)
	}
	return b.String()
}
