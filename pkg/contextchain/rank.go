package contextchain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pario-ai/skillgate/pkg/models"
)

// DefaultTopK caps ranking results when the caller passes a non-positive k.
const DefaultTopK = 10

// ScoredEntry pairs an entry with its relevance to one query.
type ScoredEntry struct {
	Entry models.ContextEntry `json:"entry"`
	Score float64             `json:"score"`
}

// Rank scores each live entry by the fraction of distinct query tokens found
// in its serialized content. Zero scores are dropped, ties keep chain order,
// and at most topK results are returned. entries is not modified.
func Rank(entries []models.ContextEntry, query string, now time.Time, topK int) []ScoredEntry {
	if topK <= 0 {
		topK = DefaultTopK
	}
	tokens := queryTokens(query)

	var scored []ScoredEntry
	for _, e := range entries {
		if e.Expired(now) {
			continue
		}
		text := strings.ToLower(contentText(e.Content))
		matches := 0
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				matches++
			}
		}
		score := float64(matches) / float64(max(1, len(tokens)))
		if score == 0 {
			continue
		}
		scored = append(scored, ScoredEntry{Entry: copyEntry(e), Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

func queryTokens(query string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// contentText serializes content for token matching. HTML escaping is off so
// tokens such as "<div>" or "a&b" match literally.
func contentText(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(content); err != nil {
		return fmt.Sprint(content)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
