package hallucination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/skillgate/pkg/scoring"
)

func TestCheckPlainText(t *testing.T) {
	r := New().Check("Run the formatter on save.")
	assert.InDelta(t, 0.8, r.Confidence, 1e-9)
	assert.Equal(t, scoring.LevelMedium, r.Level)
	assert.False(t, r.Hallucination)
	assert.Empty(t, r.Warnings)
}

func TestCheckHedging(t *testing.T) {
	r := New().Check("I think it could be the cache, maybe. Probably not sure though.")
	// five hedges: I think, maybe, probably, could be, not sure
	assert.InDelta(t, 0.3, r.Confidence, 1e-9)
	assert.Equal(t, scoring.LevelUncertain, r.Level)
	assert.True(t, r.Hallucination)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "5 phrases")
	assert.Contains(t, r.Suggestions, "consider adding source attribution")
}

func TestCheckCodeAndFacts(t *testing.T) {
	r := New().Check("According to the docs:\n```js\nconst x = 1\n```")
	// 0.8 + 0.05 (one factual claim) + 0.1 (code block)
	assert.InDelta(t, 0.95, r.Confidence, 1e-9)
	assert.Equal(t, scoring.LevelHigh, r.Level)
	assert.Equal(t, []string{"According to"}, r.UncertainClaims)
}

func TestCheckKnownPatternRaisesConfidence(t *testing.T) {
	d := New()
	r := d.Check("Perhaps use const [mounted, setMounted] = useState(false) here")
	// 0.8 - 0.1 + 0.1 = 0.8, raised to the pattern's 0.88
	assert.InDelta(t, 0.88, r.Confidence, 1e-9)
	assert.Contains(t, r.VerifiedFacts, "pattern match: const [mounted, setMounted] = useState(false)")
}

func TestVerifyFact(t *testing.T) {
	d := New()

	v := d.VerifyFact("the lazy init pattern avoids recomputation")
	assert.True(t, v.Verified)
	assert.Equal(t, "known_pattern:lazy_init", v.Source)
	assert.Equal(t, 0.95, v.Confidence)

	v = d.VerifyFact("React 19 ships actions", "react 19")
	assert.True(t, v.Verified)
	assert.Equal(t, "react 19", v.Source)

	v = d.VerifyFact("the moon is cheese")
	assert.False(t, v.Verified)
	assert.Equal(t, 0.30, v.Confidence)

	stats := d.Stats()
	assert.Equal(t, 3, stats["total_checks"])
	assert.Equal(t, 2, stats["verified"])
}

func TestAddKnownPattern(t *testing.T) {
	d := New()
	d.AddKnownPattern(Pattern{ID: "use_memo", Code: "useMemo(", Confidence: 0.9})

	assert.Len(t, d.Patterns(), 4)
	v := d.VerifyFact("wrap it: useMemo(() => f(a), [a])")
	assert.True(t, v.Verified)
	assert.Equal(t, "known_pattern:use_memo", v.Source)
}
