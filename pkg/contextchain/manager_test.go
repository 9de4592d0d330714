package contextchain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/skillgate/pkg/cache/sqlite"
	"github.com/pario-ai/skillgate/pkg/models"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T) *sqlite.Cache {
	t.Helper()
	c, err := sqlite.New(filepath.Join(t.TempDir(), "chains.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, any) (bool, error) { return false, nil }
func (failingStore) SetWithTTL(context.Context, string, any, models.CacheCategory, time.Duration) error {
	return errors.New("disk full")
}

func TestCreateContext(t *testing.T) {
	clk := &clock{now: epoch}
	m := New(WithClock(clk.Now))

	e := m.CreateContext("hello", models.ContextUserInput, "user")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 1.0, e.RelevanceScore)
	require.NotNil(t, e.ExpiresAt)
	assert.Equal(t, epoch.Add(DefaultTTL), *e.ExpiresAt)

	forever := m.CreateContext("x", models.ContextLearnedPattern, "lint-fixer",
		WithTTL(0), WithTarget("docx"), WithMetadata(map[string]string{"k": "v"}), WithRelevance(0.3))
	assert.Nil(t, forever.ExpiresAt)
	assert.Equal(t, "docx", forever.TargetSkill)
	assert.Equal(t, "v", forever.Metadata["k"])
	assert.Equal(t, 0.3, forever.RelevanceScore)
	assert.NotEqual(t, e.ID, forever.ID)

	assert.Empty(t, m.ChainIDs(), "construction must not create chains")
}

func TestAddToChainCreatesLazily(t *testing.T) {
	m := New()
	ctx := context.Background()

	_, ok, err := m.GetChain(ctx, "conv")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.AddToChain(ctx, "conv", m.CreateContext("a", models.ContextUserInput, "user")))
	require.NoError(t, m.AddToChain(ctx, "conv", m.CreateContext("a", models.ContextUserInput, "user")))

	chain, ok, err := m.GetChain(ctx, "conv")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, chain.Entries, 2, "identical content still appends")
	assert.Equal(t, DefaultMaxEntries, chain.MaxEntries)
}

func TestEvictsLowestRelevanceAtCapacity(t *testing.T) {
	m := New(WithMaxEntries(5))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 6; i++ {
		e := m.CreateContext(fmt.Sprintf("entry %d", i), models.ContextSkillOutput, "LLM",
			WithRelevance(0.1*float64(i+1)))
		ids = append(ids, e.ID)
		require.NoError(t, m.AddToChain(ctx, "c", e))

		chain, _, err := m.GetChain(ctx, "c")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(chain.Entries), 5)
	}

	chain, _, err := m.GetChain(ctx, "c")
	require.NoError(t, err)
	require.Len(t, chain.Entries, 5)
	for _, e := range chain.Entries {
		assert.NotEqual(t, ids[0], e.ID, "lowest relevance entry must be evicted")
	}
	assert.Equal(t, ids[5], chain.Entries[4].ID)
}

func TestEvictionPrefersExpired(t *testing.T) {
	clk := &clock{now: epoch}
	m := New(WithMaxEntries(3), WithClock(clk.Now))
	ctx := context.Background()

	low := m.CreateContext("low", models.ContextUserInput, "u", WithRelevance(0.1), WithTTL(0))
	short := m.CreateContext("short", models.ContextUserInput, "u", WithRelevance(0.9), WithTTL(time.Minute))
	high := m.CreateContext("high", models.ContextUserInput, "u", WithRelevance(0.8), WithTTL(0))
	for _, e := range []models.ContextEntry{low, short, high} {
		require.NoError(t, m.AddToChain(ctx, "c", e))
	}

	clk.Advance(2 * time.Minute)
	require.NoError(t, m.AddToChain(ctx, "c", m.CreateContext("new", models.ContextUserInput, "u")))

	chain, _, err := m.GetChain(ctx, "c")
	require.NoError(t, err)
	var got []string
	for _, e := range chain.Entries {
		got = append(got, e.ID)
	}
	assert.NotContains(t, got, short.ID)
	assert.Contains(t, got, low.ID)
}

func TestEvictionTieBreaksOnEarliest(t *testing.T) {
	m := New(WithMaxEntries(3))
	ctx := context.Background()

	a := m.CreateContext("a", models.ContextUserInput, "u", WithRelevance(0.5))
	b := m.CreateContext("b", models.ContextUserInput, "u", WithRelevance(0.5))
	c := m.CreateContext("c", models.ContextUserInput, "u", WithRelevance(0.9))
	for _, e := range []models.ContextEntry{a, b, c} {
		require.NoError(t, m.AddToChain(ctx, "x", e))
	}
	require.NoError(t, m.AddToChain(ctx, "x", m.CreateContext("d", models.ContextUserInput, "u")))

	chain, _, err := m.GetChain(ctx, "x")
	require.NoError(t, err)
	require.Len(t, chain.Entries, 3)
	assert.Equal(t, b.ID, chain.Entries[0].ID)
}

func TestSnapshotFallback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := New(WithStore(store))
	e := first.CreateContext(map[string]any{"file": "app.tsx"}, models.ContextSkillInput, "lint-fixer")
	require.NoError(t, first.AddToChain(ctx, "persisted", e))

	second := New(WithStore(store))
	chain, ok, err := second.GetChain(ctx, "persisted")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, chain.Entries, 1)
	assert.Equal(t, e.ID, chain.Entries[0].ID)
	assert.Equal(t, map[string]any{"file": "app.tsx"}, chain.Entries[0].Content)

	require.NoError(t, second.AddToChain(ctx, "persisted",
		second.CreateContext("more", models.ContextUserInput, "user")))
	chain, _, err = second.GetChain(ctx, "persisted")
	require.NoError(t, err)
	assert.Len(t, chain.Entries, 2, "append continues from the snapshot")
}

func TestStoreFailureLeavesChainUnchanged(t *testing.T) {
	m := New(WithStore(failingStore{}))
	ctx := context.Background()

	err := m.AddToChain(ctx, "c", m.CreateContext("a", models.ContextUserInput, "u"))
	require.Error(t, err)

	_, ok, err := m.GetChain(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetRelevantContext(t *testing.T) {
	m := New()
	ctx := context.Background()

	lint := m.CreateContext("fix the lint error in app.tsx", models.ContextUserInput, "user")
	hook := m.CreateContext("react hook ordering", models.ContextUserInput, "user")
	require.NoError(t, m.AddToChain(ctx, "c", hook))
	require.NoError(t, m.AddToChain(ctx, "c", lint))

	ranked, err := m.GetRelevantContext(ctx, "c", "lint error", 5)
	require.NoError(t, err)
	require.Len(t, ranked, 1, "zero scores are excluded")
	assert.Equal(t, lint.ID, ranked[0].Entry.ID)
	assert.Equal(t, 1.0, ranked[0].Score)

	chain, _, err := m.GetChain(ctx, "c")
	require.NoError(t, err)
	for _, e := range chain.Entries {
		assert.Equal(t, 1.0, e.RelevanceScore, "ranking must not mutate stored entries")
	}

	none, err := m.GetRelevantContext(ctx, "missing", "lint", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestShareContext(t *testing.T) {
	m := New()
	ctx := context.Background()

	e := m.CreateContext("shared fact", models.ContextLearnedPattern, "mas-rag-system",
		WithMetadata(map[string]string{"origin": "kb"}))
	require.NoError(t, m.AddToChain(ctx, "from", e))

	ok, err := m.ShareContext(ctx, "from", "to", e.ID)
	require.NoError(t, err)
	require.True(t, ok)

	to, _, err := m.GetChain(ctx, "to")
	require.NoError(t, err)
	require.Len(t, to.Entries, 1)
	clone := to.Entries[0]
	assert.NotEqual(t, e.ID, clone.ID)
	assert.Equal(t, models.ContextPeerMessage, clone.Type)
	assert.Equal(t, e.ID, clone.Metadata["shared_from"])
	assert.Equal(t, "kb", clone.Metadata["origin"])
	assert.Equal(t, "shared fact", clone.Content)

	from, _, err := m.GetChain(ctx, "from")
	require.NoError(t, err)
	assert.NotContains(t, from.Entries[0].Metadata, "shared_from", "source entry is untouched")

	ok, err = m.ShareContext(ctx, "from", "to", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.AddToChain(ctx, "a", m.CreateContext("1", models.ContextUserInput, "u")))
	require.NoError(t, m.AddToChain(ctx, "a", m.CreateContext("2", models.ContextUserInput, "u")))
	require.NoError(t, m.AddToChain(ctx, "b", m.CreateContext("3", models.ContextUserInput, "u")))

	s := m.Stats()
	assert.Equal(t, 2, s.TotalChains)
	assert.Equal(t, 3, s.TotalEntries)
	assert.InDelta(t, 1.5, s.AvgChainSize, 1e-9)
	assert.Equal(t, []string{"a", "b"}, m.ChainIDs())
}
