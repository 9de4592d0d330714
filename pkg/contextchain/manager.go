// Package contextchain keeps bounded, per-conversation buffers of context
// fragments and ranks them against new queries.
package contextchain

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/skillgate/pkg/models"
)

const (
	// DefaultMaxEntries bounds a chain when no limit is configured.
	DefaultMaxEntries = 100
	// DefaultTTL applies to entries created without an explicit TTL.
	DefaultTTL = time.Hour
	// SnapshotTTL is how long a persisted chain snapshot lives in the store.
	SnapshotTTL = 24 * time.Hour
)

// SnapshotStore persists chain snapshots. *sqlite.Cache satisfies it.
type SnapshotStore interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	SetWithTTL(ctx context.Context, key string, value any, category models.CacheCategory, ttl time.Duration) error
}

// Manager owns every resident chain.
type Manager struct {
	mu         sync.RWMutex
	chains     map[string]*models.ContextChain
	store      SnapshotStore
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time
	log        *zap.Logger
	seq        atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore enables durable snapshots under "chain:<id>".
func WithStore(s SnapshotStore) Option {
	return func(m *Manager) { m.store = s }
}

// WithMaxEntries sets the per-chain capacity for newly created chains.
func WithMaxEntries(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithDefaultTTL sets the TTL given to entries created without WithTTL.
func WithDefaultTTL(d time.Duration) Option {
	return func(m *Manager) { m.defaultTTL = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New creates a Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		chains:     make(map[string]*models.ContextChain),
		maxEntries: DefaultMaxEntries,
		defaultTTL: DefaultTTL,
		now:        time.Now,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func snapshotKey(chainID string) string { return "chain:" + chainID }

func (m *Manager) nextID() string {
	return fmt.Sprintf("ctx_%d_%d", m.now().UnixMilli(), m.seq.Add(1))
}

// AddToChain appends entry to chainID, creating the chain if needed. At
// capacity one entry is evicted first: the first expired entry in order, or
// else the earliest entry with the lowest relevance. With a store configured
// the snapshot is written before the in-memory chain changes, so a store
// failure leaves the chain as it was.
func (m *Manager) AddToChain(ctx context.Context, chainID string, entry models.ContextEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.chains[chainID]
	if !ok {
		loaded, found, err := m.loadSnapshot(ctx, chainID)
		if err != nil {
			return err
		}
		if found {
			current = &loaded
		} else {
			current = &models.ContextChain{ChainID: chainID, MaxEntries: m.maxEntries}
		}
	}

	next := models.ContextChain{
		ChainID:    chainID,
		MaxEntries: current.MaxEntries,
		Entries:    make([]models.ContextEntry, 0, len(current.Entries)+1),
	}
	if next.MaxEntries <= 0 {
		next.MaxEntries = m.maxEntries
	}
	next.Entries = append(next.Entries, current.Entries...)

	if len(next.Entries) >= next.MaxEntries {
		var evicted models.ContextEntry
		next.Entries, evicted = evict(next.Entries, m.now())
		m.log.Debug("context entry evicted",
			zap.String("chain", chainID),
			zap.String("entry", evicted.ID),
			zap.Float64("relevance", evicted.RelevanceScore))
	}
	next.Entries = append(next.Entries, entry)

	if m.store != nil {
		if err := m.store.SetWithTTL(ctx, snapshotKey(chainID), next, models.CategoryExecution, SnapshotTTL); err != nil {
			return fmt.Errorf("persist chain %s: %w", chainID, err)
		}
	}

	m.chains[chainID] = &next
	return nil
}

// evict removes one entry: the first expired one, else the first entry
// holding the minimum relevance score.
func evict(entries []models.ContextEntry, now time.Time) ([]models.ContextEntry, models.ContextEntry) {
	idx := -1
	for i, e := range entries {
		if e.Expired(now) {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = 0
		for i := 1; i < len(entries); i++ {
			if entries[i].RelevanceScore < entries[idx].RelevanceScore {
				idx = i
			}
		}
	}
	evicted := entries[idx]
	return append(entries[:idx], entries[idx+1:]...), evicted
}

// GetChain returns a copy of the chain, falling back to the durable snapshot
// when the chain is not resident.
func (m *Manager) GetChain(ctx context.Context, chainID string) (models.ContextChain, bool, error) {
	m.mu.RLock()
	c, ok := m.chains[chainID]
	if ok {
		out := copyChain(c)
		m.mu.RUnlock()
		return out, true, nil
	}
	m.mu.RUnlock()

	loaded, found, err := m.loadSnapshot(ctx, chainID)
	if err != nil || !found {
		return models.ContextChain{}, false, err
	}

	m.mu.Lock()
	if _, ok := m.chains[chainID]; !ok {
		m.chains[chainID] = &loaded
	}
	m.mu.Unlock()
	return copyChain(&loaded), true, nil
}

func (m *Manager) loadSnapshot(ctx context.Context, chainID string) (models.ContextChain, bool, error) {
	if m.store == nil {
		return models.ContextChain{}, false, nil
	}
	var c models.ContextChain
	found, err := m.store.Get(ctx, snapshotKey(chainID), &c)
	if err != nil {
		return models.ContextChain{}, false, fmt.Errorf("load chain %s: %w", chainID, err)
	}
	if !found {
		return models.ContextChain{}, false, nil
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = m.maxEntries
	}
	return c, true, nil
}

func copyChain(c *models.ContextChain) models.ContextChain {
	out := *c
	out.Entries = make([]models.ContextEntry, len(c.Entries))
	for i, e := range c.Entries {
		out.Entries[i] = copyEntry(e)
	}
	return out
}

func copyEntry(e models.ContextEntry) models.ContextEntry {
	e.Metadata = maps.Clone(e.Metadata)
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		e.ExpiresAt = &t
	}
	return e
}

// GetRelevantContext ranks the chain against query and returns at most topK
// scored entries. Stored entries are not modified.
func (m *Manager) GetRelevantContext(ctx context.Context, chainID, query string, topK int) ([]ScoredEntry, error) {
	chain, ok, err := m.GetChain(ctx, chainID)
	if err != nil || !ok {
		return nil, err
	}
	return Rank(chain.Entries, query, m.now(), topK), nil
}

// ShareContext copies entry contextID from one chain into another as a peer
// message with a new identity. It reports false if the entry is not found.
func (m *Manager) ShareContext(ctx context.Context, fromChain, toChain, contextID string) (bool, error) {
	src, ok, err := m.GetChain(ctx, fromChain)
	if err != nil || !ok {
		return false, err
	}

	for _, e := range src.Entries {
		if e.ID != contextID {
			continue
		}
		meta := maps.Clone(e.Metadata)
		if meta == nil {
			meta = make(map[string]string, 2)
		}
		meta["shared_from"] = e.ID
		meta["shared_from_chain"] = fromChain

		shared := m.CreateContext(e.Content, models.ContextPeerMessage, e.SourceSkill,
			WithTarget(toChain),
			WithMetadata(meta),
			WithRelevance(e.RelevanceScore),
		)
		if err := m.AddToChain(ctx, toChain, shared); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Stats summarizes resident chains.
func (m *Manager) Stats() models.ChainStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s models.ChainStats
	s.TotalChains = len(m.chains)
	for _, c := range m.chains {
		s.TotalEntries += len(c.Entries)
	}
	if s.TotalChains > 0 {
		s.AvgChainSize = float64(s.TotalEntries) / float64(s.TotalChains)
	}
	return s
}

// ChainIDs lists resident chain IDs in sorted order.
func (m *Manager) ChainIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.chains))
	for id := range m.chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
