package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/skillgate/pkg/models"
)

var (
	// ErrStore wraps every failure of the backing database.
	ErrStore = errors.New("cache store failure")
	// ErrSerialize is returned when a value cannot be encoded or decoded.
	ErrSerialize = errors.New("cache serialization failure")
)

// Cache is a fingerprint cache backed by SQLite. Expiry is checked lazily on
// read and can be swept with CleanupExpired.
type Cache struct {
	mu      sync.RWMutex
	db      *sql.DB
	now     func() time.Time
	log     *zap.Logger
	metrics *Metrics
	sweep   time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source used for TTL decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithSweepInterval starts a background loop that removes expired rows every d.
// Zero disables it.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) { c.sweep = d }
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cache (
		key           TEXT PRIMARY KEY,
		value         TEXT NOT NULL,
		category      TEXT NOT NULL,
		created_at    INTEGER NOT NULL,
		expires_at    INTEGER,
		hit_count     INTEGER NOT NULL DEFAULT 0,
		last_accessed INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cache_category ON cache(category)`,
	`CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache(expires_at)`,
}

// New opens (or creates) the cache database at dbPath.
func New(dbPath string, opts ...Option) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// One connection keeps every transaction on the same handle, which also
	// makes ":memory:" databases usable.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate cache db: %w", err)
		}
	}

	c := &Cache{
		db:   db,
		now:  time.Now,
		log:  zap.NewNop(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.sweep > 0 {
		c.wg.Add(1)
		go c.sweepLoop()
	}
	return c, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("cache %s: %w: %w", op, ErrStore, err)
}

// Get looks up key and decodes its value into dst. It reports false when the
// key is absent or expired, leaving dst untouched. An expired row is deleted
// in the same transaction and is not counted as a hit. A nil dst skips decoding.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeErr("get", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		value   string
		expires sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache WHERE key = ?`, key,
	).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		c.recordMiss()
		return false, nil
	}
	if err != nil {
		return false, storeErr("get", err)
	}

	now := c.now()
	if expires.Valid && now.UnixNano() >= expires.Int64 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
			return false, storeErr("expire", err)
		}
		if err := tx.Commit(); err != nil {
			return false, storeErr("expire", err)
		}
		c.metrics.expired(1)
		c.recordMiss()
		return false, nil
	}

	if dst != nil {
		if err := json.Unmarshal([]byte(value), dst); err != nil {
			return false, fmt.Errorf("cache get %s: %w: %w", key, ErrSerialize, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE cache SET hit_count = hit_count + 1, last_accessed = ? WHERE key = ?`,
		now.UnixNano(), key,
	); err != nil {
		return false, storeErr("get", err)
	}
	if err := tx.Commit(); err != nil {
		return false, storeErr("get", err)
	}

	c.hits.Add(1)
	c.metrics.hit()
	return true, nil
}

// Peek returns the raw row for key without counting a hit or expiring it.
func (c *Cache) Peek(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		e            models.CacheEntry
		value        string
		category     string
		created      int64
		expires      sql.NullInt64
		lastAccessed int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT key, value, category, created_at, expires_at, hit_count, last_accessed
		 FROM cache WHERE key = ?`, key,
	).Scan(&e.Key, &value, &category, &created, &expires, &e.HitCount, &lastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, storeErr("peek", err)
	}

	e.Value = json.RawMessage(value)
	e.Category = models.CacheCategory(category)
	e.CreatedAt = time.Unix(0, created).UTC()
	e.LastAccessed = time.Unix(0, lastAccessed).UTC()
	if expires.Valid {
		t := time.Unix(0, expires.Int64).UTC()
		e.ExpiresAt = &t
	}
	return e, true, nil
}

// Set stores value under key with the category's default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, category models.CacheCategory) error {
	return c.SetWithTTL(ctx, key, value, category, category.DefaultTTL())
}

// SetWithTTL stores value under key, replacing any existing row and resetting
// its hit count. A ttl of zero stores an entry that never expires.
func (c *Cache) SetWithTTL(ctx context.Context, key string, value any, category models.CacheCategory, ttl time.Duration) error {
	if !category.Valid() {
		return fmt.Errorf("cache set %s: %w: %q", key, models.ErrUnknownCategory, category)
	}
	if ttl < 0 {
		return fmt.Errorf("cache set %s: negative ttl %s", key, ttl)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache set %s: %w: %w", key, ErrSerialize, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expires sql.NullInt64
	if ttl > 0 {
		expires = sql.NullInt64{Int64: now.Add(ttl).UnixNano(), Valid: true}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("set", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache (key, value, category, created_at, expires_at, hit_count, last_accessed)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		key, string(data), string(category), now.UnixNano(), expires, now.UnixNano(),
	); err != nil {
		return storeErr("set", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("set", err)
	}

	c.metrics.set(category)
	return nil
}

// Delete removes key and reports whether a row existed.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.exec(ctx, "delete", `DELETE FROM cache WHERE key = ?`, key)
	return n > 0, err
}

// ClearAll removes every row and returns how many were removed.
func (c *Cache) ClearAll(ctx context.Context) (int64, error) {
	return c.exec(ctx, "clear", `DELETE FROM cache`)
}

// ClearCategory removes every row in category.
func (c *Cache) ClearCategory(ctx context.Context, category models.CacheCategory) (int64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("cache clear: %w: %q", models.ErrUnknownCategory, category)
	}
	return c.exec(ctx, "clear", `DELETE FROM cache WHERE category = ?`, string(category))
}

// CleanupExpired removes every row whose expiry has passed.
func (c *Cache) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := c.exec(ctx, "cleanup",
		`DELETE FROM cache WHERE expires_at IS NOT NULL AND expires_at <= ?`, c.now().UnixNano())
	if err != nil {
		return 0, err
	}
	c.metrics.expired(n)
	return n, nil
}

func (c *Cache) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr(op, err)
	}
	return n, nil
}

// Stats reports row counts, the persisted hit total and this process's
// hit/miss counters. Categories over their advisory capacity are logged.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var stats models.CacheStats
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM cache`,
	).Scan(&stats.TotalEntries, &stats.TotalHits); err != nil {
		return models.CacheStats{}, storeErr("stats", err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM cache GROUP BY category`)
	if err != nil {
		return models.CacheStats{}, storeErr("stats", err)
	}
	defer rows.Close()

	counts := make(map[models.CacheCategory]int64)
	for rows.Next() {
		var (
			cat string
			n   int64
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return models.CacheStats{}, storeErr("stats", err)
		}
		counts[models.CacheCategory(cat)] = n
	}
	if err := rows.Err(); err != nil {
		return models.CacheStats{}, storeErr("stats", err)
	}

	for _, cat := range models.CacheCategories() {
		cs := models.CategoryStats{Category: cat, Entries: counts[cat], Capacity: cat.Capacity()}
		if cs.OverCapacity() {
			c.log.Warn("cache category over capacity",
				zap.String("category", string(cat)),
				zap.Int64("entries", cs.Entries),
				zap.Int("capacity", cs.Capacity))
		}
		stats.Categories = append(stats.Categories, cs)
	}

	stats.Hits = c.hits.Load()
	stats.Misses = c.misses.Load()
	return stats, nil
}

// Close stops the sweeper, if any, and releases the database.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	c.wg.Wait()
	return c.db.Close()
}

func (c *Cache) recordMiss() {
	c.misses.Add(1)
	c.metrics.miss()
}

func (c *Cache) sweepLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			n, err := c.CleanupExpired(context.Background())
			if err != nil {
				c.log.Error("cache sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				c.log.Debug("cache sweep removed expired entries", zap.Int64("removed", n))
			}
		}
	}
}
