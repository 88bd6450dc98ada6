package credibility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kithua/acw/internal/source"
)

// ErrNotCached is returned by Lookup for a domain with no usable result.
var ErrNotCached = errors.New("domain not cached")

// ErrInterrupted is returned by scoring tasks whose context ended before a
// result was computed.
var ErrInterrupted = errors.New("scoring interrupted")

// Record is the persisted form of a result.
type Record struct {
	Domain          string
	OverallScore    float64
	ComponentScores map[string]float64
	Tier            source.Tier
	RiskFactors     []string
	LastScore       float64
	ScoredAt        time.Time
}

// Result converts the record into the verdict it was persisted from.
func (r Record) Result() *Result {
	return &Result{
		Domain:          r.Domain,
		OverallScore:    r.OverallScore,
		ComponentScores: r.ComponentScores,
		Tier:            r.Tier,
		RiskFactors:     r.RiskFactors,
		ScoredAt:        r.ScoredAt,
	}
}

// Store persists credibility records between runs.
type Store interface {
	LoadAll(ctx context.Context) ([]Record, error)
	SaveAll(ctx context.Context, records []Record) error
}

// Cache holds one result per domain for the lifetime of a run. Records from
// earlier runs feed the historical component and, when younger than maxAge,
// are served as hits.
type Cache struct {
	store  Store
	maxAge time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	current map[string]*Result
	prior   map[string]Record
	group   singleflight.Group
}

// NewCache creates a cache over store, which may be nil. A zero maxAge never
// reuses prior records as hits.
func NewCache(store Store, maxAge time.Duration) *Cache {
	return &Cache{
		store:   store,
		maxAge:  maxAge,
		now:     time.Now,
		current: make(map[string]*Result),
		prior:   make(map[string]Record),
	}
}

// Load reads the persisted records.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	records, err := c.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load credibility cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		c.prior[r.Domain] = r
	}

	slog.Info("Credibility cache loaded", "records", len(records), "max_age", c.maxAge)
	return nil
}

// Get returns the result cached for domain.
func (c *Cache) Get(domain string) (*Result, bool) {
	c.mu.RLock()
	r, ok := c.current[domain]
	c.mu.RUnlock()
	if ok {
		return r, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.promoteLocked(domain)
}

// promoteLocked moves a fresh prior record into the current run so later
// lookups return the same pointer.
func (c *Cache) promoteLocked(domain string) (*Result, bool) {
	if r, ok := c.current[domain]; ok {
		return r, true
	}
	if c.maxAge <= 0 {
		return nil, false
	}
	rec, ok := c.prior[domain]
	if !ok || c.now().Sub(rec.ScoredAt) > c.maxAge {
		return nil, false
	}
	r := rec.Result()
	c.current[domain] = r
	return r, true
}

// Lookup is Get with an error for the API layer.
func (c *Cache) Lookup(domain string) (*Result, error) {
	if r, ok := c.Get(domain); ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotCached, domain)
}

// GetOrCompute returns the cached result for domain or stores the one
// computed by fn. hit is false for the caller whose fn ran and for callers
// that shared its computation. A nil result from fn is returned as is and
// never stored.
func (c *Cache) GetOrCompute(domain string, fn func() *Result) (result *Result, hit bool) {
	if r, ok := c.Get(domain); ok {
		return r, true
	}

	v, _, _ := c.group.Do(domain, func() (any, error) {
		c.mu.Lock()
		if r, ok := c.promoteLocked(domain); ok {
			c.mu.Unlock()
			return r, nil
		}
		c.mu.Unlock()

		r := fn()
		if r == nil {
			return r, nil
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.current[domain]; ok {
			return existing, nil
		}
		c.current[domain] = r
		return r, nil
	})
	return v.(*Result), false
}

// LastScore returns the score persisted by an earlier run.
func (c *Cache) LastScore(domain string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.prior[domain]
	if !ok {
		return 0, false
	}
	return rec.LastScore, true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.current)
}

// Results returns this run's results sorted by domain.
func (c *Cache) Results() []*Result {
	c.mu.RLock()
	out := make([]*Result, 0, len(c.current))
	for _, r := range c.current {
		out = append(out, r)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// Flush persists every result of this run with last_score set to its
// overall score.
func (c *Cache) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	results := c.Results()
	records := make([]Record, 0, len(results))
	for _, r := range results {
		records = append(records, Record{
			Domain:          r.Domain,
			OverallScore:    r.OverallScore,
			ComponentScores: r.ComponentScores,
			Tier:            r.Tier,
			RiskFactors:     r.RiskFactors,
			LastScore:       r.OverallScore,
			ScoredAt:        r.ScoredAt,
		})
	}

	if err := c.store.SaveAll(ctx, records); err != nil {
		return fmt.Errorf("failed to flush credibility cache: %w", err)
	}

	slog.Info("Credibility cache flushed", "records", len(records))
	return nil
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore(records ...Record) *MemoryStore {
	m := &MemoryStore{records: make(map[string]Record)}
	for _, r := range records {
		m.records[r.Domain] = r
	}
	return m
}

func (m *MemoryStore) LoadAll(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

func (m *MemoryStore) SaveAll(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		m.records[r.Domain] = r
	}
	return nil
}
