package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/rosterops/rostergate/internal/domain/authz"
)

// lruEntry is a doubly-linked list node for the resolver cache.
type lruEntry struct {
	key   uint64
	rules []authz.ConditionalRule
	prev  *lruEntry
	next  *lruEntry
}

// resolvedCache provides bounded LRU caching for resolved rule lists.
// Thread-safe with Mutex (both Get and Put mutate LRU order).
type resolvedCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

func newResolvedCache(maxSize int) *resolvedCache {
	return &resolvedCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached rule list. On hit, the entry is promoted to the
// head (most recently used).
func (c *resolvedCache) Get(key uint64) ([]authz.ConditionalRule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.rules, true
	}
	return nil, false
}

// Put stores a rule list. If at capacity, the least recently used entry
// is evicted.
func (c *resolvedCache) Put(key uint64, rules []authz.ConditionalRule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.rules = rules
		c.moveToHeadLocked(e)
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}
	e := &lruEntry{key: key, rules: rules}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Clear empties the cache. Called on every rule-administration write.
func (c *resolvedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*lruEntry, c.maxSize)
	c.head = nil
	c.tail = nil
}

func (c *resolvedCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *resolvedCache) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *resolvedCache) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *resolvedCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// cacheKey hashes (role, resource, action) with NUL separators for
// collision resistance.
func cacheKey(roleID, resource, action string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(roleID)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(resource)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(action)
	return h.Sum64()
}

// RuleResolver merges the two rule origins for a (role, resource, action)
// triple: persisted per-role overrides first, then the process-wide
// immutable default table. Origins stay distinguishable in diagnostics
// only; cross-rule aggregation is a pure OR so order never changes the
// outcome.
type RuleResolver struct {
	store    authz.RuleStore
	defaults []authz.ConditionalRule
	cache    *resolvedCache
	metrics  *Metrics
	logger   *slog.Logger
}

// RuleResolverOption configures a RuleResolver.
type RuleResolverOption func(*RuleResolver)

// WithResolverCacheSize sets the maximum number of cached rule lists.
func WithResolverCacheSize(size int) RuleResolverOption {
	return func(r *RuleResolver) { r.cache = newResolvedCache(size) }
}

// WithResolverMetrics sets the metrics sink.
func WithResolverMetrics(m *Metrics) RuleResolverOption {
	return func(r *RuleResolver) { r.metrics = m }
}

// NewRuleResolver creates a resolver over the persisted store and the
// built-in default table.
func NewRuleResolver(store authz.RuleStore, logger *slog.Logger, opts ...RuleResolverOption) (*RuleResolver, error) {
	defaults, err := authz.DefaultRules()
	if err != nil {
		return nil, fmt.Errorf("failed to load default rules: %w", err)
	}
	r := &RuleResolver{
		store:    store,
		defaults: defaults,
		cache:    newResolvedCache(1024),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the candidate rules for the triple. An unknown role
// (empty roleID) yields only matching default rules; the orchestrator's
// base-permission gate has already rejected unknown users before this
// result can grant anything.
func (r *RuleResolver) Resolve(ctx context.Context, roleID, resource, action string) ([]authz.ConditionalRule, error) {
	key := cacheKey(roleID, resource, action)
	if rules, ok := r.cache.Get(key); ok {
		r.metrics.ObserveResolverCache(true)
		return rules, nil
	}
	r.metrics.ObserveResolverCache(false)

	persisted, err := r.store.ListRules(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted rules: %w", err)
	}

	var merged []authz.ConditionalRule
	for _, rule := range persisted {
		if rule.Resource == resource && rule.Action == action {
			merged = append(merged, rule)
		}
	}
	for _, rule := range r.defaults {
		if rule.Resource == resource && rule.Action == action {
			merged = append(merged, rule)
		}
	}

	r.cache.Put(key, merged)
	return merged, nil
}

// Invalidate drops every cached rule list. Rule administration calls this
// after any write so the next evaluation observes the change.
func (r *RuleResolver) Invalidate() {
	r.cache.Clear()
}
