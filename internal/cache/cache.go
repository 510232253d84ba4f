// Package cache implements the State Cache: a category-tagged, TTL-bounded
// store of controller-observed state with at-most-one concurrent refill
// per key (spec §4.G).
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// Category tags a cache entry for bulk invalidation (spec §3 CacheEntry).
type Category string

const (
	CategoryPositions Category = "positions"
	CategoryFans      Category = "fans"
	CategoryPWM       Category = "pwm"
	CategoryGPIO      Category = "gpio"
	CategorySensors   Category = "sensors"
	CategorySystem    Category = "system"
)

// AllCategories lists every category, used by InvalidateAllCategories.
var AllCategories = []Category{
	CategoryPositions, CategoryFans, CategoryPWM, CategoryGPIO, CategorySensors, CategorySystem,
}

// DefaultTTL returns spec §4.G's default TTL per category.
func DefaultTTL(c Category) time.Duration {
	switch c {
	case CategoryPositions:
		return 200 * time.Millisecond
	case CategoryFans, CategoryPWM, CategoryGPIO:
		return 500 * time.Millisecond
	case CategorySensors:
		return time.Second
	case CategorySystem:
		return 5 * time.Second
	default:
		return time.Second
	}
}

type entry struct {
	value     any
	category  Category
	expiresAt time.Time
}

func (e entry) fresh(now time.Time) bool { return now.Before(e.expiresAt) }

// Metrics mirrors the teacher's cache Metrics struct (hits/misses/errors
// as CounterVecs), scoped to this gateway's own categories rather than
// cache layers.
type Metrics struct {
	Hits               *prometheus.CounterVec
	Misses             *prometheus.CounterVec
	InflightCoalesced  *prometheus.CounterVec
	InvalidationsTotal *prometheus.CounterVec
}

// NewMetrics registers the State Cache's Prometheus counters against reg.
// Pass nil to register against the default global registry (production);
// tests pass a fresh prometheus.NewRegistry() so repeated Cache
// construction within one test binary doesn't collide on metric names.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Hits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pnp_gateway",
			Subsystem: "state_cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits by category.",
		}, []string{"category"}),
		Misses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pnp_gateway",
			Subsystem: "state_cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses by category.",
		}, []string{"category"}),
		InflightCoalesced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pnp_gateway",
			Subsystem: "state_cache",
			Name:      "inflight_coalesced_total",
			Help:      "Total number of lookups that joined an in-flight refill instead of starting a new one.",
		}, []string{"category"}),
		InvalidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pnp_gateway",
			Subsystem: "state_cache",
			Name:      "invalidations_total",
			Help:      "Total number of cache invalidations by category.",
		}, []string{"category"}),
	}
}

// Cache is the State Cache: one mutex over the entries map, one
// singleflight.Group providing InflightRefill coalescing (spec §5: "a
// single mutex guards the entries map and the InflightRefill map;
// refillers run outside the mutex").
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	sf      singleflight.Group
	metrics *Metrics
}

// New constructs an empty Cache. metrics is required — callers construct
// it once at startup via NewMetrics and share it across Cache instances
// if more than one is ever needed.
func New(metrics *Metrics) *Cache {
	return &Cache{entries: make(map[string]entry), metrics: metrics}
}

// Refiller fetches the authoritative value for a key, typically by
// calling the ControllerClient.
type Refiller func(ctx context.Context) (any, error)

// Get returns a fresh entry if one exists; otherwise it runs refiller,
// coalescing concurrent callers for the same key onto a single refiller
// invocation via singleflight (spec §8 property 4). A refiller error is
// returned to every waiting caller and nothing is stored.
func (c *Cache) Get(ctx context.Context, key string, category Category, ttl time.Duration, refiller Refiller) (any, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && e.fresh(time.Now()) {
		c.metrics.Hits.WithLabelValues(string(category)).Inc()
		return e.value, nil
	}
	c.metrics.Misses.WithLabelValues(string(category)).Inc()

	v, err, shared := c.sf.Do(key, func() (any, error) {
		value, err := refiller(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, category, value, ttl)
		return value, nil
	})
	if shared {
		c.metrics.InflightCoalesced.WithLabelValues(string(category)).Inc()
	}
	return v, err
}

// Set unconditionally writes an entry (spec §4.G set).
func (c *Cache) Set(key string, category Category, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, category: category, expiresAt: time.Now().Add(ttl)}
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateCategory removes every entry tagged with category (spec
// §4.G invalidate_category, driven by the Dispatcher's command-family
// table).
func (c *Cache) InvalidateCategory(category Category) {
	c.mu.Lock()
	removed := 0
	for k, e := range c.entries {
		if e.category == category {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()
	if removed > 0 {
		c.metrics.InvalidationsTotal.WithLabelValues(string(category)).Add(float64(removed))
	}
}

// InvalidateAllCategories clears every entry, for emergency_stop (spec
// §4.E step d) and is the CacheInvalidator the Safety Manager consumes.
func (c *Cache) InvalidateAllCategories() {
	for _, cat := range AllCategories {
		c.InvalidateCategory(cat)
	}
}

// Len reports the current number of live entries, including stale ones
// not yet swept — used by tests asserting post-emergency-stop emptiness.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
