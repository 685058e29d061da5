package ana

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/hydro-data-etl-service/internal/hydrology"
	"github.com/couchcryptid/hydro-data-etl-service/internal/observability"
)

// Source is the subset of Client the cache decorates.
type Source interface {
	Inventory(ctx context.Context, q InventoryQuery) ([]Station, error)
	Series(ctx context.Context, station string, dt DataType, start, end time.Time, consistency int) (hydrology.TimeSeries, error)
}

// CachedClient wraps a Source with an in-memory LRU cache keyed by station,
// variable and window.
type CachedClient struct {
	inner     Source
	series    *lruCache[hydrology.TimeSeries]
	inventory *lruCache[[]Station]
	metrics   *observability.Metrics
}

// NewCachedClient creates a cache decorator holding up to maxEntries series
// and maxEntries inventory lookups.
func NewCachedClient(inner Source, maxEntries int, metrics *observability.Metrics) *CachedClient {
	return &CachedClient{
		inner:     inner,
		series:    newLRUCache[hydrology.TimeSeries](maxEntries),
		inventory: newLRUCache[[]Station](maxEntries),
		metrics:   metrics,
	}
}

func (c *CachedClient) Inventory(ctx context.Context, q InventoryQuery) ([]Station, error) {
	key := fmt.Sprintf("inv:%s|%d|%s", q.Code, q.Kind, q.measurement())
	if stations, ok := c.inventory.get(key); ok {
		c.observe("inventory", "hit")
		return append([]Station(nil), stations...), nil
	}
	c.observe("inventory", "miss")

	stations, err := c.inner.Inventory(ctx, q)
	if err != nil {
		return nil, err
	}
	// Empty answers are not cached so a station that starts reporting is
	// picked up on the next request.
	if len(stations) > 0 {
		c.inventory.put(key, append([]Station(nil), stations...))
	}
	return stations, nil
}

func (c *CachedClient) Series(ctx context.Context, station string, dt DataType, start, end time.Time, consistency int) (hydrology.TimeSeries, error) {
	key := fmt.Sprintf("series:%s|%d|%s|%s|%d", station, dt, start.Format(time.DateOnly), end.Format(time.DateOnly), consistency)
	if ts, ok := c.series.get(key); ok {
		c.observe("series", "hit")
		return append(hydrology.TimeSeries(nil), ts...), nil
	}
	c.observe("series", "miss")

	ts, err := c.inner.Series(ctx, station, dt, start, end, consistency)
	if err != nil {
		return nil, err
	}
	if len(ts) > 0 {
		c.series.put(key, append(hydrology.TimeSeries(nil), ts...))
	}
	return ts, nil
}

func (c *CachedClient) Stage(ctx context.Context, station string, start, end time.Time) (hydrology.TimeSeries, error) {
	return c.Series(ctx, station, DataStage, start, end, ConsistencyAny)
}

func (c *CachedClient) Discharge(ctx context.Context, station string, start, end time.Time) (hydrology.TimeSeries, error) {
	return c.Series(ctx, station, DataDischarge, start, end, ConsistencyAny)
}

func (c *CachedClient) Rainfall(ctx context.Context, station string, start, end time.Time) (hydrology.TimeSeries, error) {
	return c.Series(ctx, station, DataRainfall, start, end, ConsistencyDone)
}

func (c *CachedClient) observe(method, result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.SourceCache.WithLabelValues(method, result).Inc()
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
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
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	tail := c.tail
	delete(c.entries, tail.key)
	c.remove(tail)
}
