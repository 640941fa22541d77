package client

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TagAppointments marks every cached appointment listing.
const TagAppointments = "appointments"

type QueryState int

const (
	QueryIdle QueryState = iota
	QuerySkipped
	QueryLoading
	QueryError
	QuerySuccess
)

func (s QueryState) String() string {
	switch s {
	case QueryIdle:
		return "idle"
	case QuerySkipped:
		return "skipped"
	case QueryLoading:
		return "loading"
	case QueryError:
		return "error"
	case QuerySuccess:
		return "success"
	}
	return fmt.Sprintf("QueryState(%d)", int(s))
}

// Result is the outcome of running a query.
type Result[T any] struct {
	State QueryState
	Data  T
	Err   error
}

type cacheEntry struct {
	value any
	tags  []string
}

// Cache stores query results by key and drops them by tag. Concurrent
// misses on one key share a single fetch, but a read that starts after an
// invalidation never joins a fetch that started before it.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	generation uint64
	group      singleflight.Group
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

func (c *Cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.value, ok
}

// store keeps value unless an invalidation happened since gen was read.
func (c *Cache) store(key string, value any, tags []string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.entries[key] = cacheEntry{value: value, tags: tags}
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Invalidate drops every entry carrying tag and returns how many went.
func (c *Cache) Invalidate(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++

	n := 0
	for key, e := range c.entries {
		for _, t := range e.tags {
			if t == tag {
				delete(c.entries, key)
				n++
				break
			}
		}
	}
	return n
}

// Query is one keyed fetch. A skipped query never calls its fetch function.
type Query[T any] struct {
	key   string
	tags  []string
	fetch func(ctx context.Context) (T, error)
	cache *Cache
	skip  bool
}

// NewQuery builds an active query.
func NewQuery[T any](cache *Cache, key string, tags []string, fetch func(ctx context.Context) (T, error)) *Query[T] {
	return &Query[T]{key: key, tags: tags, fetch: fetch, cache: cache}
}

// SkippedQuery builds a query with no valid key.
func SkippedQuery[T any]() *Query[T] {
	return &Query[T]{skip: true}
}

func (q *Query[T]) Skipped() bool { return q.skip }

func (q *Query[T]) Key() string { return q.key }

// Run returns the cached value for the key or fetches it.
func (q *Query[T]) Run(ctx context.Context) Result[T] {
	if q.skip {
		return Result[T]{State: QuerySkipped}
	}

	if q.cache != nil {
		if v, ok := q.cache.get(q.key); ok {
			return Result[T]{State: QuerySuccess, Data: v.(T)}
		}
	}

	if q.cache == nil {
		data, err := q.fetch(ctx)
		if err != nil {
			return Result[T]{State: QueryError, Err: err}
		}
		return Result[T]{State: QuerySuccess, Data: data}
	}

	gen := q.cache.currentGeneration()
	flight := fmt.Sprintf("%s#%d", q.key, gen)
	v, err, _ := q.cache.group.Do(flight, func() (any, error) {
		if v, ok := q.cache.get(q.key); ok {
			return v, nil
		}
		data, err := q.fetch(ctx)
		if err != nil {
			return nil, err
		}
		q.cache.store(q.key, data, q.tags, gen)
		return data, nil
	})
	if err != nil {
		return Result[T]{State: QueryError, Err: err}
	}
	return Result[T]{State: QuerySuccess, Data: v.(T)}
}
