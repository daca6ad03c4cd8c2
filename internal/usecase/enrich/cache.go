package enrich

import (
	"context"
	"sync"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/provider"
)

// lookupCache shares one provider response between all fields of a record
// that list the same provider. Concurrent fields asking for a provider that
// is already in flight wait for that call instead of issuing their own.
type lookupCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	ready   chan struct{}
	results []entity.FieldResult
	calls   int
	err     error
}

func newLookupCache() *lookupCache {
	return &lookupCache{entries: make(map[string]*cacheEntry)}
}

// lookup returns the response of adapter for q. shared is true when the
// response came from an earlier call by another field.
func (c *lookupCache) lookup(ctx context.Context, adapter *provider.Adapter, q provider.Query) (results []entity.FieldResult, calls int, shared bool, err error) {
	name := adapter.Name()

	c.mu.Lock()
	e, ok := c.entries[name]
	if !ok {
		e = &cacheEntry{ready: make(chan struct{})}
		c.entries[name] = e
	}
	c.mu.Unlock()

	if ok {
		select {
		case <-e.ready:
			return e.results, e.calls, true, e.err
		case <-ctx.Done():
			return nil, 0, true, &provider.LookupError{
				Provider: name,
				Class:    entity.ClassDeadlineExceeded,
				Err:      ctx.Err(),
			}
		}
	}

	e.results, e.calls, e.err = adapter.LookupCounted(ctx, q)
	close(e.ready)
	return e.results, e.calls, false, e.err
}
