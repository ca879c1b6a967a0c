package query

import (
	"context"
	"sync"

	"network/internal/models"
)

// Result is what a view renders for its current key.
type Result struct {
	Entry
	// IsPreviousData is set when the current key has no data yet and Entry
	// holds the last data shown for an earlier key.
	IsPreviousData bool
}

// Loading reports a key with nothing to show yet.
func (r Result) Loading() bool {
	return !r.HasData() && r.Fetching
}

// Observer follows one key at a time, such as the page a view is showing.
// Switching keys keeps the previous key's data visible until the new key
// resolves.
type Observer struct {
	cache *Cache

	mu   sync.Mutex
	key  models.QueryKey
	last Entry
}

func (c *Cache) Observe(key models.QueryKey) *Observer {
	return &Observer{cache: c, key: key}
}

func (o *Observer) Key() models.QueryKey {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.key
}

// Navigate switches to key and starts loading it without blocking.
func (o *Observer) Navigate(ctx context.Context, key models.QueryKey) Result {
	o.mu.Lock()
	o.key = key
	o.mu.Unlock()

	if entry, ok := o.cache.Get(key); ok && entry.HasData() {
		if entry.Stale {
			o.cache.fetchAsync(ctx, key)
		}
	} else {
		o.cache.fetchAsync(ctx, key)
	}
	return o.Result()
}

// Load switches to key and waits until it holds data that is not being
// refetched: a cold key is fetched, and a stale one is refetched and
// waited for. A failed refetch leaves the old data with Err set.
func (o *Observer) Load(ctx context.Context, key models.QueryKey) (Result, error) {
	o.mu.Lock()
	o.key = key
	o.mu.Unlock()

	entry, err := o.cache.Read(ctx, key)
	if err != nil {
		return o.Result(), err
	}
	if entry.Fetching {
		if _, err := o.cache.Await(ctx, key); err != nil {
			return o.Result(), err
		}
	}
	return o.Result(), nil
}

// Wait blocks until the current key has no fetch in flight.
func (o *Observer) Wait(ctx context.Context) (Result, error) {
	if _, err := o.cache.Await(ctx, o.Key()); err != nil {
		return o.Result(), err
	}
	return o.Result(), nil
}

func (o *Observer) Result() Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, _ := o.cache.Get(o.key)
	if entry.HasData() {
		o.last = entry
		return Result{Entry: entry}
	}

	if o.last.HasData() && entry.Err == nil {
		prev := o.last
		prev.Fetching = entry.Fetching
		return Result{Entry: prev, IsPreviousData: true}
	}
	return Result{Entry: entry}
}
