// Package query keeps the last fetched server response per query key and
// lets mutations either refetch a key or patch its value in place.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"network/internal/models"
)

var (
	ErrNotCached = errors.New("query key not cached")
	ErrNoFetcher = errors.New("query cache has no fetcher")
)

// Fetcher loads the value for key from the server.
type Fetcher func(ctx context.Context, key models.QueryKey) (any, error)

// PatchFunc derives a new value from the cached one. It must not modify its
// argument.
type PatchFunc func(old any) (any, error)

// Entry is a snapshot of one cache slot.
type Entry struct {
	Key       models.QueryKey
	Data      any
	Err       error
	UpdatedAt time.Time
	Stale     bool
	Fetching  bool
}

func (e Entry) HasData() bool {
	return e.Data != nil
}

func (e Entry) Page() (*models.Page, bool) {
	p, ok := e.Data.(*models.Page)
	return p, ok
}

func (e Entry) Profile() (*models.Profile, bool) {
	p, ok := e.Data.(*models.Profile)
	return p, ok
}

type entry struct {
	key       models.QueryKey
	data      any
	err       error
	updatedAt time.Time
	// gen is bumped by every invalidation; fetchedGen is the gen seen when
	// the current data's fetch started.
	gen        uint64
	fetchedGen uint64
	// version is bumped by every local write (Patch, Set). A fetch that
	// started under an older version does not overwrite the value.
	version  uint64
	fetching bool
}

type Options struct {
	// StaleTime is how long fetched data counts as fresh. Zero means every
	// read of a cached key also refetches it in the background.
	StaleTime time.Duration
	Store     Store
	Logger    *slog.Logger
}

type Cache struct {
	mu      sync.RWMutex
	entries map[models.QueryKey]*entry
	group   singleflight.Group

	fetcher   Fetcher
	staleTime time.Duration
	store     Store
	logger    *slog.Logger
	now       func() time.Time

	subMu   sync.RWMutex
	subs    map[int]func(Entry)
	nextSub int
}

func New(fetcher Fetcher, opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries:   make(map[models.QueryKey]*entry),
		fetcher:   fetcher,
		staleTime: opts.StaleTime,
		store:     opts.Store,
		logger:    logger,
		now:       time.Now,
		subs:      make(map[int]func(Entry)),
	}
}

func (c *Cache) snapshot(e *entry) Entry {
	return Entry{
		Key:       e.key,
		Data:      e.data,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Stale:     c.isStale(e),
		Fetching:  e.fetching,
	}
}

func (c *Cache) isStale(e *entry) bool {
	if e.data == nil || e.gen > e.fetchedGen {
		return true
	}
	if c.staleTime <= 0 {
		return true
	}
	return c.now().Sub(e.updatedAt) >= c.staleTime
}

func (c *Cache) slot(key models.QueryKey) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key}
		c.entries[key] = e
	}
	return e
}

// Get returns the cached entry for key without fetching.
func (c *Cache) Get(key models.QueryKey) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{Key: key}, false
	}
	return c.snapshot(e), true
}

// Read returns the cached value for key. When data is cached it is returned
// right away, even if stale, and a stale key is refetched in the background.
// A key without data is fetched before Read returns; concurrent reads of the
// same key share one request.
func (c *Cache) Read(ctx context.Context, key models.QueryKey) (Entry, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	var (
		hasData bool
		stale   bool
	)
	if ok {
		hasData = e.data != nil
		stale = c.isStale(e)
	}
	c.mu.RUnlock()

	if hasData {
		if stale {
			c.fetchAsync(ctx, key)
		}
		entry, _ := c.Get(key)
		return entry, nil
	}

	err := c.fetch(ctx, key)
	entry, _ := c.Get(key)
	return entry, err
}

// Fetch loads key from the server, joining a fetch already in flight.
func (c *Cache) Fetch(ctx context.Context, key models.QueryKey) (Entry, error) {
	err := c.fetch(ctx, key)
	entry, _ := c.Get(key)
	return entry, err
}

func (c *Cache) fetchAsync(ctx context.Context, key models.QueryKey) {
	if c.fetcher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	c.mu.Lock()
	c.slot(key).fetching = true
	c.mu.Unlock()

	go func() {
		if err := c.fetch(ctx, key); err != nil {
			c.logger.Warn("background refetch failed", "key", key.String(), "error", err)
		}
	}()
}

func (c *Cache) fetch(ctx context.Context, key models.QueryKey) error {
	if c.fetcher == nil {
		return ErrNoFetcher
	}

	_, err, shared := c.group.Do(key.String(), func() (any, error) {
		c.mu.Lock()
		e := c.slot(key)
		e.fetching = true
		gen, version := e.gen, e.version
		c.mu.Unlock()

		data, err := c.fetcher(ctx, key)
		c.finish(ctx, key, gen, version, data, err)
		return nil, err
	})
	if shared {
		c.logger.Debug("joined in-flight fetch", "key", key.String())
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}
	return nil
}

func (c *Cache) finish(ctx context.Context, key models.QueryKey, gen, version uint64, data any, err error) {
	c.mu.Lock()
	e := c.slot(key)
	e.fetching = false
	applied := false
	switch {
	case err != nil:
		// Previous data stays in place.
		e.err = err
	case e.version != version:
		// The value was patched while this fetch was in flight and the
		// response may predate the mutation. Keep the patched value; the
		// key stays unconfirmed for Invalidate.
		c.logger.Debug("dropping fetch overtaken by local update", "key", key.String())
	default:
		e.data = data
		e.err = nil
		e.updatedAt = c.now()
		e.fetchedGen = gen
		applied = true
	}
	snap := c.snapshot(e)
	c.mu.Unlock()

	if applied {
		c.persist(ctx, snap)
	}
	c.publish(snap)
}

// Invalidate marks key stale and refetches it, returning once data fetched
// after the invalidation is in the cache. A key that was never read is left
// alone.
func (c *Cache) Invalidate(ctx context.Context, key models.QueryKey) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	e.gen++
	target := e.gen
	c.mu.Unlock()

	for {
		if err := c.fetch(ctx, key); err != nil {
			return err
		}
		// The fetch may have been joined from before the invalidation, or
		// dropped because of a patch; go again until one lands.
		if c.confirmed(key, target) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (c *Cache) confirmed(key models.QueryKey, gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return !ok || e.fetchedGen >= gen
}

// InvalidateAsync is Invalidate without waiting for the refetch.
func (c *Cache) InvalidateAsync(ctx context.Context, key models.QueryKey) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := c.Invalidate(ctx, key); err != nil {
			c.logger.Warn("invalidate failed", "key", key.String(), "error", err)
		}
	}()
}

// Patch replaces the value cached under key with fn(old) without a network
// round trip.
func (c *Cache) Patch(ctx context.Context, key models.QueryKey, fn PatchFunc) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.data == nil {
		c.mu.Unlock()
		return fmt.Errorf("patch %s: %w", key, ErrNotCached)
	}
	next, err := fn(e.data)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("patch %s: %w", key, err)
	}
	e.data = next
	e.version++
	snap := c.snapshot(e)
	c.mu.Unlock()

	c.persist(ctx, snap)
	c.publish(snap)
	return nil
}

// Set stores data under key as freshly fetched.
func (c *Cache) Set(key models.QueryKey, data any) {
	c.mu.Lock()
	e := c.slot(key)
	e.data = data
	e.err = nil
	e.updatedAt = c.now()
	e.fetchedGen = e.gen
	e.version++
	snap := c.snapshot(e)
	c.mu.Unlock()

	c.publish(snap)
}

func (c *Cache) Remove(key models.QueryKey) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(context.Background(), key.String()); err != nil {
			c.logger.Warn("snapshot delete failed", "key", key.String(), "error", err)
		}
	}
}

func (c *Cache) Keys() []models.QueryKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]models.QueryKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Subscribe registers fn to be called after every change of any slot. The
// returned function removes the subscription.
func (c *Cache) Subscribe(fn func(Entry)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Cache) publish(e Entry) {
	c.subMu.RLock()
	fns := make([]func(Entry), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Await blocks until no fetch for key is in flight and returns its entry.
func (c *Cache) Await(ctx context.Context, key models.QueryKey) (Entry, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := c.Subscribe(func(e Entry) {
		if e.Key != key {
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		entry, _ := c.Get(key)
		if !entry.Fetching {
			return entry, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return entry, ctx.Err()
		}
	}
}
