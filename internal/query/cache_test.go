package query

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"network/internal/models"
	"network/internal/repository"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// gatedFetcher blocks every fetch until release is closed and counts calls.
type gatedFetcher struct {
	calls   atomic.Int32
	started chan models.QueryKey
	release chan struct{}
	result  func(key models.QueryKey, call int32) (any, error)
}

func newGatedFetcher(result func(models.QueryKey, int32) (any, error)) *gatedFetcher {
	return &gatedFetcher{
		started: make(chan models.QueryKey, 16),
		release: make(chan struct{}),
		result:  result,
	}
}

func (g *gatedFetcher) fetch(ctx context.Context, key models.QueryKey) (any, error) {
	n := g.calls.Add(1)
	g.started <- key
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.result(key, n)
}

func pageOf(n int, ids ...int) *models.Page {
	p := &models.Page{Page: n, NumPages: 10}
	for _, id := range ids {
		p.Posts = append(p.Posts, models.Post{ID: id, Text: "post"})
	}
	return p
}

func TestCache_ConcurrentReadsShareOneFetch(t *testing.T) {
	g := newGatedFetcher(func(key models.QueryKey, _ int32) (any, error) {
		return pageOf(key.Page, 1), nil
	})
	c := New(g.fetch, Options{StaleTime: time.Minute, Logger: discard})
	key := models.PostsKey(1)

	var wg sync.WaitGroup
	results := make([]Entry, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := c.Read(context.Background(), key)
			assert.NoError(t, err)
			results[i] = entry
		}(i)
	}

	<-g.started
	// Let the second reader reach the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(g.release)
	wg.Wait()

	assert.Equal(t, int32(1), g.calls.Load())
	for _, r := range results {
		page, ok := r.Page()
		require.True(t, ok)
		assert.Equal(t, 1, page.Posts[0].ID)
	}
}

func TestCache_ReadReturnsCachedWhileRefetching(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	fetcher := func(_ context.Context, key models.QueryKey) (any, error) {
		n := calls.Add(1)
		if n > 1 {
			<-gate
		}
		return pageOf(key.Page, int(n)), nil
	}
	c := New(fetcher, Options{Logger: discard})
	key := models.PostsKey(1)

	first, err := c.Read(context.Background(), key)
	require.NoError(t, err)
	page, _ := first.Page()
	assert.Equal(t, 1, page.Posts[0].ID)

	// StaleTime 0: the cached page comes back at once and a refetch starts.
	second, err := c.Read(context.Background(), key)
	require.NoError(t, err)
	page, _ = second.Page()
	assert.Equal(t, 1, page.Posts[0].ID)
	assert.True(t, second.Fetching)
	assert.True(t, second.Stale)

	close(gate)
	assert.Eventually(t, func() bool {
		entry, _ := c.Get(key)
		p, ok := entry.Page()
		return ok && !entry.Fetching && p.Posts[0].ID == 2
	}, time.Second, 5*time.Millisecond)
}

func TestCache_FailedFetchKeepsData(t *testing.T) {
	fail := errors.New("boom")
	var broken atomic.Bool
	fetcher := func(_ context.Context, key models.QueryKey) (any, error) {
		if broken.Load() && key.Kind == models.KindPosts {
			return nil, fail
		}
		return pageOf(key.Page, 7), nil
	}
	c := New(fetcher, Options{StaleTime: time.Minute, Logger: discard})

	_, err := c.Read(context.Background(), models.PostsKey(1))
	require.NoError(t, err)
	_, err = c.Read(context.Background(), models.FollowingKey(1))
	require.NoError(t, err)

	broken.Store(true)
	entry, err := c.Fetch(context.Background(), models.PostsKey(1))
	assert.ErrorIs(t, err, fail)
	assert.ErrorIs(t, entry.Err, fail)
	assert.True(t, entry.HasData())

	other, ok := c.Get(models.FollowingKey(1))
	require.True(t, ok)
	assert.NoError(t, other.Err)
	assert.True(t, other.HasData())
}

func TestCache_ColdReadError(t *testing.T) {
	c := New(func(context.Context, models.QueryKey) (any, error) {
		return nil, errors.New("page 11 out of range")
	}, Options{Logger: discard})

	entry, err := c.Read(context.Background(), models.PostsKey(11))
	require.Error(t, err)
	assert.False(t, entry.HasData())
	assert.Error(t, entry.Err)
}

func TestCache_NoFetcher(t *testing.T) {
	c := New(nil, Options{Logger: discard})
	_, err := c.Read(context.Background(), models.PostsKey(1))
	assert.ErrorIs(t, err, ErrNoFetcher)
}

func TestCache_InvalidateWaitsForFreshData(t *testing.T) {
	g := newGatedFetcher(func(key models.QueryKey, call int32) (any, error) {
		return pageOf(key.Page, int(call)), nil
	})
	c := New(g.fetch, Options{StaleTime: time.Minute, Logger: discard})
	key := models.PostsKey(1)

	// A fetch is in flight when the invalidation arrives.
	go c.Fetch(context.Background(), key)
	<-g.started

	done := make(chan error, 1)
	go func() {
		done <- c.Invalidate(context.Background(), key)
	}()
	time.Sleep(20 * time.Millisecond)
	close(g.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("invalidate did not return")
	}

	// The in-flight fetch started before the invalidation, so a second one
	// had to run.
	assert.Equal(t, int32(2), g.calls.Load())
	entry, _ := c.Get(key)
	page, _ := entry.Page()
	assert.Equal(t, 2, page.Posts[0].ID)
	assert.False(t, entry.Stale)
}

func TestCache_FetchInFlightDoesNotUndoPatch(t *testing.T) {
	g := newGatedFetcher(func(key models.QueryKey, _ int32) (any, error) {
		// The server response was produced before the like.
		return pageOf(key.Page, 7), nil
	})
	c := New(g.fetch, Options{Logger: discard})
	key := models.PostsKey(1)
	c.Set(key, pageOf(1, 7))

	// StaleTime 0: the read starts a background refetch that blocks.
	_, err := c.Read(context.Background(), key)
	require.NoError(t, err)
	<-g.started

	err = c.Patch(context.Background(), key, PatchPosts(key.Shape(), UpdatePost(7, func(p *models.Post) {
		p.Likes = 1
		p.LikedByUser = true
	})))
	require.NoError(t, err)

	close(g.release)
	entry, err := c.Await(context.Background(), key)
	require.NoError(t, err)

	page, _ := entry.Page()
	assert.Equal(t, 1, page.Posts[0].Likes)
	assert.True(t, page.Posts[0].LikedByUser)
}

func TestCache_InvalidateRefetchesAfterPatch(t *testing.T) {
	g := newGatedFetcher(func(key models.QueryKey, call int32) (any, error) {
		return pageOf(key.Page, int(call)*10), nil
	})
	c := New(g.fetch, Options{StaleTime: time.Minute, Logger: discard})
	key := models.PostsKey(1)
	c.Set(key, pageOf(1, 7))

	done := make(chan error, 1)
	go func() {
		done <- c.Invalidate(context.Background(), key)
	}()
	<-g.started

	err := c.Patch(context.Background(), key, PatchPosts(key.Shape(), UpdatePost(7, func(p *models.Post) {
		p.Text = "edited"
	})))
	require.NoError(t, err)
	close(g.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("invalidate did not return")
	}

	// The first response may predate the edit, so it was dropped and the
	// key fetched again.
	assert.Equal(t, int32(2), g.calls.Load())
	entry, _ := c.Get(key)
	page, _ := entry.Page()
	assert.Equal(t, 20, page.Posts[0].ID)
	assert.False(t, entry.Stale)
}

func TestCache_InvalidateUnknownKey(t *testing.T) {
	var calls atomic.Int32
	c := New(func(context.Context, models.QueryKey) (any, error) {
		calls.Add(1)
		return pageOf(1), nil
	}, Options{Logger: discard})

	require.NoError(t, c.Invalidate(context.Background(), models.PostsKey(1)))
	assert.Equal(t, int32(0), calls.Load())
}

func TestCache_Patch(t *testing.T) {
	c := New(nil, Options{StaleTime: time.Minute, Logger: discard})
	key := models.PostsKey(1)

	err := c.Patch(context.Background(), key, func(old any) (any, error) { return old, nil })
	assert.ErrorIs(t, err, ErrNotCached)

	original := pageOf(1, 1, 2)
	c.Set(key, original)

	err = c.Patch(context.Background(), key, PatchPosts(key.Shape(), UpdatePost(2, func(p *models.Post) {
		p.Likes = 9
	})))
	require.NoError(t, err)

	entry, _ := c.Get(key)
	page, _ := entry.Page()
	assert.Equal(t, 9, page.Posts[1].Likes)
	assert.Equal(t, 0, original.Posts[1].Likes, "cached snapshot must not be modified in place")

	err = c.Patch(context.Background(), key, PatchPosts(key.Shape(), UpdatePost(42, func(*models.Post) {})))
	assert.ErrorIs(t, err, ErrPostNotFound)

	err = c.Patch(context.Background(), key, PatchPosts(models.ShapeProfile, UpdatePost(1, func(*models.Post) {})))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCache_Subscribe(t *testing.T) {
	c := New(nil, Options{Logger: discard})
	key := models.FollowingKey(2)

	var seen []models.QueryKey
	unsubscribe := c.Subscribe(func(e Entry) {
		seen = append(seen, e.Key)
	})

	c.Set(key, pageOf(2, 1))
	require.NoError(t, c.Patch(context.Background(), key, func(old any) (any, error) { return old, nil }))
	unsubscribe()
	c.Set(key, pageOf(2, 1))

	assert.Equal(t, []models.QueryKey{key, key}, seen)
}

type memoryStore struct {
	mu        sync.Mutex
	snapshots map[string]repository.Snapshot
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snapshots: make(map[string]repository.Snapshot)}
}

func (m *memoryStore) Save(_ context.Context, s repository.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.Key] = s
	return nil
}

func (m *memoryStore) LoadAll(context.Context) ([]repository.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, key)
	return nil
}

func TestCache_PersistAndHydrate(t *testing.T) {
	store := newMemoryStore()
	fetcher := func(_ context.Context, key models.QueryKey) (any, error) {
		if key.Kind == models.KindProfile {
			return &models.Profile{Username: key.Username, PostsData: *pageOf(0, 5)}, nil
		}
		return pageOf(0, 3), nil
	}

	first := New(fetcher, Options{StaleTime: time.Minute, Store: store, Logger: discard})
	_, err := first.Read(context.Background(), models.PostsKey(2))
	require.NoError(t, err)
	_, err = first.Read(context.Background(), models.ProfileKey("bob", 1))
	require.NoError(t, err)
	require.Len(t, store.snapshots, 2)

	store.snapshots["bogus"] = repository.Snapshot{Key: "bogus", Payload: []byte(`{}`)}
	payload, _ := json.Marshal(map[string]any{"posts": "not a list"})
	store.snapshots["following/1"] = repository.Snapshot{Key: "following/1", Payload: payload}

	second := New(fetcher, Options{StaleTime: time.Minute, Store: store, Logger: discard})
	loaded, err := second.Hydrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	entry, ok := second.Get(models.PostsKey(2))
	require.True(t, ok)
	assert.True(t, entry.Stale)
	page, ok := entry.Page()
	require.True(t, ok)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.Posts[0].ID)

	profileEntry, ok := second.Get(models.ProfileKey("bob", 1))
	require.True(t, ok)
	profile, ok := profileEntry.Profile()
	require.True(t, ok)
	assert.Equal(t, "bob", profile.Username)

	second.Remove(models.PostsKey(2))
	_, ok = store.snapshots["posts/2"]
	assert.False(t, ok)
}

func TestObserver_KeepsPreviousPageWhileLoading(t *testing.T) {
	g := newGatedFetcher(func(key models.QueryKey, _ int32) (any, error) {
		return pageOf(key.Page, key.Page*100), nil
	})
	c := New(g.fetch, Options{StaleTime: time.Minute, Logger: discard})
	c.Set(models.PostsKey(1), pageOf(1, 100))

	o := c.Observe(models.PostsKey(1))
	res := o.Result()
	require.True(t, res.HasData())
	assert.False(t, res.IsPreviousData)

	res = o.Navigate(context.Background(), models.PostsKey(2))
	<-g.started
	assert.True(t, res.IsPreviousData)
	assert.True(t, res.Fetching)
	assert.False(t, res.Loading())
	page, _ := res.Page()
	assert.Equal(t, 100, page.Posts[0].ID)

	close(g.release)
	res, err := o.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, res.IsPreviousData)
	page, _ = res.Page()
	assert.Equal(t, 200, page.Posts[0].ID)
	assert.Equal(t, models.PostsKey(2), o.Key())
}

func TestObserver_LoadWaitsForStaleRefetch(t *testing.T) {
	store := newMemoryStore()
	payload, err := json.Marshal(pageOf(1, 1))
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), repository.Snapshot{
		Key:       models.PostsKey(1).String(),
		Payload:   payload,
		UpdatedAt: time.Now().Add(-24 * time.Hour),
	}))

	c := New(func(_ context.Context, key models.QueryKey) (any, error) {
		return pageOf(key.Page, 999), nil
	}, Options{StaleTime: time.Minute, Store: store, Logger: discard})
	n, err := c.Hydrate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	o := c.Observe(models.PostsKey(1))
	res, err := o.Load(context.Background(), models.PostsKey(1))
	require.NoError(t, err)

	assert.False(t, res.Fetching)
	assert.False(t, res.Stale)
	page, ok := res.Page()
	require.True(t, ok)
	assert.Equal(t, 999, page.Posts[0].ID)
}

func TestObserver_LoadKeepsDataWhenRefetchFails(t *testing.T) {
	c := New(func(context.Context, models.QueryKey) (any, error) {
		return nil, errors.New("No response received from the server. Error: timeout")
	}, Options{Logger: discard})
	c.Set(models.PostsKey(1), pageOf(1, 1))

	o := c.Observe(models.PostsKey(1))
	res, err := o.Load(context.Background(), models.PostsKey(1))
	require.NoError(t, err)

	assert.False(t, res.Fetching)
	assert.Error(t, res.Err)
	page, _ := res.Page()
	assert.Equal(t, 1, page.Posts[0].ID)
}

func TestObserver_ErrorIsNotMaskedByPreviousData(t *testing.T) {
	c := New(func(_ context.Context, key models.QueryKey) (any, error) {
		return nil, errors.New("Server responded. Error: Request failed with status code 404")
	}, Options{StaleTime: time.Minute, Logger: discard})
	c.Set(models.PostsKey(1), pageOf(1, 1))

	o := c.Observe(models.PostsKey(1))
	o.Result()

	res, err := o.Load(context.Background(), models.PostsKey(99))
	require.Error(t, err)
	assert.False(t, res.IsPreviousData)
	assert.False(t, res.HasData())
	assert.Error(t, res.Err)
}
