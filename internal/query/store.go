package query

import (
	"context"
	"encoding/json"
	"fmt"

	"network/internal/models"
	"network/internal/repository"
)

// Store persists cache slots between runs.
type Store interface {
	Save(ctx context.Context, snapshot repository.Snapshot) error
	LoadAll(ctx context.Context) ([]repository.Snapshot, error)
	Delete(ctx context.Context, key string) error
}

func (c *Cache) persist(ctx context.Context, e Entry) {
	if c.store == nil || e.Data == nil {
		return
	}

	payload, err := json.Marshal(e.Data)
	if err != nil {
		c.logger.Warn("snapshot encode failed", "key", e.Key.String(), "error", err)
		return
	}

	snapshot := repository.Snapshot{
		Key:       e.Key.String(),
		Payload:   payload,
		UpdatedAt: e.UpdatedAt,
	}
	if err := c.store.Save(context.WithoutCancel(ctx), snapshot); err != nil {
		c.logger.Warn("snapshot save failed", "key", e.Key.String(), "error", err)
	}
}

// Hydrate loads persisted snapshots into the cache. Hydrated slots count as
// stale, so the first read shows them and refetches in the background.
// Snapshots that no longer decode are skipped.
func (c *Cache) Hydrate(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}

	snapshots, err := c.store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("hydrate cache: %w", err)
	}

	loaded := 0
	for _, s := range snapshots {
		key, err := models.ParseQueryKey(s.Key)
		if err != nil {
			c.logger.Warn("skipping snapshot", "key", s.Key, "error", err)
			continue
		}
		data, err := models.DecodeFor(key, s.Payload)
		if err != nil {
			c.logger.Warn("skipping snapshot", "key", s.Key, "error", err)
			continue
		}

		c.mu.Lock()
		e := c.slot(key)
		if e.data == nil {
			e.data = data
			e.updatedAt = s.UpdatedAt
			e.gen = e.fetchedGen + 1
			loaded++
		}
		c.mu.Unlock()
	}

	c.logger.Debug("cache hydrated", "snapshots", len(snapshots), "loaded", loaded)
	return loaded, nil
}
