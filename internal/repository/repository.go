package repository

import (
	"context"
	"errors"
	"time"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is one persisted query cache slot.
type Snapshot struct {
	Key       string    `json:"key" db:"query_key"`
	Payload   []byte    `json:"payload" db:"payload"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type SnapshotRepository interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context, key string) (*Snapshot, error)
	LoadAll(ctx context.Context) ([]Snapshot, error)
	Delete(ctx context.Context, key string) error
}
