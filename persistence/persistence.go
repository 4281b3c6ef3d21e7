package persistence

import (
	"context"
	"fmt"
)

// KVS is the durable store for workflow snapshots. One entry per active
// workflow, keyed by its correlation id, overwritten on every save.
type KVS interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Connect(ctx context.Context) error
	Disconnect() error
}

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("error in storage layer: %s", e.Message)
}

type NotFoundError struct {
	Key string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("no data found for key %s", e.Key)
}
