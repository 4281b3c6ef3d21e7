package inmem

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pispworks/thirdparty-adapter/persistence"
)

var _ persistence.KVS = new(inMemKVS)

// inMemKVS backs tests and single node dev deployments.
type inMemKVS struct {
	cache *gocache.Cache
}

func NewInMemKVS() *inMemKVS {
	return &inMemKVS{
		cache: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
	}
}

func (m *inMemKVS) Get(ctx context.Context, key string) ([]byte, error) {
	value, found := m.cache.Get(key)
	if !found {
		return nil, persistence.NotFoundError{Key: key}
	}
	return value.([]byte), nil
}

func (m *inMemKVS) Set(ctx context.Context, key string, value []byte) error {
	m.cache.Set(key, value, gocache.NoExpiration)
	return nil
}

func (m *inMemKVS) Exists(ctx context.Context, key string) (bool, error) {
	_, found := m.cache.Get(key)
	return found, nil
}

func (m *inMemKVS) Connect(ctx context.Context) error {
	return nil
}

func (m *inMemKVS) Disconnect() error {
	return nil
}
