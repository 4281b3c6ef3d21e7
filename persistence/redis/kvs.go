package redis

import (
	"context"
	"fmt"
	"strings"

	rd "github.com/go-redis/redis/v9"
	"github.com/pispworks/thirdparty-adapter/logger"
	"github.com/pispworks/thirdparty-adapter/persistence"
	"go.uber.org/zap"
)

type Config struct {
	Addrs     []string
	Namespace string
}

var _ persistence.KVS = new(redisKVS)

type redisKVS struct {
	redisClient rd.UniversalClient
	namespace   string
}

func NewRedisKVS(conf Config) *redisKVS {
	redisClient := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs: conf.Addrs,
	})
	return &redisKVS{
		redisClient: redisClient,
		namespace:   conf.Namespace,
	}
}

func (r *redisKVS) getNamespaceKey(args ...string) string {
	return fmt.Sprintf("%s:%s", r.namespace, strings.Join(args, ":"))
}

func (r *redisKVS) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := r.redisClient.Get(ctx, r.getNamespaceKey(key)).Result()
	if err == rd.Nil {
		return nil, persistence.NotFoundError{Key: key}
	}
	if err != nil {
		logger.Error("error in getting value", zap.String("key", key), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return []byte(res), nil
}

func (r *redisKVS) Set(ctx context.Context, key string, value []byte) error {
	if err := r.redisClient.Set(ctx, r.getNamespaceKey(key), value, 0).Err(); err != nil {
		logger.Error("error in saving value", zap.String("key", key), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisKVS) Exists(ctx context.Context, key string) (bool, error) {
	res, err := r.redisClient.Exists(ctx, r.getNamespaceKey(key)).Result()
	if err != nil {
		return false, persistence.StorageLayerError{Message: err.Error()}
	}
	return res > 0, nil
}

func (r *redisKVS) Connect(ctx context.Context) error {
	return r.redisClient.Ping(ctx).Err()
}

func (r *redisKVS) Disconnect() error {
	return r.redisClient.Close()
}
