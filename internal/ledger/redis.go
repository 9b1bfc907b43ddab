package ledger

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis stores one namespace as a single hash, so Clear is one DEL and
// SetIfAbsent maps onto HSETNX
type Redis[V any] struct {
	client *redis.Client
	key    string
}

var _ Ledger[string] = (*Redis[string])(nil)

const DefaultRedisPrefix = "relay"

// NewRedis creates a Ledger backed by the hash prefix:namespace
func NewRedis[V any](
	client *redis.Client, prefix, namespace string,
) *Redis[V] {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis[V]{
		client: client,
		key:    prefix + ":" + namespace,
	}
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V) error {
	if key == "" {
		return ErrEmptyKey
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.key, key, data).Err()
}

func (r *Redis[V]) SetIfAbsent(
	ctx context.Context, key string, value V,
) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	data, err := encode(value)
	if err != nil {
		return false, err
	}
	return r.client.HSetNX(ctx, r.key, key, data).Result()
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := r.client.HGet(ctx, r.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	v, err := decode[V](data)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	return r.client.HDel(ctx, r.key, key).Err()
}

func (r *Redis[V]) Dump(ctx context.Context) ([]Record[V], error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	res := make([]Record[V], 0, len(all))
	for k, data := range all {
		v, err := decode[V](data)
		if err != nil {
			return nil, err
		}
		res = append(res, Record[V]{Key: k, Value: v})
	}
	return res, nil
}

func (r *Redis[V]) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
