package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "profile:"

type RedisProfileCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisProfileCache(client redis.UniversalClient, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{
		client: client,
		ttl:    safeTTL(ttl),
	}
}

func (r *RedisProfileCache) Get(ctx context.Context, id uuid.UUID) (model.PublicUser, error) {
	raw, err := r.client.Get(ctx, key(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return model.PublicUser{}, customErrors.ErrNotFound
	case err != nil:
		return model.PublicUser{}, customErrors.WrapInternal(err, "profile cache get")
	}

	var u model.PublicUser
	if err := json.Unmarshal(raw, &u); err != nil {
		// битая запись: удаляем и считаем промахом
		_ = r.client.Del(ctx, key(id)).Err()
		return model.PublicUser{}, customErrors.ErrNotFound
	}
	return u, nil
}

func (r *RedisProfileCache) Set(ctx context.Context, u model.PublicUser) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return customErrors.WrapInternal(err, "profile cache encode")
	}
	return r.client.Set(ctx, key(u.ID), raw, r.ttl).Err()
}

func (r *RedisProfileCache) Delete(ctx context.Context, id uuid.UUID) error {
	return r.client.Del(ctx, key(id)).Err()
}

func (r *RedisProfileCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func safeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 5 * time.Minute
	}
	return ttl
}
