package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KeyCredentials is the Redis hash holding the sealed session fields.
const KeyCredentials = "pinsync:credentials"

// RedisStore keeps sealed secrets in a Redis hash.
type RedisStore struct {
	client *redis.Client
	sealer *Sealer
}

func NewRedisStore(client *redis.Client, sealer *Sealer) *RedisStore {
	return &RedisStore{client: client, sealer: sealer}
}

func (s *RedisStore) Save(ctx context.Context, key, value string) error {
	sealed, err := s.sealer.Seal(key, value)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, KeyCredentials, key, sealed).Err(); err != nil {
		return fmt.Errorf("failed to save credential %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (string, bool, error) {
	sealed, err := s.client.HGet(ctx, KeyCredentials, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to load credential %s: %w", key, err)
	}
	plain, err := s.sealer.Open(key, sealed)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, KeyCredentials, key).Err(); err != nil {
		return fmt.Errorf("failed to delete credential %s: %w", key, err)
	}
	return nil
}
