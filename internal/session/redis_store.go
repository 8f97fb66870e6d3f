package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares session cookies between scraper instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:cookies:",
	}
}

func (rs *RedisStore) Load(ctx context.Context, domain string) ([]Cookie, error) {
	data, err := rs.client.Get(ctx, rs.prefix+domain).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies for %s: %w", domain, err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to decode cookies for %s: %w", domain, err)
	}

	valid := cookies[:0]
	for _, c := range cookies {
		if expired(c) {
			continue
		}
		valid = append(valid, c)
	}
	return valid, nil
}

func (rs *RedisStore) Save(ctx context.Context, domain string, cookies []Cookie) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to encode cookies for %s: %w", domain, err)
	}

	if err := rs.client.Set(ctx, rs.prefix+domain, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save cookies for %s: %w", domain, err)
	}
	return nil
}
