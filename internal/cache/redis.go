package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "telesumm:summary:v2:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis shares cached summaries between processes. Entries are stored as
// JSON so any process can rebuild the result bookkeeping.
type Redis struct {
	client *redis.Client
}

func NewRedis(cfg RedisConfig) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, nil
	}

	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get summary: %w", err)
	}

	var entry Entry
	if err = json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode summary: %w", err)
	}
	if entry.Summary == "" {
		return Entry{}, false, nil
	}

	return entry, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	if key == "" || entry.Summary == "" || ttl <= 0 {
		return nil
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	if err = r.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set summary: %w", err)
	}

	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
