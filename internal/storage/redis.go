package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ath-watcher/internal/config"
)

// saveIfGreaterScript compares decimal strings by length then lexically so
// values above 2^53 survive Lua's float numbers. Corrupt values are overwritten.
var saveIfGreaterScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
local new = ARGV[1]
if cur and string.match(cur, '^%d+$') then
  cur = string.gsub(cur, '^0+(%d)', '%1')
  if #cur > #new or (#cur == #new and cur >= new) then
    return 0
  end
end
redis.call('SET', KEYS[1], new)
return 1
`)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("store.redis.addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisStore keeps the ATH under a single Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisStore builds a store for asset under prefix.
func NewRedisStore(client *redis.Client, prefix, asset string, logger zerolog.Logger) *RedisStore {
	if prefix == "" {
		prefix = "athwatcher"
	}
	key := fmt.Sprintf("%s:ath:%s", prefix, asset)
	return &RedisStore{
		client: client,
		key:    key,
		logger: logger.With().Str("component", "redis_store").Str("key", key).Logger(),
	}
}

// Key returns the Redis key holding the record.
func (s *RedisStore) Key() string { return s.key }

// Close closes the Redis connection.
func (s *RedisStore) Close() {
	if s == nil || s.client == nil {
		return
	}
	_ = s.client.Close()
}

// Load returns the stored ATH, or 0 when the key is missing or unreadable.
func (s *RedisStore) Load(ctx context.Context) uint64 {
	if s == nil || s.client == nil {
		return 0
	}
	raw, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("load ath failed; baseline 0")
		}
		return 0
	}
	v, err := parseValue(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("raw", raw).Msg("stored ath unparsable; baseline 0")
		return 0
	}
	return v
}

// Save sets the key to value atomically when value exceeds the stored record.
func (s *RedisStore) Save(ctx context.Context, value uint64) error {
	if s == nil || s.client == nil {
		return ErrNotConfigured
	}
	stored, err := saveIfGreaterScript.Run(ctx, s.client, []string{s.key}, formatValue(value)).Int()
	if err != nil {
		return fmt.Errorf("save ath: %w", err)
	}
	if stored == 0 {
		return ErrNotAdvanced
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
