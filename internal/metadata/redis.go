package metadata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore implements Store on Redis so multiple instances share one
// warm metadata cache. Values are JSON-encoded; entries whose decoded
// shape no longer matches what the caller expects are recomputed by
// Memoize, so mixed-version deployments degrade to redundant computation
// rather than wrong answers.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	ctx    context.Context
}

// NewRedisStore creates a Redis-backed store. A zero ttl means entries
// never expire (flush explicitly after schema changes).
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "criteria:meta:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, ctx: context.Background()}
}

func (s *RedisStore) Get(key string) (interface{}, bool) {
	raw, err := s.client.Get(s.ctx, s.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("metadata cache read failed, treating as miss")
		}
		return nil, false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

func (s *RedisStore) Set(key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		// Non-serializable values stay process-local only.
		return
	}
	if err := s.client.Set(s.ctx, s.prefix+key, raw, s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("metadata cache write failed")
	}
}

func (s *RedisStore) Delete(key string) {
	if err := s.client.Del(s.ctx, s.prefix+key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("metadata cache delete failed")
	}
}

func (s *RedisStore) Flush() {
	iter := s.client.Scan(s.ctx, 0, s.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(s.ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("metadata cache flush scan failed")
		return
	}
	if len(keys) > 0 {
		if err := s.client.Del(s.ctx, keys...).Err(); err != nil {
			log.Warn().Err(err).Msg("metadata cache flush failed")
		}
	}
}
