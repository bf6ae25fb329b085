package replay

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements IDStorer over a Redis hash, so a fleet of
// clients behind the same session (or a single client restarted across
// deploys) shares replay progress instead of each holding its own
// MapStorage.
//
// Grounded on the Domain Stack's wiring of github.com/redis/go-redis/v9
// as the distributed alternative to the teacher's in-memory-only
// MapStorage.
type RedisStore struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

// NewRedisStore builds a RedisStore that keeps its replay ids in the
// Redis hash named key. ctx bounds every Redis call this store makes;
// pass context.Background() for a store with no deadline of its own.
func NewRedisStore(ctx context.Context, client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key, ctx: ctx}
}

// Set implements IDStorer.
func (s *RedisStore) Set(channel string, replayID int) {
	s.client.HSet(s.ctx, s.key, channel, replayID)
}

// Get implements IDStorer.
func (s *RedisStore) Get(channel string) (int, bool) {
	val, err := s.client.HGet(s.ctx, s.key, channel).Result()
	if err != nil {
		return 0, false
	}
	replayID, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return replayID, true
}

// Delete implements IDStorer.
func (s *RedisStore) Delete(channel string) {
	s.client.HDel(s.ctx, s.key, channel)
}

// AsMap implements IDStorer.
func (s *RedisStore) AsMap() map[string]int {
	raw, err := s.client.HGetAll(s.ctx, s.key).Result()
	if err != nil {
		return map[string]int{}
	}
	out := make(map[string]int, len(raw))
	for channel, val := range raw {
		if replayID, err := strconv.Atoi(val); err == nil {
			out[channel] = replayID
		}
	}
	return out
}
