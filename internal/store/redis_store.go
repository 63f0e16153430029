package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over a *redis.Client. Compare-and-delete and
// compare-and-expire are implemented as Lua scripts so the compare and the
// mutation happen atomically on the server.
type RedisStore struct {
	client *redis.Client

	cmpDelScript    *redis.Script
	cmpExpireScript *redis.Script
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:          client,
		cmpDelScript:    redis.NewScript(cmpDelLua),
		cmpExpireScript: redis.NewScript(cmpExpireLua),
	}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, k string) ([]byte, error) {
	data, err := s.client.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, k string, v []byte, ttl time.Duration) error {
	return s.client.Set(ctx, k, v, ttl).Err()
}

func (s *RedisStore) SetNX(ctx context.Context, k string, v []byte, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, k, v, ttl).Result()
}

// cmpDelLua deletes KEYS[1] only if its current value equals ARGV[1].
const cmpDelLua = `
local cur = redis.call('GET', KEYS[1])
if (not cur) or (cur ~= ARGV[1]) then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`

func (s *RedisStore) CmpDel(ctx context.Context, k string, expected []byte) (bool, error) {
	ret, err := s.cmpDelScript.Run(ctx, s.client, []string{k}, expected).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return ret == 1, nil
}

// cmpExpireLua refreshes the TTL of KEYS[1] only if its current value equals
// ARGV[1]; ARGV[2] is the new TTL in milliseconds.
const cmpExpireLua = `
local cur = redis.call('GET', KEYS[1])
if (not cur) or (cur ~= ARGV[1]) then
  return 0
end
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`

func (s *RedisStore) CmpExpire(ctx context.Context, k string, expected []byte, ttl time.Duration) (bool, error) {
	ret, err := s.cmpExpireScript.Run(ctx, s.client, []string{k}, expected, ttl.Milliseconds()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return ret == 1, nil
}

func (s *RedisStore) Del(ctx context.Context, k string) error {
	return s.client.Del(ctx, k).Err()
}

func (s *RedisStore) RPush(ctx context.Context, k string, v []byte) error {
	return s.client.RPush(ctx, k, v).Err()
}

func (s *RedisStore) LPush(ctx context.Context, k string, v []byte) error {
	return s.client.LPush(ctx, k, v).Err()
}

func (s *RedisStore) RPop(ctx context.Context, k string) ([]byte, error) {
	data, err := s.client.RPop(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) LPop(ctx context.Context, k string) ([]byte, error) {
	data, err := s.client.LPop(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) BLPop(ctx context.Context, k string, timeout time.Duration) ([]byte, error) {
	res, err := s.client.BLPop(ctx, timeout, k).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	// BLPop returns [key, value].
	if len(res) < 2 {
		return nil, ErrTimeout
	}
	return []byte(res[1]), nil
}

func (s *RedisStore) Exists(ctx context.Context, k string) (bool, error) {
	count, err := s.client.Exists(ctx, k).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
