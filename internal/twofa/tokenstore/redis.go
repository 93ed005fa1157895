package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

// putLua stores an entry, records it in the recency index and evicts the
// least recently used entries beyond capacity.
// KEYS[1] = index zset, KEYS[2] = entry key
// ARGV[1] = payload, ARGV[2] = ttl ms, ARGV[3] = now ms, ARGV[4] = capacity,
// ARGV[5] = entry key prefix, ARGV[6] = member
// Returns the number of evicted entries.
var putLua = redis.NewScript(`
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[6])

local over = redis.call('ZCARD', KEYS[1]) - tonumber(ARGV[4])
local evicted = 0
if over > 0 then
  local victims = redis.call('ZRANGE', KEYS[1], 0, over - 1)
  for _, m in ipairs(victims) do
    redis.call('DEL', ARGV[5] .. m)
    redis.call('ZREM', KEYS[1], m)
    evicted = evicted + 1
  end
end
return evicted
`)

// takeLua atomically reads and deletes an entry.
// KEYS[1] = index zset, KEYS[2] = entry key, ARGV[1] = member
var takeLua = redis.NewScript(`
local v = redis.call('GET', KEYS[2])
redis.call('DEL', KEYS[2])
redis.call('ZREM', KEYS[1], ARGV[1])
return v
`)

// sweepLua drops index members whose entry key has expired.
// KEYS[1] = index zset, ARGV[1] = entry key prefix
var sweepLua = redis.NewScript(`
local removed = 0
for _, m in ipairs(redis.call('ZRANGE', KEYS[1], 0, -1)) do
  if redis.call('EXISTS', ARGV[1] .. m) == 0 then
    redis.call('ZREM', KEYS[1], m)
    removed = removed + 1
  end
end
return removed
`)

// Redis is a Store shared between service instances. Entry keys are
// SHA-256 fingerprints of the bearer token so raw tokens never reach the
// cache. Expiry is delegated to redis PX; recency lives in a sorted set
// scored by last access.
type Redis[V any] struct {
	cfg    Config
	client redis.UniversalClient
	prefix string // "<prefix>:<name>:"
	now    func() time.Time

	evictions atomic.Uint64
}

func NewRedis[V any](client redis.UniversalClient, keyPrefix string, cfg Config, opts ...Option) (*Redis[V], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: nil redis client", ErrInvalidConfig)
	}
	if keyPrefix == "" {
		keyPrefix = "twofa"
	}
	o := buildOptions(opts)
	return &Redis[V]{
		cfg:    cfg,
		client: client,
		prefix: keyPrefix + ":" + cfg.Name + ":",
		now:    o.now,
	}, nil
}

func (r *Redis[V]) TTL() time.Duration { return r.cfg.TTL }

func (r *Redis[V]) indexKey() string { return r.prefix + "idx" }

func (r *Redis[V]) member(key string) string { return cryptox.FingerprintToken(key) }

func (r *Redis[V]) entryKey(member string) string { return r.prefix + "e:" + member }

func (r *Redis[V]) Put(ctx context.Context, key string, v V) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("tokenstore: encode: %w", err)
	}

	m := r.member(key)
	evicted, err := putLua.Run(ctx, r.client,
		[]string{r.indexKey(), r.entryKey(m)},
		payload,
		r.cfg.TTL.Milliseconds(),
		r.now().UnixMilli(),
		r.cfg.Capacity,
		r.prefix+"e:",
		m,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: put: %v", ErrUnavailable, err)
	}
	if evicted > 0 {
		r.evictions.Add(uint64(evicted))
	}
	return nil
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	m := r.member(key)

	raw, err := r.client.Get(ctx, r.entryKey(m)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired or never stored; keep the index honest.
		_ = r.client.ZRem(ctx, r.indexKey(), m).Err()
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("%w: get: %v", ErrUnavailable, err)
	}

	if err := r.client.ZAddXX(ctx, r.indexKey(), redis.Z{
		Score:  float64(r.now().UnixMilli()),
		Member: m,
	}).Err(); err != nil {
		return zero, false, fmt.Errorf("%w: touch: %v", ErrUnavailable, err)
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("tokenstore: decode: %w", err)
	}
	return v, true, nil
}

func (r *Redis[V]) Take(ctx context.Context, key string) (V, bool, error) {
	var zero V
	m := r.member(key)

	raw, err := takeLua.Run(ctx, r.client, []string{r.indexKey(), r.entryKey(m)}, m).Text()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("%w: take: %v", ErrUnavailable, err)
	}

	var v V
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return zero, false, fmt.Errorf("tokenstore: decode: %w", err)
	}
	return v, true, nil
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	m := r.member(key)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.entryKey(m))
		p.ZRem(ctx, r.indexKey(), m)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis[V]) List(ctx context.Context) ([]Entry[V], error) {
	members, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = r.entryKey(m)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}

	out := make([]Entry[V], 0, len(vals))
	for i, raw := range vals {
		s, ok := raw.(string)
		if !ok {
			continue // expired between ZRANGE and MGET
		}
		var v V
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("tokenstore: decode: %w", err)
		}
		out = append(out, Entry[V]{Key: members[i], Value: v})
	}
	return out, nil
}

// Stats counts indexed entries; expired entries not yet swept are included.
func (r *Redis[V]) Stats(ctx context.Context) (Stats, error) {
	n, err := r.client.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	return Stats{
		Name:      r.cfg.Name,
		Size:      int(n),
		Capacity:  r.cfg.Capacity,
		Evictions: r.evictions.Load(),
	}, nil
}

func (r *Redis[V]) SweepExpired(ctx context.Context) (int, error) {
	n, err := sweepLua.Run(ctx, r.client, []string{r.indexKey()}, r.prefix+"e:").Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

var _ Store[struct{}] = (*Redis[struct{}])(nil)
