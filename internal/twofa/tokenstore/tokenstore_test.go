package tokenstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/twofa/internal/twofa/tokenstore"
	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID string `json:"id"`
	N  int    `json:"n"`
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store   tokenstore.Store[item]
	advance func(time.Duration)
}

type backend struct {
	name string
	make func(t *testing.T, cfg tokenstore.Config) harness
}

func backends() []backend {
	return []backend{
		{
			name: "memory",
			make: func(t *testing.T, cfg tokenstore.Config) harness {
				clk := &clock{now: time.Unix(1_700_000_000, 0)}
				s, err := tokenstore.NewMemory[item](cfg, tokenstore.WithClock(clk.Now))
				require.NoError(t, err)
				return harness{store: s, advance: clk.add}
			},
		},
		{
			name: "redis",
			make: func(t *testing.T, cfg tokenstore.Config) harness {
				mr := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = client.Close() })

				clk := &clock{now: time.Unix(1_700_000_000, 0)}
				s, err := tokenstore.NewRedis[item](client, "test", cfg, tokenstore.WithClock(clk.Now))
				require.NoError(t, err)
				return harness{store: s, advance: func(d time.Duration) {
					clk.add(d)
					mr.FastForward(d)
				}}
			},
		},
	}
}

var testConfig = tokenstore.Config{Name: "t", Capacity: 3, TTL: 5 * time.Minute}

func TestStore(t *testing.T) {
	ctx := context.Background()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Run("put get overwrite", func(t *testing.T) {
				h := b.make(t, testConfig)
				require.NoError(t, h.store.Put(ctx, "k", item{ID: "a", N: 1}))

				v, ok, err := h.store.Get(ctx, "k")
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, item{ID: "a", N: 1}, v)

				require.NoError(t, h.store.Put(ctx, "k", item{ID: "a", N: 2}))
				v, ok, err = h.store.Get(ctx, "k")
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, 2, v.N)
			})

			t.Run("get after delete is absent", func(t *testing.T) {
				h := b.make(t, testConfig)
				require.NoError(t, h.store.Put(ctx, "k", item{ID: "a"}))
				require.NoError(t, h.store.Delete(ctx, "k"))
				require.NoError(t, h.store.Delete(ctx, "k")) // idempotent
				require.NoError(t, h.store.Delete(ctx, "never"))

				_, ok, err := h.store.Get(ctx, "k")
				require.NoError(t, err)
				require.False(t, ok)
			})

			t.Run("get after ttl is absent", func(t *testing.T) {
				h := b.make(t, testConfig)
				require.NoError(t, h.store.Put(ctx, "k", item{ID: "a"}))

				h.advance(testConfig.TTL - time.Second)
				_, ok, err := h.store.Get(ctx, "k")
				require.NoError(t, err)
				require.True(t, ok)

				h.advance(2 * time.Second)
				_, ok, err = h.store.Get(ctx, "k")
				require.NoError(t, err)
				require.False(t, ok)

				_, ok, err = h.store.Take(ctx, "k")
				require.NoError(t, err)
				require.False(t, ok)
			})

			t.Run("take is single use", func(t *testing.T) {
				h := b.make(t, testConfig)
				require.NoError(t, h.store.Put(ctx, "k", item{ID: "a"}))

				v, ok, err := h.store.Take(ctx, "k")
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, "a", v.ID)

				_, ok, err = h.store.Take(ctx, "k")
				require.NoError(t, err)
				require.False(t, ok)

				_, ok, err = h.store.Get(ctx, "k")
				require.NoError(t, err)
				require.False(t, ok)
			})

			t.Run("concurrent take succeeds once", func(t *testing.T) {
				h := b.make(t, testConfig)
				require.NoError(t, h.store.Put(ctx, "k", item{ID: "a"}))

				var wins atomic.Int32
				var wg sync.WaitGroup
				for range 16 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if _, ok, err := h.store.Take(ctx, "k"); err == nil && ok {
							wins.Add(1)
						}
					}()
				}
				wg.Wait()
				require.Equal(t, int32(1), wins.Load())
			})

			t.Run("evicts least recently used", func(t *testing.T) {
				h := b.make(t, testConfig)
				for _, k := range []string{"a", "b", "c"} {
					require.NoError(t, h.store.Put(ctx, k, item{ID: k}))
					h.advance(time.Millisecond)
				}

				// touch a so b becomes the oldest
				_, ok, err := h.store.Get(ctx, "a")
				require.NoError(t, err)
				require.True(t, ok)
				h.advance(time.Millisecond)

				require.NoError(t, h.store.Put(ctx, "d", item{ID: "d"}))

				_, ok, err = h.store.Get(ctx, "b")
				require.NoError(t, err)
				require.False(t, ok)
				for _, k := range []string{"a", "c", "d"} {
					_, ok, err := h.store.Get(ctx, k)
					require.NoError(t, err)
					require.True(t, ok, k)
				}

				stats, err := h.store.Stats(ctx)
				require.NoError(t, err)
				require.Equal(t, 3, stats.Size)
				require.Equal(t, 3, stats.Capacity)
				require.Equal(t, uint64(1), stats.Evictions)
			})

			t.Run("list and sweep", func(t *testing.T) {
				h := b.make(t, testConfig)
				require.NoError(t, h.store.Put(ctx, "old", item{ID: "old"}))
				h.advance(3 * time.Minute)
				require.NoError(t, h.store.Put(ctx, "new", item{ID: "new"}))
				h.advance(3 * time.Minute)

				live, err := h.store.List(ctx)
				require.NoError(t, err)
				require.Equal(t, []tokenstore.Entry[item]{
					{Key: cryptox.FingerprintToken("new"), Value: item{ID: "new"}},
				}, live)

				n, err := h.store.SweepExpired(ctx)
				require.NoError(t, err)
				require.Equal(t, 1, n)

				stats, err := h.store.Stats(ctx)
				require.NoError(t, err)
				require.Equal(t, 1, stats.Size)
				require.Equal(t, "t", stats.Name)
			})
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	_, err := tokenstore.NewMemory[item](tokenstore.Config{Name: "x", Capacity: 0, TTL: time.Minute})
	require.ErrorIs(t, err, tokenstore.ErrInvalidConfig)

	_, err = tokenstore.NewRedis[item](nil, "", tokenstore.TempLoginConfig)
	require.ErrorIs(t, err, tokenstore.ErrInvalidConfig)
}

func TestRedisKeysAreFingerprinted(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, err := tokenstore.NewRedis[item](client, "twofa", tokenstore.SetupConfig)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "raw-bearer-token", item{ID: "a"}))

	for _, k := range mr.Keys() {
		require.NotContains(t, k, "raw-bearer-token")
	}
	require.Len(t, mr.Keys(), 2) // entry + index
}
