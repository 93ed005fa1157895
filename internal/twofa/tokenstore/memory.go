package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is an in-process Store backed by an LRU list. A single mutex
// guards every operation, which is what makes Take atomic.
type Memory[V any] struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	lru       *simplelru.LRU[string, entry[V]]
	evictions uint64
}

func NewMemory[V any](cfg Config, opts ...Option) (*Memory[V], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	l, err := simplelru.NewLRU[string, entry[V]](cfg.Capacity, nil)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Memory[V]{cfg: cfg, now: o.now, lru: l}, nil
}

func (m *Memory[V]) TTL() time.Duration { return m.cfg.TTL }

func (m *Memory[V]) Put(_ context.Context, key string, v V) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if evicted := m.lru.Add(key, entry[V]{value: v, expiresAt: m.now().Add(m.cfg.TTL)}); evicted {
		m.evictions++
	}
	return nil
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.lru.Get(key)
	if !ok {
		return zero, false, nil
	}
	if m.expired(e) {
		m.lru.Remove(key)
		return zero, false, nil
	}
	return e.value, true, nil
}

func (m *Memory[V]) Take(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.lru.Peek(key)
	if !ok {
		return zero, false, nil
	}
	m.lru.Remove(key)
	if m.expired(e) {
		return zero, false, nil
	}
	return e.value, true, nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lru.Remove(key)
	return nil
}

func (m *Memory[V]) List(_ context.Context) ([]Entry[V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry[V], 0, m.lru.Len())
	for _, k := range m.lru.Keys() {
		e, ok := m.lru.Peek(k)
		if !ok || m.expired(e) {
			continue
		}
		out = append(out, Entry[V]{Key: cryptox.FingerprintToken(k), Value: e.value})
	}
	return out, nil
}

func (m *Memory[V]) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		Name:      m.cfg.Name,
		Size:      m.lru.Len(),
		Capacity:  m.cfg.Capacity,
		Evictions: m.evictions,
	}, nil
}

func (m *Memory[V]) SweepExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for _, k := range m.lru.Keys() {
		if e, ok := m.lru.Peek(k); ok && m.expired(e) {
			m.lru.Remove(k)
			n++
		}
	}
	return n, nil
}

func (m *Memory[V]) expired(e entry[V]) bool {
	return !m.now().Before(e.expiresAt)
}

var _ Store[struct{}] = (*Memory[struct{}])(nil)
