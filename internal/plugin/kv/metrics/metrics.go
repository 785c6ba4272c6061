package metrics

import (
	"context"
	"time"

	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	"github.com/campusfound/board-service/internal/security"
)

// Wrap returns a Store that records StoreLatency for every operation.
func Wrap(inner registrykv.Store) registrykv.Store {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner registrykv.Store
}

func observe(op string, start time.Time) {
	if security.StoreLatency != nil {
		security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (m *metricsStore) Set(ctx context.Context, key string, value []byte) error {
	defer observe("set", time.Now())
	return m.inner.Set(ctx, key, value)
}

func (m *metricsStore) Get(ctx context.Context, key string) ([]byte, error) {
	defer observe("get", time.Now())
	return m.inner.Get(ctx, key)
}

func (m *metricsStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	defer observe("get_by_prefix", time.Now())
	return m.inner.GetByPrefix(ctx, prefix)
}

func (m *metricsStore) Swap(ctx context.Context, key string, fn registrykv.SwapFunc) error {
	defer observe("swap", time.Now())
	return m.inner.Swap(ctx, key, fn)
}

func (m *metricsStore) Close() error {
	return m.inner.Close()
}
