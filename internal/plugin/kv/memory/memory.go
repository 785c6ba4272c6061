package memory

import (
	"context"
	"strings"
	"sync"

	registrykv "github.com/campusfound/board-service/internal/registry/kv"
)

func init() {
	registrykv.Register(registrykv.Plugin{
		Name: "memory",
		Loader: func(ctx context.Context) (registrykv.Store, error) {
			return New(), nil
		},
	})
}

// New returns an empty in-process store. Contents are lost on restart; it is
// the default backend for development and tests.
func New() registrykv.Store {
	return &memStore{data: map[string][]byte{}}
}

type memStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.data[key] = append([]byte(nil), value...)
	s.mu.Unlock()
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	value, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, registrykv.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *memStore) GetByPrefix(_ context.Context, prefix string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var values [][]byte
	for key, value := range s.data {
		if strings.HasPrefix(key, prefix) {
			values = append(values, append([]byte(nil), value...))
		}
	}
	return values, nil
}

func (s *memStore) Swap(_ context.Context, key string, fn registrykv.SwapFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	next, err := fn(value, ok)
	if err != nil {
		return err
	}
	s.data[key] = append([]byte(nil), next...)
	return nil
}

func (s *memStore) Close() error {
	return nil
}
