package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/campusfound/board-service/internal/config"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	goredis "github.com/redis/go-redis/v9"
)

// swapRetries bounds the optimistic WATCH/MULTI loop in Swap.
const swapRetries = 16

func init() {
	registrykv.Register(registrykv.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

func load(ctx context.Context) (registrykv.Store, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.KVURL == "" {
		return nil, fmt.Errorf("redis kv: BOARD_SERVICE_KV_URL is required")
	}
	return LoadFromURL(ctx, cfg.KVURL)
}

// LoadFromURL creates a Store from a Redis-compatible URL.
func LoadFromURL(ctx context.Context, redisURL string) (registrykv.Store, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis kv: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis kv: ping failed: %w", err)
	}
	return &redisStore{client: client}, nil
}

type redisStore struct {
	client *goredis.Client
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, registrykv.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *redisStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, escapeMatch(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	raw, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	values := make([][]byte, 0, len(raw))
	for _, v := range raw {
		// Keys deleted between SCAN and MGET come back nil.
		if str, ok := v.(string); ok {
			values = append(values, []byte(str))
		}
	}
	return values, nil
}

// Swap runs fn under an optimistic WATCH transaction so concurrent swaps of
// the same key retry instead of losing updates.
func (s *redisStore) Swap(ctx context.Context, key string, fn registrykv.SwapFunc) error {
	txn := func(tx *goredis.Tx) error {
		value, err := tx.Get(ctx, key).Bytes()
		found := true
		if err == goredis.Nil {
			value, found = nil, false
		} else if err != nil {
			return err
		}
		next, err := fn(value, found)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < swapRetries; i++ {
		err = s.client.Watch(ctx, txn, key)
		if err != goredis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("redis kv: swap of %q did not converge: %w", key, err)
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

// escapeMatch escapes glob metacharacters so the prefix is matched literally
// by SCAN MATCH.
func escapeMatch(prefix string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`, `\`, `\\`)
	return r.Replace(prefix)
}
