package kv

import (
	"context"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by Get for keys that have never been set.
// A missing key is not a failure; callers decide whether it is.
var ErrKeyNotFound = errors.New("key not found")

// SwapFunc transforms the current value of a key into its next value.
// found is false when the key does not exist yet; value is nil in that case.
type SwapFunc func(value []byte, found bool) ([]byte, error)

// Store is the shared key-value persistence contract. Writes must be visible
// to subsequent reads (read-after-write); GetByPrefix returns values in
// unspecified order, so callers re-sort when order matters.
type Store interface {
	// Set upserts the value for key, overwriting any prior value.
	Set(ctx context.Context, key string, value []byte) error
	// Get returns the stored value, or ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetByPrefix returns the values of all keys starting with prefix.
	GetByPrefix(ctx context.Context, prefix string) ([][]byte, error)
	// Swap applies fn to the current value of key and stores the result.
	// The read-modify-write is atomic: memory holds a lock, sql runs a
	// transaction, redis retries an optimistic WATCH transaction.
	Swap(ctx context.Context, key string, fn SwapFunc) error
	// Close releases backend resources.
	Close() error
}

// Loader creates a Store from config carried in ctx.
type Loader func(ctx context.Context) (Store, error)

// Plugin represents a KV backend plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a KV backend plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered KV plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named KV plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown kv backend %q; valid: %v", name, Names())
}
