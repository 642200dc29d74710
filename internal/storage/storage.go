// Package storage persists the client-side session state: the local
// directory, the session snapshot and the bearer token.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Persisted keys.
const (
	KeyDirectory = "ecolearn_users"
	KeySnapshot  = "ecolearn_user"
	KeyToken     = "ecolearn_token"
)

// Storage is a string-valued key/value store. Last write wins.
type Storage interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Path        string
	RedisURL    string
	RedisPrefix string
	DatabaseURL string
}

// Open builds the backend named by opts.Backend. The returned close function
// releases any connections held by the backend and is never nil.
func Open(ctx context.Context, opts Options) (Storage, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendMemory:
		return NewMemory(), noop, nil
	case "", BackendFile:
		if strings.TrimSpace(opts.Path) == "" {
			return nil, noop, errors.New("storage path is required for the file backend")
		}
		return NewFile(opts.Path), noop, nil
	case BackendRedis:
		if strings.TrimSpace(opts.RedisURL) == "" {
			return nil, noop, errors.New("REDIS_URL is required for the redis backend")
		}
		s, err := NewRedisFromURL(ctx, opts.RedisURL, opts.RedisPrefix)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendPostgres:
		if strings.TrimSpace(opts.DatabaseURL) == "" {
			return nil, noop, errors.New("DATABASE_URL is required for the postgres backend")
		}
		s, err := NewPostgresFromURL(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return s, func() error { s.Close(); return nil }, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
