package storage

import (
	"context"
	"slices"
)

// Scoped namespaces keys under a per-visitor scope. Keys listed as shared
// bypass the scope so that every visitor sees the same value.
type Scoped struct {
	base   Storage
	scope  string
	shared []string
}

// NewScoped wraps base. With an empty scope every key passes through unchanged.
func NewScoped(base Storage, scope string, shared ...string) *Scoped {
	return &Scoped{base: base, scope: scope, shared: shared}
}

func (s *Scoped) key(key string) string {
	if s.scope == "" || slices.Contains(s.shared, key) {
		return key
	}
	return "visitor:" + s.scope + ":" + key
}

func (s *Scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.base.Get(ctx, s.key(key))
}

func (s *Scoped) Set(ctx context.Context, key, value string) error {
	return s.base.Set(ctx, s.key(key), value)
}

func (s *Scoped) Remove(ctx context.Context, key string) error {
	return s.base.Remove(ctx, s.key(key))
}
