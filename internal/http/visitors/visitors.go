// Package visitors keeps one session manager per browser visitor.
package visitors

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ecolearn/ecolearn/internal/http/authn"
	"github.com/ecolearn/ecolearn/internal/metrics"
	"github.com/ecolearn/ecolearn/internal/session"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/patrickmn/go-cache"
)

const DefaultTTL = 24 * time.Hour

// Factory builds the session manager of a visitor that is not cached.
type Factory func(visitorID string) (*session.Manager, error)

// Registry maps the visitor id held in the cookie session to a live manager.
// Managers idle for longer than the TTL are dropped and rebuilt from
// persisted state on the visitor's next request.
type Registry struct {
	sessions *scs.SessionManager
	factory  Factory
	cache    *cache.Cache

	mu sync.Mutex
}

func New(sessions *scs.SessionManager, ttl time.Duration, factory Factory) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{
		sessions: sessions,
		factory:  factory,
		cache:    cache.New(ttl, ttl/2),
	}
	// The janitor evicts idle managers without going through Forget.
	r.cache.OnEvicted(func(string, any) {
		metrics.ActiveVisitors.Set(float64(r.cache.ItemCount()))
	})
	return r
}

// Manager implements authn.SessionSource.
func (r *Registry) Manager(c *echo.Context) (*session.Manager, error) {
	return r.ForContext(c.Request().Context())
}

// ForContext returns the manager of the visitor whose cookie session is loaded
// in ctx, assigning a visitor id on first sight. A new manager starts its
// bootstrap in the background.
func (r *Registry) ForContext(ctx context.Context) (*session.Manager, error) {
	if r.sessions == nil || r.factory == nil {
		return nil, errors.New("visitor registry not configured")
	}

	id := r.sessions.GetString(ctx, authn.SessionKeyVisitorID)
	if id == "" {
		id = uuid.NewString()
		r.sessions.Put(ctx, authn.SessionKeyVisitorID, id)
	}
	return r.Get(id)
}

// Get returns the manager for visitor id, creating it when absent.
func (r *Registry) Get(id string) (*session.Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache.Get(id); ok {
		m := cached.(*session.Manager)
		r.cache.SetDefault(id, m)
		return m, nil
	}

	m, err := r.factory(id)
	if err != nil {
		return nil, err
	}
	go m.Bootstrap(context.Background())

	r.cache.SetDefault(id, m)
	metrics.ActiveVisitors.Set(float64(r.cache.ItemCount()))
	return m, nil
}

// Forget detaches the visitor whose cookie session is loaded in ctx. Its
// cached manager is dropped and the next request is assigned a fresh visitor
// id. The shared directory is untouched.
func (r *Registry) Forget(ctx context.Context) {
	if r.sessions == nil {
		return
	}
	id := r.sessions.PopString(ctx, authn.SessionKeyVisitorID)
	if id == "" {
		return
	}
	r.cache.Delete(id)
}

// Len reports the number of cached managers.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
