// Package session holds the client-side authentication state machine.
//
// A Manager starts in StateResolving. Bootstrap moves it to StateAuthenticated
// or StateAnonymous; Login and Register replace the identity on success and
// Logout returns it to StateAnonymous. Every source of identity is a Resolver
// tried in a fixed order, and failures of a source are never surfaced beyond
// the boolean result of the operation.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/metrics"
	"github.com/ecolearn/ecolearn/internal/storage"
)

type State int

const (
	StateResolving State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// View is a consistent read of the manager state.
type View struct {
	State State
	// Identity is the zero value unless State is StateAuthenticated.
	Identity  auth.Identity
	Resolving bool
}

func (v View) Authenticated() bool {
	return v.State == StateAuthenticated
}

type Options struct {
	Storage storage.Storage
	// Directory enables the local fallback. Leave nil outside demo mode.
	Directory LocalDirectory
	// Remote enables the auth backend resolvers.
	Remote RemoteClient
	Logger *slog.Logger

	// Explicit chains replace the defaults derived from Remote and Directory.
	BootstrapResolvers []Resolver
	LoginResolvers     []Resolver
	RegisterResolvers  []Resolver
}

type Manager struct {
	store     storage.Storage
	directory LocalDirectory
	logger    *slog.Logger

	bootstrapChain []Resolver
	loginChain     []Resolver
	registerChain  []Resolver

	mu        sync.RWMutex
	state     State
	identity  auth.Identity
	resolving bool

	once     sync.Once
	seedOnce sync.Once
	done     chan struct{}
}

// New creates a manager in StateResolving. Call Bootstrap to resolve it.
func New(opts Options) (*Manager, error) {
	if opts.Storage == nil {
		return nil, errors.New("session storage is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		store:          opts.Storage,
		directory:      opts.Directory,
		logger:         logger,
		bootstrapChain: opts.BootstrapResolvers,
		loginChain:     opts.LoginResolvers,
		registerChain:  opts.RegisterResolvers,
		state:          StateResolving,
		resolving:      true,
		done:           make(chan struct{}),
	}

	if m.bootstrapChain == nil {
		if opts.Remote != nil {
			m.bootstrapChain = append(m.bootstrapChain, RemoteProfile{Client: opts.Remote})
		}
		m.bootstrapChain = append(m.bootstrapChain, Snapshot{Store: opts.Storage})
	}
	if m.loginChain == nil {
		if opts.Remote != nil {
			m.loginChain = append(m.loginChain, RemoteLogin{Client: opts.Remote})
		}
		if opts.Directory != nil {
			m.loginChain = append(m.loginChain, DirectoryLogin{Directory: opts.Directory})
		}
	}
	if m.registerChain == nil {
		if opts.Remote != nil {
			m.registerChain = append(m.registerChain, RemoteRegister{Client: opts.Remote})
		}
		if opts.Directory != nil {
			m.registerChain = append(m.registerChain, DirectoryRegister{Directory: opts.Directory})
		}
	}
	return m, nil
}

// View returns the current state.
func (m *Manager) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return View{State: m.state, Identity: m.identity, Resolving: m.resolving}
}

// Done is closed once Bootstrap has finished.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until Bootstrap has finished or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Bootstrap seeds the local directory and resolves the initial identity. It
// runs once per manager; later calls block until the first one has finished.
// It never fails: when no resolver succeeds the manager becomes anonymous.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.once.Do(func() {
		defer close(m.done)
		m.bootstrap(ctx)
	})
}

func (m *Manager) bootstrap(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.resolving = false
		if m.state == StateResolving {
			m.state = StateAnonymous
		}
		m.mu.Unlock()
	}()

	m.seedDirectory(ctx)

	token, _, err := m.store.Get(ctx, storage.KeyToken)
	if err != nil {
		m.logger.Warn("read bearer token failed", "error", err)
		token = ""
	}

	res, ok := m.resolve(ctx, m.bootstrapChain, Request{Operation: OpBootstrap, Token: token})
	if !ok {
		metrics.SessionOperationsTotal.WithLabelValues(string(OpBootstrap), "anonymous").Inc()
		return
	}

	m.mu.Lock()
	adopt := m.state == StateResolving
	if adopt {
		m.state = StateAuthenticated
		m.identity = res.Identity
	}
	m.mu.Unlock()

	// A login or logout that completed while bootstrap was in flight wins.
	if !adopt {
		return
	}
	if res.Persist {
		m.writeSnapshot(ctx, res.Identity)
	}
	metrics.SessionOperationsTotal.WithLabelValues(string(OpBootstrap), "authenticated").Inc()
}

// Login resolves credentials through the login chain and reports whether an
// identity was adopted. A failed login leaves the state unchanged.
func (m *Manager) Login(ctx context.Context, email, credential string) bool {
	return m.establish(ctx, m.loginChain, Request{Operation: OpLogin, Email: email, Credential: credential})
}

// Register creates an account through the register chain and reports whether
// an identity was adopted.
func (m *Manager) Register(ctx context.Context, name, email, credential string) bool {
	return m.establish(ctx, m.registerChain, Request{Operation: OpRegister, Name: name, Email: email, Credential: credential})
}

// seedDirectory runs the local directory seed at most once per manager, so a
// login racing bootstrap still sees the demo accounts.
func (m *Manager) seedDirectory(ctx context.Context) {
	if m.directory == nil {
		return
	}
	m.seedOnce.Do(func() {
		if changed, err := m.directory.Seed(ctx); err != nil {
			m.logger.Warn("local directory seed failed", "error", err)
		} else if changed {
			m.logger.Debug("local directory seeded")
		}
	})
}

func (m *Manager) establish(ctx context.Context, chain []Resolver, req Request) bool {
	m.seedDirectory(ctx)

	res, ok := m.resolve(ctx, chain, req)
	if !ok {
		metrics.SessionOperationsTotal.WithLabelValues(string(req.Operation), "failure").Inc()
		return false
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.identity = res.Identity
	m.mu.Unlock()

	m.writeSnapshot(ctx, res.Identity)
	if res.Token != "" {
		if err := m.store.Set(ctx, storage.KeyToken, res.Token); err != nil {
			m.logger.Warn("write bearer token failed", "operation", string(req.Operation), "error", err)
		}
	} else if err := m.store.Remove(ctx, storage.KeyToken); err != nil {
		m.logger.Warn("remove bearer token failed", "operation", string(req.Operation), "error", err)
	}

	metrics.SessionOperationsTotal.WithLabelValues(string(req.Operation), "success").Inc()
	return true
}

// Logout clears the identity and the persisted snapshot and token. It always succeeds.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.state = StateAnonymous
	m.identity = auth.Identity{}
	m.mu.Unlock()

	for _, key := range []string{storage.KeySnapshot, storage.KeyToken} {
		if err := m.store.Remove(ctx, key); err != nil {
			m.logger.Warn("remove persisted session failed", "key", key, "error", err)
		}
	}
	metrics.SessionOperationsTotal.WithLabelValues(string(OpLogout), "success").Inc()
}

func (m *Manager) resolve(ctx context.Context, chain []Resolver, req Request) (Resolution, bool) {
	op := string(req.Operation)
	for _, r := range chain {
		res, err := r.Resolve(ctx, req)
		if err != nil {
			outcome := "failure"
			if errors.Is(err, ErrSkipped) {
				outcome = "skipped"
			}
			metrics.SessionResolutionsTotal.WithLabelValues(op, r.Name(), outcome).Inc()
			m.logger.Debug("identity resolver failed", "operation", op, "resolver", r.Name(), "error", err)
			continue
		}
		res.Identity = res.Identity.Normalize()
		metrics.SessionResolutionsTotal.WithLabelValues(op, r.Name(), "success").Inc()
		m.logger.Info("identity resolved", "operation", op, "resolver", r.Name(), "email", res.Identity.Email, "role", res.Identity.Role.String())
		return res, true
	}
	return Resolution{}, false
}

func (m *Manager) writeSnapshot(ctx context.Context, identity auth.Identity) {
	raw, err := json.Marshal(identity)
	if err != nil {
		m.logger.Warn("encode session snapshot failed", "error", err)
		return
	}
	if err := m.store.Set(ctx, storage.KeySnapshot, string(raw)); err != nil {
		m.logger.Warn("write session snapshot failed", "error", err)
	}
}
