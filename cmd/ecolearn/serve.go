package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/pgxstore"
	"github.com/alexedwards/scs/v2"
	"github.com/ecolearn/ecolearn/internal/config"
	httpapp "github.com/ecolearn/ecolearn/internal/http"
	"github.com/ecolearn/ecolearn/internal/http/visitors"
	"github.com/ecolearn/ecolearn/internal/metrics"
	"github.com/ecolearn/ecolearn/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	sessionCookieName = "ecolearn_session"
	sessionLifetime   = 30 * 24 * time.Hour
	shutdownTimeout   = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the EcoLearn web portal.",
	Args:        cobra.NoArgs,
	Annotations: structuredLog(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := openApp(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	sessions, stopSessions, err := newSessionManager(ctx, cfg, a.store)
	if err != nil {
		return err
	}
	defer stopSessions()

	registry := visitors.New(sessions, cfg.VisitorTTL, a.visitorManager)

	srv, err := httpapp.NewEchoServer(cfg, sessions, registry, httpapp.Options{})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.StartServer(httpServer); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	sidecar := metrics.Sidecar{
		Addr: cfg.MetricsAddr,
		Status: func() metrics.Status {
			return metrics.Status{
				StorageBackend: cfg.StorageBackend,
				RemoteAuth:     remoteEnabled(cfg.APIURL),
				DemoMode:       cfg.DemoMode,
				ActiveVisitors: registry.Len(),
			}
		},
	}
	if _, metricsErr := sidecar.Start(gctx); metricsErr != nil {
		g.Go(func() error {
			select {
			case err := <-metricsErr:
				return err
			case <-gctx.Done():
				return nil
			}
		})
	}
	return g.Wait()
}

// newSessionManager configures the visitor cookie session. Sessions live in
// Postgres when DATABASE_URL is set and in memory otherwise. The postgres
// storage backend shares its pool with the session store.
func newSessionManager(ctx context.Context, cfg config.Config, store storage.Storage) (*scs.SessionManager, func(), error) {
	sessions := scs.New()
	sessions.Lifetime = sessionLifetime
	sessions.Cookie.Name = sessionCookieName
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteLaxMode
	sessions.Cookie.Secure = cfg.AuthCookieSecure
	sessions.Cookie.Persist = true

	if cfg.DatabaseURL == "" {
		return sessions, func() {}, nil
	}

	var (
		pool    *pgxpool.Pool
		ownPool bool
	)
	if pg, ok := store.(*storage.Postgres); ok {
		pool = pg.Pool()
	} else {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		ownPool = true
	}

	pgStore := pgxstore.New(pool)
	sessions.Store = pgStore
	return sessions, func() {
		pgStore.StopCleanup()
		if ownPool {
			pool.Close()
		}
	}, nil
}
