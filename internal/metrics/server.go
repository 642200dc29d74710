package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sidecarReadHeaderTimeout = 5 * time.Second

// Status is the operator summary served at /status next to /metrics.
type Status struct {
	StorageBackend string `json:"storage_backend"`
	RemoteAuth     bool   `json:"remote_auth"`
	DemoMode       bool   `json:"demo_mode"`
	ActiveVisitors int    `json:"active_visitors"`
}

// Sidecar is the internal listener of the portal. It is kept off the public
// address so scrapes never touch visitor cookie sessions.
type Sidecar struct {
	Addr string
	// Status reports the live portal state. Nil serves only /metrics.
	Status func() Status
}

// Enabled reports whether Addr names a listen address.
func (s Sidecar) Enabled() bool {
	switch strings.ToLower(strings.TrimSpace(s.Addr)) {
	case "", "off", "disabled", "false":
		return false
	}
	return true
}

func (s Sidecar) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if s.Status != nil {
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			status := s.Status()
			ActiveVisitors.Set(float64(status.ActiveVisitors))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "no-store")
			_ = json.NewEncoder(w).Encode(status)
		})
	}
	return mux
}

// Start serves Handler until ctx is done. It returns nil values when the
// sidecar is disabled.
func (s Sidecar) Start(ctx context.Context) (*http.Server, <-chan error) {
	if !s.Enabled() {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	addr := strings.TrimSpace(s.Addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: sidecarReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics sidecar listening", "addr", addr, "status", s.Status != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), sidecarReadHeaderTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv, errCh
}
