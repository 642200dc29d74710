package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/ecolearn/ecolearn/internal/config"
	"github.com/ecolearn/ecolearn/internal/directory"
	"github.com/ecolearn/ecolearn/internal/logging"
	"github.com/ecolearn/ecolearn/internal/remote"
	"github.com/ecolearn/ecolearn/internal/session"
	"github.com/ecolearn/ecolearn/internal/storage"
	"github.com/spf13/cobra"
)

// app holds the collaborators shared by every command that touches sign-in
// state.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     storage.Storage
	directory *directory.Directory
	remote    *remote.Client
	close     func() error
}

func openApp(ctx context.Context, cmd *cobra.Command, cfg config.Config) (*app, error) {
	logger := commandLogger(cmd)

	store, closeStore, err := storage.Open(ctx, storage.Options{
		Backend:     cfg.StorageBackend,
		Path:        cfg.StoragePath,
		RedisURL:    cfg.RedisURL,
		RedisPrefix: cfg.RedisPrefix,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store, close: closeStore}
	if cfg.DemoMode {
		a.directory = directory.New(store, directory.Options{HashCredentials: cfg.HashCredentials})
	}
	if remoteEnabled(cfg.APIURL) {
		client, err := remote.New(cfg.APIURL, cfg.APITimeout)
		if err != nil {
			_ = closeStore()
			return nil, err
		}
		a.remote = client
	}
	logger.Debug("app opened",
		"storage", cfg.StorageBackend,
		"remote", a.remote != nil,
		"demo_mode", cfg.DemoMode,
	)
	return a, nil
}

// newManager returns a session manager over store. The local directory is
// always read from the unscoped backend.
func (a *app) newManager(store storage.Storage, logger *slog.Logger) (*session.Manager, error) {
	opts := session.Options{
		Storage: store,
		Logger:  logger,
	}
	if a.directory != nil {
		opts.Directory = a.directory
	}
	if a.remote != nil {
		opts.Remote = a.remote
	}
	return session.New(opts)
}

func remoteEnabled(apiURL string) bool {
	switch strings.ToLower(strings.TrimSpace(apiURL)) {
	case "", "off", "disabled", "false":
		return false
	default:
		return true
	}
}

// visitorManager returns the manager of one portal visitor: its sign-in keys
// are scoped to visitorID and its log lines carry the visitor.
func (a *app) visitorManager(visitorID string) (*session.Manager, error) {
	return a.newManager(
		storage.NewScoped(a.store, visitorID, storage.KeyDirectory),
		logging.ForVisitor(a.logger, visitorID),
	)
}

// commandLogger returns the installed structured logger for structured
// commands. Interactive commands only surface warnings on stderr.
func commandLogger(cmd *cobra.Command) *slog.Logger {
	if commandUsesStructuredLogging(cmd) {
		return slog.Default()
	}
	if cmd == nil {
		return logging.Interactive(os.Stderr, "")
	}
	return logging.Interactive(cmd.ErrOrStderr(), cmd.CommandPath())
}
