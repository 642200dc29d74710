package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/remote"
	"github.com/ecolearn/ecolearn/internal/storage"
)

// ErrSkipped is returned by a resolver that had nothing to work with, such as
// a profile lookup without a stored token.
var ErrSkipped = errors.New("resolver skipped")

// Operation names the session operation a resolver is consulted for.
type Operation string

const (
	OpBootstrap Operation = "bootstrap"
	OpLogin     Operation = "login"
	OpRegister  Operation = "register"
	OpLogout    Operation = "logout"
)

// Request carries the inputs of a session operation to its resolvers.
type Request struct {
	Operation  Operation
	Name       string
	Email      string
	Credential string
	// Token is the stored bearer token, set for bootstrap.
	Token string
}

// Resolution is a resolved identity.
type Resolution struct {
	Identity auth.Identity
	// Token is the bearer token issued with the identity, empty for local sources.
	Token string
	// Persist asks the manager to rewrite the session snapshot.
	Persist bool
}

// Resolver is one source of identity. The manager tries resolvers in order
// and adopts the first success.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, req Request) (Resolution, error)
}

// RemoteClient is the subset of the auth backend client used by the remote resolvers.
type RemoteClient interface {
	Login(ctx context.Context, email, password string) (remote.Session, error)
	Register(ctx context.Context, name, email, password string) (remote.Session, error)
	Profile(ctx context.Context, token string) (auth.Identity, error)
}

// LocalDirectory is the demo directory used by the local resolvers.
type LocalDirectory interface {
	Seed(ctx context.Context) (bool, error)
	Authenticate(ctx context.Context, email, credential string) (auth.Identity, error)
	Register(ctx context.Context, name, email, credential string) (auth.Identity, error)
}

// RemoteProfile verifies the stored bearer token against the auth backend.
type RemoteProfile struct {
	Client RemoteClient
}

func (RemoteProfile) Name() string { return "remote_profile" }

func (r RemoteProfile) Resolve(ctx context.Context, req Request) (Resolution, error) {
	if req.Token == "" {
		return Resolution{}, fmt.Errorf("%w: no bearer token", ErrSkipped)
	}
	identity, err := r.Client.Profile(ctx, req.Token)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Identity: identity, Persist: true}, nil
}

// Snapshot restores the last identity persisted by the manager.
type Snapshot struct {
	Store storage.Storage
}

func (Snapshot) Name() string { return "snapshot" }

func (s Snapshot) Resolve(ctx context.Context, _ Request) (Resolution, error) {
	raw, found, err := s.Store.Get(ctx, storage.KeySnapshot)
	if err != nil {
		return Resolution{}, err
	}
	if !found {
		return Resolution{}, fmt.Errorf("%w: no session snapshot", ErrSkipped)
	}
	var identity *auth.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return Resolution{}, fmt.Errorf("decode session snapshot: %w", err)
	}
	if identity == nil {
		return Resolution{}, errors.New("decode session snapshot: null snapshot")
	}
	return Resolution{Identity: *identity}, nil
}

// RemoteLogin authenticates against the auth backend.
type RemoteLogin struct {
	Client RemoteClient
}

func (RemoteLogin) Name() string { return "remote_login" }

func (r RemoteLogin) Resolve(ctx context.Context, req Request) (Resolution, error) {
	sess, err := r.Client.Login(ctx, req.Email, req.Credential)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Identity: sess.Identity, Token: sess.Token, Persist: true}, nil
}

// RemoteRegister creates the account on the auth backend.
type RemoteRegister struct {
	Client RemoteClient
}

func (RemoteRegister) Name() string { return "remote_register" }

func (r RemoteRegister) Resolve(ctx context.Context, req Request) (Resolution, error) {
	sess, err := r.Client.Register(ctx, req.Name, req.Email, req.Credential)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Identity: sess.Identity, Token: sess.Token, Persist: true}, nil
}

// DirectoryLogin matches credentials against the local directory.
type DirectoryLogin struct {
	Directory LocalDirectory
}

func (DirectoryLogin) Name() string { return "directory_login" }

func (d DirectoryLogin) Resolve(ctx context.Context, req Request) (Resolution, error) {
	identity, err := d.Directory.Authenticate(ctx, req.Email, req.Credential)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Identity: identity, Persist: true}, nil
}

// DirectoryRegister appends a student entry to the local directory.
type DirectoryRegister struct {
	Directory LocalDirectory
}

func (DirectoryRegister) Name() string { return "directory_register" }

func (d DirectoryRegister) Resolve(ctx context.Context, req Request) (Resolution, error) {
	identity, err := d.Directory.Register(ctx, req.Name, req.Email, req.Credential)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Identity: identity, Persist: true}, nil
}
