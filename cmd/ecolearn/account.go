package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/config"
	"github.com/ecolearn/ecolearn/internal/session"
	"github.com/ecolearn/ecolearn/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

const commandTimeout = 30 * time.Second

var (
	loginEmail         string
	loginPassword      string
	loginPasswordStdin bool

	registerName          string
	registerEmail         string
	registerPassword      string
	registerPasswordStdin bool

	whoamiShowToken bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session locally.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(loginEmail)
		if email == "" {
			return errors.New("--email is required")
		}
		password, err := resolvePassword(cmd, passwordSource{value: loginPassword, fromStdin: loginPasswordStdin})
		if err != nil {
			return err
		}
		return withManager(cmd, func(ctx context.Context, m *session.Manager, _ *app) error {
			if !m.Login(ctx, email, password) {
				return rejected(errors.New("invalid email or password"))
			}
			printIdentity(cmd.OutOrStdout(), "signed in as", m.View().Identity)
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a student account and sign in.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(registerName)
		email := strings.TrimSpace(registerEmail)
		if name == "" || email == "" {
			return errors.New("--name and --email are required")
		}
		password, err := resolvePassword(cmd, passwordSource{value: registerPassword, fromStdin: registerPasswordStdin, confirm: true})
		if err != nil {
			return err
		}
		return withManager(cmd, func(ctx context.Context, m *session.Manager, _ *app) error {
			if !m.Register(ctx, name, email, password) {
				return rejected(errors.New("registration failed; the email may already be registered"))
			}
			printIdentity(cmd.OutOrStdout(), "registered", m.View().Identity)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the locally persisted session.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, m *session.Manager, _ *app) error {
			m.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, m *session.Manager, a *app) error {
			view := m.View()
			if !view.Authenticated() {
				return &exitError{code: exitCodeFailure, err: errors.New("not signed in"), hint: "run `ecolearn login` first"}
			}
			out := cmd.OutOrStdout()
			printIdentity(out, "signed in as", view.Identity)
			if !whoamiShowToken {
				return nil
			}

			token, ok, err := a.store.Get(ctx, storage.KeyToken)
			if err != nil {
				return err
			}
			if !ok || token == "" {
				fmt.Fprintln(out, "no bearer token stored")
				return nil
			}
			info, err := describeToken(token)
			if err != nil {
				fmt.Fprintf(out, "bearer token stored (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "bearer token subject=%q", info.Subject)
			if !info.ExpiresAt.IsZero() {
				fmt.Fprintf(out, " expires=%s", info.ExpiresAt.UTC().Format(time.RFC3339))
			}
			fmt.Fprintln(out)
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email.")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prefer --password-stdin).")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin.")

	registerCmd.Flags().StringVar(&registerName, "name", "", "Display name.")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Account email.")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "Account password (prefer --password-stdin).")
	registerCmd.Flags().BoolVar(&registerPasswordStdin, "password-stdin", false, "Read the password from stdin.")

	whoamiCmd.Flags().BoolVar(&whoamiShowToken, "token", false, "Also describe the stored bearer token.")
}

// withManager opens the configured storage, bootstraps a session manager over
// it and runs fn.
func withManager(cmd *cobra.Command, fn func(context.Context, *session.Manager, *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	a, err := openApp(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	m, err := a.newManager(a.store, a.logger)
	if err != nil {
		return err
	}
	m.Bootstrap(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, m, a)
}

func printIdentity(w io.Writer, prefix string, identity auth.Identity) {
	fmt.Fprintf(w, "%s %s <%s> (%s)\n", prefix, identity.Name, identity.Email, identity.Role)
}

type tokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// describeToken reads the claims of a JWT bearer token without verifying its
// signature. The token is only ever inspected locally.
func describeToken(raw string) (tokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return tokenInfo{}, errors.New("token is not a JWT")
	}

	var info tokenInfo
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if info.Subject == "" {
		if id, ok := claims["id"].(string); ok {
			info.Subject = id
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
