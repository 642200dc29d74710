package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/ecolearn/ecolearn/internal/config"
	"github.com/spf13/cobra"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Inspect and seed the local demo directory.",
}

var directorySeedCmd = &cobra.Command{
	Use:         "seed",
	Short:       "Write the demo accounts to the local directory.",
	Args:        cobra.NoArgs,
	Annotations: structuredLog(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDirectory(cmd, func(ctx context.Context, a *app) error {
			changed, err := a.directory.Seed(ctx)
			if err != nil {
				return err
			}
			if changed {
				slog.Info("local directory seeded", "storage", a.cfg.StorageBackend)
			} else {
				slog.Info("local directory already up to date")
			}
			return nil
		})
	},
}

var directoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the accounts in the local directory.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDirectory(cmd, func(ctx context.Context, a *app) error {
			identities, err := a.directory.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
			for _, identity := range identities {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", identity.ID, identity.Name, identity.Email, identity.Role)
			}
			return tw.Flush()
		})
	},
}

func init() {
	directoryCmd.AddCommand(directorySeedCmd, directoryListCmd)
}

func withDirectory(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.DemoMode {
		return errors.New("the local directory is disabled (DEMO_MODE=0)")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	a, err := openApp(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()
	return fn(ctx, a)
}
