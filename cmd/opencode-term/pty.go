package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ricochet1k/opencode-term/internal/storage"
	"github.com/ricochet1k/opencode-term/pkg/api"
)

func createCmd(a *app) *cobra.Command {
	var req api.CreatePTYRequest
	cmd := &cobra.Command{
		Use:   "create [command] [args...]",
		Short: "Create a PTY on the server and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				req.Command = args[0]
				req.Args = args[1:]
			}
			info, err := a.client().Create(cmd.Context(), a.cfg.Directory(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "PTY title")
	cmd.Flags().StringVar(&req.Cwd, "cwd", "", "working directory for the command")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List PTYs in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ptys, err := a.client().List(cmd.Context(), a.cfg.Directory())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tCOMMAND")
			for _, p := range ptys {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Title, p.Status, p.Command)
			}
			return w.Flush()
		},
	}
}

func removeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <pty-id>",
		Short: "Remove a PTY and its stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := a.client().Remove(cmd.Context(), a.endpoint(id)); err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			if err := store.Delete(id); err != nil && !errors.Is(err, storage.ErrSnapshotNotFound) {
				return err
			}
			return nil
		},
	}
}

func healthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			if !h.Healthy {
				return fmt.Errorf("server at %s is unhealthy", a.cfg.ServerURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s %s\n", a.cfg.ServerURL(), h.Version)
			return nil
		},
	}
}
