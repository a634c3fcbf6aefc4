package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"voip_chat/internal/config"
	"voip_chat/internal/model"
)

func rosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Inspect or edit the identities allowed to connect",
	}
	cmd.AddCommand(rosterListCmd(), rosterAddCmd())
	return cmd
}

func rosterListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, closeRoster, err := openRoster(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeRoster()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME")
			for _, e := range entries.Entries() {
				fmt.Fprintf(w, "%s\t%s\n", e.ID, e.Username)
			}
			return w.Flush()
		},
	}
}

func rosterAddCmd() *cobra.Command {
	var entry model.RosterEntry
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or rename a roster identity (mongo source only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Roster.Source != config.SourceMongo {
				return errors.New("roster add requires roster.source=mongo; edit the roster file directly otherwise")
			}
			if entry.ID == "" || entry.Username == "" {
				return errors.New("--id and --username are required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), dependencyTimeout)
			defer cancel()
			loader, closeFn, err := mongoLoader(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			existing, err := loader.GetByID(ctx, entry.ID)
			if err != nil {
				return err
			}
			if err := loader.Upsert(ctx, entry); err != nil {
				return err
			}
			if existing != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "renamed %s: %s -> %s\n", entry.ID, existing.Username, entry.Username)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", entry.ID, entry.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&entry.ID, "id", "", "identity")
	cmd.Flags().StringVar(&entry.Username, "username", "", "display name")
	return cmd
}
