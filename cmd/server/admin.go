package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/slack-mcp-gateway/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := config.New()
			if c.GetStoreBackend() != config.StoreBackendSQLite {
				return fmt.Errorf("migrate only applies to the %s backend, STORE_BACKEND is %q", config.StoreBackendSQLite, c.GetStoreBackend())
			}
			store, err := openSQLite(cmd.Context(), c.GetSQLitePath())
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context(), true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date: %s\n", c.GetSQLitePath())
			return nil
		},
	}
}

// newInstallationCmd prints the current installation for a team with tokens
// redacted.
func newInstallationCmd() *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "installation <team-id>",
		Short: "Show the current installation for a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := config.New()
			teamID := args[0]

			if history {
				if c.GetStoreBackend() != config.StoreBackendSQLite {
					return fmt.Errorf("--history requires the %s backend", config.StoreBackendSQLite)
				}
				store, err := openSQLite(ctx, c.GetSQLitePath())
				if err != nil {
					return err
				}
				defer store.Close()
				records, err := store.History(ctx, teamID)
				if err != nil {
					return err
				}
				for i := range records {
					records[i] = records[i].Redacted()
				}
				return printJSON(cmd, records)
			}

			store, err := openStore(ctx, c)
			if err != nil {
				return err
			}
			defer store.close()
			inst, found, err := store.FindCurrentByTeam(ctx, teamID)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("team %s is not installed", teamID)
			}
			return printJSON(cmd, inst.Redacted())
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "list every recorded installation, newest first (sqlite only)")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
