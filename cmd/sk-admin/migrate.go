package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/youth-governance-backend/internal/db"
)

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			if dir == "" {
				dir = cfg.MigrationsPath
			}
			applied, err := db.RunMigrations(cmd.Context(), conn, dir)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (defaults to MIGRATIONS_PATH)")
	return cmd
}
