package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/japaniel/bsdetect/pkg/db"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			conn, err := db.Open(cmd.Context(), cfg.Database.URL)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "database ready at %s\n", cfg.Database.URL)
			return nil
		},
	}
}
