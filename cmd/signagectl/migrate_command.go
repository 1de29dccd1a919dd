package main

import (
	"fmt"

	"github.com/lk2023060901/signage-backend/internal/data"
	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, d, cleanup, err := ctx.openData()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := data.Migrate(d.DB); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(data.Models()))
			return nil
		},
	}
}
