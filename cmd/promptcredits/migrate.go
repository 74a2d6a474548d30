package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := loadBase()
			if err != nil {
				return err
			}
			pool, _, err := openDB(cmd.Context(), b.log, true)
			if err != nil {
				return err
			}
			pool.Close()
			b.log.InfoContext(cmd.Context(), "migrations applied")
			return nil
		},
	}
}
