package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/promptcredits/svc/plans"
)

func newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "Print the effective plan table as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := loadPlans(cmd.Context())
			if err != nil {
				return err
			}
			out, err := plans.Marshal(table.Currency(), table.Threshold(), table.All())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
