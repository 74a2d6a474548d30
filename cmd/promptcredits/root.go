package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "promptcredits",
		Short:         "Prompt enhancement API with a credit ledger",
		Long:          "promptcredits serves the prompt enhancement API, applies database migrations, imports legacy account documents and prints the effective plan table.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newImportLegacyCmd(),
		newPlansCmd(),
	)
	return rootCmd
}
