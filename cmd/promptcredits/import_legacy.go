package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/promptcredits/pkg/config"
	"github.com/dmitrymomot/promptcredits/pkg/mongo"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
	"github.com/dmitrymomot/promptcredits/svc/legacy"
)

func newImportLegacyCmd() *cobra.Command {
	var (
		dryRun     bool
		collection string
	)

	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Normalize legacy account documents into ledgers",
		Long:  "import-legacy reads exported user documents from MongoDB, maps both legacy credit shapes onto one ledger per user and upserts them. Run it before the API takes traffic.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, err := loadBase()
			if err != nil {
				return err
			}

			var mongoCfg mongo.Config
			if err := config.Load(&mongoCfg); err != nil {
				return fmt.Errorf("load mongo config: %w", err)
			}
			table, err := loadPlans(ctx)
			if err != nil {
				return err
			}

			db, err := mongo.NewWithDatabase(ctx, mongoCfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Client().Disconnect(ctx) }()

			var sink legacy.Sink = discardSink{}
			if !dryRun {
				pool, pgCfg, err := openDB(ctx, b.log, false)
				if err != nil {
					return err
				}
				defer pool.Close()
				sink = ledger.NewPostgresStore(pool, pgCfg.TxMaxAttempts)
			}

			report, err := legacy.NewImporter(legacy.NewMongoSource(db, collection), sink, table, b.log).Run(ctx, dryRun)
			if err != nil {
				return err
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(report)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "normalize and report without writing")
	cmd.Flags().StringVar(&collection, "collection", "users", "legacy collection name")
	return cmd
}

type discardSink struct{}

func (discardSink) Import(context.Context, ledger.Ledger) error { return nil }
