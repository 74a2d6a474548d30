package legacy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/promptcredits/pkg/logger"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
	"github.com/dmitrymomot/promptcredits/svc/plans"
)

// Source yields legacy user documents one at a time.
type Source interface {
	Each(ctx context.Context, fn func(doc map[string]any) error) error
}

// MongoSource reads every document of a collection.
type MongoSource struct {
	coll *mongo.Collection
}

func NewMongoSource(db *mongo.Database, collection string) *MongoSource {
	return &MongoSource{coll: db.Collection(collection)}
}

func (s *MongoSource) Each(ctx context.Context, fn func(doc map[string]any) error) error {
	cursor, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return errors.Join(ErrSource, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return errors.Join(ErrSource, err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return errors.Join(ErrSource, err)
	}
	return nil
}

// Sink receives normalized ledgers. ledger.Store satisfies it.
type Sink interface {
	Import(ctx context.Context, l ledger.Ledger) error
}

type Report struct {
	Scanned  int           `json:"scanned" yaml:"scanned"`
	Imported int           `json:"imported" yaml:"imported"`
	Failed   int           `json:"failed" yaml:"failed"`
	ByShape  map[Shape]int `json:"by_shape" yaml:"by_shape"`
	DryRun   bool          `json:"dry_run" yaml:"dry_run"`
}

type Importer struct {
	src    Source
	sink   Sink
	plans  *plans.Table
	logger *slog.Logger
	now    func() time.Time
}

func NewImporter(src Source, sink Sink, table *plans.Table, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{src: src, sink: sink, plans: table, logger: log, now: time.Now}
}

// Run normalizes every document. Unreadable documents are counted and
// skipped. With dryRun nothing is written. Re-running is safe because Import
// upserts by user id.
func (i *Importer) Run(ctx context.Context, dryRun bool) (Report, error) {
	rep := Report{ByShape: make(map[Shape]int), DryRun: dryRun}
	now := i.now().UTC()

	err := i.src.Each(ctx, func(doc map[string]any) error {
		rep.Scanned++

		l, shape, err := Normalize(doc, i.plans, now)
		if err != nil {
			rep.Failed++
			i.logger.WarnContext(ctx, "skipping legacy document", logger.Component("legacy"), logger.Error(err))
			return nil
		}
		rep.ByShape[shape]++

		if dryRun {
			rep.Imported++
			return nil
		}
		if err := i.sink.Import(ctx, l); err != nil {
			return errors.Join(ErrImport, err)
		}
		rep.Imported++
		return nil
	})
	if err != nil {
		return rep, err
	}

	i.logger.InfoContext(ctx, "legacy import finished",
		logger.Component("legacy"),
		slog.Int("scanned", rep.Scanned),
		slog.Int("imported", rep.Imported),
		slog.Int("failed", rep.Failed),
		slog.Bool("dry_run", dryRun),
	)
	return rep, nil
}
