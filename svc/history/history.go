package history

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrymomot/promptcredits/svc/ledger"
)

// Sort orders a history listing.
type Sort string

const (
	Newest   Sort = "newest"
	Oldest   Sort = "oldest"
	Longest  Sort = "longest"
	Shortest Sort = "shortest"
)

// ParseSort defaults to Newest for empty input.
func ParseSort(s string) (Sort, error) {
	switch v := Sort(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return Newest, nil
	case Newest, Oldest, Longest, Shortest:
		return v, nil
	default:
		return "", ErrInvalidSort
	}
}

type Query struct {
	Search string
	Sort   Sort
	Limit  int
	Offset int
}

type Page struct {
	Records []ledger.UsageRecord `json:"records"`
	Total   int                  `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// Store is the read and delete side of usage records.
type Store interface {
	ListUsage(ctx context.Context, userID string, limit int) ([]ledger.UsageRecord, error)
	DeleteUsage(ctx context.Context, userID string, id uuid.UUID) error
}

type Config struct {
	MaxRecords   int `env:"HISTORY_MAX_RECORDS" envDefault:"1000"`
	DefaultLimit int `env:"HISTORY_DEFAULT_LIMIT" envDefault:"50"`
}

type Service struct {
	store Store
	cfg   Config
}

func NewService(store Store, cfg Config) *Service {
	if store == nil {
		panic("history: Store is required")
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 1000
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	return &Service{store: store, cfg: cfg}
}

// List loads the user's most recent records and applies the query in memory.
// Limits above MaxRecords are clamped to it.
func (s *Service) List(ctx context.Context, userID string, q Query) (Page, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return Page{}, ErrInvalidPaging
	}
	if q.Limit == 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	// no page can hold more than the store returns
	q.Limit = min(q.Limit, s.cfg.MaxRecords)
	if q.Sort == "" {
		q.Sort = Newest
	}

	records, err := s.store.ListUsage(ctx, userID, s.cfg.MaxRecords)
	if err != nil {
		return Page{}, errors.Join(ErrStore, err)
	}

	records = Filter(records, q.Search)
	SortRecords(records, q.Sort)

	page := Page{Total: len(records), Limit: q.Limit, Offset: q.Offset, Records: []ledger.UsageRecord{}}
	if q.Offset < len(records) {
		end := q.Offset + min(q.Limit, len(records)-q.Offset)
		page.Records = records[q.Offset:end]
	}
	return page, nil
}

// Delete is idempotent.
func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if err := s.store.DeleteUsage(ctx, userID, id); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

// Filter keeps records whose input or output contains term, case-insensitively.
func Filter(records []ledger.UsageRecord, term string) []ledger.UsageRecord {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return records
	}
	return slices.DeleteFunc(slices.Clone(records), func(r ledger.UsageRecord) bool {
		return !strings.Contains(strings.ToLower(r.InputText), term) &&
			!strings.Contains(strings.ToLower(r.OutputText), term)
	})
}

// SortRecords sorts in place. Ties fall back to newest first.
func SortRecords(records []ledger.UsageRecord, by Sort) {
	newest := func(a, b ledger.UsageRecord) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(b.ID.String(), a.ID.String()))
	}
	inputLen := func(r ledger.UsageRecord) int { return utf8.RuneCountInString(r.InputText) }

	switch by {
	case Oldest:
		slices.SortStableFunc(records, func(a, b ledger.UsageRecord) int { return newest(b, a) })
	case Longest:
		slices.SortStableFunc(records, func(a, b ledger.UsageRecord) int {
			return cmp.Or(cmp.Compare(inputLen(b), inputLen(a)), newest(a, b))
		})
	case Shortest:
		slices.SortStableFunc(records, func(a, b ledger.UsageRecord) int {
			return cmp.Or(cmp.Compare(inputLen(a), inputLen(b)), newest(a, b))
		})
	default:
		slices.SortStableFunc(records, newest)
	}
}
