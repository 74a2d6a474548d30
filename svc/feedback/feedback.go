package feedback

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/promptcredits/pkg/logger"
	"github.com/dmitrymomot/promptcredits/pkg/validator"
	"github.com/dmitrymomot/promptcredits/svc/ledger"
)

const MaxMessageLength = 2000

var ErrStore = errors.New("feedback store failure")

// Entry is a stored piece of user feedback with the account state at
// submission time.
type Entry struct {
	ID               uuid.UUID `json:"id"`
	UserID           string    `json:"user_id"`
	UserEmail        string    `json:"user_email,omitempty"`
	Message          string    `json:"message"`
	Rating           int       `json:"rating"`
	PlanID           string    `json:"plan_id"`
	RemainingCredits string    `json:"remaining_credits"`
	CreatedAt        time.Time `json:"created_at"`
}

type Store interface {
	Save(ctx context.Context, e Entry) error
}

// LedgerReader is the part of ledger.Service feedback needs.
type LedgerReader interface {
	Get(ctx context.Context, userID string) (ledger.Ledger, error)
}

type Service struct {
	store  Store
	ledger LedgerReader
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, ledgers LedgerReader, log *slog.Logger) *Service {
	if store == nil || ledgers == nil {
		panic("feedback: store and ledger reader are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, ledger: ledgers, logger: log, now: time.Now}
}

// Submit validates and stores feedback. A missing ledger is not an error;
// the entry is stored with the free plan.
func (s *Service) Submit(ctx context.Context, userID, email, message string, rating int) (Entry, error) {
	message = strings.TrimSpace(message)
	if err := validator.Apply(
		validator.Required("feedback", message),
		validator.MaxLen("feedback", message, MaxMessageLength),
		validator.Between("rating", rating, 1, 5),
	); err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:               uuid.New(),
		UserID:           userID,
		UserEmail:        email,
		Message:          message,
		Rating:           rating,
		PlanID:           "free",
		RemainingCredits: "0",
		CreatedAt:        s.now().UTC(),
	}

	l, err := s.ledger.Get(ctx, userID)
	switch {
	case err == nil:
		e.PlanID = l.PlanID
		e.RemainingCredits = ledger.RemainingOf(l).String()
	case !errors.Is(err, ledger.ErrNotFound):
		return Entry{}, err
	}

	if err := s.store.Save(ctx, e); err != nil {
		return Entry{}, errors.Join(ErrStore, err)
	}

	s.logger.InfoContext(ctx, "feedback received",
		logger.Component("feedback"),
		logger.UserID(userID),
		slog.Int("rating", rating),
	)
	return e, nil
}

type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Save(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryStore) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db execer
}

func NewPostgresStore(db execer) *PostgresStore { return &PostgresStore{db: db} }

func (p *PostgresStore) Save(ctx context.Context, e Entry) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO feedback (id, user_id, user_email, message, rating, plan_id, remaining_credits, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.UserEmail, e.Message, e.Rating, e.PlanID, e.RemainingCredits, e.CreatedAt)
	return err
}
