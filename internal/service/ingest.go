package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/cashflow/internal/cache"
	"github.com/punchamoorthee/cashflow/internal/domain"
	"github.com/punchamoorthee/cashflow/internal/events"
	"github.com/punchamoorthee/cashflow/internal/store"
)

// TransactionStore is the ledger persistence the ingestion path needs.
type TransactionStore interface {
	Insert(ctx context.Context, t *domain.Transaction) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByDate(ctx context.Context, date time.Time) ([]domain.Transaction, error)
}

// DuplicateScanner produces advisory duplicate warnings for a candidate.
type DuplicateScanner interface {
	FindPotentialDuplicates(ctx context.Context, amount decimal.Decimal, typ, description string, date time.Time, reference string) ([]domain.PotentialDuplicate, error)
}

// EventPublisher emits the integration event after persistence.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, evt events.TransactionCreated) error
}

// CreateTransactionRequest is the validated admission input.
type CreateTransactionRequest struct {
	Amount          decimal.Decimal
	Type            string
	Description     string
	TransactionDate time.Time
	IdempotencyKey  string
	Reference       string
}

// CreateTransactionResult reports the stored transaction, whether this call
// created it, and any advisory duplicate warnings.
type CreateTransactionResult struct {
	Transaction         *domain.Transaction
	IsNew               bool
	Message             string
	PotentialDuplicates []domain.PotentialDuplicate
}

// IngestService orchestrates transaction admission: idempotency check,
// type validation, duplicate scan, persistence, event publication.
type IngestService struct {
	store     TransactionStore
	scanner   DuplicateScanner
	publisher EventPublisher
	cache     cache.Cache
	log       zerolog.Logger
}

func NewIngestService(
	st TransactionStore,
	scanner DuplicateScanner,
	publisher EventPublisher,
	c cache.Cache,
	log zerolog.Logger,
) *IngestService {
	return &IngestService{store: st, scanner: scanner, publisher: publisher, cache: c, log: log}
}

// CreateTransaction admits one transaction. Resubmission with a known
// idempotency key returns the stored transaction with IsNew=false, which
// keeps the operation safe to retry from the client side. A uniqueness
// violation on insert is treated the same way: the check-then-insert window
// is real, and the storage constraint is the actual guard.
func (s *IngestService) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*CreateTransactionResult, error) {
	s.log.Info().
		Str("type", req.Type).
		Str("idempotencyKey", req.IdempotencyKey).
		Time("date", req.TransactionDate).
		Msg("creating transaction")

	existing, err := s.store.GetByIdempotencyKey(ctx, req.IdempotencyKey)
	if err == nil {
		return s.existingResult(existing), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}

	typ, ok := domain.ParseTransactionType(req.Type)
	if !ok {
		return nil, domain.ValidationError("Transaction.InvalidType", "invalid transaction type, must be 'Credit' or 'Debit'")
	}

	// Advisory only: a failing scan must not block admission.
	duplicates, err := s.scanner.FindPotentialDuplicates(ctx, req.Amount, req.Type, req.Description, req.TransactionDate, req.Reference)
	if err != nil {
		s.log.Error().Err(err).Str("idempotencyKey", req.IdempotencyKey).Msg("duplicate scan failed, continuing without warnings")
		duplicates = nil
	}

	tx, err := domain.NewTransaction(req.Amount, typ, req.Description, req.TransactionDate, req.IdempotencyKey, req.Reference)
	if err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, tx); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// Lost the admission race to a concurrent submitter with the
			// same key. Equivalent to "found existing".
			winner, ferr := s.store.GetByIdempotencyKey(ctx, req.IdempotencyKey)
			if ferr != nil {
				return nil, fmt.Errorf("concurrent duplicate re-fetch failed: %w", ferr)
			}
			return s.existingResult(winner), nil
		}
		return nil, err
	}

	s.log.Info().
		Str("transactionId", tx.ID.String()).
		Str("idempotencyKey", tx.IdempotencyKey).
		Msg("transaction created")

	s.publishCreated(ctx, tx)

	message := "Transaction created successfully."
	if len(duplicates) > 0 {
		message = fmt.Sprintf("Transaction created successfully. Warning: %d potential duplicate(s) detected.", len(duplicates))
	}

	return &CreateTransactionResult{
		Transaction:         tx,
		IsNew:               true,
		Message:             message,
		PotentialDuplicates: duplicates,
	}, nil
}

// publishCreated emits the integration event. Failures are logged and
// swallowed: the locally-durable record wins over end-to-end propagation,
// and the recompute workflow is the backstop for the resulting drift.
func (s *IngestService) publishCreated(ctx context.Context, tx *domain.Transaction) {
	evt := events.TransactionCreated{
		EventID:         uuid.New(),
		OccurredOn:      time.Now().UTC(),
		TransactionID:   tx.ID,
		Amount:          tx.Amount,
		Type:            string(tx.Type),
		TransactionDate: tx.TransactionDate,
	}
	if err := s.publisher.PublishTransactionCreated(ctx, evt); err != nil {
		s.log.Error().
			Err(err).
			Str("transactionId", tx.ID.String()).
			Msg("integration event publish failed, transaction remains persisted")
	}
}

func (s *IngestService) existingResult(tx *domain.Transaction) *CreateTransactionResult {
	s.log.Warn().
		Str("transactionId", tx.ID.String()).
		Str("idempotencyKey", tx.IdempotencyKey).
		Msg("idempotency key already used, returning existing transaction")
	return &CreateTransactionResult{
		Transaction: tx,
		IsNew:       false,
		Message:     fmt.Sprintf("Transaction already exists with this idempotency key. Returning existing transaction (ID: %s).", tx.ID),
	}
}

// GetTransaction looks up one transaction with a cache read-through.
func (s *IngestService) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	key := cache.TransactionKey(id)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var tx domain.Transaction
		if err := json.Unmarshal([]byte(raw), &tx); err == nil {
			return &tx, nil
		}
	}

	tx, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFoundError("Transaction.NotFound", fmt.Sprintf("no transaction found with id %s", id))
		}
		return nil, err
	}

	if raw, err := json.Marshal(tx); err == nil {
		s.cache.Set(ctx, key, string(raw), cache.TransactionTTL)
	}
	return tx, nil
}

// GetTransactionsByDate lists the ledger for one calendar date.
func (s *IngestService) GetTransactionsByDate(ctx context.Context, date time.Time) ([]domain.Transaction, error) {
	return s.store.GetByDate(ctx, date)
}
