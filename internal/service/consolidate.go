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

// ConsolidationStore is the aggregate persistence the consolidation side
// needs. ApplyTransaction serializes same-date updates at the storage layer.
type ConsolidationStore interface {
	ApplyTransaction(ctx context.Context, eventID *uuid.UUID, typ domain.TransactionType, amount decimal.Decimal, date time.Time) (bool, error)
	GetByDate(ctx context.Context, date time.Time) (*domain.DailyConsolidation, error)
	GetByDateRange(ctx context.Context, start, end time.Time) ([]domain.DailyConsolidation, error)
	DeleteByDate(ctx context.Context, date time.Time) error
}

// LedgerReader reads the transactions service's store directly. Only the
// recompute workflow crosses the service boundary this way.
type LedgerReader interface {
	GetByDate(ctx context.Context, date time.Time) ([]domain.Transaction, error)
}

// ConsolidationProcessor applies the event stream to the per-day aggregate.
// The worker wires only this; the read and recompute surface lives on
// ConsolidationService.
type ConsolidationProcessor struct {
	store ConsolidationStore
	cache cache.Cache
	log   zerolog.Logger
}

func NewConsolidationProcessor(st ConsolidationStore, c cache.Cache, log zerolog.Logger) *ConsolidationProcessor {
	return &ConsolidationProcessor{store: st, cache: c, log: log}
}

// ProcessTransactionCreated applies one integration event to the day's
// consolidation and invalidates the cached read-view. Redelivered events are
// detected by the store's processed-event record and acked without effect.
func (p *ConsolidationProcessor) ProcessTransactionCreated(ctx context.Context, evt events.TransactionCreated) error {
	typ, ok := domain.ParseTransactionType(evt.Type)
	if !ok {
		return domain.ValidationError("Transaction.InvalidType", fmt.Sprintf("invalid transaction type: %s", evt.Type))
	}

	applied, err := p.store.ApplyTransaction(ctx, &evt.EventID, typ, evt.Amount, evt.TransactionDate)
	if err != nil {
		return fmt.Errorf("consolidation update failed: %w", err)
	}
	if !applied {
		p.log.Info().
			Str("eventId", evt.EventID.String()).
			Str("transactionId", evt.TransactionID.String()).
			Msg("event already applied, skipping redelivery")
		return nil
	}

	p.cache.Remove(ctx, cache.ConsolidationKey(evt.TransactionDate))

	p.log.Info().
		Str("transactionId", evt.TransactionID.String()).
		Time("date", domain.DateOnly(evt.TransactionDate)).
		Msg("transaction consolidated")
	return nil
}

// ConsolidationService serves the read side: cached daily lookups, range
// reports, and the full-recompute repair path over the ledger.
type ConsolidationService struct {
	store  ConsolidationStore
	ledger LedgerReader
	cache  cache.Cache
	log    zerolog.Logger
}

func NewConsolidationService(
	st ConsolidationStore,
	ledger LedgerReader,
	c cache.Cache,
	log zerolog.Logger,
) *ConsolidationService {
	return &ConsolidationService{store: st, ledger: ledger, cache: c, log: log}
}

// GetDaily returns the consolidation for one date, read through the cache.
func (s *ConsolidationService) GetDaily(ctx context.Context, date time.Time) (*domain.DailyConsolidation, error) {
	day := domain.DateOnly(date)
	key := cache.ConsolidationKey(day)

	if raw, ok := s.cache.Get(ctx, key); ok {
		var c domain.DailyConsolidation
		if err := json.Unmarshal([]byte(raw), &c); err == nil {
			return &c, nil
		}
	}

	c, err := s.store.GetByDate(ctx, day)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFoundError("Consolidation.NotFound",
				fmt.Sprintf("no consolidation found for date %s", day.Format("2006-01-02")))
		}
		return nil, err
	}

	if raw, err := json.Marshal(c); err == nil {
		s.cache.Set(ctx, key, string(raw), cache.ConsolidationTTL)
	}
	return c, nil
}

// GetRange reports consolidations for an inclusive date range. A range with
// no data is an empty result, not an error.
func (s *ConsolidationService) GetRange(ctx context.Context, start, end time.Time) ([]domain.DailyConsolidation, error) {
	if domain.DateOnly(start).After(domain.DateOnly(end)) {
		return nil, domain.ValidationError("Consolidation.InvalidDateRange", "start date must be before or equal to end date")
	}
	return s.store.GetByDateRange(ctx, start, end)
}

// Recompute rebuilds one date's consolidation from the authoritative ledger:
// delete the aggregate row, then replay every transaction for the date in
// ascending creation order through the same update path (bypassing event
// dedup). Per-transaction failures are logged, not fatal to the batch.
// This is the drift-correction backstop for lost or double-applied events.
func (s *ConsolidationService) Recompute(ctx context.Context, date time.Time) (int, error) {
	day := domain.DateOnly(date)
	s.log.Info().Time("date", day).Msg("starting consolidation recompute")

	txs, err := s.ledger.GetByDate(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("ledger read failed: %w", err)
	}

	if err := s.store.DeleteByDate(ctx, day); err != nil {
		return 0, err
	}

	processed := 0
	for _, tx := range txs {
		if _, err := s.store.ApplyTransaction(ctx, nil, tx.Type, tx.Amount, tx.TransactionDate); err != nil {
			s.log.Warn().
				Err(err).
				Str("transactionId", tx.ID.String()).
				Msg("recompute failed to apply transaction")
			continue
		}
		processed++
	}

	s.cache.Remove(ctx, cache.ConsolidationKey(day))

	s.log.Info().
		Time("date", day).
		Int("transactions", len(txs)).
		Int("processed", processed).
		Msg("consolidation recompute finished")
	return processed, nil
}
