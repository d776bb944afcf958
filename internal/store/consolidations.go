package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/cashflow/internal/domain"
)

// ConsolidationStore persists daily consolidations in the consolidation
// database. Concurrent updates to the same date serialize on a row lock.
type ConsolidationStore struct {
	db DB
}

func NewConsolidationStore(db DB) *ConsolidationStore {
	return &ConsolidationStore{db: db}
}

// ApplyTransaction applies one credit/debit to the date's consolidation in a
// single database transaction. When eventID is set, a processed_events row
// is inserted in the same transaction; a redelivered event hits its primary
// key and the update is skipped (applied=false). Recompute replays pass a
// nil eventID and always apply.
func (s *ConsolidationStore) ApplyTransaction(
	ctx context.Context,
	eventID *uuid.UUID,
	typ domain.TransactionType,
	amount decimal.Decimal,
	date time.Time,
) (applied bool, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if eventID != nil {
		ct, err := tx.Exec(ctx,
			`INSERT INTO processed_events (event_id, processed_at) VALUES ($1, $2)
			 ON CONFLICT (event_id) DO NOTHING`,
			*eventID, time.Now().UTC(),
		)
		if err != nil {
			return false, fmt.Errorf("processed event insert failed: %w", err)
		}
		if ct.RowsAffected() == 0 {
			// Already applied on a previous delivery.
			return false, nil
		}
	}

	day := domain.DateOnly(date)
	cons, err := s.lockDay(ctx, tx, day)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if cons == nil {
		cons = domain.NewDailyConsolidation(day)
		if err := applyToConsolidation(cons, typ, amount); err != nil {
			return false, err
		}
		inserted, err := s.insert(ctx, tx, cons)
		if err != nil {
			return false, err
		}
		if !inserted {
			// Lost the lazy-create race to a concurrent handler; the row
			// exists now. ON CONFLICT keeps the transaction usable, so lock
			// the row and go through the update path.
			cons, err = s.lockDay(ctx, tx, day)
			if err != nil {
				return false, err
			}
			if err := applyToConsolidation(cons, typ, amount); err != nil {
				return false, err
			}
			if err := s.update(ctx, tx, cons); err != nil {
				return false, err
			}
		}
	} else {
		if err := applyToConsolidation(cons, typ, amount); err != nil {
			return false, err
		}
		if err := s.update(ctx, tx, cons); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("tx commit failed: %w", err)
	}
	return true, nil
}

func applyToConsolidation(c *domain.DailyConsolidation, typ domain.TransactionType, amount decimal.Decimal) error {
	switch typ {
	case domain.Credit:
		return c.AddCredit(amount)
	case domain.Debit:
		return c.AddDebit(amount)
	}
	return domain.ValidationError("Transaction.InvalidType", fmt.Sprintf("invalid transaction type: %s", typ))
}

const consolidationColumns = `id, date, total_credits::text, total_debits::text, balance::text, transaction_count, last_updated, created_at`

func (s *ConsolidationStore) lockDay(ctx context.Context, tx pgx.Tx, day time.Time) (*domain.DailyConsolidation, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+consolidationColumns+` FROM daily_consolidations WHERE date = $1 FOR UPDATE`, day)
	return scanConsolidation(row)
}

// insert lazily creates the date's row. ON CONFLICT DO NOTHING keeps the
// enclosing transaction usable when a concurrent handler created the row
// first; inserted=false tells the caller to take the update path instead.
func (s *ConsolidationStore) insert(ctx context.Context, tx pgx.Tx, c *domain.DailyConsolidation) (inserted bool, err error) {
	ct, err := tx.Exec(ctx,
		`INSERT INTO daily_consolidations (id, date, total_credits, total_debits, balance, transaction_count, last_updated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (date) DO NOTHING`,
		c.ID, c.Date, c.TotalCredits.String(), c.TotalDebits.String(), c.Balance.String(), c.TransactionCount, c.LastUpdated, c.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("consolidation insert failed: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *ConsolidationStore) update(ctx context.Context, tx pgx.Tx, c *domain.DailyConsolidation) error {
	_, err := tx.Exec(ctx,
		`UPDATE daily_consolidations
		 SET total_credits = $1, total_debits = $2, balance = $3, transaction_count = $4, last_updated = $5
		 WHERE id = $6`,
		c.TotalCredits.String(), c.TotalDebits.String(), c.Balance.String(), c.TransactionCount, c.LastUpdated, c.ID,
	)
	if err != nil {
		return fmt.Errorf("consolidation update failed: %w", err)
	}
	return nil
}

func (s *ConsolidationStore) GetByDate(ctx context.Context, date time.Time) (*domain.DailyConsolidation, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+consolidationColumns+` FROM daily_consolidations WHERE date = $1`,
		domain.DateOnly(date))
	return scanConsolidation(row)
}

// GetByDateRange returns consolidations on [start, end] inclusive, ordered
// by date. An empty range is an empty slice, not an error.
func (s *ConsolidationStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]domain.DailyConsolidation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+consolidationColumns+`
		 FROM daily_consolidations
		 WHERE date >= $1 AND date <= $2
		 ORDER BY date`,
		domain.DateOnly(start), domain.DateOnly(end),
	)
	if err != nil {
		return nil, fmt.Errorf("consolidation range query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyConsolidation
	for rows.Next() {
		c, err := scanConsolidation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeleteByDate removes the date's consolidation ahead of a full recompute.
func (s *ConsolidationStore) DeleteByDate(ctx context.Context, date time.Time) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM daily_consolidations WHERE date = $1`, domain.DateOnly(date))
	if err != nil {
		return fmt.Errorf("consolidation delete failed: %w", err)
	}
	return nil
}

func scanConsolidation(row pgx.Row) (*domain.DailyConsolidation, error) {
	var (
		c                        domain.DailyConsolidation
		credits, debits, balance string
	)
	err := row.Scan(&c.ID, &c.Date, &credits, &debits, &balance, &c.TransactionCount, &c.LastUpdated, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("consolidation scan failed: %w", err)
	}
	if c.TotalCredits, err = decimal.NewFromString(credits); err != nil {
		return nil, fmt.Errorf("stored credits unreadable: %w", err)
	}
	if c.TotalDebits, err = decimal.NewFromString(debits); err != nil {
		return nil, fmt.Errorf("stored debits unreadable: %w", err)
	}
	if c.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("stored balance unreadable: %w", err)
	}
	return &c, nil
}
