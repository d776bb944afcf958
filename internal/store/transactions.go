package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/cashflow/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate idempotency key")
)

const uniqueViolation = "23505"

// DB is the querying surface the stores need. *pgxpool.Pool satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TransactionStore persists the ledger in the transactions database.
type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// Insert writes a new transaction. A uniqueness violation on the idempotency
// key maps to ErrDuplicateKey so callers can re-fetch the existing row
// instead of surfacing a generic failure.
func (s *TransactionStore) Insert(ctx context.Context, t *domain.Transaction) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO transactions (id, amount, type, description, transaction_date, idempotency_key, reference, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`,
		t.ID, t.Amount.String(), string(t.Type), t.Description, t.TransactionDate, t.IdempotencyKey, t.Reference, t.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateKey
		}
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	return nil
}

const transactionColumns = `id, amount::text, type, description, transaction_date, idempotency_key, COALESCE(reference, ''), created_at`

func (s *TransactionStore) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key)
	return scanTransaction(row)
}

func (s *TransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// GetByDateRange returns transactions whose transaction date falls on the
// inclusive calendar-date window [start, end], ordered by creation time.
func (s *TransactionStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]domain.Transaction, error) {
	from := domain.DateOnly(start)
	to := domain.DateOnly(end).AddDate(0, 0, 1)

	rows, err := s.db.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE transaction_date >= $1 AND transaction_date < $2
		 ORDER BY created_at`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("transaction range query failed: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

// GetByDate returns the full ledger for one calendar date in ascending
// creation order. This is the recompute workflow's source of truth.
func (s *TransactionStore) GetByDate(ctx context.Context, date time.Time) ([]domain.Transaction, error) {
	return s.GetByDateRange(ctx, date, date)
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t      domain.Transaction
		amount string
		typ    string
	)
	err := row.Scan(&t.ID, &amount, &typ, &t.Description, &t.TransactionDate, &t.IdempotencyKey, &t.Reference, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("transaction scan failed: %w", err)
	}
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount unreadable: %w", err)
	}
	t.Type = domain.TransactionType(typ)
	return &t, nil
}
