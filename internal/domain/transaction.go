package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the kind of ledger movement.
type TransactionType string

const (
	Credit TransactionType = "Credit"
	Debit  TransactionType = "Debit"
)

// ParseTransactionType resolves a type string case-insensitively. The
// transport layer rejects non-canonical casing before this is reached; the
// relaxed match here mirrors what the event consumer needs.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch strings.ToLower(s) {
	case "credit":
		return Credit, true
	case "debit":
		return Debit, true
	}
	return "", false
}

// MaxAmount is the largest admissible transaction amount.
var MaxAmount = decimal.New(99999999999, -2) // 999,999,999.99

// Transaction is the ledger aggregate. Immutable after creation; the only
// deletion path is the administrative full-date recompute.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	Description     string          `json:"description"`
	TransactionDate time.Time       `json:"transactionDate"`
	IdempotencyKey  string          `json:"idempotencyKey"`
	Reference       string          `json:"reference,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// NewTransaction validates invariants and constructs the aggregate.
// Violations are non-retryable: callers must surface them, never swallow.
func NewTransaction(
	amount decimal.Decimal,
	typ TransactionType,
	description string,
	transactionDate time.Time,
	idempotencyKey string,
	reference string,
) (*Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ValidationError("Transaction.InvalidAmount", "transaction amount must be greater than zero")
	}
	if amount.GreaterThan(MaxAmount) {
		return nil, ValidationError("Transaction.InvalidAmount", "transaction amount exceeds maximum allowed value")
	}
	if strings.TrimSpace(description) == "" {
		return nil, ValidationError("Transaction.InvalidDescription", "transaction description is required")
	}
	if utf8.RuneCountInString(description) > 500 {
		return nil, ValidationError("Transaction.InvalidDescription", "transaction description cannot exceed 500 characters")
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, ValidationError("Transaction.InvalidIdempotencyKey", "idempotency key is required")
	}
	if len(idempotencyKey) < 16 {
		return nil, ValidationError("Transaction.InvalidIdempotencyKey", "idempotency key must be at least 16 characters")
	}
	if len(idempotencyKey) > 100 {
		return nil, ValidationError("Transaction.InvalidIdempotencyKey", "idempotency key cannot exceed 100 characters")
	}

	return &Transaction{
		ID:              uuid.New(),
		Amount:          amount,
		Type:            typ,
		Description:     description,
		TransactionDate: transactionDate.UTC(),
		IdempotencyKey:  idempotencyKey,
		Reference:       reference,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// SignedAmount returns the net effect: positive for credits, negative for
// debits.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == Credit {
		return t.Amount
	}
	return t.Amount.Neg()
}

// PotentialDuplicate is an advisory flag produced by the duplicate detection
// engine. Never persisted, never blocks creation.
type PotentialDuplicate struct {
	TransactionID   uuid.UUID       `json:"transactionId"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	Description     string          `json:"description"`
	TransactionDate time.Time       `json:"transactionDate"`
	CreatedAt       time.Time       `json:"createdAt"`
	SimilarityScore int             `json:"similarityScore"`
	Reason          string          `json:"reason"`
}
