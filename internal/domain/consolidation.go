package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DailyConsolidation holds the rolling totals for one calendar date. At most
// one instance exists per date, enforced by a unique constraint on date.
type DailyConsolidation struct {
	ID               uuid.UUID       `json:"id"`
	Date             time.Time       `json:"date"`
	TotalCredits     decimal.Decimal `json:"totalCredits"`
	TotalDebits      decimal.Decimal `json:"totalDebits"`
	Balance          decimal.Decimal `json:"balance"`
	TransactionCount int             `json:"transactionCount"`
	LastUpdated      time.Time       `json:"lastUpdated"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// NewDailyConsolidation creates a zeroed consolidation for the date.
func NewDailyConsolidation(date time.Time) *DailyConsolidation {
	now := time.Now().UTC()
	return &DailyConsolidation{
		ID:               uuid.New(),
		Date:             DateOnly(date),
		TotalCredits:     decimal.Zero,
		TotalDebits:      decimal.Zero,
		Balance:          decimal.Zero,
		TransactionCount: 0,
		LastUpdated:      now,
		CreatedAt:        now,
	}
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// AddCredit applies a credit: credits and balance grow by amount.
func (c *DailyConsolidation) AddCredit(amount decimal.Decimal) error {
	if err := validateConsolidationAmount(amount); err != nil {
		return err
	}
	c.TotalCredits = c.TotalCredits.Add(amount)
	c.Balance = c.Balance.Add(amount)
	c.TransactionCount++
	c.LastUpdated = time.Now().UTC()
	return nil
}

// AddDebit applies a debit: debits grow, balance shrinks by amount.
func (c *DailyConsolidation) AddDebit(amount decimal.Decimal) error {
	if err := validateConsolidationAmount(amount); err != nil {
		return err
	}
	c.TotalDebits = c.TotalDebits.Add(amount)
	c.Balance = c.Balance.Sub(amount)
	c.TransactionCount++
	c.LastUpdated = time.Now().UTC()
	return nil
}

// Recalculate overwrites all derived fields at once. Used by the recompute
// workflow after replaying the day's ledger.
func (c *DailyConsolidation) Recalculate(totalCredits, totalDebits decimal.Decimal, transactionCount int) error {
	if err := validateConsolidationAmount(totalCredits); err != nil {
		return err
	}
	if err := validateConsolidationAmount(totalDebits); err != nil {
		return err
	}
	if transactionCount < 0 {
		return ValidationError("Consolidation.InvalidCount", "transaction count cannot be negative")
	}
	c.TotalCredits = totalCredits
	c.TotalDebits = totalDebits
	c.Balance = totalCredits.Sub(totalDebits)
	c.TransactionCount = transactionCount
	c.LastUpdated = time.Now().UTC()
	return nil
}

func validateConsolidationAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ValidationError("Consolidation.InvalidAmount", "amount cannot be negative")
	}
	return nil
}
