package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/cashflow/internal/domain"
)

type staticReader struct {
	txs []domain.Transaction
}

func (r *staticReader) GetByDateRange(ctx context.Context, start, end time.Time) ([]domain.Transaction, error) {
	return r.txs, nil
}

var (
	scanDate = time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	scanNow  = time.Date(2026, 2, 3, 12, 10, 0, 0, time.UTC)
)

func newTestDetector(txs []domain.Transaction) *Detector {
	d := NewDetector(&staticReader{txs: txs}, zerolog.Nop())
	d.now = func() time.Time { return scanNow }
	return d
}

func existingTx(amount string, typ domain.TransactionType, desc string, date, createdAt time.Time, ref string) domain.Transaction {
	return domain.Transaction{
		ID:              uuid.New(),
		Amount:          decimal.RequireFromString(amount),
		Type:            typ,
		Description:     desc,
		TransactionDate: date,
		CreatedAt:       createdAt,
		Reference:       ref,
	}
}

func TestDetector_RecentIdenticalSubmission(t *testing.T) {
	// Same amount and kind, created two minutes before the scan: 40+60.
	existing := existingTx("100.50", domain.Credit, "completely unrelated text here", scanDate, scanNow.Add(-2*time.Minute), "")

	dups, err := newTestDetector([]domain.Transaction{existing}).
		FindPotentialDuplicates(context.Background(), decimal.RequireFromString("100.50"), "Credit", "Sale", scanDate, "")
	require.NoError(t, err)
	require.Len(t, dups, 1)

	assert.GreaterOrEqual(t, dups[0].SimilarityScore, 100)
	assert.Equal(t, existing.ID, dups[0].TransactionID)
	assert.Contains(t, dups[0].Reason, "Same amount and type")
	assert.Contains(t, dups[0].Reason, "Created within 5 minutes")
}

func TestDetector_AmountMatchAloneIsBelowThreshold(t *testing.T) {
	// Same amount and kind but a different date, created long ago: 40 < 70.
	existing := existingTx("100.50", domain.Credit, "unrelated words entirely", scanDate.AddDate(0, 0, -1), scanNow.Add(-48*time.Hour), "")

	dups, err := newTestDetector([]domain.Transaction{existing}).
		FindPotentialDuplicates(context.Background(), decimal.RequireFromString("100.50"), "Credit", "Sale", scanDate, "")
	require.NoError(t, err)
	assert.Empty(t, dups)
}

func TestDetector_SameDateCrossesThreshold(t *testing.T) {
	// Same amount, kind and transaction date, created yesterday: 40+35.
	existing := existingTx("100.50", domain.Debit, "unrelated words entirely", scanDate, scanNow.Add(-24*time.Hour), "")

	dups, err := newTestDetector([]domain.Transaction{existing}).
		FindPotentialDuplicates(context.Background(), decimal.RequireFromString("100.50"), "debit", "Sale", scanDate, "")
	require.NoError(t, err)
	require.Len(t, dups, 1)

	assert.Equal(t, 75, dups[0].SimilarityScore)
	assert.Contains(t, dups[0].Reason, "Same transaction date")
}

func TestDetector_DescriptionAndReferenceSignals(t *testing.T) {
	// Different amount, so only description (30) + reference (50) apply.
	existing := existingTx("99.99", domain.Credit, "Invoice INV-2031 payment", scanDate, scanNow.Add(-24*time.Hour), "INV-2031")

	dups, err := newTestDetector([]domain.Transaction{existing}).
		FindPotentialDuplicates(context.Background(), decimal.RequireFromString("42.00"), "Credit", "invoice inv-2031 payment", scanDate, "inv-2031")
	require.NoError(t, err)
	require.Len(t, dups, 1)

	assert.Equal(t, 80, dups[0].SimilarityScore)
	assert.Contains(t, dups[0].Reason, "Similar description")
	assert.Contains(t, dups[0].Reason, "Same reference number")
}

func TestDetector_OrdersByScoreDescending(t *testing.T) {
	lower := existingTx("100.50", domain.Credit, "no overlap at all", scanDate, scanNow.Add(-24*time.Hour), "")
	higher := existingTx("100.50", domain.Credit, "no overlap at all", scanDate, scanNow.Add(-1*time.Minute), "")

	dups, err := newTestDetector([]domain.Transaction{lower, higher}).
		FindPotentialDuplicates(context.Background(), decimal.RequireFromString("100.50"), "Credit", "Sale", scanDate, "")
	require.NoError(t, err)
	require.Len(t, dups, 2)

	assert.Equal(t, higher.ID, dups[0].TransactionID)
	assert.Equal(t, lower.ID, dups[1].TransactionID)
	assert.GreaterOrEqual(t, dups[0].SimilarityScore, dups[1].SimilarityScore)
}

func TestDetector_EmptyReferencesNeverMatch(t *testing.T) {
	existing := existingTx("100.50", domain.Credit, "no overlap at all", scanDate, scanNow.Add(-24*time.Hour), "")

	// 40 (amount+type) + 35 (same date) = 75 without the reference rule; an
	// empty-vs-empty reference must not add 50.
	dups, err := newTestDetector([]domain.Transaction{existing}).
		FindPotentialDuplicates(context.Background(), decimal.RequireFromString("100.50"), "Credit", "Sale", scanDate, "")
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, 75, dups[0].SimilarityScore)
}
