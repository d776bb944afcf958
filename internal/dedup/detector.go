package dedup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/cashflow/internal/domain"
)

// Scoring weights. Scores are additive across independent signals and can
// exceed 100 when several rules hit.
const (
	scoreAmountAndType   = 40
	scoreRecentCreation  = 60
	scoreSameDate        = 35
	scoreSimilarText     = 30
	scoreSameReference   = 50
	reportThreshold      = 70
	similarityThreshold  = 80
	recentCreationWindow = 5 * time.Minute
)

// TransactionReader is the read-only ledger lookup the detector scans with.
type TransactionReader interface {
	GetByDateRange(ctx context.Context, start, end time.Time) ([]domain.Transaction, error)
}

// Detector flags probable duplicate transactions with weighted heuristics.
// Its output is advisory and never blocks admission.
type Detector struct {
	reader TransactionReader
	now    func() time.Time
	log    zerolog.Logger
}

func NewDetector(reader TransactionReader, log zerolog.Logger) *Detector {
	return &Detector{reader: reader, now: time.Now, log: log}
}

// FindPotentialDuplicates scans the ledger window [date-1, date+1] and
// scores each existing transaction against the candidate. Matches at or
// above the report threshold come back ordered by score descending.
func (d *Detector) FindPotentialDuplicates(
	ctx context.Context,
	amount decimal.Decimal,
	typ string,
	description string,
	date time.Time,
	reference string,
) ([]domain.PotentialDuplicate, error) {
	day := domain.DateOnly(date)
	start := day.AddDate(0, 0, -1)
	end := day.AddDate(0, 0, 1)

	existing, err := d.reader.GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("dedup window query failed: %w", err)
	}

	var duplicates []domain.PotentialDuplicate
	for _, tx := range existing {
		score, reasons := d.scoreCandidate(tx, amount, typ, description, day, reference)
		if score < reportThreshold {
			continue
		}
		duplicates = append(duplicates, domain.PotentialDuplicate{
			TransactionID:   tx.ID,
			Amount:          tx.Amount,
			Type:            tx.Type,
			Description:     tx.Description,
			TransactionDate: tx.TransactionDate,
			CreatedAt:       tx.CreatedAt,
			SimilarityScore: score,
			Reason:          strings.Join(reasons, "; "),
		})
	}

	sort.SliceStable(duplicates, func(i, j int) bool {
		return duplicates[i].SimilarityScore > duplicates[j].SimilarityScore
	})

	if len(duplicates) > 0 {
		d.log.Warn().
			Int("count", len(duplicates)).
			Str("type", typ).
			Time("date", day).
			Msg("potential duplicates detected")
	}

	return duplicates, nil
}

func (d *Detector) scoreCandidate(
	tx domain.Transaction,
	amount decimal.Decimal,
	typ string,
	description string,
	day time.Time,
	reference string,
) (int, []string) {
	score := 0
	var reasons []string

	if tx.Amount.Equal(amount) && strings.EqualFold(string(tx.Type), typ) {
		score += scoreAmountAndType
		reasons = append(reasons, "Same amount and type")

		// The recency check compares the existing record's creation time to
		// the current wall clock, not the candidate's date. Kept as the
		// system has always behaved: a proxy for "just submitted".
		sinceCreation := d.now().Sub(tx.CreatedAt)
		if sinceCreation < 0 {
			sinceCreation = -sinceCreation
		}
		if sinceCreation <= recentCreationWindow {
			score += scoreRecentCreation
			reasons = append(reasons, "Created within 5 minutes")
		} else if domain.DateOnly(tx.TransactionDate).Equal(day) {
			score += scoreSameDate
			reasons = append(reasons, "Same transaction date")
		}
	}

	if sim := Similarity(tx.Description, description); sim >= similarityThreshold {
		score += scoreSimilarText
		reasons = append(reasons, fmt.Sprintf("Similar description (%d%% match)", sim))
	}

	if reference != "" && tx.Reference != "" && strings.EqualFold(tx.Reference, reference) {
		score += scoreSameReference
		reasons = append(reasons, "Same reference number")
	}

	return score, reasons
}
