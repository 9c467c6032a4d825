// Package reconcile compares a source batch of transactions against a
// target set, typically the ledger, and reports matches, unmatched
// records and field-level discrepancies.
package reconcile

import (
	"fmt"
	"time"

	"github.com/invario/invario/internal/domain"
)

// TransactionMatcher compares a source transaction against its target
// candidate and classifies the pair.
type TransactionMatcher interface {
	Compare(source, target domain.Transaction) domain.ReconciliationResult
}

// ExactMatcher requires equality on currency, amount, settlement date
// and, when both sides carry one, the document.
type ExactMatcher struct{}

func (ExactMatcher) Compare(source, target domain.Transaction) domain.ReconciliationResult {
	var discrepancies []domain.Discrepancy

	if source.Currency != target.Currency {
		discrepancies = append(discrepancies, domain.Discrepancy{
			FieldName:   "currency",
			SourceValue: source.Currency,
			TargetValue: target.Currency,
		})
	}

	if !source.Amount.Equal(target.Amount) {
		diff := source.Amount.Sub(target.Amount)
		discrepancies = append(discrepancies, domain.Discrepancy{
			FieldName:   "amount",
			SourceValue: source.Amount.String(),
			TargetValue: target.Amount.String(),
			Difference:  &diff,
		})
	}

	if !source.SettlementDate.Equal(target.SettlementDate) {
		discrepancies = append(discrepancies, dateDiscrepancy(source, target))
	}

	if source.Document != "" && target.Document != "" && source.Document != target.Document {
		discrepancies = append(discrepancies, domain.Discrepancy{
			FieldName:   "document",
			SourceValue: source.Document,
			TargetValue: target.Document,
		})
	}

	if len(discrepancies) == 0 {
		return domain.ReconciliationResult{
			Status:     domain.StatusMatched,
			SourceHash: source.ContentHash(),
			TargetHash: target.ContentHash(),
			Message:    "exact match confirmed",
		}
	}

	return domain.ReconciliationResult{
		Status:        domain.StatusDiscrepancy,
		SourceHash:    source.ContentHash(),
		TargetHash:    target.ContentHash(),
		Discrepancies: discrepancies,
		Message:       fmt.Sprintf("found %d discrepancies during exact match", len(discrepancies)),
	}
}

// DateToleranceMatcher requires exact currency and amount but accepts
// settlement dates within the tolerance window.
type DateToleranceMatcher struct {
	Tolerance time.Duration
}

// NewDateToleranceMatcher builds a matcher accepting dates up to
// toleranceDays apart.
func NewDateToleranceMatcher(toleranceDays int) DateToleranceMatcher {
	return DateToleranceMatcher{Tolerance: time.Duration(toleranceDays) * 24 * time.Hour}
}

func (m DateToleranceMatcher) Compare(source, target domain.Transaction) domain.ReconciliationResult {
	var discrepancies []domain.Discrepancy

	if source.Currency != target.Currency {
		discrepancies = append(discrepancies, domain.Discrepancy{
			FieldName:   "currency",
			SourceValue: source.Currency,
			TargetValue: target.Currency,
		})
	}

	if !source.Amount.Equal(target.Amount) {
		diff := source.Amount.Sub(target.Amount)
		discrepancies = append(discrepancies, domain.Discrepancy{
			FieldName:   "amount",
			SourceValue: source.Amount.String(),
			TargetValue: target.Amount.String(),
			Difference:  &diff,
		})
	}

	dateDiff := source.SettlementDate.Sub(target.SettlementDate)
	if dateDiff < 0 {
		dateDiff = -dateDiff
	}
	if dateDiff > m.Tolerance {
		discrepancies = append(discrepancies, dateDiscrepancy(source, target))
	}

	if len(discrepancies) == 0 {
		return domain.ReconciliationResult{
			Status:     domain.StatusMatched,
			SourceHash: source.ContentHash(),
			TargetHash: target.ContentHash(),
			Message:    fmt.Sprintf("matched with date tolerance (diff: %s)", dateDiff),
		}
	}

	return domain.ReconciliationResult{
		Status:        domain.StatusDiscrepancy,
		SourceHash:    source.ContentHash(),
		TargetHash:    target.ContentHash(),
		Discrepancies: discrepancies,
		Message:       "discrepancies found in tolerance match",
	}
}

func dateDiscrepancy(source, target domain.Transaction) domain.Discrepancy {
	return domain.Discrepancy{
		FieldName:   "settlement_date",
		SourceValue: source.SettlementDate.Format("2006-01-02"),
		TargetValue: target.SettlementDate.Format("2006-01-02"),
	}
}
