package reconcile

import "github.com/invario/invario/internal/domain"

// generateReport aggregates individual results into batch totals.
func generateReport(results []domain.ReconciliationResult) domain.ReconciliationReport {
	report := domain.ReconciliationReport{
		TotalRecords: len(results),
		Results:      results,
	}

	for _, res := range results {
		switch res.Status {
		case domain.StatusMatched:
			report.Matched++
		case domain.StatusUnmatchedSource:
			report.UnmatchedSource++
		case domain.StatusUnmatchedTarget:
			report.UnmatchedTarget++
		case domain.StatusDiscrepancy:
			report.Discrepancies++
		}
	}

	return report
}
