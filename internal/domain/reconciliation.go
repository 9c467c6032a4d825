package domain

import "github.com/shopspring/decimal"

// MatchStatus is the outcome of reconciling a single record.
type MatchStatus string

const (
	StatusMatched         MatchStatus = "matched"
	StatusUnmatchedSource MatchStatus = "unmatched_source"
	StatusUnmatchedTarget MatchStatus = "unmatched_target"
	StatusDiscrepancy     MatchStatus = "discrepancy"
)

// Discrepancy describes a single field-level mismatch found during
// reconciliation. Difference is set only for amount fields.
type Discrepancy struct {
	FieldName   string           `json:"field_name"`
	SourceValue string           `json:"source_value"`
	TargetValue string           `json:"target_value"`
	Difference  *decimal.Decimal `json:"difference,omitempty"`
}

// ReconciliationResult is the outcome for one reconciled record.
type ReconciliationResult struct {
	Status        MatchStatus   `json:"status"`
	SourceHash    string        `json:"source_hash,omitempty"`
	TargetHash    string        `json:"target_hash,omitempty"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// IsMatched reports whether the record reconciled cleanly.
func (r ReconciliationResult) IsMatched() bool {
	return r.Status == StatusMatched
}

// HasDiscrepancies reports whether field-level mismatches were found.
func (r ReconciliationResult) HasDiscrepancies() bool {
	return len(r.Discrepancies) > 0
}

// ReconciliationReport aggregates a reconciliation batch.
type ReconciliationReport struct {
	TotalRecords    int                    `json:"total_records"`
	Matched         int                    `json:"matched"`
	UnmatchedSource int                    `json:"unmatched_source"`
	UnmatchedTarget int                    `json:"unmatched_target"`
	Discrepancies   int                    `json:"discrepancies"`
	Results         []ReconciliationResult `json:"results"`
}

// IsFullyReconciled reports whether every record matched.
func (r ReconciliationReport) IsFullyReconciled() bool {
	return r.Matched == r.TotalRecords
}
