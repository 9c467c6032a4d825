package reconcile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invario/invario/internal/domain"
)

func makeTransaction(amount string) domain.Transaction {
	return domain.Transaction{
		ID:             uuid.New(),
		Type:           domain.TypeCredit,
		Amount:         decimal.RequireFromString(amount),
		Currency:       "BRL",
		SourceAccount:  "12345-6",
		TargetAccount:  "65432-1",
		Document:       "52998224725",
		SettlementDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: uuid.New(),
		BankCode:       "341",
	}
}

func TestReconcile_AllMatched(t *testing.T) {
	engine := NewEngine(nil)

	sources := []domain.Transaction{makeTransaction("100.00"), makeTransaction("50.00")}
	targets := []domain.Transaction{sources[1], sources[0]}

	report := engine.Reconcile(sources, targets)

	assert.Equal(t, 2, report.TotalRecords)
	assert.Equal(t, 2, report.Matched)
	assert.True(t, report.IsFullyReconciled())
}

func TestReconcile_AmountDiscrepancy(t *testing.T) {
	engine := NewEngine(nil)

	source := makeTransaction("100.00")
	target := source
	target.Amount = decimal.RequireFromString("90.00")

	report := engine.Reconcile([]domain.Transaction{source}, []domain.Transaction{target})

	require.Equal(t, 1, report.Discrepancies)
	require.Len(t, report.Results, 1)

	result := report.Results[0]
	assert.Equal(t, domain.StatusDiscrepancy, result.Status)
	require.Len(t, result.Discrepancies, 1)

	d := result.Discrepancies[0]
	assert.Equal(t, "amount", d.FieldName)
	require.NotNil(t, d.Difference)
	assert.True(t, d.Difference.Equal(decimal.RequireFromString("10.00")))
}

func TestReconcile_UnmatchedBothWays(t *testing.T) {
	engine := NewEngine(nil)

	onlySource := makeTransaction("10.00")
	onlyTarget := makeTransaction("20.00")
	shared := makeTransaction("30.00")

	report := engine.Reconcile(
		[]domain.Transaction{onlySource, shared},
		[]domain.Transaction{shared, onlyTarget},
	)

	assert.Equal(t, 3, report.TotalRecords)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.UnmatchedSource)
	assert.Equal(t, 1, report.UnmatchedTarget)
	assert.False(t, report.IsFullyReconciled())
}

func TestReconcile_EmptySets(t *testing.T) {
	engine := NewEngine(nil)

	report := engine.Reconcile(nil, nil)
	assert.Equal(t, 0, report.TotalRecords)
	assert.True(t, report.IsFullyReconciled())
}

func TestExactMatcher_MultipleDiscrepancies(t *testing.T) {
	source := makeTransaction("100.00")
	target := source
	target.Currency = "USD"
	target.Amount = decimal.RequireFromString("99.00")
	target.SettlementDate = target.SettlementDate.AddDate(0, 0, 2)
	target.Document = "11222333000181"

	result := ExactMatcher{}.Compare(source, target)

	assert.Equal(t, domain.StatusDiscrepancy, result.Status)
	require.Len(t, result.Discrepancies, 4)

	fields := make([]string, 0, len(result.Discrepancies))
	for _, d := range result.Discrepancies {
		fields = append(fields, d.FieldName)
	}
	assert.Equal(t, []string{"currency", "amount", "settlement_date", "document"}, fields)
}

func TestExactMatcher_DocumentIgnoredWhenMissing(t *testing.T) {
	source := makeTransaction("100.00")
	source.Document = ""
	target := source
	target.Document = "52998224725"

	result := ExactMatcher{}.Compare(source, target)
	assert.Equal(t, domain.StatusMatched, result.Status)
}

func TestDateToleranceMatcher(t *testing.T) {
	matcher := NewDateToleranceMatcher(1)

	source := makeTransaction("100.00")

	within := source
	within.SettlementDate = source.SettlementDate.AddDate(0, 0, 1)
	assert.Equal(t, domain.StatusMatched, matcher.Compare(source, within).Status)

	beyond := source
	beyond.SettlementDate = source.SettlementDate.AddDate(0, 0, 2)
	result := matcher.Compare(source, beyond)
	assert.Equal(t, domain.StatusDiscrepancy, result.Status)
	require.Len(t, result.Discrepancies, 1)
	assert.Equal(t, "settlement_date", result.Discrepancies[0].FieldName)
}

func TestDateToleranceMatcher_AmountStillExact(t *testing.T) {
	matcher := NewDateToleranceMatcher(3)

	source := makeTransaction("100.00")
	target := source
	target.Amount = decimal.RequireFromString("100.01")

	result := matcher.Compare(source, target)
	assert.Equal(t, domain.StatusDiscrepancy, result.Status)
	require.Len(t, result.Discrepancies, 1)
	assert.Equal(t, "amount", result.Discrepancies[0].FieldName)
}
