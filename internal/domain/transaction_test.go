package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func baseTransaction() Transaction {
	return Transaction{
		ID:             uuid.MustParse("a8098c1a-f86e-11da-bd1a-00112444be1e"),
		Type:           TypeCredit,
		Amount:         decimal.RequireFromString("150.00"),
		Currency:       "BRL",
		SourceAccount:  "12345-6",
		TargetAccount:  "65432-1",
		Document:       "52998224725",
		SettlementDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: uuid.MustParse("b9198c1a-f86e-11da-bd1a-00112444be1e"),
		BankCode:       "341",
	}
}

func TestTransactionType_Valid(t *testing.T) {
	assert.True(t, TypeCredit.Valid())
	assert.True(t, TypeDebit.Valid())
	assert.True(t, TypeTransfer.Valid())
	assert.False(t, TransactionType("withdrawal").Valid())
	assert.False(t, TransactionType("").Valid())
}

func TestContentHash_Deterministic(t *testing.T) {
	a := baseTransaction()
	b := baseTransaction()
	assert.Equal(t, a.ContentHash(), b.ContentHash())
	assert.Len(t, a.ContentHash(), 64)
}

func TestContentHash_IgnoresMetadata(t *testing.T) {
	a := baseTransaction()
	b := baseTransaction()
	b.Description = "pagamento fornecedor"
	b.RawLine = "raw file line"
	assert.Equal(t, a.ContentHash(), b.ContentHash())
}

func TestContentHash_SensitiveToIdentityFields(t *testing.T) {
	base := baseTransaction()

	mutations := map[string]func(*Transaction){
		"id":              func(tx *Transaction) { tx.ID = uuid.New() },
		"type":            func(tx *Transaction) { tx.Type = TypeDebit },
		"amount":          func(tx *Transaction) { tx.Amount = decimal.RequireFromString("150.01") },
		"currency":        func(tx *Transaction) { tx.Currency = "USD" },
		"source_account":  func(tx *Transaction) { tx.SourceAccount = "other" },
		"target_account":  func(tx *Transaction) { tx.TargetAccount = "other" },
		"document":        func(tx *Transaction) { tx.Document = "11222333000181" },
		"settlement_date": func(tx *Transaction) { tx.SettlementDate = tx.SettlementDate.AddDate(0, 0, 1) },
		"idempotency_key": func(tx *Transaction) { tx.IdempotencyKey = uuid.New() },
		"bank_code":       func(tx *Transaction) { tx.BankCode = "001" },
	}

	for field, mutate := range mutations {
		tx := baseTransaction()
		mutate(&tx)
		assert.NotEqual(t, base.ContentHash(), tx.ContentHash(), "field %s should change the hash", field)
	}
}

func TestContentHash_AmountCanonicalized(t *testing.T) {
	a := baseTransaction()
	a.Amount = decimal.RequireFromString("150")
	b := baseTransaction()
	b.Amount = decimal.RequireFromString("150.00")
	assert.Equal(t, a.ContentHash(), b.ContentHash())
}
