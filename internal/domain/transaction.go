package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a financial transaction.
type TransactionType string

const (
	TypeCredit   TransactionType = "credit"
	TypeDebit    TransactionType = "debit"
	TypeTransfer TransactionType = "transfer"
)

// Valid reports whether the type is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeCredit, TypeDebit, TypeTransfer:
		return true
	}
	return false
}

// Transaction represents an immutable financial transaction.
// All monetary values use decimal.Decimal for precision, never float.
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	Type           TransactionType `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	SourceAccount  string          `json:"source_account"`
	TargetAccount  string          `json:"target_account"`
	Document       string          `json:"document"`
	SettlementDate time.Time       `json:"settlement_date"`
	Description    string          `json:"description"`
	IdempotencyKey uuid.UUID       `json:"idempotency_key"`
	BankCode       string          `json:"bank_code"`
	RawLine        string          `json:"raw_line,omitempty"`
}

// ContentHash returns the SHA-256 digest of the transaction's
// identity-bearing fields, used for deduplication and integrity
// verification. Description and RawLine are metadata and excluded.
//
// The amount is canonicalized to two decimal places and the date to
// ISO form so the digest is stable regardless of how the values were
// originally parsed.
func (tx Transaction) ContentHash() string {
	content := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		tx.ID,
		tx.Type,
		tx.Amount.StringFixed(2),
		tx.Currency,
		tx.SourceAccount,
		tx.TargetAccount,
		tx.Document,
		tx.SettlementDate.Format("2006-01-02"),
		tx.IdempotencyKey,
		tx.BankCode,
	)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
