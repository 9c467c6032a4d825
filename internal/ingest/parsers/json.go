package parsers

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/invario/invario/internal/domain"
)

const formatJSON = "json"

// jsonTransaction is the wire shape of a single record. Amount stays
// raw so both "100.50" and 100.50 are accepted without float
// precision loss.
type jsonTransaction struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Amount         json.RawMessage `json:"amount"`
	Currency       string          `json:"currency"`
	SourceAccount  string          `json:"source_account"`
	TargetAccount  string          `json:"target_account"`
	Document       string          `json:"document"`
	SettlementDate string          `json:"settlement_date"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotency_key"`
	BankCode       string          `json:"bank_code"`
}

// ParseJSON parses a structured-object file into transactions. The
// input is either a top-level array of records or an object with a
// "transactions" array. Missing ids and idempotency keys default to
// random UUIDs.
//
// All-or-nothing: the first invalid record rejects the batch.
func ParseJSON(content []byte) ([]domain.Transaction, error) {
	if len(content) == 0 {
		return nil, newParseError(formatJSON, 0, -1, "", "empty JSON content")
	}

	items, err := decodeJSONItems(content)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, newParseError(formatJSON, 0, -1, "", "no transactions in JSON data")
	}

	transactions := make([]domain.Transaction, 0, len(items))
	for i, item := range items {
		tx, err := parseJSONTransaction(item, i)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, nil
}

func decodeJSONItems(content []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(content))

	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(content, &items); err != nil {
			return nil, newParseError(formatJSON, 0, -1, trimmed, "invalid JSON: %v", err)
		}
		return items, nil
	}

	var envelope struct {
		Transactions *[]json.RawMessage `json:"transactions"`
	}
	if err := json.Unmarshal(content, &envelope); err != nil {
		return nil, newParseError(formatJSON, 0, -1, trimmed, "invalid JSON: %v", err)
	}
	if envelope.Transactions == nil {
		return nil, newParseError(formatJSON, 0, -1, trimmed,
			"expected a JSON array or object with 'transactions' key")
	}
	return *envelope.Transactions, nil
}

func parseJSONTransaction(raw json.RawMessage, index int) (domain.Transaction, error) {
	context := string(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Transaction{}, newParseError(formatJSON, 0, index, context,
			"transaction must be a JSON object")
	}

	required := []string{
		"type", "amount", "currency", "source_account",
		"target_account", "document", "settlement_date", "bank_code",
	}
	var missing []string
	for _, field := range required {
		if _, ok := fields[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.Transaction{}, newParseError(formatJSON, 0, index, context,
			"missing required fields: %s", strings.Join(missing, ", "))
	}

	var record jsonTransaction
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.Transaction{}, newParseError(formatJSON, 0, index, context,
			"malformed transaction object: %v", err)
	}

	typeStr := strings.ToLower(record.Type)
	txType := domain.TransactionType(typeStr)
	if !txType.Valid() {
		return domain.Transaction{}, newParseError(formatJSON, 0, index, context,
			"invalid transaction type: %q", record.Type)
	}

	amountStr := strings.Trim(strings.TrimSpace(string(record.Amount)), `"`)
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return domain.Transaction{}, newParseError(formatJSON, 0, index, context,
			"invalid amount: %q", amountStr)
	}
	if amount.Sign() <= 0 {
		return domain.Transaction{}, newParseError(formatJSON, 0, index, context,
			"amount must be positive: %s", amount)
	}

	settlementDate, err := time.Parse("2006-01-02", record.SettlementDate)
	if err != nil {
		return domain.Transaction{}, newParseError(formatJSON, 0, index, context,
			"invalid date format: %q, expected YYYY-MM-DD", record.SettlementDate)
	}

	idempotencyKey := uuid.New()
	if record.IdempotencyKey != "" {
		idempotencyKey, err = uuid.Parse(record.IdempotencyKey)
		if err != nil {
			return domain.Transaction{}, newParseError(formatJSON, 0, index, context,
				"invalid idempotency_key UUID: %q", record.IdempotencyKey)
		}
	}

	txID := uuid.New()
	if record.ID != "" {
		if parsed, err := uuid.Parse(record.ID); err == nil {
			txID = parsed
		}
	}

	return domain.Transaction{
		ID:             txID,
		Type:           txType,
		Amount:         amount,
		Currency:       strings.ToUpper(record.Currency),
		SourceAccount:  record.SourceAccount,
		TargetAccount:  record.TargetAccount,
		Document:       record.Document,
		SettlementDate: settlementDate,
		Description:    record.Description,
		IdempotencyKey: idempotencyKey,
		BankCode:       record.BankCode,
		RawLine:        context,
	}, nil
}
