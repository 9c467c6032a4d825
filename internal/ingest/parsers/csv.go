package parsers

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/invario/invario/internal/domain"
)

const formatCSV = "csv"

// requiredColumns must all be present (case-insensitive) in the
// header row of a delimited file.
var requiredColumns = []string{
	"type",
	"amount",
	"currency",
	"source_account",
	"target_account",
	"document",
	"settlement_date",
	"bank_code",
}

// typeMap accepts full names and single-letter abbreviations.
var typeMap = map[string]domain.TransactionType{
	"credit":   domain.TypeCredit,
	"debit":    domain.TypeDebit,
	"transfer": domain.TypeTransfer,
	"c":        domain.TypeCredit,
	"d":        domain.TypeDebit,
	"t":        domain.TypeTransfer,
}

// ParseCSV parses a delimited text file into transactions. The header
// row is required. Rows without an id or idempotency key get
// deterministic v5 UUIDs derived from the sorted column/value pairs,
// so identical rows always dedup to the same identity.
//
// All-or-nothing: the first invalid row rejects the batch.
func ParseCSV(content string, delimiter rune) ([]domain.Transaction, error) {
	if strings.TrimSpace(content) == "" {
		return nil, newParseError(formatCSV, 0, -1, "", "empty CSV file")
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, newParseError(formatCSV, 0, -1, "", "malformed CSV: %v", err)
	}
	if len(records) == 0 {
		return nil, newParseError(formatCSV, 0, -1, "", "CSV has no header row")
	}

	header := make([]string, len(records[0]))
	headerSet := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		normalized := strings.ToLower(strings.TrimSpace(col))
		header[i] = normalized
		headerSet[normalized] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := headerSet[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, newParseError(formatCSV, 0, -1, records[0][0],
			"missing required columns in header: %s", strings.Join(missing, ", "))
	}

	var transactions []domain.Transaction

	for i, record := range records[1:] {
		rowNumber := i + 2 // row 1 is the header
		row := make(map[string]string, len(header))
		for j, col := range header {
			if j < len(record) {
				row[col] = record[j]
			}
		}

		tx, err := parseCSVRow(row, rowNumber)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	if len(transactions) == 0 {
		return nil, newParseError(formatCSV, 0, -1, "", "no data rows in CSV file")
	}

	return transactions, nil
}

func parseCSVRow(row map[string]string, rowNumber int) (domain.Transaction, error) {
	raw := canonicalRow(row)

	typeStr := strings.ToLower(strings.TrimSpace(row["type"]))
	txType, ok := typeMap[typeStr]
	if !ok {
		return domain.Transaction{}, newParseError(formatCSV, rowNumber, -1, raw,
			"invalid transaction type: %q", typeStr)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(row["amount"]))
	if err != nil {
		return domain.Transaction{}, newParseError(formatCSV, rowNumber, -1, raw,
			"invalid amount: %q", row["amount"])
	}
	if amount.Sign() <= 0 {
		return domain.Transaction{}, newParseError(formatCSV, rowNumber, -1, raw,
			"amount must be positive: %s", amount)
	}

	settlementDate, err := parseCSVDate(strings.TrimSpace(row["settlement_date"]))
	if err != nil {
		return domain.Transaction{}, newParseError(formatCSV, rowNumber, -1, raw, "%v", err)
	}

	idempotencyKey, err := csvIdempotencyKey(row)
	if err != nil {
		return domain.Transaction{}, newParseError(formatCSV, rowNumber, -1, raw, "%v", err)
	}

	txID, err := csvTransactionID(row)
	if err != nil {
		return domain.Transaction{}, newParseError(formatCSV, rowNumber, -1, raw, "%v", err)
	}

	return domain.Transaction{
		ID:             txID,
		Type:           txType,
		Amount:         amount,
		Currency:       strings.ToUpper(strings.TrimSpace(row["currency"])),
		SourceAccount:  strings.TrimSpace(row["source_account"]),
		TargetAccount:  strings.TrimSpace(row["target_account"]),
		Document:       strings.TrimSpace(row["document"]),
		SettlementDate: settlementDate,
		Description:    strings.TrimSpace(row["description"]),
		IdempotencyKey: idempotencyKey,
		BankCode:       strings.TrimSpace(row["bank_code"]),
		RawLine:        raw,
	}, nil
}

// parseCSVDate accepts ISO (YYYY-MM-DD) or day-first (DD/MM/YYYY)
// dates.
func parseCSVDate(s string) (time.Time, error) {
	if strings.Contains(s, "-") && len(s) == 10 {
		return time.Parse("2006-01-02", s)
	}
	if strings.Contains(s, "/") {
		return time.Parse("02/01/2006", s)
	}
	return time.Time{}, fmt.Errorf("unknown date format: %q, expected YYYY-MM-DD or DD/MM/YYYY", s)
}

// csvIdempotencyKey uses the supplied key when present, otherwise
// derives a deterministic v5 UUID from the row content.
func csvIdempotencyKey(row map[string]string) (uuid.UUID, error) {
	if supplied := strings.TrimSpace(row["idempotency_key"]); supplied != "" {
		key, err := uuid.Parse(supplied)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid idempotency_key UUID: %q", supplied)
		}
		return key, nil
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("idem:"+canonicalRow(row))), nil
}

// csvTransactionID derives a deterministic v5 UUID from the full row
// content so identical rows produce the same transaction identity.
func csvTransactionID(row map[string]string) (uuid.UUID, error) {
	if supplied := strings.TrimSpace(row["id"]); supplied != "" {
		id, err := uuid.Parse(supplied)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid id UUID: %q", supplied)
		}
		return id, nil
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("tx:"+canonicalRow(row))), nil
}

// canonicalRow renders the row as sorted key:value pairs, the stable
// basis for derived identities and the audit copy.
func canonicalRow(row map[string]string) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+":"+row[k])
	}
	return strings.Join(pairs, ",")
}
