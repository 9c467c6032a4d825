package parsers

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/invario/invario/internal/domain"
)

// CNAB 240 layout constants (0-indexed byte positions).
const (
	cnab240LineLength     = 240
	cnab240RecordTypePos  = 7
	cnab240SegmentTypePos = 13
	cnab240BankCodeStart  = 0
	cnab240BankCodeEnd    = 3
)

const formatCNAB = "cnab"

// ParseCNAB parses a CNAB 240 file into transactions. Lines whose
// record type (position 7) is not '3' are skipped; only detail
// segments 'A' (transfer) and 'J' (boleto debit) are understood.
// CNAB 400 is recognized by line length and rejected explicitly
// rather than guessed at.
//
// All-or-nothing: any malformed detail line rejects the whole file.
func ParseCNAB(content string) ([]domain.Transaction, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	firstLineLen := 0
	for _, line := range lines {
		if line != "" {
			firstLineLen = len(line)
			break
		}
	}
	if firstLineLen == 0 {
		return nil, newParseError(formatCNAB, 0, -1, "", "empty CNAB file")
	}

	var transactions []domain.Transaction

	for i, line := range lines {
		lineNumber := i + 1
		stripped := strings.TrimRight(line, "\r\n")
		if stripped == "" {
			continue
		}

		if firstLineLen != cnab240LineLength && len(stripped) != cnab240LineLength {
			return nil, newParseError(formatCNAB, lineNumber, -1, stripped,
				"CNAB 400 format not supported (line length: %d)", len(stripped))
		}

		tx, skip, err := parseCNAB240Detail(stripped, lineNumber)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		transactions = append(transactions, tx)
	}

	if len(transactions) == 0 {
		return nil, newParseError(formatCNAB, 0, -1, "", "no valid transactions found in CNAB file")
	}

	return transactions, nil
}

// parseCNAB240Detail parses one 240-byte line. The skip return is true
// for non-detail records (header, trailer), which are not errors.
func parseCNAB240Detail(line string, lineNumber int) (domain.Transaction, bool, error) {
	if len(line) != cnab240LineLength {
		return domain.Transaction{}, false, newParseError(formatCNAB, lineNumber, -1, line,
			"line length must be %d, got %d", cnab240LineLength, len(line))
	}

	if line[cnab240RecordTypePos] != '3' {
		return domain.Transaction{}, true, nil
	}

	bankCode := line[cnab240BankCodeStart:cnab240BankCodeEnd]

	switch line[cnab240SegmentTypePos] {
	case 'A':
		tx, err := parseSegmentA(line, bankCode, lineNumber)
		return tx, false, err
	case 'J':
		tx, err := parseSegmentJ(line, bankCode, lineNumber)
		return tx, false, err
	default:
		return domain.Transaction{}, false, newParseError(formatCNAB, lineNumber, -1, line,
			"unsupported segment type: %q", string(line[cnab240SegmentTypePos]))
	}
}

// parseSegmentA parses a segment A detail (credit/payment transfer),
// FEBRABAN field positions.
func parseSegmentA(line, bankCode string, lineNumber int) (domain.Transaction, error) {
	targetBank := line[17:20]
	targetAccount := strings.TrimSpace(line[20:33])
	sourceAccount := strings.TrimSpace(line[58:71])

	settlementDate, err := parseCNABDate(line[93:101])
	if err != nil {
		return domain.Transaction{}, newParseError(formatCNAB, lineNumber, -1, line, "segment A: %v", err)
	}

	amount, err := parseCNABAmount(strings.TrimSpace(line[119:134]))
	if err != nil {
		return domain.Transaction{}, newParseError(formatCNAB, lineNumber, -1, line, "segment A: %v", err)
	}

	document := strings.TrimSpace(line[134:148])
	if document == "" {
		document = "00000000000"
	}

	return domain.Transaction{
		ID:             uuid.New(),
		Type:           domain.TypeTransfer,
		Amount:         amount,
		Currency:       "BRL",
		SourceAccount:  sourceAccount,
		TargetAccount:  targetBank + "-" + targetAccount,
		Document:       document,
		SettlementDate: settlementDate,
		Description:    strings.TrimSpace(line[177:217]),
		IdempotencyKey: uuid.New(),
		BankCode:       bankCode,
		RawLine:        line,
	}, nil
}

// parseSegmentJ parses a segment J detail (boleto/payment slip). The
// target account derives from the first ten barcode characters.
func parseSegmentJ(line, bankCode string, lineNumber int) (domain.Transaction, error) {
	barcode := strings.TrimSpace(line[17:61])
	targetAccount := "0000000000"
	if barcode != "" {
		if len(barcode) > 10 {
			targetAccount = barcode[:10]
		} else {
			targetAccount = barcode
		}
	}

	settlementDate, err := parseCNABDate(line[91:99])
	if err != nil {
		return domain.Transaction{}, newParseError(formatCNAB, lineNumber, -1, line, "segment J: %v", err)
	}

	amount, err := parseCNABAmount(strings.TrimSpace(line[99:114]))
	if err != nil {
		return domain.Transaction{}, newParseError(formatCNAB, lineNumber, -1, line, "segment J: %v", err)
	}

	document := strings.TrimSpace(line[114:128])
	if document == "" {
		document = "00000000000"
	}

	return domain.Transaction{
		ID:             uuid.New(),
		Type:           domain.TypeDebit,
		Amount:         amount,
		Currency:       "BRL",
		SourceAccount:  "boleto",
		TargetAccount:  targetAccount,
		Document:       document,
		SettlementDate: settlementDate,
		Description:    strings.TrimSpace(line[140:180]),
		IdempotencyKey: uuid.New(),
		BankCode:       bankCode,
		RawLine:        line,
	}, nil
}

// parseCNABDate parses the DDMMYYYY date field.
func parseCNABDate(s string) (time.Time, error) {
	if len(s) != 8 || !isAllDigits(s) {
		return time.Time{}, &ParseError{Format: formatCNAB, Index: -1,
			Reason: "invalid CNAB date format: " + s + ", expected DDMMYYYY"}
	}
	return time.Parse("02012006", s)
}

// parseCNABAmount parses a digits-only amount where the last two
// digits are cents.
func parseCNABAmount(s string) (decimal.Decimal, error) {
	if !isAllDigits(s) {
		return decimal.Decimal{}, &ParseError{Format: formatCNAB, Index: -1,
			Reason: "invalid CNAB amount format: " + s}
	}
	cents, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return cents.Shift(-2), nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
