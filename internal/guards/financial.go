// Package guards implements pure validation functions for financial
// data. Each guard accepts a single value, returns a normalized value
// on success and a kind-tagged *Violation on failure. Guards never
// silently coerce.
package guards

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ViolationKind identifies which rule a guard rejected on.
type ViolationKind string

const (
	KindAmount         ViolationKind = "amount"
	KindCurrency       ViolationKind = "currency"
	KindDocument       ViolationKind = "document"
	KindBankCode       ViolationKind = "bank_code"
	KindSettlementDate ViolationKind = "settlement_date"
	KindIdempotencyKey ViolationKind = "idempotency_key"
)

// Violation is the error every guard fails with. Value carries the
// offending input, truncated so raw file data cannot flood logs.
type Violation struct {
	Kind    ViolationKind
	Message string
	Value   string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("guard violation (%s): %s", v.Kind, v.Message)
}

func newViolation(kind ViolationKind, value, format string, args ...any) *Violation {
	return &Violation{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Value:   truncate(value, 64),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// validCurrencyCodes is the ISO 4217 subset accepted for settlement.
var validCurrencyCodes = map[string]struct{}{
	"AED": {}, "ARS": {}, "AUD": {}, "BRL": {}, "CAD": {}, "CHF": {}, "CLP": {}, "CNY": {},
	"COP": {}, "CZK": {}, "DKK": {}, "EUR": {}, "GBP": {}, "HKD": {}, "HUF": {}, "IDR": {},
	"ILS": {}, "INR": {}, "JPY": {}, "KRW": {}, "MXN": {}, "MYR": {}, "NOK": {}, "NZD": {},
	"PEN": {}, "PHP": {}, "PLN": {}, "RON": {}, "RUB": {}, "SAR": {}, "SEK": {}, "SGD": {},
	"THB": {}, "TRY": {}, "TWD": {}, "UAH": {}, "USD": {}, "UYU": {}, "VND": {}, "ZAR": {},
}

const (
	cpfLength  = 11
	cnpjLength = 14

	compeLength = 3
	ispbLength  = 8

	// DefaultMaxSettlementAgeDays bounds how old a settlement date may be.
	DefaultMaxSettlementAgeDays = 365
)

// PositiveAmount validates that a monetary amount string is a finite,
// positive decimal with at most two fractional digits.
func PositiveAmount(amount string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Decimal{}, newViolation(KindAmount, amount, "invalid amount format: %q", amount)
	}
	return PositiveAmountDecimal(value)
}

// PositiveAmountDecimal validates an already-parsed decimal amount.
func PositiveAmountDecimal(value decimal.Decimal) (decimal.Decimal, error) {
	if value.Sign() <= 0 {
		return decimal.Decimal{}, newViolation(KindAmount, value.String(), "amount must be positive, got: %s", value)
	}
	if value.Exponent() < -2 {
		return decimal.Decimal{}, newViolation(KindAmount, value.String(),
			"amount has too many decimal places: %s, maximum 2 allowed for currency", value)
	}
	return value, nil
}

// CurrencyCode validates an ISO 4217 currency code and returns it
// uppercased.
func CurrencyCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return "", newViolation(KindCurrency, code, "currency code cannot be empty")
	}
	if len(normalized) != 3 {
		return "", newViolation(KindCurrency, code, "currency code must be 3 characters, got %d: %s", len(normalized), code)
	}
	for _, r := range normalized {
		if r < 'A' || r > 'Z' {
			return "", newViolation(KindCurrency, code, "currency code must contain only letters: %s", code)
		}
	}
	if _, ok := validCurrencyCodes[normalized]; !ok {
		return "", newViolation(KindCurrency, code, "invalid ISO 4217 currency code: %s", normalized)
	}
	return normalized, nil
}

// TaxID validates a CPF (11 digits) or CNPJ (14 digits) document
// number, accepting formatted or unformatted input, and returns the
// digits-only form. Check digits use the official modulo-11 scheme.
func TaxID(document string) (string, error) {
	trimmed := strings.TrimSpace(document)
	if trimmed == "" {
		return "", newViolation(KindDocument, document, "document (CPF/CNPJ) cannot be empty")
	}

	stripped := strings.NewReplacer(".", "", "-", "", "/", "").Replace(trimmed)
	if !isDigits(stripped) {
		return "", newViolation(KindDocument, document, "document contains non-numeric characters: %s", document)
	}
	if allIdentical(stripped) {
		return "", newViolation(KindDocument, document, "document cannot be all identical digits: %s", document)
	}

	digits := make([]int, len(stripped))
	for i, r := range stripped {
		digits[i] = int(r - '0')
	}

	switch len(stripped) {
	case cpfLength:
		if !cpfCheckDigits(digits) {
			return "", newViolation(KindDocument, document, "invalid CPF check digits: %s", document)
		}
	case cnpjLength:
		if !cnpjCheckDigits(digits) {
			return "", newViolation(KindDocument, document, "invalid CNPJ check digits: %s", document)
		}
	default:
		return "", newViolation(KindDocument, document,
			"document must be %d (CPF) or %d (CNPJ) digits, got %d: %s", cpfLength, cnpjLength, len(stripped), document)
	}

	return stripped, nil
}

// cpfCheckDigits validates CPF check digits (positions 9 and 10).
func cpfCheckDigits(digits []int) bool {
	weights1 := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	if digits[9] != mod11CheckDigit(digits[:9], weights1) {
		return false
	}
	weights2 := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	return digits[10] == mod11CheckDigit(digits[:10], weights2)
}

// cnpjCheckDigits validates CNPJ check digits (positions 12 and 13).
func cnpjCheckDigits(digits []int) bool {
	weights1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	if digits[12] != mod11CheckDigit(digits[:12], weights1) {
		return false
	}
	weights2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return digits[13] == mod11CheckDigit(digits[:13], weights2)
}

func mod11CheckDigit(digits, weights []int) int {
	total := 0
	for i, d := range digits {
		total += d * weights[i]
	}
	remainder := total % 11
	if remainder < 2 {
		return 0
	}
	return 11 - remainder
}

// BankCode validates a Brazilian bank code: COMPE (3 digits) or
// ISPB (8 digits).
func BankCode(code string) (string, error) {
	stripped := strings.TrimSpace(code)
	if stripped == "" {
		return "", newViolation(KindBankCode, code, "bank code cannot be empty")
	}
	if !isDigits(stripped) {
		return "", newViolation(KindBankCode, code, "bank code must contain only digits: %s", code)
	}
	if len(stripped) != compeLength && len(stripped) != ispbLength {
		return "", newViolation(KindBankCode, code,
			"bank code must be %d (COMPE) or %d (ISPB) digits, got %d: %s", compeLength, ispbLength, len(stripped), code)
	}
	return stripped, nil
}

// SettlementDate validates that a settlement date is neither in the
// future nor older than maxPastDays.
func SettlementDate(settlementDate time.Time, maxPastDays int) (time.Time, error) {
	if maxPastDays <= 0 {
		maxPastDays = DefaultMaxSettlementAgeDays
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	day := settlementDate.UTC().Truncate(24 * time.Hour)

	if day.After(today) {
		return time.Time{}, newViolation(KindSettlementDate, settlementDate.Format("2006-01-02"),
			"settlement date cannot be in the future: %s > %s", day.Format("2006-01-02"), today.Format("2006-01-02"))
	}

	daysDiff := int(today.Sub(day).Hours() / 24)
	if daysDiff > maxPastDays {
		return time.Time{}, newViolation(KindSettlementDate, settlementDate.Format("2006-01-02"),
			"settlement date is too old: %s (%d days ago, max %d)", day.Format("2006-01-02"), daysDiff, maxPastDays)
	}

	return settlementDate, nil
}

// IdempotencyKey validates that a key parses as a canonical UUID and
// returns its lowercase canonical form.
func IdempotencyKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", newViolation(KindIdempotencyKey, key, "idempotency key cannot be empty")
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", newViolation(KindIdempotencyKey, key, "invalid UUID format for idempotency key: %s", key)
	}
	return parsed.String(), nil
}

func isDigits(s string) bool {
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

func allIdentical(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
