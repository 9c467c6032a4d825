// Package ingest orchestrates file ingestion: format detection,
// parsing and guard validation, with all-or-nothing batch semantics.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/invario/invario/internal/domain"
	"github.com/invario/invario/internal/guards"
	"github.com/invario/invario/internal/ingest/parsers"
)

// Format identifies a supported input file format.
type Format string

const (
	FormatCNAB Format = "cnab"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// allowedExtensions maps accepted file extensions to formats.
var allowedExtensions = map[string]Format{
	"cnab": FormatCNAB,
	"rem":  FormatCNAB,
	"ret":  FormatCNAB,
	"csv":  FormatCSV,
	"json": FormatJSON,
}

// Error reports an ingestion failure. Err carries the underlying
// parser or guard error when one exists.
type Error struct {
	Filename string
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("ingestion error (%s): %s", e.Filename, e.Reason)
	}
	return fmt.Sprintf("ingestion error: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Pipeline validates and parses uploaded transaction files.
type Pipeline struct {
	maxSettlementAgeDays int
}

// NewPipeline builds a pipeline. maxSettlementAgeDays bounds the
// settlement-date guard; zero applies the default.
func NewPipeline(maxSettlementAgeDays int) *Pipeline {
	if maxSettlementAgeDays <= 0 {
		maxSettlementAgeDays = guards.DefaultMaxSettlementAgeDays
	}
	return &Pipeline{maxSettlementAgeDays: maxSettlementAgeDays}
}

// Ingest runs the full pipeline over one file: extension check,
// format detection, parsing and guard validation. A batch either
// passes whole or fails whole; the first failure aborts it.
func (p *Pipeline) Ingest(filename string, content []byte) ([]domain.Transaction, error) {
	if err := checkExtension(filename); err != nil {
		return nil, &Error{Filename: filename, Reason: err.Error(), Err: err}
	}

	format, err := DetectFormat(filename, content)
	if err != nil {
		return nil, &Error{Filename: filename, Reason: err.Error(), Err: err}
	}

	var transactions []domain.Transaction
	switch format {
	case FormatCNAB:
		transactions, err = parsers.ParseCNAB(string(content))
	case FormatCSV:
		transactions, err = parsers.ParseCSV(string(content), detectDelimiter(content))
	case FormatJSON:
		transactions, err = parsers.ParseJSON(content)
	default:
		return nil, &Error{Filename: filename, Reason: fmt.Sprintf("unsupported format: %s", format)}
	}
	if err != nil {
		return nil, &Error{Filename: filename, Reason: err.Error(), Err: err}
	}

	validated := make([]domain.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		normalized, err := p.validate(tx)
		if err != nil {
			return nil, &Error{Filename: filename, Reason: "validation failed: " + err.Error(), Err: err}
		}
		validated = append(validated, normalized)
	}

	return validated, nil
}

// validate applies the financial guards to one transaction, returning
// it with normalized fields.
func (p *Pipeline) validate(tx domain.Transaction) (domain.Transaction, error) {
	amount, err := guards.PositiveAmountDecimal(tx.Amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	currency, err := guards.CurrencyCode(tx.Currency)
	if err != nil {
		return domain.Transaction{}, err
	}
	bankCode, err := guards.BankCode(tx.BankCode)
	if err != nil {
		return domain.Transaction{}, err
	}
	settlementDate, err := guards.SettlementDate(tx.SettlementDate, p.maxSettlementAgeDays)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx.Amount = amount
	tx.Currency = currency
	tx.BankCode = bankCode
	tx.SettlementDate = settlementDate
	return tx, nil
}

func checkExtension(filename string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return fmt.Errorf("file has no extension: %s", filename)
	}
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("file extension %q not allowed", ext)
	}
	return nil
}

// DetectFormat prefers the extension mapping, then falls back to
// content sniffing: leading '{'/'[' means JSON, a first line of 240+
// characters means CNAB, a comma or semicolon on the first line means
// CSV. A first line that happens to reach 240 characters therefore
// wins over a delimiter; that precedence is deliberate and matches
// the historical behavior.
func DetectFormat(filename string, content []byte) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if format, ok := allowedExtensions[ext]; ok {
		return format, nil
	}

	stripped := strings.TrimSpace(string(content))
	if strings.HasPrefix(stripped, "{") || strings.HasPrefix(stripped, "[") {
		return FormatJSON, nil
	}

	firstLine, _, _ := strings.Cut(stripped, "\n")
	if len(firstLine) >= 240 {
		return FormatCNAB, nil
	}
	if strings.ContainsAny(firstLine, ",;") {
		return FormatCSV, nil
	}

	return "", fmt.Errorf("cannot determine file format for: %s", filename)
}

// detectDelimiter picks semicolon when the first line has semicolons
// and no commas.
func detectDelimiter(content []byte) rune {
	firstLine, _, _ := strings.Cut(string(content), "\n")
	if strings.Contains(firstLine, ";") && !strings.Contains(firstLine, ",") {
		return ';'
	}
	return ','
}
