// Package parsers turns raw file content into batches of domain
// transactions. All parsers share the same contract: one bad record
// rejects the entire batch.
package parsers

import "fmt"

// ParseError reports a parsing failure with enough context to locate
// the offending record. Context carries a truncated copy of the raw
// input.
type ParseError struct {
	Format  string // cnab, csv or json
	Line    int    // 1-based line/row number, 0 when not applicable
	Index   int    // 0-based record index for json, -1 when not applicable
	Reason  string
	Context string
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%s parse error at line %d: %s", e.Format, e.Line, e.Reason)
	case e.Index >= 0:
		return fmt.Sprintf("%s parse error at index %d: %s", e.Format, e.Index, e.Reason)
	default:
		return fmt.Sprintf("%s parse error: %s", e.Format, e.Reason)
	}
}

func newParseError(format string, line, index int, raw, reason string, args ...any) *ParseError {
	return &ParseError{
		Format:  format,
		Line:    line,
		Index:   index,
		Reason:  fmt.Sprintf(reason, args...),
		Context: truncate(raw, 100),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
