package parsers

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invario/invario/internal/domain"
)

// cnabLine builds a 240-byte line filled with spaces and overlays the
// given field values at their byte offsets.
func cnabLine(fields map[int]string) string {
	buf := []byte(strings.Repeat(" ", 240))
	for pos, value := range fields {
		copy(buf[pos:], value)
	}
	return string(buf)
}

func segmentALine() string {
	return cnabLine(map[int]string{
		0:   "341",
		7:   "3",
		13:  "A",
		17:  "033",
		20:  "0000000012345",
		58:  "0000000067890",
		93:  "01012025",
		119: "000000000010000",
		134: "52998224725",
		177: "PAYROLL TRANSFER",
	})
}

func segmentJLine() string {
	return cnabLine(map[int]string{
		0:   "237",
		7:   "3",
		13:  "J",
		17:  "23791234500000010000123456789012345678901234",
		91:  "15022025",
		99:  "000000000025050",
		114: "11222333000181",
		140: "SUPPLIER BOLETO",
	})
}

func headerLine() string {
	return cnabLine(map[int]string{0: "341", 7: "0"})
}

func TestParseCNAB_SegmentA(t *testing.T) {
	txs, err := ParseCNAB(segmentALine())
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, domain.TypeTransfer, tx.Type)
	assert.Equal(t, "100.00", tx.Amount.StringFixed(2))
	assert.Equal(t, "BRL", tx.Currency)
	assert.Equal(t, "0000000067890", tx.SourceAccount)
	assert.Equal(t, "033-0000000012345", tx.TargetAccount)
	assert.Equal(t, "52998224725", tx.Document)
	assert.Equal(t, "2025-01-01", tx.SettlementDate.Format("2006-01-02"))
	assert.Equal(t, "PAYROLL TRANSFER", tx.Description)
	assert.Equal(t, "341", tx.BankCode)
	assert.Equal(t, segmentALine(), tx.RawLine)
}

func TestParseCNAB_SegmentJ(t *testing.T) {
	txs, err := ParseCNAB(segmentJLine())
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, domain.TypeDebit, tx.Type)
	assert.Equal(t, "250.50", tx.Amount.StringFixed(2))
	assert.Equal(t, "boleto", tx.SourceAccount)
	assert.Equal(t, "2379123450", tx.TargetAccount)
	assert.Equal(t, "11222333000181", tx.Document)
	assert.Equal(t, "2025-02-15", tx.SettlementDate.Format("2006-01-02"))
	assert.Equal(t, "237", tx.BankCode)
}

func TestParseCNAB_SkipsNonDetailLines(t *testing.T) {
	content := headerLine() + "\n" + segmentALine() + "\n" + headerLine()
	txs, err := ParseCNAB(content)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestParseCNAB_UnknownSegmentIsFatal(t *testing.T) {
	bad := cnabLine(map[int]string{0: "341", 7: "3", 13: "Z"})
	content := segmentALine() + "\n" + bad

	_, err := ParseCNAB(content)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "cnab", parseErr.Format)
	assert.Equal(t, 2, parseErr.Line)
	assert.Contains(t, parseErr.Reason, "unsupported segment type")
}

func TestParseCNAB_BadAmountIsFatal(t *testing.T) {
	bad := cnabLine(map[int]string{
		0: "341", 7: "3", 13: "A",
		93:  "01012025",
		119: "00000000ABC0000",
	})
	_, err := ParseCNAB(bad)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Reason, "amount")
}

func TestParseCNAB_BadDateIsFatal(t *testing.T) {
	bad := cnabLine(map[int]string{
		0: "341", 7: "3", 13: "A",
		93:  "99999999",
		119: "000000000010000",
	})
	_, err := ParseCNAB(bad)
	require.Error(t, err)
}

func TestParseCNAB_CNAB400NotSupported(t *testing.T) {
	line := strings.Repeat("1", 400)
	_, err := ParseCNAB(line)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Reason, "not supported")
}

func TestParseCNAB_EmptyFile(t *testing.T) {
	_, err := ParseCNAB("")
	require.Error(t, err)

	_, err = ParseCNAB("\n\n")
	require.Error(t, err)
}

func TestParseCNAB_OnlyHeadersIsError(t *testing.T) {
	_, err := ParseCNAB(headerLine())
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Reason, "no valid transactions")
}

func TestParseCNAB_ContextIsTruncated(t *testing.T) {
	bad := cnabLine(map[int]string{0: "341", 7: "3", 13: "Z"})
	_, err := ParseCNAB(bad)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.LessOrEqual(t, len(parseErr.Context), 100)
}
