package ingest

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invario/invario/internal/guards"
	"github.com/invario/invario/internal/ingest/parsers"
)

func recentDate() string {
	return time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
}

func validCSV() string {
	return "type,amount,currency,source_account,target_account,document,settlement_date,bank_code\n" +
		fmt.Sprintf("credit,100.50,BRL,ACC-1,ACC-2,52998224725,%s,341\n", recentDate())
}

func validJSON() string {
	return fmt.Sprintf(`[{"type":"credit","amount":"10.00","currency":"BRL",
		"source_account":"A","target_account":"B","document":"52998224725",
		"settlement_date":"%s","bank_code":"341"}]`, recentDate())
}

func TestPipeline_IngestCSV(t *testing.T) {
	p := NewPipeline(0)

	txs, err := p.Ingest("batch.csv", []byte(validCSV()))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "BRL", txs[0].Currency)
}

func TestPipeline_IngestJSON(t *testing.T) {
	p := NewPipeline(0)

	txs, err := p.Ingest("batch.json", []byte(validJSON()))
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestPipeline_RejectsUnknownExtension(t *testing.T) {
	p := NewPipeline(0)

	_, err := p.Ingest("batch.xml", []byte(validCSV()))
	require.Error(t, err)

	var ingestErr *Error
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, "batch.xml", ingestErr.Filename)
	assert.Contains(t, ingestErr.Reason, "not allowed")
}

func TestPipeline_RejectsMissingExtension(t *testing.T) {
	p := NewPipeline(0)

	_, err := p.Ingest("batch", []byte(validCSV()))
	require.Error(t, err)
}

func TestPipeline_ParseErrorWrapped(t *testing.T) {
	p := NewPipeline(0)

	_, err := p.Ingest("batch.json", []byte("{broken"))
	require.Error(t, err)

	var parseErr *parsers.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestPipeline_GuardFailureRejectsBatch(t *testing.T) {
	p := NewPipeline(0)

	// XYZ is not an ISO 4217 code; the parser accepts it, the guard must not.
	content := "type,amount,currency,source_account,target_account,document,settlement_date,bank_code\n" +
		fmt.Sprintf("credit,100.50,BRL,ACC-1,ACC-2,52998224725,%s,341\n", recentDate()) +
		fmt.Sprintf("credit,10.00,XYZ,ACC-3,ACC-4,52998224725,%s,341\n", recentDate())

	_, err := p.Ingest("batch.csv", []byte(content))
	require.Error(t, err)

	var violation *guards.Violation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, guards.KindCurrency, violation.Kind)
}

func TestPipeline_OldSettlementDateRejected(t *testing.T) {
	p := NewPipeline(30)

	old := time.Now().UTC().AddDate(0, 0, -90).Format("2006-01-02")
	content := "type,amount,currency,source_account,target_account,document,settlement_date,bank_code\n" +
		fmt.Sprintf("credit,10.00,BRL,A,B,52998224725,%s,341\n", old)

	_, err := p.Ingest("batch.csv", []byte(content))
	require.Error(t, err)

	var violation *guards.Violation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, guards.KindSettlementDate, violation.Kind)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		want     Format
		wantErr  bool
	}{
		{name: "csv extension", filename: "f.csv", content: "whatever", want: FormatCSV},
		{name: "json extension", filename: "f.json", content: "whatever", want: FormatJSON},
		{name: "cnab extension", filename: "f.cnab", content: "whatever", want: FormatCNAB},
		{name: "rem extension", filename: "f.rem", content: "whatever", want: FormatCNAB},
		{name: "ret extension", filename: "f.ret", content: "whatever", want: FormatCNAB},
		{name: "json sniff object", filename: "f.dat", content: `{"transactions": []}`, want: FormatJSON},
		{name: "json sniff array", filename: "f.dat", content: `[]`, want: FormatJSON},
		{name: "cnab sniff long line", filename: "f.dat", content: strings.Repeat("0", 240), want: FormatCNAB},
		{name: "csv sniff comma", filename: "f.dat", content: "a,b,c\n1,2,3", want: FormatCSV},
		{name: "csv sniff semicolon", filename: "f.dat", content: "a;b;c", want: FormatCSV},
		{name: "undetectable", filename: "f.dat", content: "plain text", wantErr: true},
		// A delimited first line of 240+ chars is classified as CNAB;
		// the sniffing precedence is fixed.
		{name: "long delimited line wins cnab", filename: "f.dat", content: strings.Repeat("a,", 120), want: FormatCNAB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.filename, []byte(tt.content))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
