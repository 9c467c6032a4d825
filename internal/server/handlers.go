package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/invario/invario/internal/domain"
	"github.com/invario/invario/internal/guards"
	"github.com/invario/invario/internal/ingest"
	"github.com/invario/invario/internal/ingest/parsers"
	"github.com/invario/invario/internal/interfaces"
	"github.com/invario/invario/internal/ledger"
	"github.com/invario/invario/internal/reconcile"
)

// maxUploadBytes bounds ingestion uploads.
const maxUploadBytes = 32 << 20

// handleHealth is a deep health check: it walks the whole hash chain
// and reports 503 when the chain is corrupted.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.GetAllEntries(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "ledger unavailable: "+err.Error())
		return
	}

	if err := ledger.VerifyChain(entries); err != nil {
		var violation *ledger.IntegrityViolation
		if errors.As(err, &violation) {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":          "corrupted",
				"violation_kind":  violation.Kind,
				"sequence_number": violation.SequenceNumber,
			})
			return
		}
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"entries": len(entries),
	})
}

type ingestResponse struct {
	Filename   string            `json:"filename"`
	Parsed     int               `json:"parsed"`
	Appended   int               `json:"appended"`
	Duplicates int               `json:"duplicates"`
	Entries    []entryResponse   `json:"entries"`
	Skipped    []skippedResponse `json:"skipped,omitempty"`
}

type entryResponse struct {
	SequenceNumber uint64 `json:"sequence_number"`
	EntryHash      string `json:"entry_hash"`
	TransactionID  string `json:"transaction_id"`
}

type skippedResponse struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// handleIngest accepts one transaction file as multipart form data
// under the "file" field, runs the ingestion pipeline and appends the
// validated batch. Parsing and validation are all-or-nothing; appends
// skip duplicates and report them.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart form upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field: "+err.Error())
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	transactions, err := s.pipeline.Ingest(header.Filename, content)
	if err != nil {
		s.writeIngestError(w, err)
		return
	}

	resp := ingestResponse{
		Filename: header.Filename,
		Parsed:   len(transactions),
		Entries:  make([]entryResponse, 0, len(transactions)),
	}

	for _, tx := range transactions {
		entry, err := s.ledger.Append(r.Context(), tx)
		if err != nil {
			var ledgerErr *interfaces.LedgerError
			if errors.As(err, &ledgerErr) &&
				(ledgerErr.Kind == interfaces.ErrKindDuplicateTransaction ||
					ledgerErr.Kind == interfaces.ErrKindDuplicateIdempotencyKey) {
				resp.Duplicates++
				resp.Skipped = append(resp.Skipped, skippedResponse{
					TransactionID: tx.ID.String(),
					Reason:        ledgerErr.Message,
				})
				continue
			}
			s.writeLedgerError(w, err)
			return
		}
		resp.Appended++
		resp.Entries = append(resp.Entries, entryResponse{
			SequenceNumber: entry.SequenceNumber,
			EntryHash:      entry.EntryHash,
			TransactionID:  tx.ID.String(),
		})
	}

	s.writeJSON(w, http.StatusCreated, resp)
}

// handleListEntries returns every ledger entry in sequence order.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.GetAllEntries(r.Context())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetEntry returns one entry by sequence number.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	sequence, err := strconv.ParseUint(chi.URLParam(r, "sequence"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sequence number")
		return
	}

	entry, err := s.ledger.GetEntry(r.Context(), sequence)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

type reconcileRequest struct {
	Source        []domain.Transaction `json:"source"`
	Matcher       string               `json:"matcher,omitempty"`
	ToleranceDays int                  `json:"tolerance_days,omitempty"`
}

// handleReconcile compares a posted source batch against the recorded
// ledger transactions.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var matcher reconcile.TransactionMatcher
	switch req.Matcher {
	case "", "exact":
		matcher = reconcile.ExactMatcher{}
	case "date_tolerance":
		days := req.ToleranceDays
		if days <= 0 {
			days = 1
		}
		matcher = reconcile.NewDateToleranceMatcher(days)
	default:
		s.writeError(w, http.StatusBadRequest, "unknown matcher: "+req.Matcher)
		return
	}

	targets, err := s.ledger.GetAllTransactions(r.Context())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	report := reconcile.NewEngine(matcher).Reconcile(req.Source, targets)
	s.writeJSON(w, http.StatusOK, report)
}

// writeIngestError maps pipeline failures to status codes: guard
// violations are 422, parse and format errors 400.
func (s *Server) writeIngestError(w http.ResponseWriter, err error) {
	var violation *guards.Violation
	if errors.As(err, &violation) {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": err.Error(),
			"kind":  violation.Kind,
		})
		return
	}

	var parseErr *parsers.ParseError
	if errors.As(err, &parseErr) {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  err.Error(),
			"format": parseErr.Format,
			"line":   parseErr.Line,
		})
		return
	}

	var ingestErr *ingest.Error
	if errors.As(err, &ingestErr) {
		s.writeError(w, http.StatusBadRequest, ingestErr.Error())
		return
	}

	s.writeError(w, http.StatusInternalServerError, err.Error())
}

// writeLedgerError maps store failures to status codes.
func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	var ledgerErr *interfaces.LedgerError
	if errors.As(err, &ledgerErr) {
		status := http.StatusInternalServerError
		switch ledgerErr.Kind {
		case interfaces.ErrKindNotFound:
			status = http.StatusNotFound
		case interfaces.ErrKindDuplicateTransaction, interfaces.ErrKindDuplicateIdempotencyKey:
			status = http.StatusConflict
		case interfaces.ErrKindLockTimeout:
			status = http.StatusServiceUnavailable
		}
		s.writeJSON(w, status, map[string]any{
			"error": ledgerErr.Message,
			"kind":  ledgerErr.Kind,
		})
		return
	}

	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
