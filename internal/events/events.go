// Package events defines the ledger lifecycle event payloads
// published to the broker.
package events

import "time"

// Topics published by the ledger.
const (
	TopicEntryRecorded = "ledger.entry_recorded"
	TopicAuditFailed   = "ledger.audit_failed"
)

// EntryRecorded announces a successful append.
type EntryRecorded struct {
	EntryID         string    `json:"entry_id"`
	TransactionID   string    `json:"transaction_id"`
	TransactionHash string    `json:"transaction_hash"`
	EntryHash       string    `json:"entry_hash"`
	SequenceNumber  uint64    `json:"sequence_number"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// AuditFailed announces that a scheduled integrity audit found a
// broken chain.
type AuditFailed struct {
	ViolationKind  string    `json:"violation_kind"`
	SequenceNumber uint64    `json:"sequence_number"`
	ExpectedHash   string    `json:"expected_hash"`
	ActualHash     string    `json:"actual_hash"`
	DetectedAt     time.Time `json:"detected_at"`
}
