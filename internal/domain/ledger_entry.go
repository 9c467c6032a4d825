package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenesisHash is the previous-hash value of the first ledger entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// LedgerEntry is an immutable, hash-chained ledger record. Each
// entry's hash includes the previous entry's hash, so retroactive
// tampering breaks the chain and is detectable.
type LedgerEntry struct {
	ID              uuid.UUID `json:"id"`
	TransactionHash string    `json:"transaction_hash"`
	PreviousHash    string    `json:"previous_hash"`
	Timestamp       time.Time `json:"timestamp"`
	SequenceNumber  uint64    `json:"sequence_number"`
	EntryHash       string    `json:"entry_hash"`
}

// ComputeHash returns the SHA-256 digest over the entry's fields:
// id, transaction hash, previous hash, timestamp and sequence number.
// The timestamp is canonicalized to RFC 3339 with nanoseconds in UTC.
func (e LedgerEntry) ComputeHash() string {
	content := fmt.Sprintf("%s|%s|%s|%s|%d",
		e.ID,
		e.TransactionHash,
		e.PreviousHash,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.SequenceNumber,
	)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NewLedgerEntry builds an entry with its EntryHash populated.
func NewLedgerEntry(id uuid.UUID, transactionHash, previousHash string, timestamp time.Time, sequence uint64) LedgerEntry {
	entry := LedgerEntry{
		ID:              id,
		TransactionHash: transactionHash,
		PreviousHash:    previousHash,
		Timestamp:       timestamp.UTC(),
		SequenceNumber:  sequence,
	}
	entry.EntryHash = entry.ComputeHash()
	return entry
}

// IsGenesis reports whether the entry links back to the genesis hash.
func (e LedgerEntry) IsGenesis() bool {
	return strings.EqualFold(e.PreviousHash, GenesisHash)
}
