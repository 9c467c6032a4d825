package interfaces

import (
	"context"

	"github.com/invario/invario/internal/domain"
)

// LedgerStore is the pluggable persistence contract for the
// append-only ledger. Implementations must guarantee at most one
// concurrent writer against the head: Append executes as one
// indivisible critical section (read head, check duplicate, write
// transaction and entry, advance head) and rolls back entirely on
// failure. Reads operate on a consistent snapshot and never take the
// writer lock.
type LedgerStore interface {
	// Append records a validated transaction as the next hash-chained
	// entry. Duplicate content hashes and idempotency keys are
	// rejected without advancing the sequence.
	Append(ctx context.Context, tx domain.Transaction) (domain.LedgerEntry, error)

	// GetEntry retrieves an entry by sequence number.
	GetEntry(ctx context.Context, sequence uint64) (domain.LedgerEntry, error)

	// GetAllEntries retrieves every entry ordered by sequence number.
	GetAllEntries(ctx context.Context) ([]domain.LedgerEntry, error)

	// GetAllTransactions retrieves the recorded transactions in
	// sequence order, for reconciliation against the ledger.
	GetAllTransactions(ctx context.Context) ([]domain.Transaction, error)

	// Contains reports whether the transaction's content hash is
	// already recorded.
	Contains(ctx context.Context, tx domain.Transaction) (bool, error)
}
