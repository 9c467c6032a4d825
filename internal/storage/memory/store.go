// Package memory implements an in-process LedgerStore. The head,
// entry list and known-hash sets form one state triple guarded by a
// single lock, with a bounded-wait writer slot serializing appends.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/invario/invario/internal/domain"
	"github.com/invario/invario/internal/interfaces"
)

// DefaultLockTimeout bounds how long an append waits for the writer
// slot before failing.
const DefaultLockTimeout = 5 * time.Second

// Store is an in-memory, hash-chained ledger store. Safe for
// concurrent readers and writers: appends are serialized through a
// single writer slot, reads take a shared lock only while copying.
type Store struct {
	writerSlot  chan struct{}
	lockTimeout time.Duration

	mu              sync.RWMutex
	entries         []domain.LedgerEntry
	transactions    []domain.Transaction
	contentHashes   map[string]struct{}
	idempotencyKeys map[uuid.UUID]struct{}
}

// NewStore creates an empty in-memory ledger store. A non-positive
// lockTimeout applies DefaultLockTimeout.
func NewStore(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	s := &Store{
		writerSlot:      make(chan struct{}, 1),
		lockTimeout:     lockTimeout,
		contentHashes:   make(map[string]struct{}),
		idempotencyKeys: make(map[uuid.UUID]struct{}),
	}
	s.writerSlot <- struct{}{}
	return s
}

// acquireWriter claims the single writer slot, waiting at most the
// configured timeout and honoring context cancellation.
func (s *Store) acquireWriter(ctx context.Context) error {
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case <-s.writerSlot:
		return nil
	case <-ctx.Done():
		return interfaces.NewLockTimeout(ctx.Err())
	case <-timer.C:
		return interfaces.NewLockTimeout(nil)
	}
}

func (s *Store) releaseWriter() {
	s.writerSlot <- struct{}{}
}

// Append records the transaction as the next hash-chained entry. The
// whole critical section runs while holding the writer slot; no state
// mutates on any failure path.
func (s *Store) Append(ctx context.Context, tx domain.Transaction) (domain.LedgerEntry, error) {
	if err := s.acquireWriter(ctx); err != nil {
		return domain.LedgerEntry{}, err
	}
	defer s.releaseWriter()

	contentHash := tx.ContentHash()

	s.mu.RLock()
	_, duplicateHash := s.contentHashes[contentHash]
	_, duplicateKey := s.idempotencyKeys[tx.IdempotencyKey]
	sequence := uint64(len(s.entries))
	previousHash := domain.GenesisHash
	if len(s.entries) > 0 {
		previousHash = s.entries[len(s.entries)-1].EntryHash
	}
	s.mu.RUnlock()

	if duplicateHash {
		return domain.LedgerEntry{}, interfaces.NewDuplicateTransaction(contentHash)
	}
	if duplicateKey {
		return domain.LedgerEntry{}, interfaces.NewDuplicateIdempotencyKey(tx.IdempotencyKey.String())
	}

	entry := domain.NewLedgerEntry(uuid.New(), contentHash, previousHash, time.Now().UTC(), sequence)

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.transactions = append(s.transactions, tx)
	s.contentHashes[contentHash] = struct{}{}
	s.idempotencyKeys[tx.IdempotencyKey] = struct{}{}
	s.mu.Unlock()

	return entry, nil
}

// GetEntry retrieves an entry by sequence number.
func (s *Store) GetEntry(ctx context.Context, sequence uint64) (domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sequence >= uint64(len(s.entries)) {
		return domain.LedgerEntry{}, interfaces.NewNotFound(sequence, len(s.entries))
	}
	return s.entries[sequence], nil
}

// GetAllEntries returns a copy of all entries in sequence order, so
// callers cannot mutate internal state.
func (s *Store) GetAllEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]domain.LedgerEntry, len(s.entries))
	copy(copied, s.entries)
	return copied, nil
}

// GetAllTransactions returns a copy of the recorded transactions in
// sequence order.
func (s *Store) GetAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]domain.Transaction, len(s.transactions))
	copy(copied, s.transactions)
	return copied, nil
}

// Contains reports whether the transaction's content hash is already
// recorded.
func (s *Store) Contains(ctx context.Context, tx domain.Transaction) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.contentHashes[tx.ContentHash()]
	return ok, nil
}

// Size returns the number of entries in the ledger.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Compile-time check: Store implements the LedgerStore interface.
var _ interfaces.LedgerStore = (*Store)(nil)
