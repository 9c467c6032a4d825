// Package ledger provides the append service over a pluggable
// LedgerStore and the chain integrity verifier.
package ledger

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/invario/invario/internal/domain"
	"github.com/invario/invario/internal/events"
	"github.com/invario/invario/internal/interfaces"
)

// Service wraps a LedgerStore with event publishing and logging. The
// store owns the single-writer critical section; the service never
// touches ledger state directly.
type Service struct {
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher
	log       zerolog.Logger
}

// NewService creates a ledger service. publisher may be nil, in which
// case appends are not announced.
func NewService(store interfaces.LedgerStore, publisher interfaces.EventPublisher, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		log:       log.With().Str("component", "ledger").Logger(),
	}
}

// Append records one validated transaction. Publishing failures are
// logged, never rolled into the append outcome: the entry is already
// durable.
func (s *Service) Append(ctx context.Context, tx domain.Transaction) (domain.LedgerEntry, error) {
	entry, err := s.store.Append(ctx, tx)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	s.log.Info().
		Uint64("sequence", entry.SequenceNumber).
		Str("entry_hash", entry.EntryHash).
		Msg("ledger entry recorded")

	if s.publisher != nil {
		event := events.EntryRecorded{
			EntryID:         entry.ID.String(),
			TransactionID:   tx.ID.String(),
			TransactionHash: entry.TransactionHash,
			EntryHash:       entry.EntryHash,
			SequenceNumber:  entry.SequenceNumber,
			RecordedAt:      entry.Timestamp,
		}
		if err := s.publisher.Publish(events.TopicEntryRecorded, event); err != nil {
			s.log.Error().Err(err).
				Uint64("sequence", entry.SequenceNumber).
				Msg("failed to publish entry recorded event")
		}
	}

	return entry, nil
}

// GetEntry retrieves an entry by sequence number.
func (s *Service) GetEntry(ctx context.Context, sequence uint64) (domain.LedgerEntry, error) {
	return s.store.GetEntry(ctx, sequence)
}

// GetAllEntries retrieves every entry ordered by sequence number.
func (s *Service) GetAllEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	return s.store.GetAllEntries(ctx)
}

// GetAllTransactions retrieves the recorded transactions in sequence
// order.
func (s *Service) GetAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.store.GetAllTransactions(ctx)
}

// Contains reports whether the transaction is already in the ledger.
func (s *Service) Contains(ctx context.Context, tx domain.Transaction) (bool, error) {
	return s.store.Contains(ctx, tx)
}

// VerifyIntegrity loads all entries and walks the hash chain.
func (s *Service) VerifyIntegrity(ctx context.Context) error {
	entries, err := s.store.GetAllEntries(ctx)
	if err != nil {
		return err
	}
	return VerifyChain(entries)
}
