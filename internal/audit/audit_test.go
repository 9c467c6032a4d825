package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invario/invario/internal/domain"
	"github.com/invario/invario/internal/events"
	"github.com/invario/invario/internal/ledger"
)

// chainStore serves a fixed chain for verification.
type chainStore struct {
	entries []domain.LedgerEntry
}

func (s *chainStore) Append(ctx context.Context, tx domain.Transaction) (domain.LedgerEntry, error) {
	return domain.LedgerEntry{}, errors.New("read only")
}

func (s *chainStore) GetEntry(ctx context.Context, sequence uint64) (domain.LedgerEntry, error) {
	return s.entries[sequence], nil
}

func (s *chainStore) GetAllEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	return s.entries, nil
}

func (s *chainStore) GetAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return nil, nil
}

func (s *chainStore) Contains(ctx context.Context, tx domain.Transaction) (bool, error) {
	return false, nil
}

type capturingPublisher struct {
	topics []string
	events []any
}

func (p *capturingPublisher) Publish(topic string, event any) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func chain(n int) []domain.LedgerEntry {
	entries := make([]domain.LedgerEntry, 0, n)
	previous := domain.GenesisHash
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		e := domain.NewLedgerEntry(uuid.New(), "txhash", previous, base.Add(time.Duration(i)*time.Minute), uint64(i))
		entries = append(entries, e)
		previous = e.EntryHash
	}
	return entries
}

func TestRunOnce_ValidChain(t *testing.T) {
	publisher := &capturingPublisher{}
	svc := ledger.NewService(&chainStore{entries: chain(3)}, nil, zerolog.Nop())
	auditor := New(svc, publisher, zerolog.Nop())

	require.NoError(t, auditor.RunOnce(context.Background()))
	assert.Empty(t, publisher.topics)
}

func TestRunOnce_BrokenChainPublishes(t *testing.T) {
	entries := chain(3)
	entries[1].EntryHash = "tampered"

	publisher := &capturingPublisher{}
	svc := ledger.NewService(&chainStore{entries: entries}, nil, zerolog.Nop())
	auditor := New(svc, publisher, zerolog.Nop())

	err := auditor.RunOnce(context.Background())
	require.Error(t, err)

	var violation *ledger.IntegrityViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, ledger.ViolationEntryHashMismatch, violation.Kind)

	require.Len(t, publisher.topics, 1)
	assert.Equal(t, events.TopicAuditFailed, publisher.topics[0])

	failed, ok := publisher.events[0].(events.AuditFailed)
	require.True(t, ok)
	assert.Equal(t, string(ledger.ViolationEntryHashMismatch), failed.ViolationKind)
	assert.Equal(t, uint64(1), failed.SequenceNumber)
}

func TestRunOnce_NilPublisher(t *testing.T) {
	entries := chain(2)
	entries[0].EntryHash = "tampered"

	svc := ledger.NewService(&chainStore{entries: entries}, nil, zerolog.Nop())
	auditor := New(svc, nil, zerolog.Nop())

	err := auditor.RunOnce(context.Background())
	require.Error(t, err)
}
