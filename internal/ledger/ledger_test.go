package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invario/invario/internal/domain"
	"github.com/invario/invario/internal/events"
	"github.com/invario/invario/internal/interfaces"
	"github.com/invario/invario/internal/ledger"
	"github.com/invario/invario/internal/storage/memory"
)

type capturedEvent struct {
	topic string
	event any
}

type fakePublisher struct {
	published []capturedEvent
	fail      bool
}

func (f *fakePublisher) Publish(topic string, event any) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, capturedEvent{topic: topic, event: event})
	return nil
}

func sampleTransaction() domain.Transaction {
	return domain.Transaction{
		ID:             uuid.New(),
		Type:           domain.TypeCredit,
		Amount:         decimal.RequireFromString("150.00"),
		Currency:       "BRL",
		SourceAccount:  "12345-6",
		TargetAccount:  "65432-1",
		Document:       "52998224725",
		SettlementDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: uuid.New(),
		BankCode:       "341",
	}
}

func newService(t *testing.T, publisher interfaces.EventPublisher) *ledger.Service {
	t.Helper()
	return ledger.NewService(memory.NewStore(0), publisher, zerolog.Nop())
}

func TestServiceAppend_PublishesEvent(t *testing.T) {
	publisher := &fakePublisher{}
	svc := newService(t, publisher)
	tx := sampleTransaction()

	entry, err := svc.Append(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), entry.SequenceNumber)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, events.TopicEntryRecorded, publisher.published[0].topic)

	recorded, ok := publisher.published[0].event.(events.EntryRecorded)
	require.True(t, ok)
	assert.Equal(t, tx.ID.String(), recorded.TransactionID)
	assert.Equal(t, entry.EntryHash, recorded.EntryHash)
	assert.Equal(t, entry.SequenceNumber, recorded.SequenceNumber)
}

func TestServiceAppend_PublishFailureDoesNotFailAppend(t *testing.T) {
	svc := newService(t, &fakePublisher{fail: true})

	entry, err := svc.Append(context.Background(), sampleTransaction())
	require.NoError(t, err)

	got, err := svc.GetEntry(context.Background(), entry.SequenceNumber)
	require.NoError(t, err)
	assert.Equal(t, entry.EntryHash, got.EntryHash)
}

func TestServiceAppend_NilPublisher(t *testing.T) {
	svc := newService(t, nil)

	_, err := svc.Append(context.Background(), sampleTransaction())
	require.NoError(t, err)
}

func TestServiceAppend_DuplicateNotPublished(t *testing.T) {
	publisher := &fakePublisher{}
	svc := newService(t, publisher)
	tx := sampleTransaction()

	_, err := svc.Append(context.Background(), tx)
	require.NoError(t, err)

	_, err = svc.Append(context.Background(), tx)
	require.Error(t, err)

	var ledgerErr *interfaces.LedgerError
	require.True(t, errors.As(err, &ledgerErr))
	assert.Equal(t, interfaces.ErrKindDuplicateTransaction, ledgerErr.Kind)
	assert.Len(t, publisher.published, 1)
}

func TestServiceVerifyIntegrity(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.VerifyIntegrity(ctx))

	for i := 0; i < 5; i++ {
		_, err := svc.Append(ctx, sampleTransaction())
		require.NoError(t, err)
	}
	require.NoError(t, svc.VerifyIntegrity(ctx))
}

func TestServiceQueries(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	tx := sampleTransaction()
	_, err := svc.Append(ctx, tx)
	require.NoError(t, err)

	entries, err := svc.GetAllEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	transactions, err := svc.GetAllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, tx.ID, transactions[0].ID)

	ok, err := svc.Contains(ctx, tx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Contains(ctx, sampleTransaction())
	require.NoError(t, err)
	assert.False(t, ok)
}
