// Package postgres implements a durable LedgerStore on PostgreSQL.
// Concurrent writers are serialized by SELECT ... FOR UPDATE on the
// singleton ledger_head row, so the whole append critical section
// runs inside one database transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/invario/invario/internal/domain"
	"github.com/invario/invario/internal/interfaces"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id               UUID PRIMARY KEY,
	type             TEXT NOT NULL,
	amount           NUMERIC(18,2) NOT NULL,
	currency         TEXT NOT NULL,
	source_account   TEXT NOT NULL,
	target_account   TEXT NOT NULL,
	document         TEXT NOT NULL,
	settlement_date  DATE NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	idempotency_key  UUID NOT NULL,
	bank_code        TEXT NOT NULL,
	raw_line         TEXT NOT NULL DEFAULT '',
	content_hash     TEXT NOT NULL,
	CONSTRAINT transactions_content_hash_key UNIQUE (content_hash),
	CONSTRAINT transactions_idempotency_key_key UNIQUE (idempotency_key)
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id               UUID PRIMARY KEY,
	sequence_number  BIGINT NOT NULL UNIQUE,
	transaction_id   UUID NOT NULL REFERENCES transactions(id),
	transaction_hash TEXT NOT NULL,
	previous_hash    TEXT NOT NULL,
	entry_hash       TEXT NOT NULL,
	recorded_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_head (
	id                   SMALLINT PRIMARY KEY CHECK (id = 1),
	last_sequence_number BIGINT NOT NULL,
	last_entry_hash      TEXT NOT NULL
);
`

// DefaultLockTimeout bounds how long an append may wait on the head
// row lock.
const DefaultLockTimeout = 5 * time.Second

// Store is a PostgreSQL-backed ledger store.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewStore creates the store and bootstraps the schema. A
// non-positive lockTimeout applies DefaultLockTimeout.
func NewStore(db *sql.DB, lockTimeout time.Duration) (*Store, error) {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("bootstrap ledger schema: %w", err)
	}
	return &Store{db: db, lockTimeout: lockTimeout}, nil
}

// Append records the transaction as the next hash-chained entry. The
// critical section (lock head, check duplicates, insert transaction
// and entry, advance head) is one database transaction; any failure
// rolls it back entirely.
func (s *Store) Append(ctx context.Context, tx domain.Transaction) (domain.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.LedgerEntry{}, interfaces.NewPersistence(err)
	}
	defer dbTx.Rollback()

	lastSequence, lastHash, err := lockHead(ctx, dbTx)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err, tx)
	}

	contentHash := tx.ContentHash()

	var exists bool
	err = dbTx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE content_hash = $1)`, contentHash).Scan(&exists)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err, tx)
	}
	if exists {
		return domain.LedgerEntry{}, interfaces.NewDuplicateTransaction(contentHash)
	}

	err = dbTx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE idempotency_key = $1)`, tx.IdempotencyKey).Scan(&exists)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err, tx)
	}
	if exists {
		return domain.LedgerEntry{}, interfaces.NewDuplicateIdempotencyKey(tx.IdempotencyKey.String())
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, type, amount, currency, source_account, target_account,
			document, settlement_date, description, idempotency_key,
			bank_code, raw_line, content_hash
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		tx.ID, string(tx.Type), tx.Amount, tx.Currency, tx.SourceAccount, tx.TargetAccount,
		tx.Document, tx.SettlementDate, tx.Description, tx.IdempotencyKey,
		tx.BankCode, tx.RawLine, contentHash,
	)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err, tx)
	}

	previousHash := domain.GenesisHash
	if lastSequence >= 0 {
		previousHash = lastHash
	}
	newSequence := uint64(lastSequence + 1)

	// Postgres keeps microsecond precision; truncate so the stored
	// timestamp recomputes to the same entry hash.
	recordedAt := time.Now().UTC().Truncate(time.Microsecond)
	entry := domain.NewLedgerEntry(uuid.New(), contentHash, previousHash, recordedAt, newSequence)

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, sequence_number, transaction_id, transaction_hash,
			previous_hash, entry_hash, recorded_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.ID, int64(entry.SequenceNumber), tx.ID, entry.TransactionHash,
		entry.PreviousHash, entry.EntryHash, entry.Timestamp,
	)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err, tx)
	}

	_, err = dbTx.ExecContext(ctx,
		`UPDATE ledger_head SET last_sequence_number = $1, last_entry_hash = $2 WHERE id = 1`,
		int64(entry.SequenceNumber), entry.EntryHash,
	)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err, tx)
	}

	if err := dbTx.Commit(); err != nil {
		return domain.LedgerEntry{}, mapAppendError(err, tx)
	}

	return entry, nil
}

// lockHead locks the singleton head row for the duration of the
// transaction, creating the genesis head on first use.
func lockHead(ctx context.Context, dbTx *sql.Tx) (int64, string, error) {
	var lastSequence int64
	var lastHash string

	err := dbTx.QueryRowContext(ctx,
		`SELECT last_sequence_number, last_entry_hash FROM ledger_head WHERE id = 1 FOR UPDATE`,
	).Scan(&lastSequence, &lastHash)

	if errors.Is(err, sql.ErrNoRows) {
		_, err = dbTx.ExecContext(ctx,
			`INSERT INTO ledger_head (id, last_sequence_number, last_entry_hash) VALUES (1, -1, $1)`,
			domain.GenesisHash,
		)
		if err != nil {
			return 0, "", err
		}
		return -1, domain.GenesisHash, nil
	}
	if err != nil {
		return 0, "", err
	}

	return lastSequence, lastHash, nil
}

// mapAppendError converts driver failures into the ledger error
// taxonomy. Unique-constraint violations are a backstop for races the
// explicit duplicate checks cannot see.
func mapAppendError(err error, tx domain.Transaction) *interfaces.LedgerError {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "transactions_content_hash_key":
			return interfaces.NewDuplicateTransaction(tx.ContentHash())
		case "transactions_idempotency_key_key":
			return interfaces.NewDuplicateIdempotencyKey(tx.IdempotencyKey.String())
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return interfaces.NewLockTimeout(err)
	}
	return interfaces.NewPersistence(err)
}

// GetEntry retrieves an entry by sequence number.
func (s *Store) GetEntry(ctx context.Context, sequence uint64) (domain.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sequence_number, transaction_hash, previous_hash, entry_hash, recorded_at
		FROM ledger_entries WHERE sequence_number = $1`, int64(sequence))

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		size, countErr := s.size(ctx)
		if countErr != nil {
			return domain.LedgerEntry{}, interfaces.NewPersistence(countErr)
		}
		return domain.LedgerEntry{}, interfaces.NewNotFound(sequence, size)
	}
	if err != nil {
		return domain.LedgerEntry{}, interfaces.NewPersistence(err)
	}
	return entry, nil
}

// GetAllEntries retrieves every entry ordered by sequence number.
func (s *Store) GetAllEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sequence_number, transaction_hash, previous_hash, entry_hash, recorded_at
		FROM ledger_entries ORDER BY sequence_number`)
	if err != nil {
		return nil, interfaces.NewPersistence(err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, interfaces.NewPersistence(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, interfaces.NewPersistence(err)
	}
	return entries, nil
}

// GetAllTransactions retrieves recorded transactions in sequence
// order.
func (s *Store) GetAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.type, t.amount, t.currency, t.source_account, t.target_account,
		       t.document, t.settlement_date, t.description, t.idempotency_key,
		       t.bank_code, t.raw_line
		FROM transactions t
		JOIN ledger_entries e ON e.transaction_id = t.id
		ORDER BY e.sequence_number`)
	if err != nil {
		return nil, interfaces.NewPersistence(err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var txType string
		if err := rows.Scan(
			&tx.ID, &txType, &tx.Amount, &tx.Currency, &tx.SourceAccount, &tx.TargetAccount,
			&tx.Document, &tx.SettlementDate, &tx.Description, &tx.IdempotencyKey,
			&tx.BankCode, &tx.RawLine,
		); err != nil {
			return nil, interfaces.NewPersistence(err)
		}
		tx.Type = domain.TransactionType(txType)
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, interfaces.NewPersistence(err)
	}
	return transactions, nil
}

// Contains reports whether the transaction's content hash is already
// recorded.
func (s *Store) Contains(ctx context.Context, tx domain.Transaction) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE content_hash = $1)`,
		tx.ContentHash()).Scan(&exists)
	if err != nil {
		return false, interfaces.NewPersistence(err)
	}
	return exists, nil
}

func (s *Store) size(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	var sequence int64
	var recordedAt time.Time
	if err := row.Scan(
		&entry.ID, &sequence, &entry.TransactionHash,
		&entry.PreviousHash, &entry.EntryHash, &recordedAt,
	); err != nil {
		return domain.LedgerEntry{}, err
	}
	entry.SequenceNumber = uint64(sequence)
	entry.Timestamp = recordedAt.UTC()
	return entry, nil
}

// Compile-time check: Store implements the LedgerStore interface.
var _ interfaces.LedgerStore = (*Store)(nil)
