// Package sqlite implements a durable LedgerStore on an embedded
// SQLite database, for single-host deployments that need the chain to
// survive restarts without running a database server. Writer
// serialization relies on SQLite's single-writer model: appends run
// in immediate transactions, and busy_timeout bounds the wait.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/invario/invario/internal/domain"
	"github.com/invario/invario/internal/interfaces"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id               TEXT PRIMARY KEY,
	type             TEXT NOT NULL,
	amount           TEXT NOT NULL,
	currency         TEXT NOT NULL,
	source_account   TEXT NOT NULL,
	target_account   TEXT NOT NULL,
	document         TEXT NOT NULL,
	settlement_date  TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	idempotency_key  TEXT NOT NULL UNIQUE,
	bank_code        TEXT NOT NULL,
	raw_line         TEXT NOT NULL DEFAULT '',
	content_hash     TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id               TEXT PRIMARY KEY,
	sequence_number  INTEGER NOT NULL UNIQUE,
	transaction_id   TEXT NOT NULL REFERENCES transactions(id),
	transaction_hash TEXT NOT NULL,
	previous_hash    TEXT NOT NULL,
	entry_hash       TEXT NOT NULL,
	recorded_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_head (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	last_sequence_number INTEGER NOT NULL,
	last_entry_hash      TEXT NOT NULL
);
`

// DefaultLockTimeout bounds how long an append may wait for the
// database write lock.
const DefaultLockTimeout = 5 * time.Second

// Store is an embedded SQLite ledger store.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// Open creates the database file (and its directory) if needed and
// returns a bootstrapped store. WAL mode keeps readers unblocked
// while an append holds the write lock.
func Open(path string, lockTimeout time.Duration) (*Store, error) {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		path, lockTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("bootstrap ledger schema: %w", err)
	}

	return &Store{db: db, lockTimeout: lockTimeout}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records the transaction as the next hash-chained entry
// inside one immediate transaction.
func (s *Store) Append(ctx context.Context, tx domain.Transaction) (domain.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err)
	}
	defer dbTx.Rollback()

	lastSequence, lastHash, err := readHead(ctx, dbTx)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err)
	}

	contentHash := tx.ContentHash()

	var count int
	if err := dbTx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE content_hash = ?`, contentHash).Scan(&count); err != nil {
		return domain.LedgerEntry{}, mapAppendError(err)
	}
	if count > 0 {
		return domain.LedgerEntry{}, interfaces.NewDuplicateTransaction(contentHash)
	}

	if err := dbTx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?`,
		tx.IdempotencyKey.String()).Scan(&count); err != nil {
		return domain.LedgerEntry{}, mapAppendError(err)
	}
	if count > 0 {
		return domain.LedgerEntry{}, interfaces.NewDuplicateIdempotencyKey(tx.IdempotencyKey.String())
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, type, amount, currency, source_account, target_account,
			document, settlement_date, description, idempotency_key,
			bank_code, raw_line, content_hash
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		tx.ID.String(), string(tx.Type), tx.Amount.StringFixed(2), tx.Currency,
		tx.SourceAccount, tx.TargetAccount, tx.Document,
		tx.SettlementDate.Format("2006-01-02"), tx.Description,
		tx.IdempotencyKey.String(), tx.BankCode, tx.RawLine, contentHash,
	)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err)
	}

	previousHash := domain.GenesisHash
	if lastSequence >= 0 {
		previousHash = lastHash
	}
	newSequence := uint64(lastSequence + 1)

	entry := domain.NewLedgerEntry(uuid.New(), contentHash, previousHash, time.Now().UTC(), newSequence)

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, sequence_number, transaction_id, transaction_hash,
			previous_hash, entry_hash, recorded_at
		) VALUES (?,?,?,?,?,?,?)`,
		entry.ID.String(), int64(entry.SequenceNumber), tx.ID.String(),
		entry.TransactionHash, entry.PreviousHash, entry.EntryHash,
		entry.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err)
	}

	_, err = dbTx.ExecContext(ctx,
		`UPDATE ledger_head SET last_sequence_number = ?, last_entry_hash = ? WHERE id = 1`,
		int64(entry.SequenceNumber), entry.EntryHash,
	)
	if err != nil {
		return domain.LedgerEntry{}, mapAppendError(err)
	}

	if err := dbTx.Commit(); err != nil {
		return domain.LedgerEntry{}, mapAppendError(err)
	}

	return entry, nil
}

// readHead reads the singleton head row inside the transaction,
// creating the genesis head on first use. The immediate transaction
// already holds the database write lock.
func readHead(ctx context.Context, dbTx *sql.Tx) (int64, string, error) {
	var lastSequence int64
	var lastHash string

	err := dbTx.QueryRowContext(ctx,
		`SELECT last_sequence_number, last_entry_hash FROM ledger_head WHERE id = 1`,
	).Scan(&lastSequence, &lastHash)

	if errors.Is(err, sql.ErrNoRows) {
		_, err = dbTx.ExecContext(ctx,
			`INSERT INTO ledger_head (id, last_sequence_number, last_entry_hash) VALUES (1, -1, ?)`,
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

func mapAppendError(err error) *interfaces.LedgerError {
	if errors.Is(err, context.DeadlineExceeded) {
		return interfaces.NewLockTimeout(err)
	}
	// The driver reports a held write lock as SQLITE_BUSY.
	if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
		return interfaces.NewLockTimeout(err)
	}
	return interfaces.NewPersistence(err)
}

// GetEntry retrieves an entry by sequence number.
func (s *Store) GetEntry(ctx context.Context, sequence uint64) (domain.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sequence_number, transaction_hash, previous_hash, entry_hash, recorded_at
		FROM ledger_entries WHERE sequence_number = ?`, int64(sequence))

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		var size int
		if countErr := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM ledger_entries`).Scan(&size); countErr != nil {
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
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, interfaces.NewPersistence(err)
		}
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
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE content_hash = ?`,
		tx.ContentHash()).Scan(&count)
	if err != nil {
		return false, interfaces.NewPersistence(err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (domain.LedgerEntry, error) {
	var id, transactionHash, previousHash, entryHash, recordedAt string
	var sequence int64
	if err := row.Scan(&id, &sequence, &transactionHash, &previousHash, &entryHash, &recordedAt); err != nil {
		return domain.LedgerEntry{}, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("corrupt entry id %q: %w", id, err)
	}
	timestamp, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("corrupt entry timestamp %q: %w", recordedAt, err)
	}

	return domain.LedgerEntry{
		ID:              parsedID,
		TransactionHash: transactionHash,
		PreviousHash:    previousHash,
		Timestamp:       timestamp.UTC(),
		SequenceNumber:  uint64(sequence),
		EntryHash:       entryHash,
	}, nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var id, txType, amount, currency, sourceAccount, targetAccount string
	var document, settlementDate, description, idempotencyKey, bankCode, rawLine string
	if err := row.Scan(&id, &txType, &amount, &currency, &sourceAccount, &targetAccount,
		&document, &settlementDate, &description, &idempotencyKey, &bankCode, &rawLine); err != nil {
		return domain.Transaction{}, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("corrupt transaction id %q: %w", id, err)
	}
	parsedKey, err := uuid.Parse(idempotencyKey)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("corrupt idempotency key %q: %w", idempotencyKey, err)
	}
	parsedAmount, err := decimalFromStore(amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	parsedDate, err := time.Parse("2006-01-02", settlementDate)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("corrupt settlement date %q: %w", settlementDate, err)
	}

	return domain.Transaction{
		ID:             parsedID,
		Type:           domain.TransactionType(txType),
		Amount:         parsedAmount,
		Currency:       currency,
		SourceAccount:  sourceAccount,
		TargetAccount:  targetAccount,
		Document:       document,
		SettlementDate: parsedDate,
		Description:    description,
		IdempotencyKey: parsedKey,
		BankCode:       bankCode,
		RawLine:        rawLine,
	}, nil
}

func decimalFromStore(s string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("corrupt amount %q: %w", s, err)
	}
	return value, nil
}

// Compile-time check: Store implements the LedgerStore interface.
var _ interfaces.LedgerStore = (*Store)(nil)
