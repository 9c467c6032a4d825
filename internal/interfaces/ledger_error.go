package interfaces

import "fmt"

// LedgerErrorKind tags the failure mode of a ledger operation.
type LedgerErrorKind string

const (
	ErrKindDuplicateTransaction    LedgerErrorKind = "duplicate_transaction"
	ErrKindDuplicateIdempotencyKey LedgerErrorKind = "duplicate_idempotency_key"
	ErrKindNotFound                LedgerErrorKind = "not_found"
	ErrKindLockTimeout             LedgerErrorKind = "lock_timeout"
	ErrKindPersistence             LedgerErrorKind = "persistence"
)

// LedgerError is the error every LedgerStore operation fails with.
type LedgerError struct {
	Kind    LedgerErrorKind
	Message string
	Err     error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger error (%s): %s", e.Kind, e.Message)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// NewDuplicateTransaction reports an append whose content hash is
// already in the ledger. The hash is truncated in the message.
func NewDuplicateTransaction(contentHash string) *LedgerError {
	short := contentHash
	if len(short) > 16 {
		short = short[:16]
	}
	return &LedgerError{
		Kind:    ErrKindDuplicateTransaction,
		Message: fmt.Sprintf("duplicate transaction detected: hash=%s...", short),
	}
}

// NewDuplicateIdempotencyKey reports an append reusing an existing
// idempotency key.
func NewDuplicateIdempotencyKey(key string) *LedgerError {
	return &LedgerError{
		Kind:    ErrKindDuplicateIdempotencyKey,
		Message: fmt.Sprintf("duplicate idempotency key: %s", key),
	}
}

// NewNotFound reports a sequence number with no entry.
func NewNotFound(sequence uint64, size int) *LedgerError {
	return &LedgerError{
		Kind:    ErrKindNotFound,
		Message: fmt.Sprintf("sequence number %d out of range (ledger size: %d)", sequence, size),
	}
}

// NewLockTimeout reports a writer that could not acquire the append
// critical section within the bounded wait.
func NewLockTimeout(err error) *LedgerError {
	return &LedgerError{
		Kind:    ErrKindLockTimeout,
		Message: "timed out waiting for the append lock",
		Err:     err,
	}
}

// NewPersistence wraps a storage-engine failure.
func NewPersistence(err error) *LedgerError {
	return &LedgerError{
		Kind:    ErrKindPersistence,
		Message: fmt.Sprintf("persistence failure: %v", err),
		Err:     err,
	}
}
