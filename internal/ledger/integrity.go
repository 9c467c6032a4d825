package ledger

import (
	"fmt"

	"github.com/invario/invario/internal/domain"
)

// IntegrityViolationKind classifies a broken chain.
type IntegrityViolationKind string

const (
	ViolationSequenceGap       IntegrityViolationKind = "sequence_gap"
	ViolationEntryHashMismatch IntegrityViolationKind = "entry_hash_mismatch"
	ViolationChainLinkBroken   IntegrityViolationKind = "chain_link_broken"
)

// IntegrityViolation reports the first defect found while walking the
// chain.
type IntegrityViolation struct {
	Kind           IntegrityViolationKind
	SequenceNumber uint64
	Expected       string
	Actual         string
}

func (e *IntegrityViolation) Error() string {
	return fmt.Sprintf("integrity violation (%s) at sequence %d: expected %s, got %s",
		e.Kind, e.SequenceNumber, e.Expected, e.Actual)
}

// VerifyChain walks an ordered sequence of entries and proves or
// disproves chain validity. The empty chain is trivially valid. The
// first violation found is returned; no repair is attempted.
//
// Sequence numbers are checked first over the whole chain, then each
// entry's stored hash is recomputed and its link to the previous
// entry verified.
func VerifyChain(entries []domain.LedgerEntry) error {
	for i, entry := range entries {
		if entry.SequenceNumber != uint64(i) {
			return &IntegrityViolation{
				Kind:           ViolationSequenceGap,
				SequenceNumber: uint64(i),
				Expected:       fmt.Sprintf("%d", i),
				Actual:         fmt.Sprintf("%d", entry.SequenceNumber),
			}
		}
	}

	for i, entry := range entries {
		if err := VerifyEntryHash(entry); err != nil {
			return err
		}

		var previous *domain.LedgerEntry
		if i > 0 {
			previous = &entries[i-1]
		}
		if err := VerifyChainLink(entry, previous); err != nil {
			return err
		}
	}

	return nil
}

// VerifyEntryHash recomputes the entry hash from the entry's fields
// and compares it to the stored hash.
func VerifyEntryHash(entry domain.LedgerEntry) error {
	computed := entry.ComputeHash()
	if entry.EntryHash != computed {
		return &IntegrityViolation{
			Kind:           ViolationEntryHashMismatch,
			SequenceNumber: entry.SequenceNumber,
			Expected:       computed,
			Actual:         entry.EntryHash,
		}
	}
	return nil
}

// VerifyChainLink checks that current links to previous (or to the
// genesis hash when previous is nil).
func VerifyChainLink(current domain.LedgerEntry, previous *domain.LedgerEntry) error {
	expected := domain.GenesisHash
	if previous != nil {
		expected = previous.EntryHash
	}
	if current.PreviousHash != expected {
		return &IntegrityViolation{
			Kind:           ViolationChainLinkBroken,
			SequenceNumber: current.SequenceNumber,
			Expected:       expected,
			Actual:         current.PreviousHash,
		}
	}
	return nil
}
