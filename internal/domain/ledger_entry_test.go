package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGenesisHash(t *testing.T) {
	assert.Len(t, GenesisHash, 64)
	assert.Equal(t, strings.Repeat("0", 64), GenesisHash)
}

func TestNewLedgerEntry_HashesOnConstruction(t *testing.T) {
	entry := NewLedgerEntry(uuid.New(), "txhash", GenesisHash,
		time.Date(2025, 1, 1, 12, 0, 0, 123456789, time.UTC), 0)

	assert.Equal(t, entry.ComputeHash(), entry.EntryHash)
	assert.Len(t, entry.EntryHash, 64)
	assert.True(t, entry.IsGenesis())
}

func TestComputeHash_SensitiveToEveryField(t *testing.T) {
	base := NewLedgerEntry(uuid.New(), "txhash", GenesisHash,
		time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), 7)

	mutated := base
	mutated.TransactionHash = "other"
	assert.NotEqual(t, base.ComputeHash(), mutated.ComputeHash())

	mutated = base
	mutated.PreviousHash = "other"
	assert.NotEqual(t, base.ComputeHash(), mutated.ComputeHash())

	mutated = base
	mutated.Timestamp = base.Timestamp.Add(time.Nanosecond)
	assert.NotEqual(t, base.ComputeHash(), mutated.ComputeHash())

	mutated = base
	mutated.SequenceNumber = 8
	assert.NotEqual(t, base.ComputeHash(), mutated.ComputeHash())
}

func TestIsGenesis(t *testing.T) {
	genesis := NewLedgerEntry(uuid.New(), "tx", GenesisHash, time.Now().UTC(), 0)
	assert.True(t, genesis.IsGenesis())

	next := NewLedgerEntry(uuid.New(), "tx", genesis.EntryHash, time.Now().UTC(), 1)
	assert.False(t, next.IsGenesis())
}
