package memory

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/bsv-blockchain/escrowledger/stores/ledger/tests"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	suites := map[string]func(t *testing.T, store ledger.Store){
		"Accounts":                  tests.Accounts,
		"LockAccounts":              tests.LockAccounts,
		"Rollback":                  tests.Rollback,
		"Reservations":              tests.Reservations,
		"DuplicateInsideUnitOfWork": tests.DuplicateInsideUnitOfWork,
		"ListReservations":          tests.ListReservations,
		"TransferNonces":            tests.TransferNonces,
		"Meta":                      tests.Meta,
		"ReadOnlyView":              tests.ReadOnlyView,
		"ConcurrentInsert":          tests.ConcurrentInsert,
	}

	for name, suite := range suites {
		t.Run(name, func(t *testing.T) {
			suite(t, New(ulogger.TestLogger{}))
		})
	}
}

func TestMemoryCancelledContext(t *testing.T) {
	store := New(ulogger.TestLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Update(ctx, func(txn ledger.Txn) error { return nil })
	assert.ErrorIs(t, err, errors.ErrContextCanceled)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := New(ulogger.TestLogger{})

	require.NoError(t, store.Update(ctx, func(txn ledger.Txn) error {
		return txn.InsertReservation(ctx, tests.NewReservation(tests.Owner, 1))
	}))

	require.NoError(t, store.View(ctx, func(txn ledger.Txn) error {
		r, err := txn.GetReservation(ctx, tests.NewReservation(tests.Owner, 1).Key())
		require.NoError(t, err)

		r.Amount.SetUint64(1)

		return nil
	}))

	require.NoError(t, store.View(ctx, func(txn ledger.Txn) error {
		r, err := txn.GetReservation(ctx, tests.NewReservation(tests.Owner, 1).Key())
		require.NoError(t, err)
		assert.Equal(t, uint64(1900), r.Amount.Uint64())

		return nil
	}))

	status, details, err := store.Health(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Contains(t, details, "1 reservations")
}
