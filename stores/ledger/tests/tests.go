// Package tests holds the behaviour every ledger backend must share. Backend packages call these from
// their own _test.go files.
package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	Owner     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	Owner2    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	Recipient = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	Executor  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func NewReservation(owner model.Address, nonce uint64) *model.Reservation {
	return &model.Reservation{
		Owner:        owner,
		Nonce:        uint256.NewInt(nonce),
		Recipient:    Recipient,
		Executor:     Executor,
		Amount:       uint256.NewInt(1900),
		Fee:          uint256.NewInt(100),
		ExpiryBlock:  15,
		CreatedBlock: 5,
		Status:       model.StatusActive,
	}
}

func Accounts(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	err := store.View(ctx, func(txn ledger.Txn) error {
		account, err := txn.GetAccount(ctx, Owner)
		require.NoError(t, err)
		assert.True(t, account.Balance.IsZero())
		assert.True(t, account.Reserved.IsZero())

		return nil
	})
	require.NoError(t, err)

	err = store.Update(ctx, func(txn ledger.Txn) error {
		return txn.PutAccount(ctx, &model.Account{Address: Owner, Balance: uint256.NewInt(2000), Reserved: uint256.NewInt(500)})
	})
	require.NoError(t, err)

	huge := new(uint256.Int).SetAllOne()

	err = store.Update(ctx, func(txn ledger.Txn) error {
		return txn.PutAccount(ctx, &model.Account{Address: Owner2, Balance: huge, Reserved: uint256.NewInt(0)})
	})
	require.NoError(t, err)

	err = store.View(ctx, func(txn ledger.Txn) error {
		account, err := txn.GetAccount(ctx, Owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(2000), account.Balance.Uint64())
		assert.Equal(t, uint64(500), account.Reserved.Uint64())

		account, err = txn.GetAccount(ctx, Owner2)
		require.NoError(t, err)
		assert.Equal(t, huge, account.Balance)

		return nil
	})
	require.NoError(t, err)
}

func LockAccounts(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	err := store.Update(ctx, func(txn ledger.Txn) error {
		accounts, err := txn.LockAccounts(ctx, Recipient, Owner, Recipient)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.True(t, accounts[Owner].Balance.IsZero())

		return nil
	})
	require.NoError(t, err)
}

func Rollback(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	boom := errors.NewInsufficientUnreservedBalanceError("rejected")

	err := store.Update(ctx, func(txn ledger.Txn) error {
		require.NoError(t, txn.PutAccount(ctx, &model.Account{Address: Owner, Balance: uint256.NewInt(10), Reserved: uint256.NewInt(0)}))
		require.NoError(t, txn.InsertReservation(ctx, NewReservation(Owner, 1)))
		require.NoError(t, txn.UseTransferNonce(ctx, Owner, uint256.NewInt(1)))
		require.NoError(t, txn.SetMeta(ctx, "genesis", "x"))

		return boom
	})
	require.ErrorIs(t, err, errors.ErrInsufficientUnreserved)

	err = store.View(ctx, func(txn ledger.Txn) error {
		account, err := txn.GetAccount(ctx, Owner)
		require.NoError(t, err)
		assert.True(t, account.Balance.IsZero())

		_, err = txn.GetReservation(ctx, model.NewReservationKey(Owner, uint256.NewInt(1)))
		assert.ErrorIs(t, err, errors.ErrReservationNotFound)

		_, found, err := txn.GetMeta(ctx, "genesis")
		require.NoError(t, err)
		assert.False(t, found)

		return nil
	})
	require.NoError(t, err)

	// the nonce was never retired
	err = store.Update(ctx, func(txn ledger.Txn) error {
		return txn.UseTransferNonce(ctx, Owner, uint256.NewInt(1))
	})
	require.NoError(t, err)
}

func Reservations(t *testing.T, store ledger.Store) {
	ctx := context.Background()
	reservation := NewReservation(Owner, 1)

	err := store.Update(ctx, func(txn ledger.Txn) error {
		return txn.InsertReservation(ctx, reservation)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(txn ledger.Txn) error {
		got, err := txn.GetReservation(ctx, reservation.Key())
		require.NoError(t, err)
		assert.Equal(t, reservation, got)

		_, err = txn.GetReservation(ctx, model.NewReservationKey(Owner, uint256.NewInt(2)))
		assert.ErrorIs(t, err, errors.ErrReservationNotFound)

		return nil
	})
	require.NoError(t, err)

	// same nonce, any status
	err = store.Update(ctx, func(txn ledger.Txn) error {
		return txn.InsertReservation(ctx, NewReservation(Owner, 1))
	})
	require.ErrorIs(t, err, errors.ErrNonceAlreadyUsed)

	err = store.Update(ctx, func(txn ledger.Txn) error {
		return txn.SetReservationStatus(ctx, reservation.Key(), model.StatusCompleted)
	})
	require.NoError(t, err)

	err = store.Update(ctx, func(txn ledger.Txn) error {
		return txn.InsertReservation(ctx, NewReservation(Owner, 1))
	})
	require.ErrorIs(t, err, errors.ErrNonceAlreadyUsed)

	// nonces are scoped per owner
	err = store.Update(ctx, func(txn ledger.Txn) error {
		return txn.InsertReservation(ctx, NewReservation(Owner2, 1))
	})
	require.NoError(t, err)

	err = store.View(ctx, func(txn ledger.Txn) error {
		got, err := txn.GetReservation(ctx, reservation.Key())
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, got.Status)
		assert.Equal(t, reservation.Amount, got.Amount)

		return nil
	})
	require.NoError(t, err)

	err = store.Update(ctx, func(txn ledger.Txn) error {
		return txn.SetReservationStatus(ctx, model.NewReservationKey(Owner, uint256.NewInt(99)), model.StatusReclaimed)
	})
	require.ErrorIs(t, err, errors.ErrReservationNotFound)
}

func DuplicateInsideUnitOfWork(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	err := store.Update(ctx, func(txn ledger.Txn) error {
		require.NoError(t, txn.InsertReservation(ctx, NewReservation(Owner, 7)))
		return txn.InsertReservation(ctx, NewReservation(Owner, 7))
	})
	require.ErrorIs(t, err, errors.ErrNonceAlreadyUsed)

	err = store.View(ctx, func(txn ledger.Txn) error {
		_, err := txn.GetReservation(ctx, model.NewReservationKey(Owner, uint256.NewInt(7)))
		assert.ErrorIs(t, err, errors.ErrReservationNotFound)

		return nil
	})
	require.NoError(t, err)
}

func ListReservations(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	err := store.Update(ctx, func(txn ledger.Txn) error {
		for _, nonce := range []uint64{256, 3, 1, 2} {
			if err := txn.InsertReservation(ctx, NewReservation(Owner, nonce)); err != nil {
				return err
			}
		}

		return txn.InsertReservation(ctx, NewReservation(Owner2, 5))
	})
	require.NoError(t, err)

	err = store.View(ctx, func(txn ledger.Txn) error {
		reservations, err := txn.ListReservations(ctx, Owner)
		require.NoError(t, err)
		require.Len(t, reservations, 4)

		nonces := make([]uint64, 0, len(reservations))
		for _, r := range reservations {
			nonces = append(nonces, r.Nonce.Uint64())
		}

		assert.Equal(t, []uint64{1, 2, 3, 256}, nonces)

		none, err := txn.ListReservations(ctx, Recipient)
		require.NoError(t, err)
		assert.Empty(t, none)

		return nil
	})
	require.NoError(t, err)
}

func TransferNonces(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	use := func(owner model.Address, nonce uint64) error {
		return store.Update(ctx, func(txn ledger.Txn) error {
			return txn.UseTransferNonce(ctx, owner, uint256.NewInt(nonce))
		})
	}

	require.NoError(t, use(Owner, 1))
	require.ErrorIs(t, use(Owner, 1), errors.ErrNonceAlreadyUsed)
	require.NoError(t, use(Owner2, 1))

	// transfer nonces do not collide with reservation nonces
	err := store.Update(ctx, func(txn ledger.Txn) error {
		return txn.InsertReservation(ctx, NewReservation(Owner, 1))
	})
	require.NoError(t, err)
}

func Meta(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	err := store.Update(ctx, func(txn ledger.Txn) error {
		require.NoError(t, txn.SetMeta(ctx, "genesis", "abc"))
		return txn.SetMeta(ctx, "genesis", "def")
	})
	require.NoError(t, err)

	err = store.View(ctx, func(txn ledger.Txn) error {
		value, found, err := txn.GetMeta(ctx, "genesis")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "def", value)

		return nil
	})
	require.NoError(t, err)
}

func ReadOnlyView(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	err := store.View(ctx, func(txn ledger.Txn) error {
		return txn.PutAccount(ctx, model.NewAccount(Owner))
	})
	require.ErrorIs(t, err, errors.ErrStorageError)

	err = store.View(ctx, func(txn ledger.Txn) error {
		return txn.InsertReservation(ctx, NewReservation(Owner, 1))
	})
	require.ErrorIs(t, err, errors.ErrStorageError)
}

// ConcurrentInsert races many units of work on one key; exactly one may win.
func ConcurrentInsert(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	const workers = 16

	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		losses  atomic.Int32
		unknown atomic.Int32
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := store.Update(ctx, func(txn ledger.Txn) error {
				return txn.InsertReservation(ctx, NewReservation(Owner, 42))
			})

			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, errors.ErrNonceAlreadyUsed):
				losses.Add(1)
			default:
				unknown.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), losses.Load())
	assert.Equal(t, int32(0), unknown.Load())
}
