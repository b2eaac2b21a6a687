// Package ledger defines the persistence contract for balances, reservations and replay protection.
//
// All reads and writes happen inside a unit of work. Update runs its function against a Txn and commits only
// if the function returns nil, so a rejected operation leaves no trace. Units of work touching the same
// accounts or reservation keys are serialised by the backend.
package ledger

import (
	"context"

	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/holiman/uint256"
)

type Store interface {
	Update(ctx context.Context, fn func(txn Txn) error) error
	View(ctx context.Context, fn func(txn Txn) error) error
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Close(ctx context.Context) error
}

type Txn interface {
	// GetAccount never fails for unknown addresses, it returns an empty account instead.
	GetAccount(ctx context.Context, addr model.Address) (*model.Account, error)

	// LockAccounts loads the accounts and holds them until the unit of work ends. Backends lock in
	// address order so concurrent units of work cannot deadlock.
	LockAccounts(ctx context.Context, addrs ...model.Address) (map[model.Address]*model.Account, error)
	PutAccount(ctx context.Context, account *model.Account) error

	// GetReservation returns ErrReservationNotFound for keys that were never reserved.
	GetReservation(ctx context.Context, key model.ReservationKey) (*model.Reservation, error)

	// InsertReservation returns ErrNonceAlreadyUsed if the key exists, whatever its status.
	InsertReservation(ctx context.Context, reservation *model.Reservation) error
	SetReservationStatus(ctx context.Context, key model.ReservationKey, status model.Status) error

	// ListReservations returns all reservations of owner ordered by nonce.
	ListReservations(ctx context.Context, owner model.Address) ([]*model.Reservation, error)

	// UseTransferNonce retires a signed transfer nonce; ErrNonceAlreadyUsed if it was retired before.
	UseTransferNonce(ctx context.Context, owner model.Address, nonce *uint256.Int) error

	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}
