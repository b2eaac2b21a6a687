// Package logger decorates a ledger store so every unit of work and every call inside it is logged.
// The factory enables it with ?logging=true on the store URL.
package logger

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/holiman/uint256"
)

type Store struct {
	logger ulogger.Logger
	store  ledger.Store
}

func New(logger ulogger.Logger, store ledger.Store) ledger.Store {
	return &Store{
		logger: logger,
		store:  store,
	}
}

// caller returns the first few frames above the store, trimmed to the last two path elements.
func caller() string {
	var callers []string

	for i := 0; i < 3; i++ {
		pc, file, line, ok := runtime.Caller(3 + i)
		if !ok {
			break
		}

		folders := strings.Split(file, string(filepath.Separator))
		if len(folders) > 2 {
			folders = folders[len(folders)-2:]
		}

		funcName := runtime.FuncForPC(pc).Name()
		funcPaths := strings.Split(funcName, "/")
		funcName = funcPaths[len(funcPaths)-1]

		callers = append(callers, fmt.Sprintf("called from %s: %s:%d", funcName, filepath.Join(folders...), line))
	}

	return strings.Join(callers, ",")
}

func (s *Store) Update(ctx context.Context, fn func(txn ledger.Txn) error) error {
	start := time.Now()
	err := s.store.Update(ctx, func(txn ledger.Txn) error {
		return fn(&loggedTxn{logger: s.logger, txn: txn})
	})
	s.logger.Infof("[LedgerStore][logger][Update] took %s err %v : %s", time.Since(start), err, caller())

	return err
}

func (s *Store) View(ctx context.Context, fn func(txn ledger.Txn) error) error {
	start := time.Now()
	err := s.store.View(ctx, func(txn ledger.Txn) error {
		return fn(&loggedTxn{logger: s.logger, txn: txn})
	})
	s.logger.Infof("[LedgerStore][logger][View] took %s err %v : %s", time.Since(start), err, caller())

	return err
}

func (s *Store) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	return s.store.Health(ctx, checkLiveness)
}

func (s *Store) Close(ctx context.Context) error {
	s.logger.Infof("[LedgerStore][logger][Close]")
	return s.store.Close(ctx)
}

type loggedTxn struct {
	logger ulogger.Logger
	txn    ledger.Txn
}

func (t *loggedTxn) GetAccount(ctx context.Context, addr model.Address) (*model.Account, error) {
	account, err := t.txn.GetAccount(ctx, addr)
	t.logger.Debugf("[LedgerStore][logger][GetAccount] %s err %v", addr.Hex(), err)

	return account, err
}

func (t *loggedTxn) LockAccounts(ctx context.Context, addrs ...model.Address) (map[model.Address]*model.Account, error) {
	accounts, err := t.txn.LockAccounts(ctx, addrs...)
	t.logger.Debugf("[LedgerStore][logger][LockAccounts] %d accounts err %v", len(addrs), err)

	return accounts, err
}

func (t *loggedTxn) PutAccount(ctx context.Context, account *model.Account) error {
	err := t.txn.PutAccount(ctx, account)
	t.logger.Debugf("[LedgerStore][logger][PutAccount] %s balance %s reserved %s err %v", account.Address.Hex(), account.Balance.Dec(), account.Reserved.Dec(), err)

	return err
}

func (t *loggedTxn) GetReservation(ctx context.Context, key model.ReservationKey) (*model.Reservation, error) {
	reservation, err := t.txn.GetReservation(ctx, key)
	t.logger.Debugf("[LedgerStore][logger][GetReservation] %s/%s err %v", key.Owner.Hex(), key.NonceInt().Dec(), err)

	return reservation, err
}

func (t *loggedTxn) InsertReservation(ctx context.Context, reservation *model.Reservation) error {
	err := t.txn.InsertReservation(ctx, reservation)
	t.logger.Debugf("[LedgerStore][logger][InsertReservation] %s/%s amount %s fee %s expiry %d err %v",
		reservation.Owner.Hex(), reservation.Nonce.Dec(), reservation.Amount.Dec(), reservation.Fee.Dec(), reservation.ExpiryBlock, err)

	return err
}

func (t *loggedTxn) SetReservationStatus(ctx context.Context, key model.ReservationKey, status model.Status) error {
	err := t.txn.SetReservationStatus(ctx, key, status)
	t.logger.Debugf("[LedgerStore][logger][SetReservationStatus] %s/%s -> %s err %v", key.Owner.Hex(), key.NonceInt().Dec(), status, err)

	return err
}

func (t *loggedTxn) ListReservations(ctx context.Context, owner model.Address) ([]*model.Reservation, error) {
	reservations, err := t.txn.ListReservations(ctx, owner)
	t.logger.Debugf("[LedgerStore][logger][ListReservations] %s: %d err %v", owner.Hex(), len(reservations), err)

	return reservations, err
}

func (t *loggedTxn) UseTransferNonce(ctx context.Context, owner model.Address, nonce *uint256.Int) error {
	err := t.txn.UseTransferNonce(ctx, owner, nonce)
	t.logger.Debugf("[LedgerStore][logger][UseTransferNonce] %s/%s err %v", owner.Hex(), nonce.Dec(), err)

	return err
}

func (t *loggedTxn) GetMeta(ctx context.Context, key string) (string, bool, error) {
	value, found, err := t.txn.GetMeta(ctx, key)
	t.logger.Debugf("[LedgerStore][logger][GetMeta] %s found %t err %v", key, found, err)

	return value, found, err
}

func (t *loggedTxn) SetMeta(ctx context.Context, key, value string) error {
	err := t.txn.SetMeta(ctx, key, value)
	t.logger.Debugf("[LedgerStore][logger][SetMeta] %s err %v", key, err)

	return err
}
