// Package memory is an in-process ledger backend on swiss maps. One mutex guards the whole ledger, so
// units of work are fully serialised.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/dolthub/swiss"
	"github.com/holiman/uint256"
)

const initialCapacity = 1024

type Store struct {
	mu             sync.RWMutex
	logger         ulogger.Logger
	accounts       *swiss.Map[model.Address, *model.Account]
	reservations   *swiss.Map[model.ReservationKey, *model.Reservation]
	transferNonces *swiss.Map[model.ReservationKey, struct{}]
	meta           map[string]string
}

func New(logger ulogger.Logger) *Store {
	return &Store{
		logger:         logger,
		accounts:       swiss.NewMap[model.Address, *model.Account](initialCapacity),
		reservations:   swiss.NewMap[model.ReservationKey, *model.Reservation](initialCapacity),
		transferNonces: swiss.NewMap[model.ReservationKey, struct{}](initialCapacity),
		meta:           make(map[string]string),
	}
}

func (s *Store) Health(_ context.Context, _ bool) (int, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return http.StatusOK, fmt.Sprintf("Memory Store: %d accounts, %d reservations", s.accounts.Count(), s.reservations.Count()), nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) Update(ctx context.Context, fn func(txn ledger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return errors.NewContextCanceledError("[Memory:Update] context done", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := newTxn(s, true)

	if err := fn(txn); err != nil {
		return err
	}

	txn.commit()

	return nil
}

func (s *Store) View(ctx context.Context, fn func(txn ledger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return errors.NewContextCanceledError("[Memory:View] context done", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(newTxn(s, false))
}

var _ ledger.Txn = (*txn)(nil)

// txn stages writes in overlays that are only folded into the store on commit.
type txn struct {
	store          *Store
	writable       bool
	accounts       map[model.Address]*model.Account
	reservations   map[model.ReservationKey]*model.Reservation
	transferNonces map[model.ReservationKey]struct{}
	meta           map[string]string
}

func newTxn(s *Store, writable bool) *txn {
	return &txn{
		store:          s,
		writable:       writable,
		accounts:       make(map[model.Address]*model.Account),
		reservations:   make(map[model.ReservationKey]*model.Reservation),
		transferNonces: make(map[model.ReservationKey]struct{}),
		meta:           make(map[string]string),
	}
}

func (t *txn) commit() {
	for addr, account := range t.accounts {
		t.store.accounts.Put(addr, account)
	}

	for key, reservation := range t.reservations {
		t.store.reservations.Put(key, reservation)
	}

	for key := range t.transferNonces {
		t.store.transferNonces.Put(key, struct{}{})
	}

	for k, v := range t.meta {
		t.store.meta[k] = v
	}
}

func (t *txn) checkWritable(op string) error {
	if !t.writable {
		return errors.NewStorageError("[Memory:%s] write in read-only unit of work", op)
	}

	return nil
}

func (t *txn) GetAccount(_ context.Context, addr model.Address) (*model.Account, error) {
	if account, ok := t.accounts[addr]; ok {
		return account.Clone(), nil
	}

	if account, ok := t.store.accounts.Get(addr); ok {
		return account.Clone(), nil
	}

	return model.NewAccount(addr), nil
}

// LockAccounts only reads: the store mutex already excludes every other unit of work.
func (t *txn) LockAccounts(ctx context.Context, addrs ...model.Address) (map[model.Address]*model.Account, error) {
	accounts := make(map[model.Address]*model.Account, len(addrs))

	for _, addr := range addrs {
		account, err := t.GetAccount(ctx, addr)
		if err != nil {
			return nil, err
		}

		accounts[addr] = account
	}

	return accounts, nil
}

func (t *txn) PutAccount(_ context.Context, account *model.Account) error {
	if err := t.checkWritable("PutAccount"); err != nil {
		return err
	}

	t.accounts[account.Address] = account.Clone()

	return nil
}

func (t *txn) GetReservation(_ context.Context, key model.ReservationKey) (*model.Reservation, error) {
	if reservation, ok := t.reservations[key]; ok {
		return reservation.Clone(), nil
	}

	if reservation, ok := t.store.reservations.Get(key); ok {
		return reservation.Clone(), nil
	}

	return nil, errors.NewReservationNotFoundError("reservation %s/%s does not exist", key.Owner.Hex(), key.NonceInt().Dec())
}

func (t *txn) InsertReservation(ctx context.Context, reservation *model.Reservation) error {
	if err := t.checkWritable("InsertReservation"); err != nil {
		return err
	}

	key := reservation.Key()

	if _, err := t.GetReservation(ctx, key); err == nil {
		return errors.NewNonceAlreadyUsedError("nonce %s already used by %s", reservation.Nonce.Dec(), reservation.Owner.Hex())
	} else if !errors.Is(err, errors.ErrReservationNotFound) {
		return err
	}

	t.reservations[key] = reservation.Clone()

	return nil
}

func (t *txn) SetReservationStatus(ctx context.Context, key model.ReservationKey, status model.Status) error {
	if err := t.checkWritable("SetReservationStatus"); err != nil {
		return err
	}

	reservation, err := t.GetReservation(ctx, key)
	if err != nil {
		return err
	}

	reservation.Status = status
	t.reservations[key] = reservation

	return nil
}

func (t *txn) ListReservations(_ context.Context, owner model.Address) ([]*model.Reservation, error) {
	byKey := make(map[model.ReservationKey]*model.Reservation)

	t.store.reservations.Iter(func(key model.ReservationKey, reservation *model.Reservation) bool {
		if key.Owner == owner {
			byKey[key] = reservation
		}

		return false
	})

	for key, reservation := range t.reservations {
		if key.Owner == owner {
			byKey[key] = reservation
		}
	}

	keys := make([]model.ReservationKey, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}

	// big-endian nonce bytes sort numerically
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].Nonce[:], keys[j].Nonce[:]) < 0
	})

	result := make([]*model.Reservation, 0, len(keys))
	for _, key := range keys {
		result = append(result, byKey[key].Clone())
	}

	return result, nil
}

func (t *txn) UseTransferNonce(_ context.Context, owner model.Address, nonce *uint256.Int) error {
	if err := t.checkWritable("UseTransferNonce"); err != nil {
		return err
	}

	key := model.NewReservationKey(owner, nonce)

	_, staged := t.transferNonces[key]
	_, stored := t.store.transferNonces.Get(key)

	if staged || stored {
		return errors.NewNonceAlreadyUsedError("transfer nonce %s already used by %s", nonce.Dec(), owner.Hex())
	}

	t.transferNonces[key] = struct{}{}

	return nil
}

func (t *txn) GetMeta(_ context.Context, key string) (string, bool, error) {
	if v, ok := t.meta[key]; ok {
		return v, true, nil
	}

	v, ok := t.store.meta[key]

	return v, ok, nil
}

func (t *txn) SetMeta(_ context.Context, key, value string) error {
	if err := t.checkWritable("SetMeta"); err != nil {
		return err
	}

	t.meta[key] = value

	return nil
}
