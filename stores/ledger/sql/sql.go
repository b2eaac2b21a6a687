// Package sql is the postgres / sqlite ledger backend. Each unit of work is one database transaction;
// on postgres rows are locked with SELECT ... FOR UPDATE, sqlite runs one transaction at a time.
package sql

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/bsv-blockchain/escrowledger/util"
	"github.com/bsv-blockchain/escrowledger/util/usql"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	logger    ulogger.Logger
	db        *usql.DB
	engine    util.SQLEngine
	dbTimeout time.Duration
}

func New(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (*Store, error) {
	initPrometheusMetrics()

	logger = logger.New("ledgersql")

	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	engine := util.SQLEngine(storeURL.Scheme)

	switch engine {
	case util.Postgres:
		if err = createPostgresSchema(db); err != nil {
			return nil, errors.NewStorageError("failed to create postgres schema", err)
		}

	case util.Sqlite, util.SqliteMemory:
		if err = createSqliteSchema(db); err != nil {
			return nil, errors.NewStorageError("failed to create sqlite schema", err)
		}

	default:
		return nil, errors.NewConfigurationError("unknown database engine: %s", storeURL.Scheme)
	}

	return NewWithDB(logger, db, engine, tSettings.Ledger.DBTimeout), nil
}

// NewWithDB wraps an open database whose schema already exists.
func NewWithDB(logger ulogger.Logger, db *usql.DB, engine util.SQLEngine, dbTimeout time.Duration) *Store {
	initPrometheusMetrics()

	if dbTimeout <= 0 {
		dbTimeout = 5 * time.Second
	}

	return &Store{
		logger:    logger,
		db:        db,
		engine:    engine,
		dbTimeout: dbTimeout,
	}
}

func (s *Store) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	details := fmt.Sprintf("SQL Engine is %s", s.engine)

	if checkLiveness {
		return http.StatusOK, details, nil
	}

	var num int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&num); err != nil {
		return http.StatusServiceUnavailable, details, errors.NewStorageUnavailableError("sql ping failed", err)
	}

	return http.StatusOK, details, nil
}

func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *Store) Update(ctx context.Context, fn func(txn ledger.Txn) error) error {
	prometheusLedgerUpdate.Inc()

	return s.run(ctx, "Update", true, fn)
}

func (s *Store) View(ctx context.Context, fn func(txn ledger.Txn) error) error {
	prometheusLedgerView.Inc()

	return s.run(ctx, "View", false, fn)
}

func (s *Store) run(ctx context.Context, op string, writable bool, fn func(txn ledger.Txn) error) error {
	ctx, cancelTimeout := context.WithTimeout(ctx, s.dbTimeout)
	defer cancelTimeout()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: !writable && s.engine == util.Postgres})
	if err != nil {
		prometheusLedgerErrors.WithLabelValues(op, "begin").Inc()
		return errors.NewStorageUnavailableError("[SQL:%s] failed to begin transaction", op, err)
	}

	t := &txn{store: s, tx: tx, writable: writable}

	if err = fn(t); err != nil {
		prometheusLedgerRollback.Inc()

		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warnf("[SQL:%s] rollback failed: %v", op, rbErr)
		}

		return err
	}

	if err = tx.Commit(); err != nil {
		prometheusLedgerErrors.WithLabelValues(op, "commit").Inc()
		return errors.NewStorageError("[SQL:%s] failed to commit transaction", op, err)
	}

	return nil
}

var _ ledger.Txn = (*txn)(nil)

type txn struct {
	store    *Store
	tx       *usql.Tx
	writable bool
}

func (t *txn) forUpdate() string {
	if t.writable && t.store.engine == util.Postgres {
		return " FOR UPDATE"
	}

	return ""
}

func (t *txn) checkWritable(op string) error {
	if !t.writable {
		return errors.NewStorageError("[SQL:%s] write in read-only unit of work", op)
	}

	return nil
}

func (t *txn) GetAccount(ctx context.Context, addr model.Address) (*model.Account, error) {
	return t.getAccount(ctx, addr, "")
}

func (t *txn) getAccount(ctx context.Context, addr model.Address, suffix string) (*model.Account, error) {
	var balance, reserved string

	q := `SELECT balance, reserved FROM accounts WHERE address = $1` + suffix

	err := t.tx.QueryRowContext(ctx, q, addr.Bytes()).Scan(&balance, &reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewAccount(addr), nil
	}

	if err != nil {
		prometheusLedgerErrors.WithLabelValues("GetAccount", "query").Inc()
		return nil, errors.NewStorageError("[SQL:GetAccount] failed to read account %s", addr.Hex(), err)
	}

	account := &model.Account{Address: addr}

	if account.Balance, err = parseAmount(balance); err != nil {
		return nil, err
	}

	if account.Reserved, err = parseAmount(reserved); err != nil {
		return nil, err
	}

	return account, nil
}

func (t *txn) LockAccounts(ctx context.Context, addrs ...model.Address) (map[model.Address]*model.Account, error) {
	sorted := make([]model.Address, 0, len(addrs))
	seen := make(map[model.Address]struct{}, len(addrs))

	for _, addr := range addrs {
		if _, ok := seen[addr]; ok {
			continue
		}

		seen[addr] = struct{}{}
		sorted = append(sorted, addr)
	}

	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Bytes(), sorted[j].Bytes()) < 0
	})

	accounts := make(map[model.Address]*model.Account, len(sorted))

	for _, addr := range sorted {
		if t.writable {
			// the row must exist for FOR UPDATE to hold a lock on it
			if _, err := t.tx.ExecContext(ctx, `INSERT INTO accounts (address, balance, reserved) VALUES ($1, '0', '0') ON CONFLICT (address) DO NOTHING`, addr.Bytes()); err != nil {
				prometheusLedgerErrors.WithLabelValues("LockAccounts", "insert").Inc()
				return nil, errors.NewStorageError("[SQL:LockAccounts] failed to create account %s", addr.Hex(), err)
			}
		}

		account, err := t.getAccount(ctx, addr, t.forUpdate())
		if err != nil {
			return nil, err
		}

		accounts[addr] = account
	}

	return accounts, nil
}

func (t *txn) PutAccount(ctx context.Context, account *model.Account) error {
	if err := t.checkWritable("PutAccount"); err != nil {
		return err
	}

	q := `
		INSERT INTO accounts (address, balance, reserved) VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET balance = excluded.balance, reserved = excluded.reserved, updated_at = CURRENT_TIMESTAMP
	`

	if _, err := t.tx.ExecContext(ctx, q, account.Address.Bytes(), account.Balance.Dec(), account.Reserved.Dec()); err != nil {
		prometheusLedgerErrors.WithLabelValues("PutAccount", "exec").Inc()
		return errors.NewStorageError("[SQL:PutAccount] failed to write account %s", account.Address.Hex(), err)
	}

	return nil
}

const reservationColumns = `owner, nonce, recipient, executor, amount, fee, expiry_block, created_block, status`

func (t *txn) GetReservation(ctx context.Context, key model.ReservationKey) (*model.Reservation, error) {
	prometheusLedgerReservation.WithLabelValues("GetReservation").Inc()

	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE owner = $1 AND nonce = $2` + t.forUpdate()

	reservation, err := scanReservation(t.tx.QueryRowContext(ctx, q, key.Owner.Bytes(), key.Nonce[:]))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewReservationNotFoundError("reservation %s/%s does not exist", key.Owner.Hex(), key.NonceInt().Dec())
	}

	if err != nil {
		prometheusLedgerErrors.WithLabelValues("GetReservation", "query").Inc()
		return nil, errors.NewStorageError("[SQL:GetReservation] failed to read reservation", err)
	}

	return reservation, nil
}

func (t *txn) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if err := t.checkWritable("InsertReservation"); err != nil {
		return err
	}

	prometheusLedgerReservation.WithLabelValues("InsertReservation").Inc()

	nonce := r.Nonce.Bytes32()

	q := `INSERT INTO reservations (` + reservationColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := t.tx.ExecContext(ctx, q,
		r.Owner.Bytes(),
		nonce[:],
		r.Recipient.Bytes(),
		r.Executor.Bytes(),
		r.Amount.Dec(),
		r.Fee.Dec(),
		strconv.FormatUint(r.ExpiryBlock, 10),
		strconv.FormatUint(r.CreatedBlock, 10),
		int64(r.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewNonceAlreadyUsedError("nonce %s already used by %s", r.Nonce.Dec(), r.Owner.Hex())
		}

		prometheusLedgerErrors.WithLabelValues("InsertReservation", "exec").Inc()

		return errors.NewStorageError("[SQL:InsertReservation] failed to insert reservation", err)
	}

	return nil
}

func (t *txn) SetReservationStatus(ctx context.Context, key model.ReservationKey, status model.Status) error {
	if err := t.checkWritable("SetReservationStatus"); err != nil {
		return err
	}

	prometheusLedgerReservation.WithLabelValues("SetReservationStatus").Inc()

	res, err := t.tx.ExecContext(ctx, `UPDATE reservations SET status = $3 WHERE owner = $1 AND nonce = $2`, key.Owner.Bytes(), key.Nonce[:], int64(status))
	if err != nil {
		prometheusLedgerErrors.WithLabelValues("SetReservationStatus", "exec").Inc()
		return errors.NewStorageError("[SQL:SetReservationStatus] failed to update reservation", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewStorageError("[SQL:SetReservationStatus] failed to read affected rows", err)
	}

	if affected == 0 {
		return errors.NewReservationNotFoundError("reservation %s/%s does not exist", key.Owner.Hex(), key.NonceInt().Dec())
	}

	return nil
}

func (t *txn) ListReservations(ctx context.Context, owner model.Address) ([]*model.Reservation, error) {
	prometheusLedgerReservation.WithLabelValues("ListReservations").Inc()

	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE owner = $1 ORDER BY nonce`

	rows, err := t.tx.QueryContext(ctx, q, owner.Bytes())
	if err != nil {
		prometheusLedgerErrors.WithLabelValues("ListReservations", "query").Inc()
		return nil, errors.NewStorageError("[SQL:ListReservations] failed to query reservations", err)
	}

	defer rows.Close()

	reservations := make([]*model.Reservation, 0)

	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, errors.NewStorageError("[SQL:ListReservations] failed to scan reservation", err)
		}

		reservations = append(reservations, reservation)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.NewStorageError("[SQL:ListReservations] failed to iterate reservations", err)
	}

	return reservations, nil
}

func (t *txn) UseTransferNonce(ctx context.Context, owner model.Address, nonce *uint256.Int) error {
	if err := t.checkWritable("UseTransferNonce"); err != nil {
		return err
	}

	n := nonce.Bytes32()

	if _, err := t.tx.ExecContext(ctx, `INSERT INTO transfer_nonces (owner, nonce) VALUES ($1, $2)`, owner.Bytes(), n[:]); err != nil {
		if isUniqueViolation(err) {
			return errors.NewNonceAlreadyUsedError("transfer nonce %s already used by %s", nonce.Dec(), owner.Hex())
		}

		prometheusLedgerErrors.WithLabelValues("UseTransferNonce", "exec").Inc()

		return errors.NewStorageError("[SQL:UseTransferNonce] failed to insert nonce", err)
	}

	return nil
}

func (t *txn) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := t.tx.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, errors.NewStorageError("[SQL:GetMeta] failed to read %s", key, err)
	}

	return value, true, nil
}

func (t *txn) SetMeta(ctx context.Context, key, value string) error {
	if err := t.checkWritable("SetMeta"); err != nil {
		return err
	}

	q := `INSERT INTO ledger_meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value`

	if _, err := t.tx.ExecContext(ctx, q, key, value); err != nil {
		return errors.NewStorageError("[SQL:SetMeta] failed to write %s", key, err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row scanner) (*model.Reservation, error) {
	var (
		owner, nonce, recipient, executor []byte
		amount, fee, expiry, created      string
		status                            int64
	)

	if err := row.Scan(&owner, &nonce, &recipient, &executor, &amount, &fee, &expiry, &created, &status); err != nil {
		return nil, err
	}

	r := &model.Reservation{
		Owner:     common.BytesToAddress(owner),
		Nonce:     new(uint256.Int).SetBytes(nonce),
		Recipient: common.BytesToAddress(recipient),
		Executor:  common.BytesToAddress(executor),
	}

	var err error

	if r.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}

	if r.Fee, err = parseAmount(fee); err != nil {
		return nil, err
	}

	if r.ExpiryBlock, err = strconv.ParseUint(expiry, 10, 64); err != nil {
		return nil, errors.NewStorageError("invalid stored expiry block %q", expiry, err)
	}

	if r.CreatedBlock, err = strconv.ParseUint(created, 10, 64); err != nil {
		return nil, errors.NewStorageError("invalid stored created block %q", created, err)
	}

	if r.Status, err = model.ParseStatus(status); err != nil {
		return nil, err
	}

	return r, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.NewStorageError("invalid stored amount %q", s, err)
	}

	return v, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}

	return false
}
