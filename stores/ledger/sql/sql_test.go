package sql

import (
	"context"
	"database/sql"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/bsv-blockchain/escrowledger/stores/ledger/tests"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/bsv-blockchain/escrowledger/util"
	"github.com/bsv-blockchain/escrowledger/util/usql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSqliteMemoryStore(t *testing.T) *Store {
	t.Helper()

	storeURL, err := url.Parse("sqlitememory:///ledger")
	require.NoError(t, err)

	tSettings := settings.NewSettings()

	store, err := New(context.Background(), ulogger.TestLogger{}, tSettings, storeURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	return store
}

func TestSqliteMemory(t *testing.T) {
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
			suite(t, newSqliteMemoryStore(t))
		})
	}
}

func TestSqliteFile(t *testing.T) {
	storeURL, err := url.Parse("sqlite:///ledger")
	require.NoError(t, err)

	tSettings := settings.NewSettings()
	tSettings.DataFolder = t.TempDir()

	ctx := context.Background()

	store, err := New(ctx, ulogger.TestLogger{}, tSettings, storeURL)
	require.NoError(t, err)

	tests.Reservations(t, store)
	require.NoError(t, store.Close(ctx))

	// reopening keeps the data and the schema creation is idempotent
	store, err = New(ctx, ulogger.TestLogger{}, tSettings, storeURL)
	require.NoError(t, err)

	defer func() {
		_ = store.Close(ctx)
	}()

	err = store.View(ctx, func(txn ledger.Txn) error {
		reservations, err := txn.ListReservations(ctx, tests.Owner)
		require.NoError(t, err)
		assert.Len(t, reservations, 1)

		return nil
	})
	require.NoError(t, err)

	status, _, err := store.Health(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 200, status)
}

func newMockStore(t *testing.T, engine util.SQLEngine) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return NewWithDB(ulogger.TestLogger{}, &usql.DB{DB: db}, engine, time.Second), mock
}

func TestBeginFailureIsStorageUnavailable(t *testing.T) {
	store, mock := newMockStore(t, util.Postgres)

	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	err := store.Update(context.Background(), func(txn ledger.Txn) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
	assert.True(t, errors.IsRetryableError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitFailureIsStorageError(t *testing.T) {
	store, mock := newMockStore(t, util.Postgres)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(sql.ErrTxDone)

	err := store.Update(context.Background(), func(txn ledger.Txn) error { return nil })
	assert.ErrorIs(t, err, errors.ErrStorageError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectionRollsBack(t *testing.T) {
	store, mock := newMockStore(t, util.Postgres)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.Update(context.Background(), func(txn ledger.Txn) error {
		return errors.NewInvalidExpiryError("too late")
	})
	assert.ErrorIs(t, err, errors.ErrInvalidExpiry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUniqueViolationIsNonceAlreadyUsed(t *testing.T) {
	store, mock := newMockStore(t, util.Postgres)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := store.Update(context.Background(), func(txn ledger.Txn) error {
		return txn.InsertReservation(context.Background(), tests.NewReservation(tests.Owner, 1))
	})
	assert.ErrorIs(t, err, errors.ErrNonceAlreadyUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLocksRowsForUpdate(t *testing.T) {
	store, mock := newMockStore(t, util.Postgres)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts (address, balance, reserved) VALUES ($1, '0', '0') ON CONFLICT (address) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance, reserved FROM accounts WHERE address = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "reserved"}).AddRow("2000", "1500"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE owner = $1 AND nonce = $2 FOR UPDATE")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	err := store.Update(context.Background(), func(txn ledger.Txn) error {
		accounts, err := txn.LockAccounts(context.Background(), tests.Owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), accounts[tests.Owner].Unreserved().Uint64())

		_, err = txn.GetReservation(context.Background(), tests.NewReservation(tests.Owner, 1).Key())
		assert.ErrorIs(t, err, errors.ErrReservationNotFound)

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorruptStoredAmount(t *testing.T) {
	store, mock := newMockStore(t, util.Sqlite)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance, reserved FROM accounts WHERE address = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "reserved"}).AddRow("-5", "0"))
	mock.ExpectRollback()

	err := store.View(context.Background(), func(txn ledger.Txn) error {
		_, err := txn.GetAccount(context.Background(), tests.Owner)
		return err
	})
	assert.ErrorIs(t, err, errors.ErrStorageError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthFailure(t *testing.T) {
	store, mock := newMockStore(t, util.Postgres)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnError(sql.ErrConnDone)

	status, details, err := store.Health(context.Background(), false)
	assert.Equal(t, 503, status)
	assert.Contains(t, details, "postgres")
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)

	status, _, err = store.Health(context.Background(), true)
	assert.Equal(t, 200, status)
	require.NoError(t, err)
}
