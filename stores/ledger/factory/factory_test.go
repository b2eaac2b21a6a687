package factory

import (
	"context"
	"net/url"
	"testing"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/settings"
	storelogger "github.com/bsv-blockchain/escrowledger/stores/ledger/logger"
	"github.com/bsv-blockchain/escrowledger/stores/ledger/memory"
	"github.com/bsv-blockchain/escrowledger/stores/ledger/sql"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settingsWithStore(t *testing.T, rawURL string) *settings.Settings {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)

	tSettings := settings.NewSettings()
	tSettings.Ledger.StoreURL = u
	tSettings.DataFolder = t.TempDir()

	return tSettings
}

func TestNewStoreByScheme(t *testing.T) {
	ctx := context.Background()

	store, err := NewStore(ctx, ulogger.TestLogger{}, settingsWithStore(t, "memory:///"))
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)

	store, err = NewStore(ctx, ulogger.TestLogger{}, settingsWithStore(t, "sqlitememory:///ledger"))
	require.NoError(t, err)
	assert.IsType(t, &sql.Store{}, store)
	require.NoError(t, store.Close(ctx))

	store, err = NewStore(ctx, ulogger.TestLogger{}, settingsWithStore(t, "sqlite:///ledger"))
	require.NoError(t, err)
	assert.IsType(t, &sql.Store{}, store)
	require.NoError(t, store.Close(ctx))
}

func TestNewStoreWithLogging(t *testing.T) {
	store, err := NewStore(context.Background(), ulogger.TestLogger{}, settingsWithStore(t, "memory:///?logging=true"))
	require.NoError(t, err)
	assert.IsType(t, &storelogger.Store{}, store)
}

func TestNewStoreUnknownScheme(t *testing.T) {
	_, err := NewStore(context.Background(), ulogger.TestLogger{}, settingsWithStore(t, "aerospike://localhost:3000/test"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}
