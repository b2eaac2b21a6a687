package factory

import (
	"context"
	"net/url"

	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/bsv-blockchain/escrowledger/stores/ledger/sql"
	"github.com/bsv-blockchain/escrowledger/ulogger"
)

func init() {
	newSQL := func(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL) (ledger.Store, error) {
		return sql.New(ctx, logger, tSettings, storeURL)
	}

	availableDatabases["postgres"] = newSQL
	availableDatabases["sqlite"] = newSQL
	availableDatabases["sqlitememory"] = newSQL
}
