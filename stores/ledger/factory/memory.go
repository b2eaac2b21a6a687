package factory

import (
	"context"
	"net/url"

	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/bsv-blockchain/escrowledger/stores/ledger/memory"
	"github.com/bsv-blockchain/escrowledger/ulogger"
)

func init() {
	availableDatabases["memory"] = func(_ context.Context, logger ulogger.Logger, _ *settings.Settings, _ *url.URL) (ledger.Store, error) {
		return memory.New(logger), nil
	}
}
