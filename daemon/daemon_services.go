package daemon

import (
	"context"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // only served when profilerAddr is set
	"time"

	"github.com/bsv-blockchain/escrowledger/authorization"
	"github.com/bsv-blockchain/escrowledger/clock"
	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/services/escrow"
	"github.com/bsv-blockchain/escrowledger/services/escrow/events"
	"github.com/bsv-blockchain/escrowledger/services/escrow/httpimpl"
	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/bsv-blockchain/escrowledger/stores/ledger/factory"
	"github.com/bsv-blockchain/escrowledger/tracing"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/bsv-blockchain/escrowledger/util/retry"
	"github.com/bsv-blockchain/escrowledger/util/servicemanager"
	"github.com/ethereum/go-ethereum/common"
	"github.com/felixge/fgprof"
	"github.com/ordishs/gocore"
)

// startServices builds the ledger stack and registers the services selected on the command line.
func (d *Daemon) startServices(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, sm *servicemanager.ServiceManager, args []string, readyCh chan<- struct{}) error {
	createLogger := d.loggerFactory

	help := d.shouldStart("help", args)
	startEscrow := d.shouldStart("Escrow", args)
	startClock := d.shouldStart("Clock", args)

	if help || d.appCount == 0 {
		printUsage()

		if readyCh != nil {
			close(readyCh)
		}

		return nil
	}

	d.startProfiler(logger, tSettings)

	if err := tracing.InitOtelTracer(createLogger("tracing"), tSettings); err != nil {
		return err
	}

	store, err := retry.Retry(ctx, logger, func() (ledger.Store, error) {
		return factory.NewStore(ctx, createLogger("ledger"), tSettings)
	}, startupRetryOptions("opening ledger store")...)
	if err != nil {
		return err
	}

	d.store = store

	codec, err := newCodec(tSettings)
	if err != nil {
		return err
	}

	if d.publisher == nil {
		d.publisher, err = retry.Retry(ctx, logger, func() (events.Publisher, error) {
			return newEventPublisher(createLogger("events"), tSettings)
		}, startupRetryOptions("connecting event publisher")...)
		if err != nil {
			return err
		}
	}

	var (
		clk         clock.Clock
		manualClock *clock.Manual
		interval    *clock.Interval
	)

	if tSettings.Clock.BlockInterval > 0 {
		interval = clock.NewInterval(createLogger("clock"), tSettings.Clock.StartBlock, tSettings.Clock.BlockInterval)
		clk = interval
	} else {
		manualClock = clock.NewManual(tSettings.Clock.StartBlock)
		clk = manualClock
	}

	esc := escrow.New(createLogger("escrow"), tSettings, store, clk, codec, d.publisher)

	if tSettings.Ledger.GenesisFile != "" {
		_, err = retry.Retry(ctx, logger, func() (struct{}, error) {
			return struct{}{}, esc.ApplyGenesisFile(ctx, tSettings.Ledger.GenesisFile)
		}, retry.WithRetryCount(3), retry.WithMessage("applying genesis file"), retry.WithRetryIf(errors.IsRetryableError))
		if err != nil {
			return err
		}
	}

	d.Escrow = esc

	if startClock {
		if interval == nil {
			logger.Warnf("clock_blockIntervalMillis is 0, the clock stays under manual control")
		} else if err = sm.AddService("Clock", interval); err != nil {
			return err
		}
	}

	if startEscrow {
		if err = sm.AddService("Escrow", httpimpl.New(createLogger("http"), tSettings, esc, manualClock)); err != nil {
			return err
		}
	}

	if readyCh != nil {
		go func() {
			sm.WaitForServiceToBeReady()
			close(readyCh)
		}()
	}

	return nil
}

// startupRetryOptions retries transient dependency failures at boot; configuration errors are permanent.
func startupRetryOptions(message string) []retry.Option {
	return []retry.Option{
		retry.WithRetryCount(5),
		retry.WithExponentialBackoff(),
		retry.WithBackoffDurationType(500 * time.Millisecond),
		retry.WithMaxBackoff(10 * time.Second),
		retry.WithMessage(message),
		retry.WithRetryIf(func(err error) bool {
			return !errors.Is(err, errors.ErrConfiguration) && !errors.IsContextError(err)
		}),
	}
}

func newCodec(tSettings *settings.Settings) (*authorization.Codec, error) {
	if !common.IsHexAddress(tSettings.Escrow.ContractAddress) {
		return nil, errors.NewConfigurationError("escrow_contract_address %q is not a hex address", tSettings.Escrow.ContractAddress)
	}

	return authorization.NewCodec(tSettings.Escrow.ChainID, common.HexToAddress(tSettings.Escrow.ContractAddress), tSettings.Escrow.SignatureScheme)
}

func (d *Daemon) startProfiler(logger ulogger.Logger, tSettings *settings.Settings) {
	profilerAddr := tSettings.ProfilerAddr
	if profilerAddr == "" || pprofRegistered.Swap(true) {
		return
	}

	logger.Infof("Profiler listening on http://%s/debug/pprof", profilerAddr)

	gocore.RegisterStatsHandlers()

	http.DefaultServeMux.Handle("/debug/fgprof", fgprof.Handler())
	logger.Infof("FGProf available at http://%s/debug/fgprof", profilerAddr)

	go func() {
		server := &http.Server{
			Addr:         profilerAddr,
			Handler:      nil,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		if err := server.ListenAndServe(); err != nil {
			logger.Errorf("profiler server failed: %v", err)
		}
	}()
}
