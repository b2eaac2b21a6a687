// Package daemon assembles the escrow ledger from settings and runs its services until shutdown.
package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/services/escrow"
	"github.com/bsv-blockchain/escrowledger/services/escrow/events"
	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/bsv-blockchain/escrowledger/tracing"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/bsv-blockchain/escrowledger/util/servicemanager"
	"github.com/ordishs/gocore"
)

var pprofRegistered atomic.Bool

type Daemon struct {
	Ctx           context.Context
	doneCh        chan struct{}
	closeDoneOnce sync.Once

	stopCh        chan struct{} // closed once every service has stopped
	closeStopOnce sync.Once
	serverMu      sync.Mutex
	server        *http.Server

	ServiceManager *servicemanager.ServiceManager
	// Escrow is set once Start has built the ledger.
	Escrow *escrow.Escrow

	loggerFactory func(serviceName string) ulogger.Logger
	store         ledger.Store
	publisher     events.Publisher
	appCount      int
}

func New(opts ...Option) *Daemon {
	d := &Daemon{
		Ctx:    context.Background(),
		doneCh: make(chan struct{}),
		stopCh: make(chan struct{}),
		loggerFactory: func(serviceName string) ulogger.Logger {
			return ulogger.New(serviceName)
		},
	}

	for _, opt := range opts {
		opt(d)
	}

	d.ServiceManager = servicemanager.NewServiceManager(d.Ctx, d.loggerFactory("ServiceManager"))

	return d
}

// Stop asks Start to shut everything down and waits up to timeout (default 10s) for it to finish.
func (d *Daemon) Stop(timeout ...time.Duration) error {
	logger := d.loggerFactory("Daemon")

	d.closeDoneOnce.Do(func() { close(d.doneCh) })

	if d.appCount == 0 {
		d.closeStopOnce.Do(func() { close(d.stopCh) })
		return nil
	}

	shutdownTimeout := 10 * time.Second
	if len(timeout) > 0 {
		shutdownTimeout = timeout[0]
	}

	select {
	case <-d.stopCh:
		return nil
	case <-time.After(shutdownTimeout):
		logger.Warnf("Timeout waiting for services to stop after %v", shutdownTimeout)

		return errors.NewProcessingError("timeout waiting for services to stop after %v", shutdownTimeout)
	}
}

// Start builds the ledger and runs the selected services. It blocks until they stop or Stop is called.
// readyCh, when given, is closed once every service accepts work.
func (d *Daemon) Start(logger ulogger.Logger, args []string, tSettings *settings.Settings, readyCh ...chan struct{}) {
	if d.shouldStart("wait_for_postgres", args) {
		if err := waitForPostgresToStart(logger, tSettings); err != nil {
			logger.Errorf("error waiting for postgres: %v", err)
			return
		}
	}

	sm := d.ServiceManager

	var readyChInternal chan struct{}
	if len(readyCh) > 0 {
		readyChInternal = readyCh[0]
	}

	if err := d.startServices(sm.Ctx, logger, tSettings, sm, args, readyChInternal); err != nil {
		logger.Errorf("error starting services: %v", err)
		sm.ForceShutdown()
		d.closeDoneOnce.Do(func() { close(d.doneCh) })
	}

	d.startHealthServer(logger, tSettings, sm)

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- sm.Wait()
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			logger.Errorf("services failed: %v", err)
		}
	case <-d.doneCh:
		logger.Infof("daemon shutdown requested")

		sm.ForceShutdown()

		logger.Infof("daemon shutdown waiting for services to finish")

		if err := <-waitErr; err != nil {
			logger.Errorf("error during service shutdown: %v", err)
		}
	}

	d.shutdownHealthServer(logger)
	d.closeResources(logger)

	logger.Infof("daemon shutdown completed")

	d.closeStopOnce.Do(func() { close(d.stopCh) })
}

func (d *Daemon) startHealthServer(logger ulogger.Logger, tSettings *settings.Settings, sm *servicemanager.ServiceManager) {
	if tSettings.HealthCheckPort == 0 {
		return
	}

	healthFunc := func(liveness bool) func(http.ResponseWriter, *http.Request) {
		return func(w http.ResponseWriter, r *http.Request) {
			status, details, _ := sm.HealthHandler(r.Context(), liveness)

			w.WriteHeader(status)
			_, _ = w.Write([]byte(details))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthFunc(false))
	mux.HandleFunc("/health/readiness", healthFunc(false))
	mux.HandleFunc("/health/liveness", healthFunc(true))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", tSettings.HealthCheckPort),
		Handler:           mux,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	d.serverMu.Lock()
	d.server = server
	d.serverMu.Unlock()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("health check server failed: %v", err)
		}
	}()

	logger.Infof("Health check endpoint listening on http://localhost:%d/health", tSettings.HealthCheckPort)
}

func (d *Daemon) shutdownHealthServer(logger ulogger.Logger) {
	d.serverMu.Lock()
	defer d.serverMu.Unlock()

	if d.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.server.Shutdown(ctx); err != nil {
		logger.Warnf("Error shutting down health check server: %v", err)
	}

	d.server = nil
}

// closeResources releases what the services shared: the event publisher, the ledger store and the tracer.
func (d *Daemon) closeResources(logger ulogger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if d.publisher != nil {
		logger.Debugf("closing event publisher")

		if err := d.publisher.Close(); err != nil {
			logger.Warnf("error closing event publisher: %v", err)
		}
	}

	if d.store != nil {
		logger.Debugf("closing ledger store")

		if err := d.store.Close(ctx); err != nil {
			logger.Warnf("error closing ledger store: %v", err)
		}
	}

	if err := tracing.ShutdownTracer(ctx); err != nil {
		logger.Warnf("error shutting down tracer: %v", err)
	}
}

// shouldStart reports whether -<app>=1 is on the command line, or start<App> is set in the config and
// neither -<app>=0 nor -all=0 overrides it.
func (d *Daemon) shouldStart(app string, args []string) bool {
	cmdArg := fmt.Sprintf("-%s=1", strings.ToLower(app))
	for _, cmd := range args {
		if cmd == cmdArg {
			d.appCount++
			return true
		}
	}

	cmdArg = fmt.Sprintf("-%s=0", strings.ToLower(app))
	for _, cmd := range args {
		if cmd == cmdArg || cmd == "-all=0" {
			return false
		}
	}

	b := gocore.Config().GetBool(fmt.Sprintf("start%s", app))
	if b {
		d.appCount++
	}

	return b
}

func printUsage() {
	fmt.Println("usage: escrowledger [options]")
	fmt.Println("where options are:")
	fmt.Println("")
	fmt.Println("    -escrow=<1|0>")
	fmt.Println("          whether to start the escrow HTTP API")
	fmt.Println("")
	fmt.Println("    -clock=<1|0>")
	fmt.Println("          whether to tick the block clock (needs clock_blockIntervalMillis > 0)")
	fmt.Println("")
	fmt.Println("    -wait_for_postgres=1")
	fmt.Println("          wait for the postgres ledger store to accept connections first")
	fmt.Println("")
	fmt.Println("    -all=0")
	fmt.Println("          disable every service not enabled explicitly")
	fmt.Println("")
}

func waitForPostgresToStart(logger ulogger.Logger, tSettings *settings.Settings) error {
	storeURL := tSettings.Ledger.StoreURL
	if storeURL == nil || storeURL.Scheme != "postgres" {
		return nil
	}

	address := storeURL.Host
	if storeURL.Port() == "" {
		address = net.JoinHostPort(storeURL.Hostname(), "5432")
	}

	logger.Infof("Waiting for PostgreSQL to be ready at %s", address)

	deadline := time.Now().Add(time.Minute)

	for {
		conn, err := net.DialTimeout("tcp", address, time.Second)
		if err != nil {
			if time.Now().After(deadline) {
				return errors.NewStorageUnavailableError("timed out waiting for PostgreSQL to start", err)
			}

			logger.Infof("PostgreSQL is not up yet - waiting")
			time.Sleep(time.Second)

			continue
		}

		_ = conn.Close()

		logger.Infof("PostgreSQL is up - ready to go!")

		return nil
	}
}
