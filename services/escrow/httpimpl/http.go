// Package httpimpl exposes the escrow ledger over a JSON REST API built on echo.
package httpimpl

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bsv-blockchain/escrowledger/clock"
	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/services/escrow"
	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/bsv-blockchain/escrowledger/util/servicemanager"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTP struct {
	logger      ulogger.Logger
	settings    *settings.Settings
	escrow      *escrow.Escrow
	manualClock *clock.Manual
	e           *echo.Echo
	startTime   time.Time
}

// New builds the API server. manualClock may be nil, in which case the clock can only be read.
//
// Execute and reclaim must be signed by the submitter unless escrow_trustedGateway is set; the unsigned
// transfer route only works in that mode. Clock advance needs escrow_clockControl. escrow_rateLimit caps
// the requests per second of each client IP.
//
// API Endpoints:
//
//	GET  /alive, /health, /metrics
//	POST {prefix}/reserve
//	POST {prefix}/reservation/:owner/:nonce/execute
//	POST {prefix}/reservation/:owner/:nonce/reclaim
//	GET  {prefix}/reservation/:owner/:nonce
//	GET  {prefix}/reservations/:owner
//	GET  {prefix}/balance/:account
//	POST {prefix}/transfer
//	POST {prefix}/transfer/signed
//	GET  {prefix}/clock
//	POST {prefix}/clock/advance
func New(logger ulogger.Logger, tSettings *settings.Settings, esc *escrow.Escrow, manualClock *clock.Manual) *HTTP {
	initPrometheusMetrics()

	e := echo.New()
	e.Debug = tSettings.Escrow.EchoDebug
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}

	e.Use(middleware.Recover())

	if len(tSettings.Escrow.CORSAllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  tSettings.Escrow.CORSAllowOrigins,
			AllowMethods:  []string{echo.GET, echo.HEAD, echo.POST, echo.OPTIONS},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{echo.HeaderContentLength, echo.HeaderContentType},
			MaxAge:        86400,
		}))
	}

	e.Use(middleware.Gzip())
	e.Use(requestCounterMiddleware())

	if tSettings.Escrow.RateLimit > 0 {
		e.Use(rateLimitMiddleware(tSettings.Escrow.RateLimit, tSettings.Escrow.RateLimitBurst))
	}

	if e.Debug {
		e.Use(customLoggerMiddleware(logger))
	}

	h := &HTTP{
		logger:      logger,
		settings:    tSettings,
		escrow:      esc,
		manualClock: manualClock,
		e:           e,
		startTime:   time.Now(),
	}

	e.GET("/alive", func(c echo.Context) error {
		return c.String(http.StatusOK, fmt.Sprintf("Escrow service is alive. Uptime: %s\n", time.Since(h.startTime)))
	})

	e.GET("/health", func(c echo.Context) error {
		status, details, _ := h.Health(c.Request().Context(), false)

		return c.String(status, details)
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiGroup := e.Group(tSettings.Escrow.APIPrefix)

	apiGroup.POST("/reserve", h.Reserve)
	apiGroup.POST("/reservation/:owner/:nonce/execute", h.Execute)
	apiGroup.POST("/reservation/:owner/:nonce/reclaim", h.Reclaim)
	apiGroup.GET("/reservation/:owner/:nonce", h.GetReservation)
	apiGroup.GET("/reservations/:owner", h.ListReservations)

	apiGroup.GET("/balance/:account", h.GetBalance)
	apiGroup.POST("/transfer", h.Transfer)
	apiGroup.POST("/transfer/signed", h.TransferSigned)

	apiGroup.GET("/clock", h.GetClock)
	apiGroup.POST("/clock/advance", h.AdvanceClock)

	return h
}

func (h *HTTP) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	return h.escrow.Health(ctx, checkLiveness)
}

func (h *HTTP) Init(_ context.Context) error {
	return nil
}

// Start listens on escrow_httpListenAddress and serves until ctx is cancelled.
func (h *HTTP) Start(ctx context.Context, readyCh chan<- struct{}) error {
	listener, err := net.Listen("tcp", h.settings.Escrow.HTTPListenAddress)
	if err != nil {
		return errors.NewServiceError("[EscrowHTTP] failed to listen on %s", h.settings.Escrow.HTTPListenAddress, err)
	}

	h.e.Listener = listener

	go func() {
		<-ctx.Done()

		h.logger.Infof("[EscrowHTTP] service shutting down")

		if err := h.e.Shutdown(context.Background()); err != nil {
			h.logger.Errorf("[EscrowHTTP] service shutdown error: %s", err)
		}
	}()

	servicemanager.AddListenerInfo(fmt.Sprintf("Escrow HTTP listening on %s", listener.Addr()))

	close(readyCh)

	if err = h.e.Start(listener.Addr().String()); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (h *HTTP) Stop(ctx context.Context) error {
	return h.e.Shutdown(ctx)
}

// ServeHTTP lets the API be mounted or exercised without a listener.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.e.ServeHTTP(w, r)
}

func requestCounterMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				c.Error(err)
			}

			operation := "ok"
			if status := c.Response().Status; status >= http.StatusBadRequest {
				operation = strconv.Itoa(status/100) + "xx"
			}

			prometheusEscrowHTTPRequests.WithLabelValues(c.Path(), operation).Inc()

			return nil
		}
	}
}

func customLoggerMiddleware(logger ulogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Infof("http request: Method=%s, URI=%s, RemoteAddr=%s Status=%d, Duration=%v, err=%v", c.Request().Method, c.Request().RequestURI, c.Request().RemoteAddr, c.Response().Status, time.Since(start), err)

			return nil
		}
	}
}
