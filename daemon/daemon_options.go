package daemon

import (
	"context"

	"github.com/bsv-blockchain/escrowledger/services/escrow/events"
	"github.com/bsv-blockchain/escrowledger/ulogger"
)

// Option is a functional option type for configuring the Daemon.
type Option func(*Daemon)

// WithLoggerFactory provides a custom logger factory for the Daemon and its services.
func WithLoggerFactory(factory func(serviceName string) ulogger.Logger) Option {
	return func(d *Daemon) {
		d.loggerFactory = factory
	}
}

// WithContext allows setting a custom context for the Daemon.
func WithContext(ctx context.Context) Option {
	return func(d *Daemon) {
		d.Ctx = ctx
	}
}

// WithEventPublisher overrides the publisher built from events_kafkaURL.
func WithEventPublisher(publisher events.Publisher) Option {
	return func(d *Daemon) {
		d.publisher = publisher
	}
}
