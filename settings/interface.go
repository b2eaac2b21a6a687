package settings

import (
	"net/url"
	"time"
)

type Settings struct {
	ServiceName  string
	DataFolder   string
	LogLevel     string
	LoggerType   string
	ProfilerAddr string
	// HealthCheckPort serves the aggregated readiness and liveness endpoints; 0 disables them.
	HealthCheckPort int
	Ledger          LedgerSettings
	Clock           ClockSettings
	Escrow          EscrowSettings
	Events          EventSettings
	Tracing         TracingSettings
}

type LedgerSettings struct {
	StoreURL            *url.URL
	DBTimeout           time.Duration
	PostgresMaxIdleConn int
	PostgresMaxOpenConn int
	GenesisFile         string
}

type ClockSettings struct {
	// BlockInterval of zero leaves the clock under manual control.
	BlockInterval time.Duration
	StartBlock    uint64
}

type EscrowSettings struct {
	ChainID           uint64
	ContractAddress   string
	SignatureScheme   string
	HTTPListenAddress string
	APIPrefix         string
	EchoDebug         bool
	// CORSAllowOrigins empty disables CORS handling.
	CORSAllowOrigins []string
	// TrustedGateway accepts caller asserted identities: unsigned transfers and unsigned execute/reclaim.
	// Only enable it behind a gateway that authenticates callers.
	TrustedGateway bool
	// ClockControl exposes POST {prefix}/clock/advance for a manual clock.
	ClockControl bool
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit            float64
	RateLimitBurst       int
	ReservationCacheTTL  time.Duration
	ReservationCacheSize int
}

type EventSettings struct {
	KafkaURL *url.URL
}

type TracingSettings struct {
	Enabled      bool
	CollectorURL string
	SampleRate   float64
}
