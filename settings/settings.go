// Package settings loads the daemon configuration through gocore (settings.conf, settings_local.conf and
// environment overrides). Every key has a default so an empty settings file yields a working in-memory ledger.
package settings

import (
	"net/url"
	"time"
)

func NewSettings() *Settings {
	var kafkaURL *url.URL
	if rawKafkaURL := getString("events_kafkaURL", ""); rawKafkaURL != "" {
		kafkaURL = getURL("events_kafkaURL", rawKafkaURL)
	}

	return &Settings{
		ServiceName:     getString("SERVICE_NAME", "escrowledger"),
		DataFolder:      getString("dataFolder", "data"),
		LogLevel:        getString("logLevel", "INFO"),
		LoggerType:      getString("logger_type", "zerolog"),
		ProfilerAddr:    getString("profilerAddr", ""),
		HealthCheckPort: getInt("health_check_port", 8000),
		Ledger: LedgerSettings{
			StoreURL:            getURL("ledger_store", "memory:///"),
			DBTimeout:           getMillis("ledger_dbTimeoutMillis", 5000),
			PostgresMaxIdleConn: getInt("ledger_postgresMaxIdleConns", 10),
			PostgresMaxOpenConn: getInt("ledger_postgresMaxOpenConns", 80),
			GenesisFile:         getString("ledger_genesisFile", ""),
		},
		Clock: ClockSettings{
			BlockInterval: getMillis("clock_blockIntervalMillis", 0),
			StartBlock:    getUint64("clock_startBlock", 0),
		},
		Escrow: EscrowSettings{
			ChainID:              getUint64("network_chain_id", 1337),
			ContractAddress:      getString("escrow_contract_address", "0x0000000000000000000000000000000000000000"),
			SignatureScheme:      getString("escrow_signature_scheme", "eth_personal_sign"),
			HTTPListenAddress:    getString("escrow_httpListenAddress", "127.0.0.1:8099"),
			APIPrefix:            getString("escrow_apiPrefix", "/api/v1"),
			EchoDebug:            getBool("escrow_echoDebug", false),
			CORSAllowOrigins:     getMultiString("escrow_corsAllowOrigins", ","),
			TrustedGateway:       getBool("escrow_trustedGateway", false),
			ClockControl:         getBool("escrow_clockControl", false),
			RateLimit:            getFloat64("escrow_rateLimit", 0),
			RateLimitBurst:       getInt("escrow_rateLimitBurst", 20),
			ReservationCacheTTL:  time.Duration(getInt("escrow_reservationCacheTTLSeconds", 300)) * time.Second,
			ReservationCacheSize: getInt("escrow_reservationCacheSize", 100_000),
		},
		Events: EventSettings{
			KafkaURL: kafkaURL,
		},
		Tracing: TracingSettings{
			Enabled:      getBool("tracing_enabled", false),
			CollectorURL: getString("tracing_collectorURL", "localhost:4318"),
			SampleRate:   getFloat64("tracing_sampleRate", 0.01),
		},
	}
}
