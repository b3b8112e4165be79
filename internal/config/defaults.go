package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL           = "https://api-fxpractice.oanda.com"
	DefaultStreamURL         = "https://stream-fxpractice.oanda.com"
	DefaultAPITimeout        = 30 * time.Second
	DefaultStreamTransport   = TransportHTTP
	DefaultSubscriberBuffer  = 16
	DefaultMaxBuffer         = 4096
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 2 * time.Second
	DefaultReconcileInterval = 30 * time.Second
	DefaultReconcileTimeout  = 20 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
)

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.StreamURL == "" {
		c.API.StreamURL = DefaultStreamURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.StreamTransport == "" {
		c.API.StreamTransport = DefaultStreamTransport
	}

	// Hub defaults
	if c.Hub.SubscriberBuffer == 0 {
		c.Hub.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if c.Hub.MaxBuffer == 0 {
		c.Hub.MaxBuffer = DefaultMaxBuffer
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.ReconcileInterval == 0 {
		c.Journal.ReconcileInterval = DefaultReconcileInterval
	}
	if c.Journal.ReconcileTimeout == 0 {
		c.Journal.ReconcileTimeout = DefaultReconcileTimeout
	}

	applyDBDefaults(&c.Database.Archive)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
