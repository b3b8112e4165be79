package config

import (
	"time"

	"github.com/rickgao/oanda-data/internal/model"
)

// Stream transports.
const (
	TransportHTTP      = "http"
	TransportWebsocket = "websocket"
)

// Config is the root configuration for the journal daemon.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Hub      HubConfig      `yaml:"hub"`
	Journal  JournalConfig  `yaml:"journal"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds OANDA API settings.
type APIConfig struct {
	RestURL         string        `yaml:"rest_url"`
	StreamURL       string        `yaml:"stream_url"`
	Token           string        `yaml:"token"` // Personal access token, sent as Bearer
	AccountID       string        `yaml:"account_id"`
	Timeout         time.Duration `yaml:"timeout"`
	ValidateStreams *bool         `yaml:"validate_streams"` // nil means true
	StreamTransport string        `yaml:"stream_transport"` // "http" or "websocket"
}

// StreamValidation reports whether stream messages are validated.
func (a APIConfig) StreamValidation() bool {
	return a.ValidateStreams == nil || *a.ValidateStreams
}

// HubConfig sizes the per-subscriber transaction id queues.
type HubConfig struct {
	SubscriberBuffer int `yaml:"subscriber_buffer"`
	MaxBuffer        int `yaml:"max_buffer"`
}

// JournalConfig holds reconciler and writer settings.
type JournalConfig struct {
	BatchSize         int           `yaml:"batch_size"`
	FlushInterval     time.Duration `yaml:"flush_interval"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileTimeout  time.Duration `yaml:"reconcile_timeout"`
	StartID           string        `yaml:"start_id"` // Empty means start at the first id heard
	Types             []string      `yaml:"types"`    // Transaction filters; empty means all
}

// Filters parses Types.
func (j JournalConfig) Filters() ([]model.TransactionFilter, error) {
	filters := make([]model.TransactionFilter, 0, len(j.Types))
	for _, t := range j.Types {
		f, err := model.ParseTransactionFilter(t)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// DatabaseConfig holds the journal database.
type DatabaseConfig struct {
	Archive DBConfig `yaml:"archive"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig selects the log level and encoder.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Production bool   `yaml:"production"`
}
