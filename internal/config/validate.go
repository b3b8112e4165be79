package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.Token == "" {
		return errors.New("api.token is required")
	}
	if c.API.AccountID == "" {
		return errors.New("api.account_id is required")
	}
	switch c.API.StreamTransport {
	case TransportHTTP, TransportWebsocket:
	default:
		return fmt.Errorf("api.stream_transport must be %q or %q, got %q",
			TransportHTTP, TransportWebsocket, c.API.StreamTransport)
	}

	if c.Hub.SubscriberBuffer < 1 {
		return errors.New("hub.subscriber_buffer must be >= 1")
	}
	if c.Hub.MaxBuffer < c.Hub.SubscriberBuffer {
		return fmt.Errorf("hub.max_buffer (%d) cannot be below subscriber_buffer (%d)",
			c.Hub.MaxBuffer, c.Hub.SubscriberBuffer)
	}

	if c.Journal.BatchSize < 1 {
		return errors.New("journal.batch_size must be >= 1")
	}
	if c.Journal.ReconcileInterval <= 0 {
		return errors.New("journal.reconcile_interval must be positive")
	}
	if _, err := c.Journal.Filters(); err != nil {
		return fmt.Errorf("journal.types: %w", err)
	}

	if err := c.Database.Archive.validate("database.archive"); err != nil {
		return err
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
