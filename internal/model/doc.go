// Package model defines the v20 payload types shared across the client.
//
// Conventions:
//   - IDs: string-encoded integers as sent by the server ("6409")
//   - Amounts, units and prices: decimal.Decimal (the wire carries them as strings)
//   - Timestamps: time.Time in UTC, RFC3339 with nanosecond precision on the wire
//   - Union payloads (transactions, stream messages) dispatch on the "type" field
//
// Struct tags carry both the JSON mapping and the validate constraints checked by
// internal/validation before any response is handed to a caller.
package model
