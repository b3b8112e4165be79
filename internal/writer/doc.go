// Package writer journals account transactions into PostgreSQL.
//
// Transactions arrive in ascending id order from the reconciler and are
// buffered into batches. Each batch is sent with pgx.Batch and
// ON CONFLICT DO NOTHING, so replaying a range that was already journaled is
// harmless. Rows are append-only; the raw server body is kept as JSONB next to
// the few columns used for lookups.
package writer
