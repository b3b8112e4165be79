// Package database opens the PostgreSQL pool that backs the transaction journal.
package database
