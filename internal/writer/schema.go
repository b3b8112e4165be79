package writer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/moznion/go-optional"
)

const createTransactionsTable = `
CREATE TABLE IF NOT EXISTS transactions (
	account_id  TEXT        NOT NULL,
	id          BIGINT      NOT NULL,
	time        TIMESTAMPTZ NOT NULL,
	type        TEXT        NOT NULL,
	batch_id    BIGINT,
	body        JSONB       NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (account_id, id)
)`

const createTransactionsTimeIndex = `
CREATE INDEX IF NOT EXISTS transactions_account_time_idx
	ON transactions (account_id, time)`

// EnsureSchema creates the journal table and its indexes if they are missing.
func EnsureSchema(ctx context.Context, db DB) error {
	for _, stmt := range []string{createTransactionsTable, createTransactionsTimeIndex} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// LastJournaledID returns the highest transaction id journaled for accountID,
// or None when the account has no rows yet.
func LastJournaledID(ctx context.Context, db DB, accountID string) (optional.Option[string], error) {
	var id *int64
	err := db.QueryRow(ctx,
		`SELECT max(id) FROM transactions WHERE account_id = $1`, accountID,
	).Scan(&id)
	if err != nil {
		return optional.None[string](), fmt.Errorf("last journaled id: %w", err)
	}
	if id == nil {
		return optional.None[string](), nil
	}
	return optional.Some(strconv.FormatInt(*id, 10)), nil
}
