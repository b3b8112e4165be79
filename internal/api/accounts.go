package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/oanda-data/internal/model"
)

type accountResponse struct {
	Account           model.Account `json:"account"`
	LastTransactionID string        `json:"lastTransactionID" validate:"required,numeric"`
}

func (r *accountResponse) lastTransaction() string { return r.LastTransactionID }

type accountListResponse struct {
	Accounts []model.AccountProperties `json:"accounts" validate:"dive"`
}

type accountChangesResponse struct {
	Changes           model.AccountChanges `json:"changes"`
	LastTransactionID string               `json:"lastTransactionID" validate:"required,numeric"`
}

func (r *accountChangesResponse) lastTransaction() string { return r.LastTransactionID }

// Account returns the full details of the client's account.
func (c *Client) Account(ctx context.Context) (*model.Account, error) {
	return c.AccountByID(ctx, c.accountID)
}

// AccountByID returns the full details of any account the token can access.
// Only the client's own account publishes to the hub.
func (c *Client) AccountByID(ctx context.Context, accountID string) (*model.Account, error) {
	var resp accountResponse
	path := accountPath(accountID, "")
	if err := c.get(ctx, "account", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountID, err)
	}
	if accountID == c.accountID {
		c.publish(&resp)
	}
	return &resp.Account, nil
}

// Accounts lists the accounts the token can access.
func (c *Client) Accounts(ctx context.Context) ([]model.AccountProperties, error) {
	var resp accountListResponse
	if err := c.get(ctx, "accounts", "/v3/accounts", nil, &resp); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return resp.Accounts, nil
}

// AccountChangesSince returns the changes to the account after the given
// transaction id.
func (c *Client) AccountChangesSince(ctx context.Context, transactionID string) (*model.AccountChanges, error) {
	query := url.Values{}
	query.Set("sinceTransactionID", transactionID)

	var resp accountChangesResponse
	if err := c.accountGet(ctx, "account.changes", c.accountPath("/changes"), query, &resp); err != nil {
		return nil, fmt.Errorf("get account changes since %s: %w", transactionID, err)
	}
	return &resp.Changes, nil
}
