package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/oanda-data/internal/model"
)

type positionResponse struct {
	Position          model.Position `json:"position"`
	LastTransactionID string         `json:"lastTransactionID" validate:"required,numeric"`
}

func (r *positionResponse) lastTransaction() string { return r.LastTransactionID }

type positionListResponse struct {
	Positions         []model.Position `json:"positions" validate:"dive"`
	LastTransactionID string           `json:"lastTransactionID" validate:"required,numeric"`
}

func (r *positionListResponse) lastTransaction() string { return r.LastTransactionID }

// Position returns the account's position in one instrument.
func (c *Client) Position(ctx context.Context, instrument string) (*model.Position, error) {
	var resp positionResponse
	path := c.accountPath("/positions/" + url.PathEscape(instrument))
	if err := c.accountGet(ctx, "position", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get position %s: %w", instrument, err)
	}
	return &resp.Position, nil
}

// Positions lists every position the account has held.
func (c *Client) Positions(ctx context.Context) ([]model.Position, error) {
	var resp positionListResponse
	if err := c.accountGet(ctx, "positions", c.accountPath("/positions"), nil, &resp); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return resp.Positions, nil
}
