package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rickgao/oanda-data/internal/model"
)

// TradeQuery filters Trades. Zero fields are not sent.
type TradeQuery struct {
	IDs        []string
	State      model.TradeState
	Instrument string
	Count      int
	BeforeID   string
}

func (q TradeQuery) values() url.Values {
	v := url.Values{}
	if len(q.IDs) > 0 {
		v.Set("ids", strings.Join(q.IDs, ","))
	}
	if q.State != "" {
		v.Set("state", string(q.State))
	}
	if q.Instrument != "" {
		v.Set("instrument", q.Instrument)
	}
	if q.Count > 0 {
		v.Set("count", strconv.Itoa(q.Count))
	}
	if q.BeforeID != "" {
		v.Set("beforeID", q.BeforeID)
	}
	return v
}

type tradeListResponse struct {
	Trades            []model.Trade `json:"trades" validate:"dive"`
	LastTransactionID string        `json:"lastTransactionID" validate:"required,numeric"`
}

func (r *tradeListResponse) lastTransaction() string { return r.LastTransactionID }

// Trades lists trades matching q.
func (c *Client) Trades(ctx context.Context, q TradeQuery) ([]model.Trade, error) {
	var resp tradeListResponse
	if err := c.accountGet(ctx, "trades", c.accountPath("/trades"), q.values(), &resp); err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return resp.Trades, nil
}
