package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rickgao/oanda-data/internal/model"
)

type candlesResponse struct {
	Instrument  string                       `json:"instrument" validate:"required"`
	Granularity model.CandlestickGranularity `json:"granularity" validate:"required"`
	Candles     []model.Candlestick          `json:"candles" validate:"dive"`
}

type orderBookResponse struct {
	OrderBook model.OrderBook `json:"orderBook"`
}

// Candles returns the candles of instrument between from and to. An empty
// granularity means M1.
func (c *Client) Candles(ctx context.Context, instrument string, from, to time.Time, granularity model.CandlestickGranularity) ([]model.Candlestick, error) {
	if granularity == "" {
		granularity = model.GranularityM1
	}

	query := url.Values{}
	query.Set("from", formatNano(from))
	query.Set("to", formatNano(to))
	query.Set("granularity", string(granularity))

	var resp candlesResponse
	path := "/v3/instruments/" + url.PathEscape(instrument) + "/candles"
	if err := c.get(ctx, "candles", path, query, &resp); err != nil {
		return nil, fmt.Errorf("get candles %s: %w", instrument, err)
	}
	return resp.Candles, nil
}

// OrderBook returns the order book snapshot of instrument at or before the
// given time, or the latest snapshot if before is zero. Snapshots are taken
// every 20 minutes, so before is rounded down to that boundary.
func (c *Client) OrderBook(ctx context.Context, instrument string, before time.Time) (*model.OrderBook, error) {
	query := url.Values{}
	if !before.IsZero() {
		query.Set("time", formatSeconds(alignOrderBookTime(before)))
	}

	var resp orderBookResponse
	path := "/v3/instruments/" + url.PathEscape(instrument) + "/orderBook"
	if err := c.get(ctx, "orderbook", path, query, &resp); err != nil {
		return nil, fmt.Errorf("get order book %s: %w", instrument, err)
	}
	return &resp.OrderBook, nil
}
