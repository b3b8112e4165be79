package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rickgao/oanda-data/internal/model"
)

// OrderQuery filters Orders. Zero fields are not sent.
type OrderQuery struct {
	IDs        []string
	State      model.OrderState
	Instrument string
	Count      int
	BeforeID   string
}

func (q OrderQuery) values() url.Values {
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

type orderListResponse struct {
	Orders            []model.Order `json:"orders" validate:"dive"`
	LastTransactionID string        `json:"lastTransactionID" validate:"required,numeric"`
}

func (r *orderListResponse) lastTransaction() string { return r.LastTransactionID }

// OrderCreated is the server's answer to an order request. Which transactions
// are present depends on how the order was handled.
type OrderCreated struct {
	OrderCreateTransaction *model.Transaction `json:"orderCreateTransaction,omitempty"`
	OrderFillTransaction   *model.Transaction `json:"orderFillTransaction,omitempty"`
	OrderCancelTransaction *model.Transaction `json:"orderCancelTransaction,omitempty"`
	RelatedTransactionIDs  []string           `json:"relatedTransactionIDs" validate:"dive,numeric"`
	LastTransactionID      string             `json:"lastTransactionID" validate:"required,numeric"`
}

func (r *OrderCreated) lastTransaction() string { return r.LastTransactionID }

// Orders lists orders matching q.
func (c *Client) Orders(ctx context.Context, q OrderQuery) ([]model.Order, error) {
	var resp orderListResponse
	if err := c.accountGet(ctx, "orders", c.accountPath("/orders"), q.values(), &resp); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return resp.Orders, nil
}

// CreateOrder submits an order. The request is validated before it is sent.
func (c *Client) CreateOrder(ctx context.Context, order model.OrderRequest) (*OrderCreated, error) {
	if c.validator != nil {
		if err := c.validator.Validate(&order); err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
	}

	payload := struct {
		Order model.OrderRequest `json:"order"`
	}{Order: order}

	var resp OrderCreated
	if err := c.accountPost(ctx, "orders.create", c.accountPath("/orders"), payload, &resp); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &resp, nil
}
