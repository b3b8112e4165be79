package api

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rickgao/oanda-data/internal/model"
)

// DefaultPageSize is the page size requested when TimeWindow.PageSize is not positive.
const DefaultPageSize = 1000

// IDRange selects transactions by id. A None bound is left unbounded.
type IDRange struct {
	From  optional.Option[string]
	To    optional.Option[string]
	Types []model.TransactionFilter
}

// TimeWindow selects one page of transactions created in [Start, End].
type TimeWindow struct {
	Start     optional.Option[time.Time]
	End       optional.Option[time.Time]
	Types     []model.TransactionFilter
	PageIndex int
	PageSize  int // <= 0 means DefaultPageSize
}

// TransactionPages is the validated summary of a time-window query.
type TransactionPages struct {
	From              time.Time
	To                time.Time
	PageSize          int
	Types             []model.TransactionFilter
	Count             int
	Pages             []PageDescriptor
	LastTransactionID string
}

type transactionPagesResponse struct {
	From              time.Time                 `json:"from"`
	To                time.Time                 `json:"to"`
	PageSize          int                       `json:"pageSize" validate:"gte=0"`
	Type              []model.TransactionFilter `json:"type"`
	Count             int                       `json:"count" validate:"gte=0"`
	Pages             []string                  `json:"pages"`
	LastTransactionID string                    `json:"lastTransactionID" validate:"required,numeric"`
}

func (r *transactionPagesResponse) lastTransaction() string { return r.LastTransactionID }

type transactionListResponse struct {
	Transactions      []model.Transaction `json:"transactions" validate:"dive"`
	LastTransactionID string              `json:"lastTransactionID" validate:"required,numeric"`
}

func (r *transactionListResponse) lastTransaction() string { return r.LastTransactionID }

type transactionResponse struct {
	Transaction       model.Transaction `json:"transaction"`
	LastTransactionID string            `json:"lastTransactionID" validate:"required,numeric"`
}

func (r *transactionResponse) lastTransaction() string { return r.LastTransactionID }

// FetchByIDRange returns the transactions with ids in the range, in
// ascending id order.
func (c *Client) FetchByIDRange(ctx context.Context, r IDRange) ([]model.Transaction, error) {
	query := url.Values{}
	if r.From.IsSome() {
		query.Set("from", r.From.Unwrap())
	}
	if r.To.IsSome() {
		query.Set("to", r.To.Unwrap())
	}
	if len(r.Types) > 0 {
		query.Set("type", model.JoinFilters(r.Types))
	}

	var resp transactionListResponse
	if err := c.accountGet(ctx, "transactions.idrange", c.accountPath("/transactions/idrange"), query, &resp); err != nil {
		return nil, fmt.Errorf("fetch transactions by id range: %w", err)
	}

	txs := resp.Transactions
	slices.SortStableFunc(txs, func(a, b model.Transaction) int {
		return model.CompareTransactionIDs(a.ID, b.ID)
	})

	c.logger.Debug("fetched transactions by id range",
		"from", r.From.TakeOr(""),
		"to", r.To.TakeOr(""),
		"count", len(txs),
	)
	return txs, nil
}

// TransactionPages fetches the page summary of a time-window query.
// PageIndex is ignored.
func (c *Client) TransactionPages(ctx context.Context, w TimeWindow) (*TransactionPages, error) {
	resp, err := c.transactionPages(ctx, w)
	if err != nil {
		return nil, err
	}

	pages := make([]PageDescriptor, 0, len(resp.Pages))
	for _, raw := range resp.Pages {
		p, err := ParsePageDescriptor(raw)
		if err != nil {
			return nil, fmt.Errorf("transaction pages: %w", err)
		}
		pages = append(pages, p)
	}

	return &TransactionPages{
		From:              resp.From,
		To:                resp.To,
		PageSize:          resp.PageSize,
		Types:             resp.Type,
		Count:             resp.Count,
		Pages:             pages,
		LastTransactionID: resp.LastTransactionID,
	}, nil
}

// FetchByTimeWindow returns the transactions on page w.PageIndex of the
// window. An index outside the available pages, negative included, yields an
// empty result rather than an error.
func (c *Client) FetchByTimeWindow(ctx context.Context, w TimeWindow) ([]model.Transaction, error) {
	resp, err := c.transactionPages(ctx, w)
	if err != nil {
		return nil, err
	}

	if w.PageIndex < 0 || w.PageIndex >= len(resp.Pages) {
		c.logger.Debug("page index out of range",
			"page", w.PageIndex,
			"pages", len(resp.Pages),
		)
		return []model.Transaction{}, nil
	}

	page, err := ParsePageDescriptor(resp.Pages[w.PageIndex])
	if err != nil {
		return nil, fmt.Errorf("fetch transactions by time window: %w", err)
	}

	return c.FetchByIDRange(ctx, page.IDRange())
}

// FetchAllByTimeWindow walks every page of the window in order and returns
// the concatenation.
func (c *Client) FetchAllByTimeWindow(ctx context.Context, w TimeWindow) ([]model.Transaction, error) {
	summary, err := c.TransactionPages(ctx, w)
	if err != nil {
		return nil, err
	}

	all := make([]model.Transaction, 0, summary.Count)
	for i, page := range summary.Pages {
		txs, err := c.FetchByIDRange(ctx, page.IDRange())
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		all = append(all, txs...)
	}
	return all, nil
}

func (c *Client) transactionPages(ctx context.Context, w TimeWindow) (*transactionPagesResponse, error) {
	pageSize := w.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	query := url.Values{}
	if w.Start.IsSome() {
		query.Set("from", formatNano(w.Start.Unwrap()))
	}
	if w.End.IsSome() {
		query.Set("to", formatNano(w.End.Unwrap()))
	}
	if len(w.Types) > 0 {
		query.Set("type", model.JoinFilters(w.Types))
	}
	query.Set("pageSize", strconv.Itoa(pageSize))

	var resp transactionPagesResponse
	if err := c.accountGet(ctx, "transactions", c.accountPath("/transactions"), query, &resp); err != nil {
		return nil, fmt.Errorf("fetch transaction pages: %w", err)
	}
	return &resp, nil
}

// TransactionByID returns a single transaction.
func (c *Client) TransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	var resp transactionResponse
	path := c.accountPath("/transactions/" + url.PathEscape(id))
	if err := c.accountGet(ctx, "transactions.id", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return &resp.Transaction, nil
}

// TransactionsSinceID returns every transaction after id, in ascending order.
func (c *Client) TransactionsSinceID(ctx context.Context, id string) ([]model.Transaction, error) {
	query := url.Values{}
	query.Set("id", id)

	var resp transactionListResponse
	if err := c.accountGet(ctx, "transactions.sinceid", c.accountPath("/transactions/sinceid"), query, &resp); err != nil {
		return nil, fmt.Errorf("get transactions since %s: %w", id, err)
	}

	txs := resp.Transactions
	slices.SortStableFunc(txs, func(a, b model.Transaction) int {
		return model.CompareTransactionIDs(a.ID, b.ID)
	})
	return txs, nil
}
