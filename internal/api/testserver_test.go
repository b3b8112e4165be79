package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/rickgao/oanda-data/internal/model"
)

const testAccountID = "101-004-1234-001"

// fixtureTransactions are the account's history, keyed by id.
var fixtureTransactions = map[int]string{
	6409: `{"id":"6409","time":"2017-01-10T14:41:00.000000000Z","accountID":"101-004-1234-001","batchID":"6409","userID":1234,"type":"MARKET_ORDER","instrument":"EUR_USD","units":"100","timeInForce":"FOK","positionFill":"DEFAULT","reason":"CLIENT_ORDER"}`,
	6410: `{"id":"6410","time":"2017-01-10T14:41:00.000000000Z","accountID":"101-004-1234-001","batchID":"6409","userID":1234,"type":"ORDER_FILL","orderID":"6409","instrument":"EUR_USD","units":"100","price":"1.05893","pl":"0.0000","financing":"0.0000","accountBalance":"100000.0000","reason":"MARKET_ORDER","tradeOpened":{"tradeID":"6410","units":"100"}}`,
	6411: `{"id":"6411","time":"2017-01-13T16:39:00.000000000Z","accountID":"101-004-1234-001","batchID":"6411","userID":1234,"type":"MARKET_ORDER","instrument":"EUR_USD","units":"-100","timeInForce":"FOK","positionFill":"DEFAULT","reason":"TRADE_CLOSE"}`,
	6412: `{"id":"6412","time":"2017-01-13T16:39:00.000000000Z","accountID":"101-004-1234-001","batchID":"6411","userID":1234,"type":"ORDER_FILL","orderID":"6411","instrument":"EUR_USD","units":"-100","price":"1.06400","pl":"0.5070","financing":"0.0000","accountBalance":"100000.5070","reason":"MARKET_ORDER_TRADE_CLOSE","tradesClosed":[{"tradeID":"6410","units":"-100","realizedPL":"0.5070","financing":"0.0000"}]}`,
}

// transactionServer fakes the transaction endpoints of one account.
type transactionServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request

	// pagesOverride replaces the generated page list when non-nil.
	pagesOverride []string
	// summaryLastID is sent as the summary's lastTransactionID.
	summaryLastID string
}

func newTransactionServer(t *testing.T) *transactionServer {
	t.Helper()
	s := &transactionServer{summaryLastID: "6412"}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/accounts/{account}/transactions", s.handlePages)
	mux.HandleFunc("GET /v3/accounts/{account}/transactions/idrange", s.handleIDRange)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(r.Context()))
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *transactionServer) sortedIDs() []int {
	ids := make([]int, 0, len(fixtureTransactions))
	for id := range fixtureTransactions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *transactionServer) handlePages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize, err := strconv.Atoi(query.Get("pageSize"))
	if err != nil || pageSize < 1 {
		http.Error(w, `{"errorMessage":"invalid pageSize"}`, http.StatusBadRequest)
		return
	}
	types, _ := model.SplitFilters(query.Get("type"))

	ids := s.sortedIDs()
	pages := s.pagesOverride
	if pages == nil {
		for i := 0; i < len(ids); i += pageSize {
			end := min(i+pageSize, len(ids)) - 1
			page := PageDescriptor{
				From:  strconv.Itoa(ids[i]),
				To:    strconv.Itoa(ids[end]),
				Types: types,
			}
			pages = append(pages, page.EncodeURL(s.URL, r.PathValue("account")))
		}
	}

	summary := map[string]any{
		"pageSize":          pageSize,
		"type":              types,
		"count":             len(ids),
		"pages":             pages,
		"lastTransactionID": s.summaryLastID,
	}
	for _, key := range []string{"from", "to"} {
		if v := query.Get(key); v != "" {
			summary[key] = v
		}
	}
	writeJSON(w, summary)
}

func (s *transactionServer) handleIDRange(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, to := 0, int(^uint(0)>>1)
	if v := query.Get("from"); v != "" {
		from, _ = strconv.Atoi(v)
	}
	if v := query.Get("to"); v != "" {
		to, _ = strconv.Atoi(v)
	}

	// newest first, so callers have to sort
	ids := s.sortedIDs()
	slices.Reverse(ids)

	txs := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		if id >= from && id <= to {
			txs = append(txs, json.RawMessage(fixtureTransactions[id]))
		}
	}

	writeJSON(w, map[string]any{
		"transactions":      txs,
		"lastTransactionID": "6412",
	})
}

func (s *transactionServer) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.URL.Path
	}
	return out
}

func (s *transactionServer) request(i int) *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(fmt.Sprintf("encode fixture: %v", err))
	}
}
