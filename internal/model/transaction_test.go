package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketOrderJSON = `{
	"id": "6409",
	"time": "2017-01-10T14:41:00.000000000Z",
	"userID": 1234,
	"accountID": "101-004-1234-001",
	"batchID": "6409",
	"requestID": "42",
	"type": "MARKET_ORDER",
	"instrument": "EUR_USD",
	"units": "100",
	"timeInForce": "FOK",
	"positionFill": "DEFAULT",
	"reason": "CLIENT_ORDER"
}`

const orderFillJSON = `{
	"id": "6410",
	"time": "2017-01-10T14:41:00.000000001Z",
	"accountID": "101-004-1234-001",
	"batchID": "6409",
	"type": "ORDER_FILL",
	"orderID": "6409",
	"instrument": "EUR_USD",
	"units": "100",
	"price": "1.05893",
	"pl": "0.0000",
	"financing": "0.0000",
	"accountBalance": "100000.0000",
	"reason": "MARKET_ORDER",
	"tradeOpened": {"tradeID": "6410", "units": "100"}
}`

func TestTransaction_UnmarshalMarketOrder(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(marketOrderJSON), &tx))

	assert.Equal(t, "6409", tx.ID)
	assert.Equal(t, TransactionMarketOrder, tx.Type)
	assert.Equal(t, time.Date(2017, 1, 10, 14, 41, 0, 0, time.UTC), tx.Time.UTC())
	assert.Equal(t, int64(1234), tx.UserID)
	require.NotNil(t, tx.MarketOrder)
	assert.Nil(t, tx.OrderFill)
	assert.Equal(t, "EUR_USD", tx.MarketOrder.Instrument)
	assert.True(t, tx.MarketOrder.Units.Equal(decimal.NewFromInt(100)))
	assert.Same(t, tx.MarketOrder, tx.Details())
	assert.JSONEq(t, marketOrderJSON, string(tx.Body))
}

func TestTransaction_UnmarshalOrderFill(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(orderFillJSON), &tx))

	require.NotNil(t, tx.OrderFill)
	assert.Equal(t, "6409", tx.OrderFill.OrderID)
	assert.Equal(t, "1.05893", tx.OrderFill.Price.String())
	require.NotNil(t, tx.OrderFill.TradeOpened)
	assert.Equal(t, "6410", tx.OrderFill.TradeOpened.TradeID)
}

func TestTransaction_UnmarshalUnmodelledType(t *testing.T) {
	data := `{"id":"7","time":"2017-01-10T14:41:00Z","accountID":"A","type":"MARGIN_CALL_ENTER"}`

	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(data), &tx))

	assert.Equal(t, TransactionMarginCallEnter, tx.Type)
	assert.Nil(t, tx.Details())
	assert.JSONEq(t, data, string(tx.Body))
}

func TestTransaction_UnmarshalUnknownType(t *testing.T) {
	data := `{"id":"7","time":"2017-01-10T14:41:00Z","accountID":"A","type":"TELEPORT"}`

	var tx Transaction
	err := json.Unmarshal([]byte(data), &tx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEPORT")
}

func TestTransaction_MarshalReturnsBody(t *testing.T) {
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(orderFillJSON), &tx))

	out, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.JSONEq(t, orderFillJSON, string(out))
}

func TestFilters_RoundTrip(t *testing.T) {
	filters := []TransactionFilter{FilterMarketOrder, FilterLimitOrder, FilterFunding}

	joined := JoinFilters(filters)
	assert.Equal(t, "MARKET_ORDER,LIMIT_ORDER,FUNDING", joined)

	split, err := SplitFilters(joined)
	require.NoError(t, err)
	assert.Equal(t, filters, split)
}

func TestSplitFilters(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		filters, err := SplitFilters("")
		require.NoError(t, err)
		assert.Nil(t, filters)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := SplitFilters("MARKET_ORDER,BOGUS")
		require.Error(t, err)
	})
}

func TestCompareTransactionIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"9", "10", -1},
		{"6412", "6409", 1},
		{"6409", "6409", 0},
		{"12", "abc", -1},
		{"abc", "12", 1},
		{"abc", "abd", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareTransactionIDs(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}
