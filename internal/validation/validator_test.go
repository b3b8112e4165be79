package validation

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/oanda-data/internal/model"
)

type sampleResponse struct {
	Transactions      []model.Transaction `json:"transactions" validate:"dive"`
	LastTransactionID string              `json:"lastTransactionID" validate:"required,numeric"`
}

func TestValidate_Passes(t *testing.T) {
	v := New()

	resp := &sampleResponse{
		Transactions: []model.Transaction{{
			ID:        "6409",
			Time:      time.Date(2017, 1, 10, 14, 41, 0, 0, time.UTC),
			AccountID: "101-004-1234-001",
			Type:      model.TransactionMarketOrder,
			MarketOrder: &model.MarketOrderTransaction{
				Instrument: "EUR_USD",
			},
		}},
		LastTransactionID: "6412",
	}

	assert.NoError(t, v.Validate(resp))
}

func TestValidate_AggregatesViolations(t *testing.T) {
	v := New()

	resp := &sampleResponse{
		Transactions: []model.Transaction{{
			ID:        "x1",
			Time:      time.Date(2017, 1, 10, 14, 41, 0, 0, time.UTC),
			AccountID: "A",
			Type:      model.TransactionOrderFill,
			OrderFill: &model.OrderFillTransaction{OrderID: "6409"},
		}},
	}

	err := v.Validate(resp)
	require.Error(t, err)

	var ve *Error
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Violations, 3)

	fields := make([]string, 0, len(ve.Violations))
	for _, violation := range ve.Violations {
		fields = append(fields, violation.Field)
	}
	assert.ElementsMatch(t, []string{
		"transactions[0].id",
		"transactions[0].OrderFill.instrument",
		"lastTransactionID",
	}, fields)

	assert.Contains(t, err.Error(), "At transactions[0].id must be numeric but got x1")
	assert.Contains(t, err.Error(), "At lastTransactionID must not be empty but got ")
	assert.Equal(t, 2, countCommas(ve), "violations are comma-joined")
	assert.True(t, IsValidationError(fmt.Errorf("wrapped: %w", err)))
}

func TestValidate_DecodedTransaction(t *testing.T) {
	v := New()

	var tx model.Transaction
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "6411", "time": "2017-01-10T14:41:00Z", "accountID": "A",
		"type": "MARKET_ORDER", "units": "10", "timeInForce": "GTC"
	}`), &tx))

	err := v.Validate(&tx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "At MarketOrder.instrument must not be empty")
	assert.Contains(t, err.Error(), "At MarketOrder.timeInForce must be one of [FOK IOC] but got GTC")
}

func TestValidate_NonStruct(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(nil))
	assert.NoError(t, v.Validate((*sampleResponse)(nil)))
	assert.NoError(t, v.Validate("6409"))
}

// countCommas counts separators between violations; messages themselves contain none.
func countCommas(e *Error) int {
	n := 0
	for _, c := range e.Error() {
		if c == ',' {
			n++
		}
	}
	return n
}
