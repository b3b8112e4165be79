package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the discriminator carried in every transaction's "type" field.
type TransactionType string

const (
	TransactionCreate                            TransactionType = "CREATE"
	TransactionClose                             TransactionType = "CLOSE"
	TransactionReopen                            TransactionType = "REOPEN"
	TransactionClientConfigure                   TransactionType = "CLIENT_CONFIGURE"
	TransactionClientConfigureReject             TransactionType = "CLIENT_CONFIGURE_REJECT"
	TransactionTransferFunds                     TransactionType = "TRANSFER_FUNDS"
	TransactionTransferFundsReject               TransactionType = "TRANSFER_FUNDS_REJECT"
	TransactionMarketOrder                       TransactionType = "MARKET_ORDER"
	TransactionMarketOrderReject                 TransactionType = "MARKET_ORDER_REJECT"
	TransactionFixedPriceOrder                   TransactionType = "FIXED_PRICE_ORDER"
	TransactionLimitOrder                        TransactionType = "LIMIT_ORDER"
	TransactionLimitOrderReject                  TransactionType = "LIMIT_ORDER_REJECT"
	TransactionStopOrder                         TransactionType = "STOP_ORDER"
	TransactionStopOrderReject                   TransactionType = "STOP_ORDER_REJECT"
	TransactionMarketIfTouchedOrder              TransactionType = "MARKET_IF_TOUCHED_ORDER"
	TransactionMarketIfTouchedOrderReject        TransactionType = "MARKET_IF_TOUCHED_ORDER_REJECT"
	TransactionTakeProfitOrder                   TransactionType = "TAKE_PROFIT_ORDER"
	TransactionTakeProfitOrderReject             TransactionType = "TAKE_PROFIT_ORDER_REJECT"
	TransactionStopLossOrder                     TransactionType = "STOP_LOSS_ORDER"
	TransactionStopLossOrderReject               TransactionType = "STOP_LOSS_ORDER_REJECT"
	TransactionGuaranteedStopLossOrder           TransactionType = "GUARANTEED_STOP_LOSS_ORDER"
	TransactionGuaranteedStopLossOrderReject     TransactionType = "GUARANTEED_STOP_LOSS_ORDER_REJECT"
	TransactionTrailingStopLossOrder             TransactionType = "TRAILING_STOP_LOSS_ORDER"
	TransactionTrailingStopLossOrderReject       TransactionType = "TRAILING_STOP_LOSS_ORDER_REJECT"
	TransactionOrderFill                         TransactionType = "ORDER_FILL"
	TransactionOrderCancel                       TransactionType = "ORDER_CANCEL"
	TransactionOrderCancelReject                 TransactionType = "ORDER_CANCEL_REJECT"
	TransactionOrderClientExtensionsModify       TransactionType = "ORDER_CLIENT_EXTENSIONS_MODIFY"
	TransactionOrderClientExtensionsModifyReject TransactionType = "ORDER_CLIENT_EXTENSIONS_MODIFY_REJECT"
	TransactionTradeClientExtensionsModify       TransactionType = "TRADE_CLIENT_EXTENSIONS_MODIFY"
	TransactionTradeClientExtensionsModifyReject TransactionType = "TRADE_CLIENT_EXTENSIONS_MODIFY_REJECT"
	TransactionMarginCallEnter                   TransactionType = "MARGIN_CALL_ENTER"
	TransactionMarginCallExtend                  TransactionType = "MARGIN_CALL_EXTEND"
	TransactionMarginCallExit                    TransactionType = "MARGIN_CALL_EXIT"
	TransactionDelayedTradeClosure               TransactionType = "DELAYED_TRADE_CLOSURE"
	TransactionDailyFinancing                    TransactionType = "DAILY_FINANCING"
	TransactionDividendAdjustment                TransactionType = "DIVIDEND_ADJUSTMENT"
	TransactionResetResettablePL                 TransactionType = "RESET_RESETTABLE_PL"
)

var knownTransactionTypes = map[TransactionType]struct{}{
	TransactionCreate: {}, TransactionClose: {}, TransactionReopen: {},
	TransactionClientConfigure: {}, TransactionClientConfigureReject: {},
	TransactionTransferFunds: {}, TransactionTransferFundsReject: {},
	TransactionMarketOrder: {}, TransactionMarketOrderReject: {},
	TransactionFixedPriceOrder: {},
	TransactionLimitOrder: {}, TransactionLimitOrderReject: {},
	TransactionStopOrder: {}, TransactionStopOrderReject: {},
	TransactionMarketIfTouchedOrder: {}, TransactionMarketIfTouchedOrderReject: {},
	TransactionTakeProfitOrder: {}, TransactionTakeProfitOrderReject: {},
	TransactionStopLossOrder: {}, TransactionStopLossOrderReject: {},
	TransactionGuaranteedStopLossOrder: {}, TransactionGuaranteedStopLossOrderReject: {},
	TransactionTrailingStopLossOrder: {}, TransactionTrailingStopLossOrderReject: {},
	TransactionOrderFill: {}, TransactionOrderCancel: {}, TransactionOrderCancelReject: {},
	TransactionOrderClientExtensionsModify: {}, TransactionOrderClientExtensionsModifyReject: {},
	TransactionTradeClientExtensionsModify: {}, TransactionTradeClientExtensionsModifyReject: {},
	TransactionMarginCallEnter: {}, TransactionMarginCallExtend: {}, TransactionMarginCallExit: {},
	TransactionDelayedTradeClosure: {}, TransactionDailyFinancing: {},
	TransactionDividendAdjustment: {}, TransactionResetResettablePL: {},
}

// Known reports whether t is a transaction type the server is documented to send.
func (t TransactionType) Known() bool {
	_, ok := knownTransactionTypes[t]
	return ok
}

// TransactionFilter restricts the types of transactions returned by a query.
// Every TransactionType is a valid filter; ORDER, FUNDING and ADMIN are aggregates.
type TransactionFilter string

const (
	FilterOrder   TransactionFilter = "ORDER"
	FilterFunding TransactionFilter = "FUNDING"
	FilterAdmin   TransactionFilter = "ADMIN"

	FilterCreate         TransactionFilter = TransactionFilter(TransactionCreate)
	FilterMarketOrder    TransactionFilter = TransactionFilter(TransactionMarketOrder)
	FilterLimitOrder     TransactionFilter = TransactionFilter(TransactionLimitOrder)
	FilterStopOrder      TransactionFilter = TransactionFilter(TransactionStopOrder)
	FilterOrderFill      TransactionFilter = TransactionFilter(TransactionOrderFill)
	FilterOrderCancel    TransactionFilter = TransactionFilter(TransactionOrderCancel)
	FilterTransferFunds  TransactionFilter = TransactionFilter(TransactionTransferFunds)
	FilterDailyFinancing TransactionFilter = TransactionFilter(TransactionDailyFinancing)
)

// ParseTransactionFilter parses a single filter tag.
func ParseTransactionFilter(s string) (TransactionFilter, error) {
	f := TransactionFilter(strings.TrimSpace(s))
	switch f {
	case FilterOrder, FilterFunding, FilterAdmin:
		return f, nil
	}
	if TransactionType(f).Known() {
		return f, nil
	}
	return "", fmt.Errorf("unknown transaction filter %q", s)
}

// JoinFilters renders filters as the comma-joined list used in the "type" query parameter.
func JoinFilters(filters []TransactionFilter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

// SplitFilters is the inverse of JoinFilters. An empty string yields no filters.
func SplitFilters(list string) ([]TransactionFilter, error) {
	if list == "" {
		return nil, nil
	}
	tokens := strings.Split(list, ",")
	filters := make([]TransactionFilter, 0, len(tokens))
	for _, token := range tokens {
		f, err := ParseTransactionFilter(token)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// CompareTransactionIDs orders two string-encoded transaction IDs numerically.
// Non-numeric IDs sort after numeric ones and lexically among themselves.
func CompareTransactionIDs(a, b string) int {
	ai, aerr := strconv.ParseUint(a, 10, 64)
	bi, berr := strconv.ParseUint(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// -----------------------------------------------------------------------------
// Transaction
// -----------------------------------------------------------------------------

// Transaction is a server-assigned, immutable account event.
//
// Exactly one of the variant pointers is set for modelled types; other documented
// types carry only the common header and Body. Body always holds the original JSON.
type Transaction struct {
	ID        string          `json:"id" validate:"required,numeric"`
	Time      time.Time       `json:"time" validate:"required"`
	UserID    int64           `json:"userID"`
	AccountID string          `json:"accountID" validate:"required"`
	BatchID   string          `json:"batchID" validate:"omitempty,numeric"`
	RequestID string          `json:"requestID,omitempty"`
	Type      TransactionType `json:"type" validate:"required"`

	Create          *CreateTransaction          `json:"-"`
	ClientConfigure *ClientConfigureTransaction `json:"-"`
	TransferFunds   *TransferFundsTransaction   `json:"-"`
	MarketOrder     *MarketOrderTransaction     `json:"-"`
	LimitOrder      *LimitOrderTransaction      `json:"-"`
	StopOrder       *StopOrderTransaction       `json:"-"`
	OrderFill       *OrderFillTransaction       `json:"-"`
	OrderCancel     *OrderCancelTransaction     `json:"-"`
	DailyFinancing  *DailyFinancingTransaction  `json:"-"`

	Body json.RawMessage `json:"-" validate:"-"`
}

// transactionHeader mirrors the common fields for decoding.
type transactionHeader struct {
	ID        string          `json:"id"`
	Time      time.Time       `json:"time"`
	UserID    int64           `json:"userID"`
	AccountID string          `json:"accountID"`
	BatchID   string          `json:"batchID"`
	RequestID string          `json:"requestID"`
	Type      TransactionType `json:"type"`
}

// UnmarshalJSON decodes the header, then the variant selected by "type".
// A type the server is not documented to send is a decode error.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var h transactionHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("decode transaction header: %w", err)
	}
	if !h.Type.Known() {
		return fmt.Errorf("decode transaction %s: unknown type %q", h.ID, h.Type)
	}

	*t = Transaction{
		ID:        h.ID,
		Time:      h.Time,
		UserID:    h.UserID,
		AccountID: h.AccountID,
		BatchID:   h.BatchID,
		RequestID: h.RequestID,
		Type:      h.Type,
		Body:      append(json.RawMessage(nil), data...),
	}

	var err error
	switch h.Type {
	case TransactionCreate:
		t.Create, err = decodeVariant[CreateTransaction](data)
	case TransactionClientConfigure:
		t.ClientConfigure, err = decodeVariant[ClientConfigureTransaction](data)
	case TransactionTransferFunds:
		t.TransferFunds, err = decodeVariant[TransferFundsTransaction](data)
	case TransactionMarketOrder:
		t.MarketOrder, err = decodeVariant[MarketOrderTransaction](data)
	case TransactionLimitOrder:
		t.LimitOrder, err = decodeVariant[LimitOrderTransaction](data)
	case TransactionStopOrder:
		t.StopOrder, err = decodeVariant[StopOrderTransaction](data)
	case TransactionOrderFill:
		t.OrderFill, err = decodeVariant[OrderFillTransaction](data)
	case TransactionOrderCancel:
		t.OrderCancel, err = decodeVariant[OrderCancelTransaction](data)
	case TransactionDailyFinancing:
		t.DailyFinancing, err = decodeVariant[DailyFinancingTransaction](data)
	}
	if err != nil {
		return fmt.Errorf("decode %s transaction %s: %w", h.Type, h.ID, err)
	}
	return nil
}

// MarshalJSON returns the original wire body when the transaction was decoded.
func (t Transaction) MarshalJSON() ([]byte, error) {
	if len(t.Body) > 0 {
		return t.Body, nil
	}
	return json.Marshal(transactionHeader{
		ID:        t.ID,
		Time:      t.Time,
		UserID:    t.UserID,
		AccountID: t.AccountID,
		BatchID:   t.BatchID,
		RequestID: t.RequestID,
		Type:      t.Type,
	})
}

func decodeVariant[V any](data []byte) (*V, error) {
	v := new(V)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Details returns the type-specific payload, or nil for unmodelled types.
func (t *Transaction) Details() any {
	switch {
	case t.Create != nil:
		return t.Create
	case t.ClientConfigure != nil:
		return t.ClientConfigure
	case t.TransferFunds != nil:
		return t.TransferFunds
	case t.MarketOrder != nil:
		return t.MarketOrder
	case t.LimitOrder != nil:
		return t.LimitOrder
	case t.StopOrder != nil:
		return t.StopOrder
	case t.OrderFill != nil:
		return t.OrderFill
	case t.OrderCancel != nil:
		return t.OrderCancel
	case t.DailyFinancing != nil:
		return t.DailyFinancing
	}
	return nil
}

// -----------------------------------------------------------------------------
// Variants
// -----------------------------------------------------------------------------

// CreateTransaction records the creation of an account.
type CreateTransaction struct {
	DivisionID    int64  `json:"divisionID"`
	SiteID        int64  `json:"siteID"`
	AccountUserID int64  `json:"accountUserID"`
	AccountNumber int64  `json:"accountNumber"`
	HomeCurrency  string `json:"homeCurrency" validate:"required,len=3"`
}

// ClientConfigureTransaction records a change to the account's client configuration.
type ClientConfigureTransaction struct {
	Alias      string          `json:"alias"`
	MarginRate decimal.Decimal `json:"marginRate"`
}

// TransferFundsTransaction records a deposit or withdrawal.
type TransferFundsTransaction struct {
	Amount         decimal.Decimal `json:"amount"`
	FundingReason  string          `json:"fundingReason" validate:"omitempty,oneof=CLIENT_FUNDING ACCOUNT_TRANSFER DIVISION_MIGRATION SITE_MIGRATION ADJUSTMENT"`
	Comment        string          `json:"comment,omitempty"`
	AccountBalance decimal.Decimal `json:"accountBalance"`
}

// MarketOrderTransaction records the creation of a market order.
type MarketOrderTransaction struct {
	Instrument   string          `json:"instrument" validate:"required"`
	Units        decimal.Decimal `json:"units"`
	TimeInForce  string          `json:"timeInForce" validate:"omitempty,oneof=FOK IOC"`
	PriceBound   decimal.Decimal `json:"priceBound"`
	PositionFill string          `json:"positionFill" validate:"omitempty,oneof=OPEN_ONLY REDUCE_FIRST REDUCE_ONLY DEFAULT"`
	Reason       string          `json:"reason"`
}

// LimitOrderTransaction records the creation of a limit order.
type LimitOrderTransaction struct {
	Instrument        string          `json:"instrument" validate:"required"`
	Units             decimal.Decimal `json:"units"`
	Price             decimal.Decimal `json:"price"`
	TimeInForce       string          `json:"timeInForce" validate:"omitempty,oneof=GTC GTD GFD FOK IOC"`
	GtdTime           *time.Time      `json:"gtdTime,omitempty"`
	PositionFill      string          `json:"positionFill"`
	Reason            string          `json:"reason"`
	ReplacesOrderID   string          `json:"replacesOrderID,omitempty" validate:"omitempty,numeric"`
	CancellingTransID string          `json:"cancellingTransactionID,omitempty" validate:"omitempty,numeric"`
}

// StopOrderTransaction records the creation of a stop order.
type StopOrderTransaction struct {
	Instrument   string          `json:"instrument" validate:"required"`
	Units        decimal.Decimal `json:"units"`
	Price        decimal.Decimal `json:"price"`
	PriceBound   decimal.Decimal `json:"priceBound"`
	TimeInForce  string          `json:"timeInForce" validate:"omitempty,oneof=GTC GTD GFD FOK IOC"`
	PositionFill string          `json:"positionFill"`
	Reason       string          `json:"reason"`
}

// TradeOpen describes a trade opened by a fill.
type TradeOpen struct {
	TradeID string          `json:"tradeID" validate:"required,numeric"`
	Units   decimal.Decimal `json:"units"`
}

// TradeReduce describes a trade closed or reduced by a fill.
type TradeReduce struct {
	TradeID    string          `json:"tradeID" validate:"required,numeric"`
	Units      decimal.Decimal `json:"units"`
	RealizedPL decimal.Decimal `json:"realizedPL"`
	Financing  decimal.Decimal `json:"financing"`
}

// OrderFillTransaction records an order being filled.
type OrderFillTransaction struct {
	OrderID        string          `json:"orderID" validate:"required,numeric"`
	Instrument     string          `json:"instrument" validate:"required"`
	Units          decimal.Decimal `json:"units"`
	Price          decimal.Decimal `json:"price"`
	Reason         string          `json:"reason"`
	PL             decimal.Decimal `json:"pl"`
	Financing      decimal.Decimal `json:"financing"`
	Commission     decimal.Decimal `json:"commission"`
	AccountBalance decimal.Decimal `json:"accountBalance"`
	TradeOpened    *TradeOpen      `json:"tradeOpened,omitempty"`
	TradesClosed   []TradeReduce   `json:"tradesClosed,omitempty" validate:"dive"`
	TradeReduced   *TradeReduce    `json:"tradeReduced,omitempty"`
}

// OrderCancelTransaction records an order being cancelled.
type OrderCancelTransaction struct {
	OrderID           string `json:"orderID" validate:"required,numeric"`
	ReplacedByOrderID string `json:"replacedByOrderID,omitempty" validate:"omitempty,numeric"`
	Reason            string `json:"reason"`
}

// DailyFinancingTransaction records the daily financing charge or credit.
type DailyFinancingTransaction struct {
	Financing            decimal.Decimal `json:"financing"`
	AccountBalance       decimal.Decimal `json:"accountBalance"`
	AccountFinancingMode string          `json:"accountFinancingMode"`
}
