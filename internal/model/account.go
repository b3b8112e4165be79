package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountProperties identifies an account the token may access.
type AccountProperties struct {
	ID           string   `json:"id" validate:"required"`
	MT4AccountID int64    `json:"mt4AccountID,omitempty"`
	Tags         []string `json:"tags"`
}

// Account is the full account summary including open trades, orders and positions.
type Account struct {
	ID                string          `json:"id" validate:"required"`
	Alias             string          `json:"alias"`
	Currency          string          `json:"currency" validate:"required,len=3"`
	Balance           decimal.Decimal `json:"balance"`
	CreatedTime       time.Time       `json:"createdTime"`
	NAV               decimal.Decimal `json:"NAV"`
	UnrealizedPL      decimal.Decimal `json:"unrealizedPL"`
	PL                decimal.Decimal `json:"pl"`
	MarginRate        decimal.Decimal `json:"marginRate"`
	MarginUsed        decimal.Decimal `json:"marginUsed"`
	MarginAvailable   decimal.Decimal `json:"marginAvailable"`
	OpenTradeCount    int             `json:"openTradeCount" validate:"gte=0"`
	OpenPositionCount int             `json:"openPositionCount" validate:"gte=0"`
	PendingOrderCount int             `json:"pendingOrderCount" validate:"gte=0"`
	LastTransactionID string          `json:"lastTransactionID" validate:"required,numeric"`
	Trades            []Trade         `json:"trades" validate:"dive"`
	Positions         []Position      `json:"positions" validate:"dive"`
	Orders            []Order         `json:"orders" validate:"dive"`
}

// AccountChanges lists what changed in an account since a given transaction.
type AccountChanges struct {
	OrdersCreated   []Order       `json:"ordersCreated" validate:"dive"`
	OrdersCancelled []Order       `json:"ordersCancelled" validate:"dive"`
	OrdersFilled    []Order       `json:"ordersFilled" validate:"dive"`
	OrdersTriggered []Order       `json:"ordersTriggered" validate:"dive"`
	TradesOpened    []Trade       `json:"tradesOpened" validate:"dive"`
	TradesReduced   []Trade       `json:"tradesReduced" validate:"dive"`
	TradesClosed    []Trade       `json:"tradesClosed" validate:"dive"`
	Positions       []Position    `json:"positions" validate:"dive"`
	Transactions    []Transaction `json:"transactions" validate:"dive"`
}
