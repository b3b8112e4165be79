package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState filters orders by lifecycle state.
type OrderState string

const (
	OrderStatePending   OrderState = "PENDING"
	OrderStateFilled    OrderState = "FILLED"
	OrderStateTriggered OrderState = "TRIGGERED"
	OrderStateCancelled OrderState = "CANCELLED"
	OrderStateAll       OrderState = "ALL"
)

// TradeState filters trades by lifecycle state.
type TradeState string

const (
	TradeStateOpen               TradeState = "OPEN"
	TradeStateClosed             TradeState = "CLOSED"
	TradeStateCloseWhenTradeable TradeState = "CLOSE_WHEN_TRADEABLE"
	TradeStateAll                TradeState = "ALL"
)

// Order is a pending or historical order. Only fields common to every order type
// are modelled.
type Order struct {
	ID           string              `json:"id" validate:"required,numeric"`
	CreateTime   time.Time           `json:"createTime" validate:"required"`
	State        OrderState          `json:"state" validate:"required,oneof=PENDING FILLED TRIGGERED CANCELLED"`
	Type         string              `json:"type" validate:"required"`
	Instrument   string              `json:"instrument,omitempty"`
	Units        decimal.NullDecimal `json:"units"`
	Price        decimal.NullDecimal `json:"price"`
	TradeID      string              `json:"tradeID,omitempty" validate:"omitempty,numeric"`
	TimeInForce  string              `json:"timeInForce,omitempty"`
	PositionFill string              `json:"positionFill,omitempty"`
}

// OrderRequest is the body of an order creation call.
type OrderRequest struct {
	Type         string           `json:"type" validate:"required,oneof=MARKET LIMIT STOP MARKET_IF_TOUCHED"`
	Instrument   string           `json:"instrument" validate:"required"`
	Units        decimal.Decimal  `json:"units"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	TimeInForce  string           `json:"timeInForce,omitempty" validate:"omitempty,oneof=GTC GTD GFD FOK IOC"`
	PositionFill string           `json:"positionFill,omitempty" validate:"omitempty,oneof=OPEN_ONLY REDUCE_FIRST REDUCE_ONLY DEFAULT"`
}

// Trade is an open or closed trade.
type Trade struct {
	ID           string          `json:"id" validate:"required,numeric"`
	Instrument   string          `json:"instrument" validate:"required"`
	Price        decimal.Decimal `json:"price"`
	OpenTime     time.Time       `json:"openTime" validate:"required"`
	State        TradeState      `json:"state" validate:"required,oneof=OPEN CLOSED CLOSE_WHEN_TRADEABLE"`
	InitialUnits decimal.Decimal `json:"initialUnits"`
	CurrentUnits decimal.Decimal `json:"currentUnits"`
	RealizedPL   decimal.Decimal `json:"realizedPL"`
	UnrealizedPL decimal.Decimal `json:"unrealizedPL"`
	Financing    decimal.Decimal `json:"financing"`
	CloseTime    *time.Time      `json:"closeTime,omitempty"`
}

// PositionSide is one side (long or short) of a position.
type PositionSide struct {
	Units        decimal.Decimal     `json:"units"`
	AveragePrice decimal.NullDecimal `json:"averagePrice"`
	TradeIDs     []string            `json:"tradeIDs" validate:"dive,numeric"`
	PL           decimal.Decimal     `json:"pl"`
	UnrealizedPL decimal.Decimal     `json:"unrealizedPL"`
}

// Position is the aggregate long and short exposure in one instrument.
type Position struct {
	Instrument   string          `json:"instrument" validate:"required"`
	PL           decimal.Decimal `json:"pl"`
	UnrealizedPL decimal.Decimal `json:"unrealizedPL"`
	Long         PositionSide    `json:"long"`
	Short        PositionSide    `json:"short"`
}
