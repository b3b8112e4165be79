package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stream message discriminators.
const (
	MessageTypeHeartbeat = "HEARTBEAT"
	MessageTypePrice     = "PRICE"
)

// Heartbeat is a liveness-only stream message. LastTransactionID is only sent on
// the transaction stream.
type Heartbeat struct {
	Type              string    `json:"type" validate:"required,eq=HEARTBEAT"`
	Time              time.Time `json:"time" validate:"required"`
	LastTransactionID string    `json:"lastTransactionID,omitempty" validate:"omitempty,numeric"`
}

// PriceBucket is one level of a price ladder.
type PriceBucket struct {
	Price     decimal.Decimal `json:"price"`
	Liquidity int64           `json:"liquidity" validate:"gte=0"`
}

// ClientPrice is a price quote on the pricing stream.
type ClientPrice struct {
	Type        string          `json:"type" validate:"required,eq=PRICE"`
	Instrument  string          `json:"instrument" validate:"required"`
	Time        time.Time       `json:"time" validate:"required"`
	Tradeable   bool            `json:"tradeable"`
	Bids        []PriceBucket   `json:"bids" validate:"required,min=1,dive"`
	Asks        []PriceBucket   `json:"asks" validate:"required,min=1,dive"`
	CloseoutBid decimal.Decimal `json:"closeoutBid"`
	CloseoutAsk decimal.Decimal `json:"closeoutAsk"`
}

// CandlestickGranularity is the width of a candle.
type CandlestickGranularity string

const (
	GranularityS5  CandlestickGranularity = "S5"
	GranularityM1  CandlestickGranularity = "M1"
	GranularityM5  CandlestickGranularity = "M5"
	GranularityM15 CandlestickGranularity = "M15"
	GranularityH1  CandlestickGranularity = "H1"
	GranularityH4  CandlestickGranularity = "H4"
	GranularityD   CandlestickGranularity = "D"
)

// CandlestickData holds the OHLC prices of a candle.
type CandlestickData struct {
	O decimal.Decimal `json:"o"`
	H decimal.Decimal `json:"h"`
	L decimal.Decimal `json:"l"`
	C decimal.Decimal `json:"c"`
}

// Candlestick is one candle of an instrument.
type Candlestick struct {
	Time     time.Time        `json:"time" validate:"required"`
	Volume   int64            `json:"volume" validate:"gte=0"`
	Complete bool             `json:"complete"`
	Mid      *CandlestickData `json:"mid,omitempty"`
	Bid      *CandlestickData `json:"bid,omitempty"`
	Ask      *CandlestickData `json:"ask,omitempty"`
}

// OrderBookBucket is the percentage of open orders at one price.
type OrderBookBucket struct {
	Price             decimal.Decimal `json:"price"`
	LongCountPercent  decimal.Decimal `json:"longCountPercent"`
	ShortCountPercent decimal.Decimal `json:"shortCountPercent"`
}

// OrderBook is a snapshot of an instrument's aggregated order book.
type OrderBook struct {
	Instrument  string            `json:"instrument" validate:"required"`
	Time        time.Time         `json:"time" validate:"required"`
	Price       decimal.Decimal   `json:"price"`
	BucketWidth decimal.Decimal   `json:"bucketWidth"`
	Buckets     []OrderBookBucket `json:"buckets" validate:"dive"`
}
