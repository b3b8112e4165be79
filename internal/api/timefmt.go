package api

import "time"

// Time layouts sent to the server. Both are UTC.
const (
	timeLayoutNano    = "2006-01-02T15:04:05.000000000Z"
	timeLayoutSeconds = "2006-01-02T15:04:05Z"
)

// orderBookInterval is the spacing of order book snapshots.
const orderBookInterval = 20 * time.Minute

func formatNano(t time.Time) string {
	return t.UTC().Format(timeLayoutNano)
}

func formatSeconds(t time.Time) string {
	return t.UTC().Format(timeLayoutSeconds)
}

// alignOrderBookTime rounds t down to the previous snapshot boundary.
func alignOrderBookTime(t time.Time) time.Time {
	return t.UTC().Truncate(orderBookInterval)
}
