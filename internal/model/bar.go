package model

import (
	"encoding/json"
	"time"
)

// Bar represents one OHLC price row for a single symbol.
// Prices are float64 rupees/dollars as delivered by the historical data API.
type Bar struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar timestamp (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Key returns the unique row key: "symbol@unixTS".
func (b *Bar) Key() string {
	return b.Symbol + "@" + Itoa64(b.TS.Unix())
}

// StreamKey returns the Redis stream key for this symbol: "bars:{symbol}".
func (b *Bar) StreamKey() string {
	return "bars:" + b.Symbol
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}
