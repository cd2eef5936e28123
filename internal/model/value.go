package model

import (
	"encoding/json"
	"time"
)

// IndicatorValue holds one computed indicator value for a symbol at a timestamp.
type IndicatorValue struct {
	Indicator string    `json:"indicator"` // e.g. "sma", "ema", "rsi", "change_in_price"
	Symbol    string    `json:"symbol"`
	TS        time.Time `json:"ts"`      // timestamp of the row that produced this value
	Value     float64   `json:"value"`   // meaningless when Defined=false
	Defined   bool      `json:"defined"` // false while the row is inside the warmup window
}

// StreamKey returns the Redis stream key: "ind:{indicator}:{symbol}".
func (v *IndicatorValue) StreamKey() string {
	return "ind:" + v.Indicator + ":" + v.Symbol
}

// LatestKey returns the Redis key holding the most recent value.
func (v *IndicatorValue) LatestKey() string {
	return "ind:" + v.Indicator + ":latest:" + v.Symbol
}

// PubSubChannel returns the Redis Pub/Sub channel for real-time subscribers.
func (v *IndicatorValue) PubSubChannel() string {
	return "pub:ind:" + v.Indicator + ":" + v.Symbol
}

// JSON returns the JSON-encoded value.
func (v *IndicatorValue) JSON() []byte {
	data, _ := json.Marshal(v)
	return data
}
