package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe is a candle aggregation interval
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe1d  Timeframe = "1d"
)

// Timeframes lists all supported intervals, shortest first
var Timeframes = []Timeframe{
	Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m, Timeframe1h, Timeframe1d,
}

// ParseTimeframe maps an interval string to a Timeframe, defaulting to 1m
func ParseTimeframe(s string) Timeframe {
	for _, tf := range Timeframes {
		if string(tf) == s {
			return tf
		}
	}
	return Timeframe1m
}

// Duration returns the wall-clock length of one candle
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe30m:
		return 30 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Bucket truncates t to the open time of the candle containing it
func (tf Timeframe) Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(tf.Duration())
}

// Candle is one OHLC bar for a symbol and timeframe
type Candle struct {
	SymbolID  string          `json:"symbol_id"`
	Timeframe Timeframe       `json:"timeframe"`
	OpenTime  time.Time       `json:"open_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	CloseTime time.Time       `json:"close_time"`
}
