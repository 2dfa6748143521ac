package models

import (
	"strings"
	"time"
)

// Symbol is a resolved, venue-qualified market handle.
type Symbol struct {
	Ticker string // base ticker, e.g. "EURUSD"
	Venue  string // e.g. "OANDA"
	Code   string // provider-native code, e.g. "OANDA:EUR_USD"
}

// String renders the symbol as "<TICKER> <VENUE>".
func (s Symbol) String() string {
	if s.Venue == "" {
		return s.Ticker
	}
	return s.Ticker + " " + s.Venue
}

// Bar is one historical OHLCV record. Symbol holds the venue-qualified string
// form reported by the data source.
type Bar struct {
	Time   time.Time `json:"t"`
	Symbol string    `json:"s"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// IndicatorRecord is one RSI reading with the intermediate averages.
type IndicatorRecord struct {
	Time        time.Time `json:"t"`
	Asset       string    `json:"asset"`
	AverageGain float64   `json:"average_gain"`
	AverageLoss float64   `json:"average_loss"`
	Current     float64   `json:"current"`
}

// NormalizeAsset reduces a venue-qualified symbol string ("EURUSD 8G") to its
// base ticker: the token before the first whitespace.
func NormalizeAsset(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
