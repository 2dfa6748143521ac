package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAsset(t *testing.T) {
	cases := map[string]string{
		"EURUSD 8G":    "EURUSD",
		"EURUSD":       "EURUSD",
		"  USDJPY BGN": "USDJPY",
		"GBPUSD\tX":    "GBPUSD",
		"":             "",
		"   ":          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAsset(in), "input %q", in)
	}
	// stable under repetition
	assert.Equal(t, "EURUSD", NormalizeAsset(NormalizeAsset("EURUSD 8G")))
}

func TestSymbolString(t *testing.T) {
	assert.Equal(t, "EURUSD OANDA", Symbol{Ticker: "EURUSD", Venue: "OANDA", Code: "OANDA:EUR_USD"}.String())
	assert.Equal(t, "AAPL", Symbol{Ticker: "AAPL"}.String())
}

func TestFactorTable_KeepFirstSorted(t *testing.T) {
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d0 := d1.AddDate(0, 0, -1)
	table := NewFactorTable([]FactorRow{
		{FactorKey: FactorKey{Date: d1, Asset: "USDJPY"}, Value: 1},
		{FactorKey: FactorKey{Date: d0, Asset: "USDJPY"}, Value: 2},
		{FactorKey: FactorKey{Date: d1, Asset: "EURUSD"}, Value: 3},
		{FactorKey: FactorKey{Date: d1, Asset: "USDJPY"}, Value: 99},
	})

	rows := table.Rows()
	if assert.Len(t, rows, 3) {
		assert.Equal(t, FactorKey{Date: d0, Asset: "USDJPY"}, rows[0].FactorKey)
		assert.Equal(t, FactorKey{Date: d1, Asset: "EURUSD"}, rows[1].FactorKey)
		assert.Equal(t, FactorKey{Date: d1, Asset: "USDJPY"}, rows[2].FactorKey)
	}
	v, ok := table.Value(d1, "USDJPY")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	// accessors hand out copies
	rows[0].Value = -1
	v, _ = table.Value(d0, "USDJPY")
	assert.Equal(t, 2.0, v)
}
