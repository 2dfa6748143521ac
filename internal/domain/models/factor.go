package models

import (
	"sort"
	"time"
)

// FactorKey identifies one factor observation.
type FactorKey struct {
	Date  time.Time `json:"date"`
	Asset string    `json:"asset"`
}

// Less orders keys by date, then asset.
func (k FactorKey) Less(o FactorKey) bool {
	if !k.Date.Equal(o.Date) {
		return k.Date.Before(o.Date)
	}
	return k.Asset < o.Asset
}

type rowKey struct {
	day   int64
	asset string
}

func keyOf(date time.Time, asset string) rowKey {
	return rowKey{day: date.Unix(), asset: asset}
}

// FactorRow is a single (date, asset) -> value entry.
type FactorRow struct {
	FactorKey
	Value float64 `json:"value"`
}

// FactorTable is an immutable mapping (date, asset) -> value, sorted by date
// then asset, with at most one row per key.
type FactorTable struct {
	rows  []FactorRow
	index map[rowKey]int
}

// NewFactorTable builds a table from rows in encounter order. The first row
// seen for a key wins.
func NewFactorTable(rows []FactorRow) FactorTable {
	seen := make(map[rowKey]struct{}, len(rows))
	out := make([]FactorRow, 0, len(rows))
	for _, r := range rows {
		k := keyOf(r.Date, r.Asset)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j].FactorKey) })

	index := make(map[rowKey]int, len(out))
	for i, r := range out {
		index[keyOf(r.Date, r.Asset)] = i
	}
	return FactorTable{rows: out, index: index}
}

// Len returns the number of rows.
func (t FactorTable) Len() int { return len(t.rows) }

// Rows returns a copy of the rows in key order.
func (t FactorTable) Rows() []FactorRow {
	out := make([]FactorRow, len(t.rows))
	copy(out, t.rows)
	return out
}

// Head returns up to n leading rows.
func (t FactorTable) Head(n int) []FactorRow {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	if n < 0 {
		n = 0
	}
	out := make([]FactorRow, n)
	copy(out, t.rows[:n])
	return out
}

// Value looks up the factor value for (date, asset).
func (t FactorTable) Value(date time.Time, asset string) (float64, bool) {
	i, ok := t.index[keyOf(date, asset)]
	if !ok {
		return 0, false
	}
	return t.rows[i].Value, true
}

// Dates returns the distinct dates in ascending order.
func (t FactorTable) Dates() []time.Time {
	out := make([]time.Time, 0)
	for i, r := range t.rows {
		if i > 0 && r.Date.Equal(t.rows[i-1].Date) {
			continue
		}
		out = append(out, r.Date)
	}
	return out
}

// Assets returns the distinct assets in ascending order.
func (t FactorTable) Assets() []string {
	set := make(map[string]struct{})
	for _, r := range t.rows {
		set[r.Asset] = struct{}{}
	}
	return sortedKeys(set)
}

// PricePoint is one close observation in long layout.
type PricePoint struct {
	Date  time.Time
	Asset string
	Close float64
}

// PriceTable holds closes in wide layout: one row per date, one column per asset.
type PriceTable struct {
	dates  []time.Time
	assets []string
	closes map[int64]map[string]float64
}

// NewPriceTable pivots long-format points into a wide table. Dates are sorted
// ascending; for a repeated (date, asset) the first point wins.
func NewPriceTable(points []PricePoint) PriceTable {
	closes := make(map[int64]map[string]float64)
	dates := make([]time.Time, 0)
	assets := make(map[string]struct{})
	for _, p := range points {
		day := p.Date.Unix()
		row, ok := closes[day]
		if !ok {
			row = make(map[string]float64)
			closes[day] = row
			dates = append(dates, p.Date)
		}
		if _, dup := row[p.Asset]; dup {
			continue
		}
		row[p.Asset] = p.Close
		assets[p.Asset] = struct{}{}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return PriceTable{dates: dates, assets: sortedKeys(assets), closes: closes}
}

// Restrict keeps only the given dates. Dates without prices are not added.
func (p PriceTable) Restrict(dates []time.Time) PriceTable {
	keep := make(map[int64]struct{}, len(dates))
	for _, d := range dates {
		keep[d.Unix()] = struct{}{}
	}
	out := PriceTable{
		dates:  make([]time.Time, 0, len(dates)),
		assets: p.assets,
		closes: make(map[int64]map[string]float64, len(dates)),
	}
	for _, d := range p.dates {
		if _, ok := keep[d.Unix()]; !ok {
			continue
		}
		out.dates = append(out.dates, d)
		out.closes[d.Unix()] = p.closes[d.Unix()]
	}
	return out
}

// Len returns the number of dates.
func (p PriceTable) Len() int { return len(p.dates) }

// Dates returns a copy of the ascending date axis.
func (p PriceTable) Dates() []time.Time {
	out := make([]time.Time, len(p.dates))
	copy(out, p.dates)
	return out
}

// Assets returns a copy of the asset columns.
func (p PriceTable) Assets() []string {
	out := make([]string, len(p.assets))
	copy(out, p.assets)
	return out
}

// Close returns the close of asset on date.
func (p PriceTable) Close(date time.Time, asset string) (float64, bool) {
	row, ok := p.closes[date.Unix()]
	if !ok {
		return 0, false
	}
	v, ok := row[asset]
	return v, ok
}

// Row returns a copy of the closes recorded on date.
func (p PriceTable) Row(date time.Time) map[string]float64 {
	row := p.closes[date.Unix()]
	out := make(map[string]float64, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
