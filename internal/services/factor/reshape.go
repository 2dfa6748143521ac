package factor

import (
	"time"

	"FinFactor/internal/domain/models"
	"FinFactor/pkg/util"
)

// normalizeRecords re-keys indicator rows by (UTC date, base ticker).
func normalizeRecords(recs []models.IndicatorRecord, asset string) []models.IndicatorRecord {
	out := make([]models.IndicatorRecord, len(recs))
	for i, r := range recs {
		r.Time = util.DayUTC(r.Time)
		r.Asset = asset
		out[i] = r
	}
	return out
}

// computeFactors applies the band reflection to the combined indicator rows
// and keys the result by (date, asset). The band is measured over every row,
// duplicates included, before the table drops repeated keys.
func computeFactors(combined []models.IndicatorRecord) (models.FactorTable, Band) {
	values := make([]float64, len(combined))
	for i, r := range combined {
		values[i] = r.Current
	}
	band := ComputeBand(values)

	rows := make([]models.FactorRow, len(combined))
	for i, r := range combined {
		rows[i] = models.FactorRow{
			FactorKey: models.FactorKey{Date: r.Time, Asset: r.Asset},
			Value:     band.Reflect(r.Current),
		}
	}
	return models.NewFactorTable(rows), band
}

// computePrices pivots closes to a date x asset table and keeps only the
// dates of the factor table.
func computePrices(history []models.Bar, factorDates []time.Time) models.PriceTable {
	points := make([]models.PricePoint, len(history))
	for i, b := range history {
		points[i] = models.PricePoint{
			Date:  util.DayUTC(b.Time),
			Asset: models.NormalizeAsset(b.Symbol),
			Close: b.Close,
		}
	}
	return models.NewPriceTable(points).Restrict(factorDates)
}
