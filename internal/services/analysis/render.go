package analysis

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"FinFactor/internal/domain/models"
)

const bps = 10000

const dateLayout = "2006-01-02"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
}

func num(v float64, scale float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NaN"
	}
	return fmt.Sprintf("%.*f", prec, v*scale)
}

// Render prints the returns tear sheet as aligned text tables.
func Render(w io.Writer, sheet *models.ReturnsTearSheet) error {
	if sheet == nil || len(sheet.Periods) == 0 {
		_, err := fmt.Fprintln(w, "no returns to report")
		return err
	}

	labels := make([]string, len(sheet.Periods))
	for i, p := range sheet.Periods {
		labels[i] = p.Label
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "Returns Analysis\t"+strings.Join(labels, "\t")+"\t")
	row := func(name string, f func(models.PeriodReturns) string) {
		cells := make([]string, len(sheet.Periods))
		for i, p := range sheet.Periods {
			cells[i] = f(p)
		}
		fmt.Fprintln(tw, name+"\t"+strings.Join(cells, "\t")+"\t")
	}
	row("Ann. alpha", func(p models.PeriodReturns) string { return num(p.AnnAlpha, 1, 3) })
	row("beta", func(p models.PeriodReturns) string { return num(p.Beta, 1, 3) })
	row("Mean Period Wise Return Top Quantile (bps)", func(p models.PeriodReturns) string {
		return quantileCell(p.QuantileReturns, true)
	})
	row("Mean Period Wise Return Bottom Quantile (bps)", func(p models.PeriodReturns) string {
		return quantileCell(p.QuantileReturns, false)
	})
	row("Mean Period Wise Spread (bps)", func(p models.PeriodReturns) string { return num(p.SpreadMean, bps, 3) })
	row("Spread Std. Error (bps)", func(p models.PeriodReturns) string { return num(p.SpreadStdErr, bps, 3) })
	row("IC Mean", func(p models.PeriodReturns) string { return num(p.MeanIC, 1, 3) })
	row("IC Std.", func(p models.PeriodReturns) string { return num(p.ICStd, 1, 3) })
	row("Risk-Adjusted IC", func(p models.PeriodReturns) string { return num(p.RiskAdjustedIC, 1, 3) })
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if err := renderQuantiles(w, "Mean Return by Quantile (bps)", sheet.Periods); err != nil {
		return err
	}

	if len(sheet.ByGroup) > 0 {
		fmt.Fprintln(w)
		if err := renderByGroup(w, sheet.ByGroup); err != nil {
			return err
		}
	}

	l := sheet.Loss
	_, err := fmt.Fprintf(w, "\nrows: %d initial, %d kept (%.1f%% dropped)\n", l.Initial, l.Kept(), l.Total*100)
	return err
}

func quantileCell(qs []models.QuantileReturn, top bool) string {
	if len(qs) == 0 {
		return "NaN"
	}
	q := qs[0]
	if top {
		q = qs[len(qs)-1]
	}
	return num(q.Mean, bps, 3)
}

func renderQuantiles(w io.Writer, title string, periods []models.PeriodReturns) error {
	tw := newTable(w)
	header := []string{title}
	quantiles := make(map[int]struct{})
	for _, p := range periods {
		header = append(header, p.Label, "±")
		for _, q := range p.QuantileReturns {
			quantiles[q.Quantile] = struct{}{}
		}
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for q := 1; q <= maxKey(quantiles); q++ {
		if _, ok := quantiles[q]; !ok {
			continue
		}
		cells := []string{fmt.Sprintf("%d", q)}
		for _, p := range periods {
			mean, se := "NaN", "NaN"
			for _, qr := range p.QuantileReturns {
				if qr.Quantile == q {
					mean, se = num(qr.Mean, bps, 3), num(qr.StdErr, bps, 3)
				}
			}
			cells = append(cells, mean, se)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

func renderByGroup(w io.Writer, groups []models.GroupQuantileReturns) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "Mean Return by Group (bps)\tperiod\tquantile\tmean\t±\tdates\t")
	for _, g := range groups {
		for _, q := range g.QuantileReturns {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%d\t\n",
				g.Group, models.PeriodLabel(g.Period), q.Quantile, num(q.Mean, bps, 3), num(q.StdErr, bps, 3), q.Count)
		}
	}
	return tw.Flush()
}

// RenderFactorsHead prints the first rows of the factor table.
func RenderFactorsHead(w io.Writer, rows []models.FactorRow) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "date\tasset\tcurrent\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", r.Date.Format(dateLayout), r.Asset, num(r.Value, 1, 6))
	}
	return tw.Flush()
}

// RenderPricesHead prints the first n dates of the price table.
func RenderPricesHead(w io.Writer, prices models.PriceTable, n int) error {
	assets := prices.Assets()
	tw := newTable(w)
	fmt.Fprintln(tw, "time\t"+strings.Join(assets, "\t")+"\t")
	dates := prices.Dates()
	if n < len(dates) {
		dates = dates[:n]
	}
	for _, d := range dates {
		cells := []string{d.Format(dateLayout)}
		for _, a := range assets {
			c, ok := prices.Close(d, a)
			if !ok {
				c = math.NaN()
			}
			cells = append(cells, num(c, 1, 5))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

// RenderFactorDataHead prints the first n merged rows with forward returns.
func RenderFactorDataHead(w io.Writer, data *models.FactorData, n int) error {
	tw := newTable(w)
	header := []string{"date", "asset"}
	for _, p := range data.Periods {
		header = append(header, models.PeriodLabel(p))
	}
	header = append(header, "factor", "group", "factor_quantile")
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	rows := data.Rows
	if n < len(rows) {
		rows = rows[:n]
	}
	for _, r := range rows {
		cells := []string{r.Date.Format(dateLayout), r.Asset}
		for _, v := range r.Returns {
			cells = append(cells, num(v, 1, 6))
		}
		cells = append(cells, num(r.Factor, 1, 6), r.Group, fmt.Sprintf("%d", r.Quantile))
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

func maxKey(set map[int]struct{}) int {
	m := 0
	for k := range set {
		if k > m {
			m = k
		}
	}
	return m
}
