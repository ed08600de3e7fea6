// Package chart shapes aggregated numbers into series a chart widget can
// draw without further arithmetic.
package chart

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"pocketbook/internal/core"
	"pocketbook/internal/report"
)

const (
	// NoDataLabel names the placeholder slice of an empty pie.
	NoDataLabel = "No data"

	defaultAxisMaximum = 100
	axisSafetyFactor   = 1.2
)

// Slice is one pie segment. Share is value/total in [0,1]; Percent is the
// same figure rounded to one decimal for labels.
type Slice struct {
	Label       string
	Value       decimal.Decimal
	Share       float64
	Percent     float64
	Placeholder bool
}

// ExpenseShareSeries turns category totals into pie slices in discovery
// order. An empty input yields a single placeholder slice so the chart always
// has something to draw.
func ExpenseShareSeries(totals report.CategoryTotals) []Slice {
	entries := totals.Entries()
	if len(entries) == 0 {
		return []Slice{{Label: NoDataLabel, Value: decimal.NewFromInt(1), Placeholder: true}}
	}

	total := totals.Total()
	slices := make([]Slice, len(entries))
	for i, e := range entries {
		var share float64
		if !total.IsZero() {
			share = e.Amount.Div(total).InexactFloat64()
		}
		slices[i] = Slice{
			Label:   e.Name,
			Value:   e.Amount,
			Share:   share,
			Percent: math.Round(share*1000) / 10,
		}
	}
	return slices
}

// BarGroup pairs the income and expense totals of one sub-period.
type BarGroup struct {
	Label   string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// PeriodBarSeries splits the period containing ref into its sub-units and
// totals each: one group for a day, Monday to Sunday for a week, every day of
// a month, and January to December for a year. Transactions outside the
// period are ignored. Month labels are sparse (day 1 and multiples of 5) to
// keep a crowded axis readable.
func PeriodBarSeries(txs []core.Transaction, g report.Granularity, ref time.Time) []BarGroup {
	start, end := report.PeriodBounds(ref, g)
	in := report.FilterByDateRange(txs, start, end)
	loc := ref.Location()

	var groups []BarGroup
	var index func(t time.Time) int

	switch g {
	case report.Week:
		groups = make([]BarGroup, 7)
		for i := range groups {
			groups[i].Label = weekdayLabels[i]
		}
		index = func(t time.Time) int { return (int(t.Weekday()) + 6) % 7 }
	case report.Month:
		days := end.Day()
		groups = make([]BarGroup, days)
		for i := range groups {
			if d := i + 1; d == 1 || d%5 == 0 {
				groups[i].Label = strconv.Itoa(d)
			}
		}
		index = func(t time.Time) int { return t.Day() - 1 }
	case report.Year:
		groups = make([]BarGroup, 12)
		for i := range groups {
			groups[i].Label = time.Month(i + 1).String()[:3]
		}
		index = func(t time.Time) int { return int(t.Month()) - 1 }
	default:
		groups = []BarGroup{{Label: start.Format("2 Jan")}}
		index = func(time.Time) int { return 0 }
	}

	for i := range groups {
		groups[i].Income = decimal.Zero
		groups[i].Expense = decimal.Zero
	}
	for _, t := range in {
		b := &groups[index(t.Date.In(loc))]
		switch t.Type {
		case core.Income:
			b.Income = b.Income.Add(t.Amount)
		case core.Expense:
			b.Expense = b.Expense.Add(t.Amount)
		}
	}
	return groups
}

// MaxBarValue is the tallest single bar across groups.
func MaxBarValue(groups []BarGroup) float64 {
	top := decimal.Zero
	for _, g := range groups {
		top = decimal.Max(top, g.Income, g.Expense)
	}
	return top.InexactFloat64()
}

// NiceAxisMaximum rounds observed up to 1, 2, 5 or 10 times a power of ten.
// Non-positive input yields 100. If rounding still lands below observed, the
// result is scaled by 1.2.
func NiceAxisMaximum(observed float64) float64 {
	if observed <= 0 || math.IsNaN(observed) {
		return defaultAxisMaximum
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(observed)))
	normalized := observed / magnitude

	nice := 10.0
	for _, step := range []float64{1, 2, 5, 10} {
		if step >= normalized {
			nice = step
			break
		}
	}
	result := nice * magnitude
	if result < observed {
		result *= axisSafetyFactor
	}
	return result
}
