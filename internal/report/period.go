package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pocketbook/internal/core"
)

type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

func (g Granularity) IsValid() bool {
	switch g {
	case Day, Week, Month, Year:
		return true
	default:
		return false
	}
}

func (g Granularity) String() string { return string(g) }

func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if !g.IsValid() {
		return "", fmt.Errorf("unknown granularity %q (want day, week, month or year)", s)
	}
	return g, nil
}

// Direction moves a reference date one period back or forward.
type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

const endOfDayNanos = 999 * int(time.Millisecond)

// FilterByDateRange keeps transactions with start <= date <= end.
func FilterByDateRange(txs []core.Transaction, start, end time.Time) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.Date.Before(start) && !t.Date.After(end) {
			out = append(out, t)
		}
	}
	return out
}

// PeriodBounds returns the first and last instant of the period that contains
// ref, computed in ref's location. Weeks run Monday to Sunday and every period
// ends at 23:59:59.999.
func PeriodBounds(ref time.Time, g Granularity) (start, end time.Time) {
	loc := ref.Location()
	y, m, d := ref.Date()

	switch g {
	case Week:
		offset := 1 - int(ref.Weekday())
		if ref.Weekday() == time.Sunday {
			offset = -6
		}
		start = time.Date(y, m, d+offset, 0, 0, 0, 0, loc)
		end = time.Date(y, m, d+offset+6, 23, 59, 59, endOfDayNanos, loc)
	case Month:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		end = time.Date(y, m+1, 0, 23, 59, 59, endOfDayNanos, loc)
	case Year:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		end = time.Date(y, time.December, 31, 23, 59, 59, endOfDayNanos, loc)
	default:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		end = time.Date(y, m, d, 23, 59, 59, endOfDayNanos, loc)
	}
	return start, end
}

// AdvancePeriod shifts ref by one day, seven days, one calendar month or one
// calendar year. The time of day is kept. Month and year shifts normalise
// overflowing days the way time.AddDate does, so 31 January plus one month
// lands in early March.
func AdvancePeriod(ref time.Time, g Granularity, dir Direction) time.Time {
	n := int(dir)
	switch g {
	case Week:
		return ref.AddDate(0, 0, 7*n)
	case Month:
		return ref.AddDate(0, n, 0)
	case Year:
		return ref.AddDate(n, 0, 0)
	default:
		return ref.AddDate(0, 0, n)
	}
}

// PeriodLabel renders the header shown above a period report.
func PeriodLabel(ref time.Time, g Granularity) string {
	switch g {
	case Week:
		start, end := PeriodBounds(ref, Week)
		if start.Month() == end.Month() {
			return fmt.Sprintf("%d - %s", start.Day(), end.Format("2 January"))
		}
		return fmt.Sprintf("%s - %s", start.Format("2 January"), end.Format("2 January"))
	case Month:
		return ref.Format("January 2006")
	case Year:
		return ref.Format("2006")
	default:
		return ref.Format("2 January 2006")
	}
}

// PeriodSummary is the reports header for one period.
type PeriodSummary struct {
	Granularity  Granularity
	Label        string
	Start        time.Time
	End          time.Time
	Income       decimal.Decimal
	Expense      decimal.Decimal
	Balance      decimal.Decimal
	Categories   CategoryTotals
	Transactions []core.Transaction
}

// Summarize filters txs to the period containing ref and totals it.
func Summarize(txs []core.Transaction, ref time.Time, g Granularity) PeriodSummary {
	start, end := PeriodBounds(ref, g)
	in := FilterByDateRange(txs, start, end)
	income := TotalByType(in, core.Income)
	expense := TotalByType(in, core.Expense)
	return PeriodSummary{
		Granularity:  g,
		Label:        PeriodLabel(ref, g),
		Start:        start,
		End:          end,
		Income:       income,
		Expense:      expense,
		Balance:      income.Sub(expense),
		Categories:   TotalByCategory(in),
		Transactions: in,
	}
}
