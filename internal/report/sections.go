package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pocketbook/internal/core"
)

// Section is a run of transactions recorded on the same calendar day.
type Section struct {
	Label        string
	Day          time.Time // midnight in the location of now
	Transactions []core.Transaction
}

// GroupByCalendarBucket sorts txs newest first (stable, so equal dates keep
// their order) and splits them by calendar day in now's location. The two
// most recent days are labelled "Today" and "Yesterday"; other days read
// "2 January", with the year appended when it is not the current one.
func GroupByCalendarBucket(txs []core.Transaction, now time.Time) []Section {
	sorted := append([]core.Transaction(nil), txs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	loc := now.Location()
	today := startOfDay(now)
	yesterday := today.AddDate(0, 0, -1)

	var sections []Section
	for _, t := range sorted {
		day := startOfDay(t.Date.In(loc))
		if n := len(sections); n > 0 && sections[n-1].Day.Equal(day) {
			sections[n-1].Transactions = append(sections[n-1].Transactions, t)
			continue
		}
		sections = append(sections, Section{
			Label:        dayLabel(day, today, yesterday),
			Day:          day,
			Transactions: []core.Transaction{t},
		})
	}
	return sections
}

func dayLabel(day, today, yesterday time.Time) string {
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(yesterday):
		return "Yesterday"
	case day.Year() != today.Year():
		return day.Format("2 January 2006")
	default:
		return day.Format("2 January")
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SearchText matches query against title and note, ignoring case. A blank
// query matches nothing.
func SearchText(txs []core.Transaction, query string) []core.Transaction {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []core.Transaction{}
	if q == "" {
		return out
	}
	for _, t := range txs {
		if strings.Contains(strings.ToLower(t.Title), q) ||
			(t.Note != "" && strings.Contains(strings.ToLower(t.Note), q)) {
			out = append(out, t)
		}
	}
	return out
}

// DayMark flags which kinds of transaction happened on a calendar day.
type DayMark struct {
	Income  bool
	Expense bool
}

// CalendarMarks keys every day that has transactions by its YYYY-MM-DD date
// in loc.
func CalendarMarks(txs []core.Transaction, loc *time.Location) map[string]DayMark {
	marks := make(map[string]DayMark)
	for _, t := range txs {
		key := t.Date.In(loc).Format(time.DateOnly)
		m := marks[key]
		switch t.Type {
		case core.Income:
			m.Income = true
		case core.Expense:
			m.Expense = true
		}
		marks[key] = m
	}
	return marks
}

// OnDay returns the transactions whose date falls on day's calendar date, in
// day's location.
func OnDay(txs []core.Transaction, day time.Time) []core.Transaction {
	start, end := PeriodBounds(day, Day)
	return FilterByDateRange(txs, start, end)
}

// DayNet is the signed total of a calendar day.
func DayNet(txs []core.Transaction, day time.Time) decimal.Decimal {
	return Balance(OnDay(txs, day))
}
