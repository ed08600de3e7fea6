// Package report holds the pure aggregations behind the dashboard, records,
// calendar and reports views. Nothing here touches storage; every function
// works on a snapshot slice and leaves it untouched.
package report

import (
	"github.com/shopspring/decimal"

	"pocketbook/internal/core"
)

// TotalByType sums the amounts of every transaction of the given type.
func TotalByType(txs []core.Transaction, typ core.TransactionType) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == typ {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// Balance is income minus expense.
func Balance(txs []core.Transaction) decimal.Decimal {
	return TotalByType(txs, core.Income).Sub(TotalByType(txs, core.Expense))
}

// CategoryTotals maps category names to summed expense amounts and remembers
// the order in which names were first seen.
type CategoryTotals struct {
	names   []string
	amounts map[string]decimal.Decimal
}

// TotalByCategory groups expenses by title. Income is ignored, and only names
// present in the data appear.
func TotalByCategory(txs []core.Transaction) CategoryTotals {
	ct := CategoryTotals{amounts: make(map[string]decimal.Decimal)}
	for _, t := range txs {
		if t.Type != core.Expense {
			continue
		}
		cur, ok := ct.amounts[t.Title]
		if !ok {
			ct.names = append(ct.names, t.Title)
		}
		ct.amounts[t.Title] = cur.Add(t.Amount)
	}
	return ct
}

func (c CategoryTotals) Len() int { return len(c.names) }

// Names returns category names in discovery order.
func (c CategoryTotals) Names() []string {
	return append([]string(nil), c.names...)
}

// Get returns the total for name, zero when the name was never seen.
func (c CategoryTotals) Get(name string) decimal.Decimal {
	return c.amounts[name]
}

func (c CategoryTotals) Total() decimal.Decimal {
	total := decimal.Zero
	for _, n := range c.names {
		total = total.Add(c.amounts[n])
	}
	return total
}

// Entries returns name/amount pairs in discovery order.
func (c CategoryTotals) Entries() []core.CategoryAmount {
	out := make([]core.CategoryAmount, len(c.names))
	for i, n := range c.names {
		out[i] = core.CategoryAmount{Name: n, Amount: c.amounts[n]}
	}
	return out
}

func (c CategoryTotals) Map() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.amounts))
	for k, v := range c.amounts {
		out[k] = v
	}
	return out
}

// TopCategory returns the expense category with the highest total. The bool
// is false when there are no expenses at all, which is not the same as a top
// category whose total is zero. Ties go to the category seen first.
func TopCategory(txs []core.Transaction) (core.CategoryAmount, bool) {
	entries := TotalByCategory(txs).Entries()
	if len(entries) == 0 {
		return core.CategoryAmount{}, false
	}
	top := entries[0]
	for _, e := range entries[1:] {
		if e.Amount.GreaterThan(top.Amount) {
			top = e
		}
	}
	return top, true
}

// Recent returns at most n transactions from the front of txs.
func Recent(txs []core.Transaction, n int) []core.Transaction {
	if n < 0 {
		n = 0
	}
	if n > len(txs) {
		n = len(txs)
	}
	return append([]core.Transaction(nil), txs[:n]...)
}
