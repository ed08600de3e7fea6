// Package sheets defines the outbound spreadsheet ports and the row layout
// shared by their implementations.
package sheets

import (
	"context"
	"time"

	"pocketbook/internal/core"
)

// TransactionExporter mirrors a transaction collection into an external
// sheet, replacing whatever was exported before.
type TransactionExporter interface {
	ExportTransactions(ctx context.Context, txs []core.Transaction) (rows int, err error)
}

// Header is the first row of every export.
var Header = []string{"Date", "Type", "Title", "Amount", "Note", "ID"}

const rowDateLayout = "2006-01-02 15:04"

// Row renders one transaction in Header order with the date shown in loc.
func Row(t core.Transaction, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	return []string{
		t.Date.In(loc).Format(rowDateLayout),
		string(t.Type),
		t.Title,
		core.FormatAmount(t.Amount),
		t.Note,
		t.ID,
	}
}

// Rows renders the header followed by one row per transaction.
func Rows(txs []core.Transaction, loc *time.Location) [][]string {
	out := make([][]string, 0, len(txs)+1)
	out = append(out, Header)
	for _, t := range txs {
		out = append(out, Row(t, loc))
	}
	return out
}
