package google

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketbook/internal/core"
)

type fakeValues struct {
	cleared   []string
	updated   string
	values    [][]interface{}
	clearErr  error
	updateErr error
}

func (f *fakeValues) Clear(_ context.Context, _ string, rng string) error {
	f.cleared = append(f.cleared, rng)
	return f.clearErr
}

func (f *fakeValues) Update(_ context.Context, _ string, rng string, values [][]interface{}) error {
	f.updated = rng
	f.values = values
	return f.updateErr
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestExportTransactions(t *testing.T) {
	fake := &fakeValues{}
	loc := time.FixedZone("UTC+3", 3*3600)
	c := newClient(fake, Config{SpreadsheetID: "sheet-id", SheetName: "Money", Location: loc}, quietLogger())

	txs := []core.Transaction{
		{ID: "01A", Title: "Food", Amount: decimal.RequireFromString("12.5"), Type: core.Expense,
			Date: time.Date(2024, 3, 4, 21, 30, 0, 0, time.UTC), Note: "dinner"},
		{ID: "01B", Title: "Salary", Amount: decimal.NewFromInt(1000), Type: core.Income,
			Date: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}

	n, err := c.ExportTransactions(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"Money!A:F"}, fake.cleared)
	assert.Equal(t, "Money!A1", fake.updated)
	require.Len(t, fake.values, 3)
	assert.Equal(t, []interface{}{"Date", "Type", "Title", "Amount", "Note", "ID"}, fake.values[0])
	assert.Equal(t, []interface{}{"2024-03-05 00:30", "expense", "Food", "12.50", "dinner", "01A"}, fake.values[1])
	assert.Equal(t, []interface{}{"2024-03-01 12:00", "income", "Salary", "1000.00", "", "01B"}, fake.values[2])
}

func TestExportTransactionsErrors(t *testing.T) {
	t.Run("clear fails", func(t *testing.T) {
		fake := &fakeValues{clearErr: errors.New("403")}
		c := newClient(fake, Config{SpreadsheetID: "id"}, quietLogger())
		_, err := c.ExportTransactions(context.Background(), nil)
		assert.ErrorContains(t, err, "clear sheet Transactions")
		assert.Empty(t, fake.updated)
	})

	t.Run("update fails", func(t *testing.T) {
		fake := &fakeValues{updateErr: errors.New("quota")}
		c := newClient(fake, Config{SpreadsheetID: "id"}, quietLogger())
		_, err := c.ExportTransactions(context.Background(), nil)
		assert.ErrorContains(t, err, "write sheet Transactions")
	})
}

func TestNewRequiresConfig(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{}, nil)
	assert.EqualError(t, err, "missing spreadsheet ID")

	_, err = New(ctx, Config{SpreadsheetID: "id"}, nil)
	assert.ErrorContains(t, err, "missing service account credentials")

	_, err = New(ctx, Config{SpreadsheetID: "id", CredentialsFile: filepath.Join(t.TempDir(), "none.json")}, nil)
	assert.ErrorContains(t, err, "read service account file")
}

func TestLastColumn(t *testing.T) {
	assert.Equal(t, "F", lastColumn())
}
