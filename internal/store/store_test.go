package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketbook/internal/core"
	"pocketbook/internal/kv/memory"
)

type flakyKV struct {
	*memory.Store
	getErr   error
	setErr   error
	clearErr error
	sets     int
}

func newFlakyKV() *flakyKV { return &flakyKV{Store: memory.New()} }

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Set(ctx, key, value)
}

func (f *flakyKV) Clear(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.Store.Clear(ctx)
}

type change struct {
	key   string
	count int
}

type recordingNotifier struct {
	changes []change
	err     error
}

func (n *recordingNotifier) NotifyChange(_ context.Context, key string, count int) error {
	n.changes = append(n.changes, change{key, count})
	return n.err
}

func sequentialIDs() IDGenerator {
	n := 0
	return func(time.Time) string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(t *testing.T, backend *flakyKV, opts ...Option) *Store {
	t.Helper()
	s := New(backend, opts...)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func fields(title string, amount string, typ core.TransactionType, date time.Time) core.TransactionFields {
	return core.TransactionFields{
		Title:  title,
		Amount: decimal.RequireFromString(amount),
		Date:   date,
		Type:   typ,
	}
}

func requireSameTransactions(t *testing.T, want, got []core.Transaction) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID, "id at %d", i)
		assert.Equal(t, want[i].Title, got[i].Title, "title at %d", i)
		assert.True(t, want[i].Amount.Equal(got[i].Amount), "amount at %d: %s != %s", i, want[i].Amount, got[i].Amount)
		assert.True(t, want[i].Date.Equal(got[i].Date), "date at %d: %s != %s", i, want[i].Date, got[i].Date)
		assert.Equal(t, want[i].Type, got[i].Type, "type at %d", i)
		assert.Equal(t, want[i].Note, got[i].Note, "note at %d", i)
	}
}

var monday = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func TestInitializeFirstRun(t *testing.T) {
	s := New(newFlakyKV())
	assert.False(t, s.Ready())

	require.NoError(t, s.Initialize(context.Background()))

	assert.True(t, s.Ready())
	assert.Empty(t, s.Transactions())
	cats := s.Categories()
	require.Len(t, cats, 8)
	assert.Equal(t, core.Category{ID: "1", Name: "Shopping", Icon: "cart"}, cats[0])
	assert.Equal(t, core.Category{ID: "8", Name: "Other", Icon: "grid"}, cats[7])
	for _, c := range cats {
		assert.False(t, c.IsCustom)
	}
}

func TestInitializeFailsSoft(t *testing.T) {
	t.Run("read error", func(t *testing.T) {
		backend := newFlakyKV()
		backend.getErr = errors.New("storage unavailable")
		s := New(backend)

		require.NoError(t, s.Initialize(context.Background()))
		assert.True(t, s.Ready())
		assert.Empty(t, s.Transactions())
		assert.Len(t, s.Categories(), 8)
	})

	t.Run("corrupt records", func(t *testing.T) {
		backend := newFlakyKV()
		ctx := context.Background()
		require.NoError(t, backend.Store.Set(ctx, KeyTransactions, []byte("{not json")))
		require.NoError(t, backend.Store.Set(ctx, KeyCategories, []byte(`[{"id":1}]`)))
		s := New(backend)

		require.NoError(t, s.Initialize(ctx))
		assert.Empty(t, s.Transactions())
		assert.Len(t, s.Categories(), 8)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := New(newFlakyKV())
		assert.ErrorIs(t, s.Initialize(ctx), context.Canceled)
		assert.False(t, s.Ready())
	})
}

func TestAddTransactionUniqueIDsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newFlakyKV(), WithClock(func() time.Time { return monday }))

	const n = 50
	var last core.Transaction
	for i := 0; i < n; i++ {
		var err error
		last, err = s.AddTransaction(ctx, fields(fmt.Sprintf("t%d", i), "1", core.Expense, monday))
		require.NoError(t, err)
	}

	txs := s.Transactions()
	require.Len(t, txs, n)
	assert.Equal(t, last.ID, txs[0].ID)
	assert.Equal(t, "t0", txs[n-1].Title)

	ids := make(map[string]bool, n)
	for _, tx := range txs {
		assert.NotEmpty(t, tx.ID)
		assert.False(t, ids[tx.ID], "duplicate id %s", tx.ID)
		ids[tx.ID] = true
	}
}

func TestAddTransactionNormalizesDate(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	date := time.Date(2024, 3, 4, 10, 0, 0, 123456789, loc)
	s := newTestStore(t, newFlakyKV())

	tx, err := s.AddTransaction(context.Background(), fields("Food", "2.5", core.Expense, date))
	require.NoError(t, err)

	assert.Equal(t, time.UTC, tx.Date.Location())
	assert.True(t, tx.Date.Equal(time.Date(2024, 3, 4, 9, 0, 0, 123000000, time.UTC)))
}

func TestRoundTripThroughStorage(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newTestStore(t, backend)

	_, err := s.AddTransaction(ctx, fields("Salary", "1500", core.Income, monday))
	require.NoError(t, err)
	f := fields("Food", "12.50", core.Expense, monday.Add(time.Hour))
	f.Note = "lunch with Ana"
	_, err = s.AddTransaction(ctx, f)
	require.NoError(t, err)
	_, err = s.AddTransaction(ctx, fields("Transport", "0.99", core.Expense, monday.AddDate(0, 0, 1)))
	require.NoError(t, err)
	_, err = s.AddCategory(ctx, "Pets", "paw")
	require.NoError(t, err)

	reloaded := newTestStore(t, backend)
	requireSameTransactions(t, s.Transactions(), reloaded.Transactions())
	assert.Equal(t, s.Categories(), reloaded.Categories())
}

func TestStoredJSONShape(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newTestStore(t, backend, WithIDGenerator(sequentialIDs()))

	_, err := s.AddTransaction(ctx, fields("Food", "12.50", core.Expense, monday))
	require.NoError(t, err)

	raw, ok, err := backend.Store.Get(ctx, KeyTransactions)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"id-1","title":"Food","amount":12.5,"date":"2024-03-04T09:30:00.000Z","type":"expense"}]`, string(raw))

	_, err = s.AddCategory(ctx, "Pets", "paw")
	require.NoError(t, err)
	raw, ok, err = backend.Store.Get(ctx, KeyCategories)
	require.NoError(t, err)
	require.True(t, ok)

	var cats []map[string]any
	require.NoError(t, json.Unmarshal(raw, &cats))
	require.Len(t, cats, 9)
	assert.Equal(t, map[string]any{"id": "id-2", "name": "Pets", "icon": "paw", "isCustom": true}, cats[8])
}

func TestUpdateTransaction(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newTestStore(t, backend)

	tx, err := s.AddTransaction(ctx, fields("Food", "10", core.Expense, monday))
	require.NoError(t, err)

	title := "Groceries"
	amount := decimal.NewFromInt(15)
	require.NoError(t, s.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Title: &title, Amount: &amount}))

	got, ok := s.Transaction(tx.ID)
	require.True(t, ok)
	assert.Equal(t, "Groceries", got.Title)
	assert.True(t, got.Amount.Equal(amount))
	assert.Equal(t, core.Expense, got.Type)
	assert.True(t, got.Date.Equal(tx.Date))

	reloaded := newTestStore(t, backend)
	requireSameTransactions(t, s.Transactions(), reloaded.Transactions())

	t.Run("unknown id writes nothing", func(t *testing.T) {
		before := backend.sets
		require.NoError(t, s.UpdateTransaction(ctx, "missing", core.TransactionPatch{Title: &title}))
		assert.Equal(t, before, backend.sets)
	})
}

func TestDeleteTransactionIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newTestStore(t, backend)

	a, err := s.AddTransaction(ctx, fields("A", "1", core.Expense, monday))
	require.NoError(t, err)
	_, err = s.AddTransaction(ctx, fields("B", "2", core.Expense, monday))
	require.NoError(t, err)

	require.NoError(t, s.DeleteTransaction(ctx, a.ID))
	after := s.Transactions()
	sets := backend.sets

	require.NoError(t, s.DeleteTransaction(ctx, a.ID))
	assert.Equal(t, after, s.Transactions())
	assert.Equal(t, sets, backend.sets)

	_, ok := s.Transaction(a.ID)
	assert.False(t, ok)
	require.Len(t, after, 1)
	assert.Equal(t, "B", after[0].Title)
}

func TestDeleteBuiltInCategoryRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newFlakyKV())

	for _, c := range DefaultCategories() {
		t.Run(c.Name, func(t *testing.T) {
			err := s.DeleteCategory(ctx, c.ID)
			assert.ErrorIs(t, err, core.ErrProtectedCategory)
			assert.Contains(t, s.Categories(), c)
		})
	}
	assert.Len(t, s.Categories(), 8)
}

func TestCustomCategoryLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newFlakyKV())

	pets, err := s.AddTransaction(ctx, fields("Pets", "30", core.Expense, monday))
	require.NoError(t, err)

	c, err := s.AddCategory(ctx, "Pets", "paw")
	require.NoError(t, err)
	assert.True(t, c.IsCustom)
	assert.NotEmpty(t, c.ID)

	// duplicates are allowed
	dup, err := s.AddCategory(ctx, "Pets", "paw")
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, dup.ID)
	assert.Equal(t, 2, s.Stats().CustomCategories)

	require.NoError(t, s.DeleteCategory(ctx, c.ID))
	require.NoError(t, s.DeleteCategory(ctx, "no-such-category"))
	assert.Len(t, s.Categories(), 9)

	// transactions keep the old name
	got, ok := s.Transaction(pets.ID)
	require.True(t, ok)
	assert.Equal(t, "Pets", got.Title)
}

func TestWriteFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newTestStore(t, backend)
	diskFull := errors.New("disk full")
	backend.setErr = diskFull

	tx, err := s.AddTransaction(ctx, fields("Food", "5", core.Expense, monday))
	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "persist transactions")
	assert.NotEmpty(t, tx.ID)
	assert.Len(t, s.Transactions(), 1)

	_, err = s.AddCategory(ctx, "Pets", "paw")
	assert.ErrorIs(t, err, diskFull)
	assert.Len(t, s.Categories(), 9)

	_, ok, _ := backend.Store.Get(ctx, KeyTransactions)
	assert.False(t, ok)
}

func TestLastWriteWinsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	first := newTestStore(t, backend)
	second := newTestStore(t, backend)

	_, err := first.AddTransaction(ctx, fields("From first", "1", core.Expense, monday))
	require.NoError(t, err)
	_, err = second.AddTransaction(ctx, fields("From second", "2", core.Expense, monday))
	require.NoError(t, err)

	reloaded := newTestStore(t, backend)
	txs := reloaded.Transactions()
	require.Len(t, txs, 1, "the second snapshot overwrote the first")
	assert.Equal(t, "From second", txs[0].Title)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newTestStore(t, backend)

	_, err := s.AddTransaction(ctx, fields("Food", "5", core.Expense, monday))
	require.NoError(t, err)
	_, err = s.AddCategory(ctx, "Pets", "paw")
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	assert.Equal(t, 0, backend.Len())
	assert.Empty(t, s.Transactions())
	assert.Equal(t, DefaultCategories(), s.Categories())
	assert.Equal(t, core.Stats{}, s.Stats())

	t.Run("clear failure leaves state", func(t *testing.T) {
		_, err := s.AddTransaction(ctx, fields("Food", "5", core.Expense, monday))
		require.NoError(t, err)
		backend.clearErr = errors.New("locked")

		err = s.Reset(ctx)
		assert.ErrorContains(t, err, "clear storage")
		assert.Len(t, s.Transactions(), 1)
	})
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t, newFlakyKV())
	for i, amount := range []string{"10", "20.5", "0"} {
		f := fields(fmt.Sprintf("T%d", i), amount, core.Expense, monday.Add(time.Duration(i)*time.Hour))
		if i == 1 {
			f.Note = "with note"
		}
		_, err := src.AddTransaction(ctx, f)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, src.ExportJSON(&buf))
	assert.Contains(t, buf.String(), "\n  {\n    \"id\"")

	dstKV := newFlakyKV()
	dst := newTestStore(t, dstKV)
	n, err := dst.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	requireSameTransactions(t, src.Transactions(), dst.Transactions())

	sets := dstKV.sets
	n, err = dst.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, sets, dstKV.sets)

	_, err = dst.ImportJSON(ctx, bytes.NewReader([]byte(`[{"id":"x","amount":"abc","date":"2024-01-01T00:00:00.000Z"}]`)))
	assert.Error(t, err)
	assert.Len(t, dst.Transactions(), 3)
}

func TestImportAssignsMissingIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newFlakyKV(), WithIDGenerator(sequentialIDs()))
	existing, err := s.AddTransaction(ctx, fields("Old", "1", core.Income, monday))
	require.NoError(t, err)

	data := `[
		{"title":"New","amount":3,"date":"2024-03-05T08:00:00.000Z","type":"expense"},
		{"id":"id-1","title":"Dup","amount":1,"date":"2024-03-05T08:00:00.000Z","type":"expense"}
	]`
	n, err := s.ImportJSON(ctx, bytes.NewBufferString(data))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	txs := s.Transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, "New", txs[0].Title)
	assert.Equal(t, "id-2", txs[0].ID)
	assert.Equal(t, existing.ID, txs[1].ID)
}

func TestImportRejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newTestStore(t, backend)
	existing, err := s.AddTransaction(ctx, fields("Food", "4", core.Expense, monday))
	require.NoError(t, err)
	before := s.Transactions()
	sets := backend.sets

	tests := []struct {
		name   string
		record string
		want   error
	}{
		{"negative amount", `{"id":"a","title":"Food","amount":-5,"date":"2024-03-05T08:00:00.000Z","type":"expense"}`, core.ErrInvalidAmount},
		{"unknown type", `{"id":"b","title":"Food","amount":5,"date":"2024-03-05T08:00:00.000Z","type":"bogus"}`, core.ErrInvalidType},
		{"empty title", `{"id":"c","title":" ","amount":5,"date":"2024-03-05T08:00:00.000Z","type":"income"}`, core.ErrEmptyTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid := `{"id":"ok","title":"Salary","amount":10,"date":"2024-03-05T08:00:00.000Z","type":"income"}`
			data := "[" + valid + "," + tt.record + "]"

			n, err := s.ImportJSON(ctx, bytes.NewBufferString(data))
			require.ErrorIs(t, err, tt.want)
			assert.ErrorContains(t, err, "decode import record 1")
			assert.Zero(t, n)
			requireSameTransactions(t, before, s.Transactions())
			assert.Equal(t, sets, backend.sets)
		})
	}

	reloaded := newTestStore(t, backend)
	require.Len(t, reloaded.Transactions(), 1)
	assert.Equal(t, existing.ID, reloaded.Transactions()[0].ID)
}

func TestImportNormalizesDate(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyKV()
	s := newTestStore(t, backend)

	data := `[{"id":"n1","title":"Food","amount":3,"date":"2024-03-01T11:00:00.123456789+01:00","type":"expense"}]`
	n, err := s.ImportJSON(ctx, bytes.NewBufferString(data))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	want := time.Date(2024, 3, 1, 10, 0, 0, 123_000_000, time.UTC)
	got := s.Transactions()[0].Date
	assert.True(t, got.Equal(want), "in memory: %s", got)
	assert.Equal(t, time.UTC, got.Location())

	reloaded := newTestStore(t, backend)
	requireSameTransactions(t, s.Transactions(), reloaded.Transactions())
}

func TestChangeNotifier(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{err: errors.New("broker down")}
	s := newTestStore(t, newFlakyKV(), WithNotifier(n))

	tx, err := s.AddTransaction(ctx, fields("Food", "5", core.Expense, monday))
	require.NoError(t, err, "notifier errors are not returned")
	_, err = s.AddCategory(ctx, "Pets", "paw")
	require.NoError(t, err)
	require.NoError(t, s.DeleteTransaction(ctx, tx.ID))

	assert.Equal(t, []change{
		{KeyTransactions, 1},
		{KeyCategories, 9},
		{KeyTransactions, 0},
	}, n.changes)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newFlakyKV())
	for i := 0; i < 3; i++ {
		_, err := s.AddTransaction(ctx, fields("Food", "1", core.Expense, monday))
		require.NoError(t, err)
	}
	_, err := s.AddCategory(ctx, "Pets", "paw")
	require.NoError(t, err)

	assert.Equal(t, core.Stats{Transactions: 3, CustomCategories: 1}, s.Stats())
}
