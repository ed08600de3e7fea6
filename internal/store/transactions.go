package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/log"
)

// AddTransaction prepends a new transaction and persists the collection. The
// fields are trusted; callers validate. The date is kept in UTC at
// millisecond precision, which is what storage can represent.
//
// On a write failure the transaction stays in memory and the error is
// returned.
func (s *Store) AddTransaction(ctx context.Context, f core.TransactionFields) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := core.Transaction{
		ID:     s.newID(s.now()),
		Title:  f.Title,
		Amount: f.Amount,
		Date:   normalizeDate(f.Date),
		Type:   f.Type,
		Note:   f.Note,
	}
	s.transactions = append([]core.Transaction{t}, s.transactions...)

	s.logger.DebugContext(ctx, "Transaction added",
		log.NewFields().WithOperation(log.OpCreate).
			WithTransaction(t.ID, t.Title, t.Amount, string(t.Type)).ToSlice()...)

	return t, s.persistTransactions(ctx)
}

// UpdateTransaction merges patch into the transaction with the given id.
// Unknown ids are ignored and nothing is written.
func (s *Store) UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfTransaction(id)
	if i < 0 {
		return nil
	}
	if patch.Date != nil {
		d := normalizeDate(*patch.Date)
		patch.Date = &d
	}
	s.transactions[i] = patch.Apply(s.transactions[i])

	return s.persistTransactions(ctx)
}

// DeleteTransaction removes the transaction with the given id. Unknown ids are
// ignored and nothing is written.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfTransaction(id)
	if i < 0 {
		return nil
	}
	s.transactions = append(s.transactions[:i:i], s.transactions[i+1:]...)

	return s.persistTransactions(ctx)
}

// ImportJSON reads an exported transaction array and prepends, in file order,
// every record whose id is not already present. Records without an id get a
// fresh one. Records are validated like new transactions and an invalid one
// rejects the whole file with nothing applied. The collection is written
// once; the number of added records is returned.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read import: %w", err)
	}
	var records []transactionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("decode import: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.transactions)+len(records))
	for _, t := range s.transactions {
		seen[t.ID] = true
	}

	imported := make([]core.Transaction, 0, len(records))
	for i, rec := range records {
		t, err := rec.toTransaction()
		if err != nil {
			return 0, fmt.Errorf("decode import record %d: %w", i, err)
		}
		if err := validateImported(t); err != nil {
			return 0, fmt.Errorf("decode import record %d: %w", i, err)
		}
		t.Date = normalizeDate(t.Date)
		if t.ID == "" {
			t.ID = s.newID(s.now())
		}
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		imported = append(imported, t)
	}

	if len(imported) == 0 {
		return 0, nil
	}
	s.transactions = append(imported, s.transactions...)

	s.logger.InfoContext(ctx, "Transactions imported",
		log.NewFields().WithOperation(log.OpImport).WithKey(KeyTransactions, len(imported)).ToSlice()...)

	return len(imported), s.persistTransactions(ctx)
}

// validateImported applies the checks callers run before AddTransaction,
// since an import file is user input that bypasses them.
func validateImported(t core.Transaction) error {
	return core.TransactionFields{
		Title:  t.Title,
		Amount: t.Amount,
		Date:   t.Date,
		Type:   t.Type,
		Note:   t.Note,
	}.Validate()
}

func (s *Store) indexOfTransaction(id string) int {
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			return i
		}
	}
	return -1
}

func normalizeDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
