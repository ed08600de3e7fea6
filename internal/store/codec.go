package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pocketbook/internal/core"
	"pocketbook/internal/kv"
)

// dateLayout is ISO-8601 with milliseconds; dates are always written in UTC.
const dateLayout = "2006-01-02T15:04:05.000Z07:00"

type transactionRecord struct {
	ID     string               `json:"id"`
	Title  string               `json:"title"`
	Amount json.Number          `json:"amount"`
	Date   string               `json:"date"`
	Type   core.TransactionType `json:"type"`
	Note   string               `json:"note,omitempty"`
}

type categoryRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	IsCustom bool   `json:"isCustom"`
}

func newTransactionRecord(t core.Transaction) transactionRecord {
	return transactionRecord{
		ID:     t.ID,
		Title:  t.Title,
		Amount: json.Number(t.Amount.String()),
		Date:   t.Date.UTC().Format(dateLayout),
		Type:   t.Type,
		Note:   t.Note,
	}
}

func (r transactionRecord) toTransaction() (core.Transaction, error) {
	amount, err := decimal.NewFromString(r.Amount.String())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", r.Amount, err)
	}
	date, err := time.Parse(time.RFC3339Nano, r.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("date %q: %w", r.Date, err)
	}
	return core.Transaction{
		ID:     r.ID,
		Title:  r.Title,
		Amount: amount,
		Date:   date.UTC(),
		Type:   r.Type,
		Note:   r.Note,
	}, nil
}

func transactionRecords(txs []core.Transaction) []transactionRecord {
	records := make([]transactionRecord, len(txs))
	for i, t := range txs {
		records[i] = newTransactionRecord(t)
	}
	return records
}

func encodeTransactions(txs []core.Transaction) ([]byte, error) {
	return json.Marshal(transactionRecords(txs))
}

func encodeTransactionsIndent(txs []core.Transaction) ([]byte, error) {
	return json.MarshalIndent(transactionRecords(txs), "", "  ")
}

func decodeTransactions(data []byte) ([]core.Transaction, error) {
	var records []transactionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	txs := make([]core.Transaction, 0, len(records))
	for i, r := range records {
		t, err := r.toTransaction()
		if err != nil {
			return nil, fmt.Errorf("decode transaction %d: %w", i, err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func encodeCategories(cats []core.Category) ([]byte, error) {
	records := make([]categoryRecord, len(cats))
	for i, c := range cats {
		records[i] = categoryRecord(c)
	}
	return json.Marshal(records)
}

func decodeCategories(data []byte) ([]core.Category, error) {
	var records []categoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	cats := make([]core.Category, len(records))
	for i, r := range records {
		cats[i] = core.Category(r)
	}
	return cats, nil
}

// ReadTransactions decodes the transaction record held in backend. Unlike
// Initialize it reports read and decode failures; a missing key is an empty
// collection.
func ReadTransactions(ctx context.Context, backend kv.Store) ([]core.Transaction, error) {
	data, ok, err := backend.Get(ctx, KeyTransactions)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", KeyTransactions, err)
	}
	if !ok {
		return []core.Transaction{}, nil
	}
	return decodeTransactions(data)
}
