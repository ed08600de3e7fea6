package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	TransactionType string

	// Transaction is a single recorded money movement. Title doubles as the
	// category name and is a copy taken at creation time, not a reference.
	Transaction struct {
		ID     string
		Title  string
		Amount decimal.Decimal // always >= 0, direction comes from Type
		Date   time.Time
		Type   TransactionType
		Note   string // optional, empty means absent
	}

	// TransactionFields is the caller supplied part of a new Transaction.
	TransactionFields struct {
		Title  string
		Amount decimal.Decimal
		Date   time.Time
		Type   TransactionType
		Note   string
	}

	// TransactionPatch carries a partial update. Nil fields are left as is.
	TransactionPatch struct {
		Title  *string
		Amount *decimal.Decimal
		Date   *time.Time
		Type   *TransactionType
		Note   *string
	}

	Category struct {
		ID       string
		Name     string
		Icon     string
		IsCustom bool
	}
)

// Input limits, in bytes.
const (
	MaxTitleLen        = 100
	MaxNoteLen         = 500
	MaxCategoryNameLen = 50
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyTitle        = errors.New("empty title")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrZeroDate          = errors.New("date cannot be zero")
	ErrEmptyCategoryName = errors.New("empty category name")
	ErrTitleTooLong      = fmt.Errorf("title too long (max %d characters)", MaxTitleLen)
	ErrNoteTooLong       = fmt.Errorf("note too long (max %d characters)", MaxNoteLen)
	ErrCategoryTooLong   = fmt.Errorf("category name too long (max %d characters)", MaxCategoryNameLen)
	ErrProtectedCategory = errors.New("built-in category cannot be deleted")
)

// IsValid reports whether t is one of the two known transaction types.
func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

// ParseTransactionType accepts "income" or "expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (f TransactionFields) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return ErrEmptyTitle
	}
	if len(f.Title) > MaxTitleLen {
		return ErrTitleTooLong
	}
	if f.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !f.Type.IsValid() {
		return ErrInvalidType
	}
	if f.Date.IsZero() {
		return ErrZeroDate
	}
	if len(f.Note) > MaxNoteLen {
		return ErrNoteTooLong
	}
	return nil
}

// Validate checks only the fields that are being changed.
func (p TransactionPatch) Validate() error {
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return ErrEmptyTitle
		}
		if len(*p.Title) > MaxTitleLen {
			return ErrTitleTooLong
		}
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if p.Type != nil && !p.Type.IsValid() {
		return ErrInvalidType
	}
	if p.Date != nil && p.Date.IsZero() {
		return ErrZeroDate
	}
	if p.Note != nil && len(*p.Note) > MaxNoteLen {
		return ErrNoteTooLong
	}
	return nil
}

// Apply returns t with the non-nil patch fields merged in. ID never changes.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Note != nil {
		t.Note = *p.Note
	}
	return t
}

// Empty reports whether the patch changes nothing.
func (p TransactionPatch) Empty() bool {
	return p.Title == nil && p.Amount == nil && p.Date == nil && p.Type == nil && p.Note == nil
}

// ValidateCategoryName rejects blank names. Duplicates are allowed.
func ValidateCategoryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyCategoryName
	}
	if len(name) > MaxCategoryNameLen {
		return ErrCategoryTooLong
	}
	return nil
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}
