package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// Stats is the small profile summary of a store.
type Stats struct {
	Transactions     int
	CustomCategories int
}
