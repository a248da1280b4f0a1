// Package store defines the read-only record access the analytics core
// consumes, plus the row types owned by the record store. Drivers live
// in the postgres and clickhouse subpackages.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one immutable sales record.
type Transaction struct {
	ID         int64
	CustomerID int64
	ProductID  int64
	OccurredAt time.Time
	Quantity   int64
	UnitPrice  decimal.Decimal
}

// Amount returns the transaction value: quantity times unit price.
func (t Transaction) Amount() decimal.Decimal {
	return t.UnitPrice.Mul(decimal.NewFromInt(t.Quantity))
}

// CustomerRecord is the reference row for one customer.
type CustomerRecord struct {
	ID       int64
	JoinedAt time.Time
}

// ProductRecord is the reference row for one product. UnitCost feeds
// the per-category margin rollup.
type ProductRecord struct {
	ID       int64
	Name     string
	Category string
	UnitCost decimal.Decimal
}

// Extent is a cheap checksum of the record set underlying a pipeline
// run: the highest transaction id in range and the number of rows.
// Two runs with equal configuration and equal extent observe the same
// data, which is what makes the inputs hash safe to cache on.
type Extent struct {
	MaxTransactionID int64
	RowCount         int64
}

// RecordStore is the narrow read-only interface between the record
// store and the analytics core. No writes originate from the core.
// All time ranges are half-open: [start, end).
//
// Drivers wrap every failure with errors.ErrStoreUnavailable so
// callers never depend on driver error types.
type RecordStore interface {
	// FetchTransactions returns transactions with occurred_at in
	// [start, end), ordered by id ascending.
	FetchTransactions(ctx context.Context, start, end time.Time) ([]Transaction, error)

	// FetchCustomers returns all customers ordered by id ascending.
	FetchCustomers(ctx context.Context) ([]CustomerRecord, error)

	// FetchProducts returns all products ordered by id ascending.
	FetchProducts(ctx context.Context) ([]ProductRecord, error)

	// TransactionExtent returns the extent of transactions in [start, end).
	TransactionExtent(ctx context.Context, start, end time.Time) (Extent, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
