package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/prism-lab/project-prism/internal/store"
)

func product(id int64, name, category, cost string) store.ProductRecord {
	return store.ProductRecord{
		ID:       id,
		Name:     name,
		Category: category,
		UnitCost: decimal.RequireFromString(cost),
	}
}

func TestSummarize(t *testing.T) {
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	txs := []store.Transaction{
		tx(1, 1, 1, at, 2, "10.00"), // 20.00
		tx(2, 1, 2, at, 1, "50.00"), // 50.00
		tx(3, 2, 1, at, 1, "20.00"), // 20.00
	}

	summary := Summarize(txs)
	require.Equal(t, int64(3), summary.TotalTransactions)
	require.Equal(t, int64(2), summary.UniqueCustomers)
	require.True(t, summary.TotalRevenue.Equal(decimal.RequireFromString("90.00")))
	require.True(t, summary.AvgTransactionValue.Equal(decimal.NewFromInt(30)))
}

func TestSummarize_EmptyRange(t *testing.T) {
	summary := Summarize(nil)
	require.Equal(t, int64(0), summary.TotalTransactions)
	require.Equal(t, int64(0), summary.UniqueCustomers)
	require.True(t, summary.TotalRevenue.IsZero())
	require.True(t, summary.AvgTransactionValue.IsZero())
}

func TestTopProducts_RanksByRevenueWithStableTies(t *testing.T) {
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	products := []store.ProductRecord{
		product(1, "Wireless Mouse", "Electronics", "12.00"),
		product(2, "Desk Lamp", "Home & Garden", "8.00"),
		product(3, "Notebook", "Office", "1.00"),
	}

	txs := []store.Transaction{
		tx(1, 1, 2, at, 1, "40.00"),  // product 2: 40.00
		tx(2, 1, 1, at, 2, "20.00"),  // product 1: 40.00 (ties with 2, lower id wins)
		tx(3, 2, 3, at, 10, "30.00"), // product 3: 300.00
	}

	top := TopProducts(txs, products, 2)
	require.Len(t, top, 2)

	require.Equal(t, int64(3), top[0].ProductID)
	require.Equal(t, "Notebook", top[0].Name)
	require.Equal(t, "Office", top[0].Category)
	require.Equal(t, int64(10), top[0].UnitsSold)
	require.True(t, top[0].Revenue.Equal(decimal.RequireFromString("300.00")))

	// Revenue tie between products 1 and 2 resolves to the lower id.
	require.Equal(t, int64(1), top[1].ProductID)
	require.Equal(t, int64(1), top[1].TransactionCount)
}

func TestTopProducts_NSmallerThanCatalog(t *testing.T) {
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	txs := []store.Transaction{tx(1, 1, 1, at, 1, "10.00")}

	top := TopProducts(txs, nil, 5)
	require.Len(t, top, 1)
	require.Equal(t, int64(1), top[0].ProductID)
	require.Empty(t, top[0].Name)

	require.Nil(t, TopProducts(txs, nil, 0))
}

func TestCategoryMargins(t *testing.T) {
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	products := []store.ProductRecord{
		product(1, "Wireless Mouse", "Electronics", "12.00"),
		product(2, "Keyboard", "Electronics", "18.00"),
		product(3, "Desk Lamp", "Home & Garden", "8.00"),
	}

	txs := []store.Transaction{
		tx(1, 1, 1, at, 2, "20.00"), // Electronics: revenue 40, cost 24
		tx(2, 1, 2, at, 1, "30.00"), // Electronics: revenue 30, cost 18
		tx(3, 2, 3, at, 1, "10.00"), // Home & Garden: revenue 10, cost 8
	}

	margins := CategoryMargins(txs, products)
	require.Len(t, margins, 2)

	// Sorted by category name.
	require.Equal(t, "Electronics", margins[0].Category)
	require.True(t, margins[0].Revenue.Equal(decimal.NewFromInt(70)))
	require.True(t, margins[0].Cost.Equal(decimal.NewFromInt(42)))
	require.True(t, margins[0].Profit.Equal(decimal.NewFromInt(28)))
	require.True(t, margins[0].MarginPct.Equal(decimal.NewFromInt(40)),
		"margin pct = %s", margins[0].MarginPct)

	require.Equal(t, "Home & Garden", margins[1].Category)
	require.True(t, margins[1].Profit.Equal(decimal.NewFromInt(2)))
}

func TestCategoryMargins_ZeroRevenueYieldsZeroMargin(t *testing.T) {
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	products := []store.ProductRecord{
		product(1, "Sample Pack", "Promo", "5.00"),
	}

	// A giveaway: quantity sold at zero price still carries cost.
	txs := []store.Transaction{tx(1, 1, 1, at, 3, "0.00")}

	margins := CategoryMargins(txs, products)
	require.Len(t, margins, 1)
	require.True(t, margins[0].Revenue.IsZero())
	require.True(t, margins[0].Cost.Equal(decimal.NewFromInt(15)))
	require.True(t, margins[0].Profit.Equal(decimal.NewFromInt(-15)))
	require.True(t, margins[0].MarginPct.IsZero())
}
