package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/prism-lab/project-prism/internal/core/analytics"
	"github.com/prism-lab/project-prism/internal/store"
)

// Summarize computes the descriptive rollup of the analyzed range.
// The average transaction value is zero, not an error, for an empty
// range.
func Summarize(txs []store.Transaction) analytics.SalesSummary {
	summary := analytics.SalesSummary{
		TotalRevenue:        decimal.Zero,
		AvgTransactionValue: decimal.Zero,
	}

	customers := make(map[int64]struct{})
	for _, tx := range txs {
		summary.TotalRevenue = summary.TotalRevenue.Add(tx.Amount())
		customers[tx.CustomerID] = struct{}{}
	}

	summary.TotalTransactions = int64(len(txs))
	summary.UniqueCustomers = int64(len(customers))
	if summary.TotalTransactions > 0 {
		summary.AvgTransactionValue = summary.TotalRevenue.Div(decimal.NewFromInt(summary.TotalTransactions))
	}

	return summary
}

// TopProducts ranks products by revenue within the range and returns
// the first n. Ties break on product id ascending so rankings are
// stable across runs. Catalog rows supply name and category.
func TopProducts(txs []store.Transaction, products []store.ProductRecord, n int) []analytics.ProductRollup {
	if n <= 0 {
		return nil
	}

	catalog := make(map[int64]store.ProductRecord, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	byProduct := make(map[int64]*analytics.ProductRollup)
	for _, tx := range txs {
		r, ok := byProduct[tx.ProductID]
		if !ok {
			r = &analytics.ProductRollup{
				ProductID: tx.ProductID,
				Revenue:   decimal.Zero,
			}
			if p, found := catalog[tx.ProductID]; found {
				r.Name = p.Name
				r.Category = p.Category
			}
			byProduct[tx.ProductID] = r
		}
		r.UnitsSold += tx.Quantity
		r.Revenue = r.Revenue.Add(tx.Amount())
		r.TransactionCount++
	}

	rollups := make([]analytics.ProductRollup, 0, len(byProduct))
	for _, r := range byProduct {
		rollups = append(rollups, *r)
	}

	sort.Slice(rollups, func(i, j int) bool {
		if !rollups[i].Revenue.Equal(rollups[j].Revenue) {
			return rollups[i].Revenue.GreaterThan(rollups[j].Revenue)
		}
		return rollups[i].ProductID < rollups[j].ProductID
	})

	if len(rollups) > n {
		rollups = rollups[:n]
	}

	return rollups
}

// CategoryMargins computes per-category profitability: revenue from the
// sales, cost from catalog unit costs. Margin percent is zero, not an
// error, when a category's revenue is zero. Sorted by category name.
func CategoryMargins(txs []store.Transaction, products []store.ProductRecord) []analytics.CategoryMargin {
	catalog := make(map[int64]store.ProductRecord, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	type categoryTotals struct {
		revenue decimal.Decimal
		cost    decimal.Decimal
	}

	byCategory := make(map[string]categoryTotals)
	for _, tx := range txs {
		p, ok := catalog[tx.ProductID]
		if !ok {
			// Without a catalog row there is no category to attribute to.
			continue
		}
		t, seen := byCategory[p.Category]
		if !seen {
			t = categoryTotals{revenue: decimal.Zero, cost: decimal.Zero}
		}
		t.revenue = t.revenue.Add(tx.Amount())
		t.cost = t.cost.Add(p.UnitCost.Mul(decimal.NewFromInt(tx.Quantity)))
		byCategory[p.Category] = t
	}

	margins := make([]analytics.CategoryMargin, 0, len(byCategory))
	for category, t := range byCategory {
		m := analytics.CategoryMargin{
			Category:  category,
			Revenue:   t.revenue,
			Cost:      t.cost,
			Profit:    t.revenue.Sub(t.cost),
			MarginPct: decimal.Zero,
		}
		if !t.revenue.IsZero() {
			m.MarginPct = m.Profit.Div(t.revenue).Mul(decimal.NewFromInt(100))
		}
		margins = append(margins, m)
	}

	sort.Slice(margins, func(i, j int) bool {
		return margins[i].Category < margins[j].Category
	})

	return margins
}
