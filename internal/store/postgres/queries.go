package postgres

// SQL queries for read-only record access. The analytics core never
// writes through this adapter.

const (
	// queryFetchTransactions fetches sales for a half-open time range.
	// Ordered by id ASC so repeated fetches of the same range are
	// byte-for-byte identical, which keeps pipeline runs reproducible.
	queryFetchTransactions = `
		SELECT id, customer_id, product_id, occurred_at, quantity, unit_price
		FROM sales
		WHERE occurred_at >= $1
		  AND occurred_at < $2
		ORDER BY id ASC
	`

	// queryFetchCustomers fetches the full customer roster.
	// Customers with no sales in a window still matter: segmentation
	// reports them as inactive.
	queryFetchCustomers = `
		SELECT id, joined_at
		FROM customers
		ORDER BY id ASC
	`

	// queryFetchProducts fetches the product catalog with unit costs
	// for the margin rollup.
	queryFetchProducts = `
		SELECT id, name, category, unit_cost
		FROM products
		ORDER BY id ASC
	`

	// queryTransactionExtent computes the (max id, row count) pair the
	// pipeline folds into its inputs hash. COALESCE keeps MAX well
	// defined on an empty range.
	queryTransactionExtent = `
		SELECT COALESCE(MAX(id), 0), COUNT(*)
		FROM sales
		WHERE occurred_at >= $1
		  AND occurred_at < $2
	`
)
