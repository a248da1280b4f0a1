package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

const (
	queryResetTables = `TRUNCATE sales, customers, products RESTART IDENTITY CASCADE`

	queryInsertProduct = `
		INSERT INTO products (name, category, unit_cost)
		VALUES ($1, $2, $3)
	`

	queryInsertCustomer = `
		INSERT INTO customers (joined_at)
		VALUES ($1)
	`

	queryInsertSale = `
		INSERT INTO sales (customer_id, product_id, occurred_at, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
	`
)

// Apply replaces the contents of the sales schema with ds in a single
// transaction. Identity sequences are restarted so the 1-based ids the
// generator assigned to sales rows line up with the inserted parents.
func Apply(ctx context.Context, db *sql.DB, ds Dataset) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed apply: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, queryResetTables); err != nil {
		return fmt.Errorf("seed apply: reset tables: %w", err)
	}

	productStmt, err := tx.PrepareContext(ctx, queryInsertProduct)
	if err != nil {
		return fmt.Errorf("seed apply: prepare product insert: %w", err)
	}
	defer productStmt.Close()

	for i, p := range ds.Products {
		if _, err := productStmt.ExecContext(ctx, p.Name, p.Category, p.UnitCost); err != nil {
			return fmt.Errorf("seed apply: insert product %d: %w", i+1, err)
		}
	}

	customerStmt, err := tx.PrepareContext(ctx, queryInsertCustomer)
	if err != nil {
		return fmt.Errorf("seed apply: prepare customer insert: %w", err)
	}
	defer customerStmt.Close()

	for i, c := range ds.Customers {
		if _, err := customerStmt.ExecContext(ctx, c.JoinedAt); err != nil {
			return fmt.Errorf("seed apply: insert customer %d: %w", i+1, err)
		}
	}

	saleStmt, err := tx.PrepareContext(ctx, queryInsertSale)
	if err != nil {
		return fmt.Errorf("seed apply: prepare sale insert: %w", err)
	}
	defer saleStmt.Close()

	for i, s := range ds.Sales {
		if _, err := saleStmt.ExecContext(ctx,
			s.CustomerID,
			s.ProductID,
			s.OccurredAt,
			s.Quantity,
			s.UnitPrice,
		); err != nil {
			return fmt.Errorf("seed apply: insert sale %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed apply: commit: %w", err)
	}

	slog.Info("[Seeder] Applied demo dataset",
		"products", len(ds.Products),
		"customers", len(ds.Customers),
		"sales", len(ds.Sales),
	)
	return nil
}
