// Package clickhouse implements store.RecordStore on ClickHouse over
// the native TCP protocol. Intended for deployments where the sales
// history is too large for the PostgreSQL adapter to scan comfortably.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	apperr "github.com/prism-lab/project-prism/internal/core/errors"
	"github.com/prism-lab/project-prism/internal/store"
)

const (
	connectPingTimeout = 10 * time.Second

	queryFetchTransactions = `
		SELECT id, customer_id, product_id, occurred_at, quantity, unit_price
		FROM sales
		WHERE occurred_at >= ? AND occurred_at < ?
		ORDER BY id ASC
	`

	queryFetchCustomers = `
		SELECT id, joined_at
		FROM customers
		ORDER BY id ASC
	`

	queryFetchProducts = `
		SELECT id, name, category, unit_cost
		FROM products
		ORDER BY id ASC
	`

	// max(id) on a non-Nullable Int64 column yields 0 for an empty
	// range, matching the postgres COALESCE behavior.
	queryTransactionExtent = `
		SELECT max(id), count()
		FROM sales
		WHERE occurred_at >= ? AND occurred_at < ?
	`
)

// Adapter implements store.RecordStore for ClickHouse.
type Adapter struct {
	conn clickhouse.Conn
}

// NewAdapter connects to ClickHouse via native TCP and verifies the
// connection with a ping. addr is host:port of the native interface
// (usually port 9000, not the HTTP port).
func NewAdapter(addr, database, username, password string) (*Adapter, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "prism", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), connectPingTimeout)
	defer cancel()

	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	slog.Info("[ClickHouse] Connected via native TCP",
		"addr", addr,
		"database", database)

	return &Adapter{conn: conn}, nil
}

// FetchTransactions returns sales with occurred_at in [start, end), ordered by id ASC.
// unit_price is a Decimal(12, 2) column; clickhouse-go scans it into
// decimal.Decimal natively.
func (a *Adapter) FetchTransactions(ctx context.Context, start, end time.Time) ([]store.Transaction, error) {
	rows, err := a.conn.Query(ctx, queryFetchTransactions, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: query sales: %w", apperr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var txs []store.Transaction
	for rows.Next() {
		var t store.Transaction
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.ProductID, &t.OccurredAt, &t.Quantity, &t.UnitPrice); err != nil {
			return nil, fmt.Errorf("%w: scan sales row: %w", apperr.ErrStoreUnavailable, err)
		}
		t.OccurredAt = t.OccurredAt.UTC()
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate sales rows: %w", apperr.ErrStoreUnavailable, err)
	}

	return txs, nil
}

// FetchCustomers returns the full customer roster ordered by id ASC.
func (a *Adapter) FetchCustomers(ctx context.Context) ([]store.CustomerRecord, error) {
	rows, err := a.conn.Query(ctx, queryFetchCustomers)
	if err != nil {
		return nil, fmt.Errorf("%w: query customers: %w", apperr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var customers []store.CustomerRecord
	for rows.Next() {
		var c store.CustomerRecord
		if err := rows.Scan(&c.ID, &c.JoinedAt); err != nil {
			return nil, fmt.Errorf("%w: scan customer row: %w", apperr.ErrStoreUnavailable, err)
		}
		c.JoinedAt = c.JoinedAt.UTC()
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate customer rows: %w", apperr.ErrStoreUnavailable, err)
	}

	return customers, nil
}

// FetchProducts returns the product catalog ordered by id ASC.
func (a *Adapter) FetchProducts(ctx context.Context) ([]store.ProductRecord, error) {
	rows, err := a.conn.Query(ctx, queryFetchProducts)
	if err != nil {
		return nil, fmt.Errorf("%w: query products: %w", apperr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var products []store.ProductRecord
	for rows.Next() {
		var p store.ProductRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.UnitCost); err != nil {
			return nil, fmt.Errorf("%w: scan product row: %w", apperr.ErrStoreUnavailable, err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate product rows: %w", apperr.ErrStoreUnavailable, err)
	}

	return products, nil
}

// TransactionExtent returns the (max id, row count) extent of sales in [start, end).
func (a *Adapter) TransactionExtent(ctx context.Context, start, end time.Time) (store.Extent, error) {
	var (
		maxID    int64
		rowCount uint64
	)
	err := a.conn.QueryRow(ctx, queryTransactionExtent, start, end).Scan(&maxID, &rowCount)
	if err != nil {
		return store.Extent{}, fmt.Errorf("%w: query transaction extent: %w", apperr.ErrStoreUnavailable, err)
	}
	return store.Extent{
		MaxTransactionID: maxID,
		RowCount:         int64(rowCount),
	}, nil
}

// Ping verifies the connection. Used by the health endpoint.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.conn.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the connection. Should be called during graceful shutdown.
func (a *Adapter) Close() error {
	if err := a.conn.Close(); err != nil {
		return fmt.Errorf("failed to close clickhouse connection: %w", err)
	}
	slog.Info("[ClickHouse] Connection closed")
	return nil
}
