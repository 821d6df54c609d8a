package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/resilience"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLLoader reads the catalog from a products table through database/sql.
// It works with any driver whose result columns scan into the Product
// fields, which covers lib/pq and modernc sqlite.
//
// Expected schema:
//
//	CREATE TABLE products (
//	    product_id   TEXT PRIMARY KEY,
//	    name         TEXT NOT NULL,
//	    description  TEXT NOT NULL DEFAULT '',
//	    price        DOUBLE PRECISION NOT NULL,
//	    category     TEXT NOT NULL DEFAULT '',
//	    stock_status TEXT NOT NULL
//	);
type SQLLoader struct {
	db      *sql.DB
	query   string
	timeout time.Duration
	retry   resilience.RetryConfig
	fetch   func(ctx context.Context) ([]Product, error)
	logger  *slog.Logger
}

// NewSQLLoader validates table and builds a loader. A zero timeout disables
// the per-attempt deadline.
func NewSQLLoader(db *sql.DB, table string, timeout time.Duration) (*SQLLoader, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid catalog table name %q", table)
	}
	l := &SQLLoader{
		db: db,
		query: fmt.Sprintf(
			`SELECT product_id, name, description, price, category, stock_status FROM %s ORDER BY product_id`,
			table,
		),
		timeout: timeout,
		retry:   resilience.RetryConfig{MaxAttempts: 3},
		logger:  slog.Default().With("component", "catalog-sql", "table", table),
	}
	l.fetch = l.queryAll
	return l, nil
}

func (l *SQLLoader) Load(ctx context.Context) ([]Product, error) {
	// Each attempt hands its rows back as a value; an attempt abandoned on
	// timeout never touches the result of a later one.
	products, err := resilience.RetryValue(ctx, "catalog-load", l.retry, func() ([]Product, error) {
		return resilience.CallWithTimeout(ctx, l.timeout, "catalog-query", l.fetch)
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog from database: %w", err)
	}
	l.logger.Info("catalog rows loaded", "products", len(products))
	return products, nil
}

func (l *SQLLoader) queryAll(ctx context.Context) ([]Product, error) {
	rows, err := l.db.QueryContext(ctx, l.query)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()
	products := make([]Product, 0, 64)
	for rows.Next() {
		var p Product
		var stock string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &stock); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		p.StockStatus = StockStatus(stock)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product rows: %w", err)
	}
	return products, nil
}
