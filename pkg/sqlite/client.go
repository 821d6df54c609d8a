// Package sqlite opens the pure-Go SQLite driver used when the catalog lives
// in a local database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

type Client struct {
	DB   *sql.DB
	path string
}

// Open opens the database at path (":memory:" for an in-memory database) and
// verifies it with a ping.
func Open(path string) (*Client, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	// One connection keeps an in-memory database alive and visible to every query.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database %s: %w", path, err)
	}
	return &Client{DB: db, path: path}, nil
}

func (c *Client) Path() string {
	return c.path
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping is used by the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}
