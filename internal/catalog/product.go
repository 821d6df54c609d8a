// Package catalog defines the product record consumed by the search engine
// and the loaders that read it from files, PostgreSQL or SQLite.
package catalog

import (
	"context"
	"encoding/json"
)

// StockStatus is the availability of a product.
type StockStatus string

const (
	InStock    StockStatus = "in_stock"
	LowStock   StockStatus = "low_stock"
	OutOfStock StockStatus = "out_of_stock"
)

// Valid reports whether s is one of the known stock states.
func (s StockStatus) Valid() bool {
	switch s {
	case InStock, LowStock, OutOfStock:
		return true
	}
	return false
}

// Product is an immutable catalog record.
type Product struct {
	ID          string      `json:"product_id" yaml:"product_id" toml:"product_id"`
	Name        string      `json:"name" yaml:"name" toml:"name"`
	Description string      `json:"description" yaml:"description" toml:"description"`
	Price       float64     `json:"price" yaml:"price" toml:"price"`
	Category    string      `json:"category" yaml:"category" toml:"category"`
	StockStatus StockStatus `json:"stock_status" yaml:"stock_status" toml:"stock_status"`
}

// UnmarshalJSON accepts "id" as an alias for "product_id".
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	aux := struct {
		*plain
		AltID string `json:"id"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = aux.AltID
	}
	return nil
}

// Loader supplies the full product catalog. Implementations are called once
// at startup and again on every reload.
type Loader interface {
	Load(ctx context.Context) ([]Product, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(ctx context.Context) ([]Product, error)

func (f LoaderFunc) Load(ctx context.Context) ([]Product, error) {
	return f(ctx)
}

// Static returns a Loader that always yields a copy of products.
func Static(products []Product) Loader {
	return LoaderFunc(func(ctx context.Context) ([]Product, error) {
		out := make([]Product, len(products))
		copy(out, products)
		return out, nil
	})
}
