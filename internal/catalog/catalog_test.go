package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/sqlite"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonCatalog = `[
  {"product_id": "P001", "name": "Budget Laptop", "description": "14 inch notebook", "price": 900, "category": "Computers", "stock_status": "in_stock"},
  {"id": "P002", "name": "Gaming Laptop", "description": "RTX graphics", "price": 1200, "category": "Computers", "stock_status": "low_stock"}
]`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFileLoaderFormats(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"json array", "products.json", jsonCatalog},
		{"json object", "products.json", `{"products": ` + jsonCatalog + `}`},
		{"yaml list", "products.yaml", `
- product_id: P001
  name: Budget Laptop
  description: 14 inch notebook
  price: 900
  category: Computers
  stock_status: in_stock
- product_id: P002
  name: Gaming Laptop
  description: RTX graphics
  price: 1200
  category: Computers
  stock_status: low_stock
`},
		{"toml", "products.toml", `
[[products]]
product_id = "P001"
name = "Budget Laptop"
description = "14 inch notebook"
price = 900.0
category = "Computers"
stock_status = "in_stock"

[[products]]
product_id = "P002"
name = "Gaming Laptop"
description = "RTX graphics"
price = 1200.0
category = "Computers"
stock_status = "low_stock"
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, []byte(tt.data))
			products, err := NewFileLoader(path).Load(context.Background())
			require.NoError(t, err)
			require.Len(t, products, 2)
			assert.Equal(t, "P001", products[0].ID)
			assert.Equal(t, "P002", products[1].ID)
			assert.Equal(t, 1200.0, products[1].Price)
			assert.Equal(t, LowStock, products[1].StockStatus)
		})
	}
}

func TestFileLoaderZstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll([]byte(jsonCatalog), nil)
	require.NoError(t, enc.Close())

	path := writeFile(t, "products.json.zst", compressed)
	products, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestFileLoaderMissingFileIsEmptyCatalog(t *testing.T) {
	products, err := NewFileLoader(filepath.Join(t.TempDir(), "absent.json")).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	_, err := Decode(".csv", []byte("id,name"))
	assert.ErrorContains(t, err, "unsupported catalog format")
}

func TestValidate(t *testing.T) {
	products := []Product{
		{ID: "P1", Name: "Phone", Price: 499, StockStatus: InStock},
		{ID: "P1", Name: "Duplicate", Price: 10, StockStatus: InStock},
		{ID: "", Name: "No ID", Price: 10, StockStatus: InStock},
		{ID: "P2", Name: "Refund", Price: -1, StockStatus: InStock},
		{ID: "P3", Name: "Mystery", Price: 1, StockStatus: "backordered"},
		{ID: "P4", Name: "Free Sample", Price: 0, StockStatus: OutOfStock},
	}
	valid, err := Validate(products)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "1:product_id")
	assert.Contains(t, verr.Fields, "2:product_id")
	assert.Contains(t, verr.Fields, "3:price")
	assert.Contains(t, verr.Fields, "4:stock_status")

	ids := make([]string, 0, len(valid))
	for _, p := range valid {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"P1", "P4"}, ids)
	assert.Equal(t, "Phone", valid[0].Name)
}

func TestSQLLoaderSQLite(t *testing.T) {
	client, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	_, err = client.DB.Exec(`CREATE TABLE products (
		product_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		stock_status TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = client.DB.Exec(`INSERT INTO products VALUES
		('P002', 'Garden Hose', '50 ft hose', 35.5, 'Home & Garden', 'in_stock'),
		('P001', 'Yoga Mat', 'non-slip exercise mat', 25, 'Sports', 'out_of_stock')`)
	require.NoError(t, err)

	loader, err := NewSQLLoader(client.DB, "products", time.Second)
	require.NoError(t, err)
	products, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "P001", products[0].ID)
	assert.Equal(t, OutOfStock, products[0].StockStatus)
	assert.Equal(t, 35.5, products[1].Price)
}

func TestSQLLoaderTimedOutAttemptDoesNotLeak(t *testing.T) {
	loader, err := NewSQLLoader(nil, "products", 20*time.Millisecond)
	require.NoError(t, err)
	loader.retry.InitialDelay = time.Millisecond

	release := make(chan struct{})
	finished := make(chan struct{})
	var attempts atomic.Int32
	loader.fetch = func(ctx context.Context) ([]Product, error) {
		if attempts.Add(1) == 1 {
			<-release
			defer close(finished)
			return nil, ctx.Err()
		}
		return []Product{{ID: "P1", Name: "Phone", Price: 10, StockStatus: InStock}}, nil
	}

	products, err := loader.Load(context.Background())
	require.NoError(t, err)
	close(release)
	<-finished
	require.Len(t, products, 1)
	assert.Equal(t, "P1", products[0].ID)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNewSQLLoaderRejectsInjectedTableName(t *testing.T) {
	_, err := NewSQLLoader(nil, "products; DROP TABLE products", 0)
	assert.Error(t, err)
}

func TestWatcherDebouncesWrites(t *testing.T) {
	path := writeFile(t, "products.json", []byte(jsonCatalog))
	var calls atomic.Int32
	w, err := NewWatcher(path, 50*time.Millisecond, func(context.Context) { calls.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.json"), []byte("[]"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(jsonCatalog), 0o644))
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStaticLoaderCopies(t *testing.T) {
	src := []Product{{ID: "P1", Name: "Phone"}}
	loader := Static(src)
	got, err := loader.Load(context.Background())
	require.NoError(t, err)
	got[0].Name = "changed"
	again, _ := loader.Load(context.Background())
	assert.Equal(t, "Phone", again[0].Name)
}
