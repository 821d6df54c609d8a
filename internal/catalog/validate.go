package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError holds per-product validation failure messages keyed by
// "<index>:<field>".
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Validate splits products into the records the engine can index and a
// ValidationError describing the rejected ones. Duplicate ids keep the
// first occurrence.
func Validate(products []Product) ([]Product, error) {
	errs := make(map[string]string)
	seen := make(map[string]struct{}, len(products))
	valid := make([]Product, 0, len(products))
	for i, p := range products {
		key := func(field string) string { return fmt.Sprintf("%d:%s", i, field) }
		ok := true
		if strings.TrimSpace(p.ID) == "" {
			errs[key("product_id")] = "product_id is required"
			ok = false
		} else if _, dup := seen[p.ID]; dup {
			errs[key("product_id")] = fmt.Sprintf("duplicate product_id %q", p.ID)
			ok = false
		}
		if strings.TrimSpace(p.Name) == "" {
			errs[key("name")] = "name is required"
			ok = false
		}
		if p.Price < 0 {
			errs[key("price")] = "price must not be negative"
			ok = false
		}
		if !p.StockStatus.Valid() {
			errs[key("stock_status")] = fmt.Sprintf("unknown stock status %q", p.StockStatus)
			ok = false
		}
		if !ok {
			continue
		}
		seen[p.ID] = struct{}{}
		valid = append(valid, p)
	}
	if len(errs) > 0 {
		return valid, &ValidationError{Fields: errs}
	}
	return valid, nil
}
