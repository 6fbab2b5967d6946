package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or is no
// longer offered for sale.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID     int64
	Name   string
	Price  decimal.Decimal
	Stock  int
	Active bool
}

// Catalog defines the read operations the checkout needs from the product
// catalog. Stock is only ever decremented by the order store at commit time.
type Catalog interface {
	// GetActive returns the product with the given id if it is active,
	// ErrNotFound otherwise.
	GetActive(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context) ([]Product, error)
}
