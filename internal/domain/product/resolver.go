package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ProductNotFoundError indicates a cart line references a product that does
// not exist or is inactive.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// Is reports ErrNotFound so callers can match on the sentinel.
func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidQuantityError indicates a cart line has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d (got %d)", e.ProductID, e.Quantity)
}

// InsufficientStockError indicates the requested quantity exceeds the stock
// on hand.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: available %d, requested %d", e.Name, e.Available, e.Requested)
}

// ResolvedLine is a cart line priced from the catalog.
type ResolvedLine struct {
	ProductID    int64
	Name         string
	UnitPrice    decimal.Decimal
	Quantity     int
	LineSubtotal decimal.Decimal
}

// Resolver prices cart lines against the authoritative catalog.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a Resolver backed by the given Catalog.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve looks up the active product, checks stock and computes the line
// subtotal. It never writes.
func (r *Resolver) Resolve(ctx context.Context, productID int64, qty int) (*ResolvedLine, error) {
	if qty <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID, Quantity: qty}
	}

	p, err := r.catalog.GetActive(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &ProductNotFoundError{ProductID: productID}
		}
		return nil, errors.Wrapf(err, "get product %d", productID)
	}
	if p.Stock < qty {
		return nil, &InsufficientStockError{
			ProductID: p.ID,
			Name:      p.Name,
			Available: p.Stock,
			Requested: qty,
		}
	}

	return &ResolvedLine{
		ProductID:    p.ID,
		Name:         p.Name,
		UnitPrice:    p.Price,
		Quantity:     qty,
		LineSubtotal: LineSubtotal(p.Price, qty),
	}, nil
}

// LineSubtotal returns unitPrice × qty rounded to 2 places.
func LineSubtotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
