package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/product"
)

// memDB is an in-memory backing store whose Commit applies the same guards
// as the SQL store: every stock decrement and the coupon increment succeed
// together or not at all.
type memDB struct {
	mu       sync.Mutex
	products map[int64]*product.Product
	coupons  map[int64]*coupon.Coupon
	orders   map[uuid.UUID]*Order
	settings map[string]string
	commits  int
	clock    time.Time
}

func newMemDB() *memDB {
	return &memDB{
		products: make(map[int64]*product.Product),
		coupons:  make(map[int64]*coupon.Coupon),
		orders:   make(map[uuid.UUID]*Order),
		settings: make(map[string]string),
		clock:    time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (db *memDB) addProduct(p product.Product) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.products[p.ID] = &p
}

func (db *memDB) addCoupon(c coupon.Coupon) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.coupons[c.ID] = &c
}

func (db *memDB) stock(id int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[id].Stock
}

func (db *memDB) usage(id int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.coupons[id].UsageCount
}

func (db *memDB) orderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders)
}

func (db *memDB) Commit(_ context.Context, o *Order) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.commits++

	// Repeated lines for one product must fit together, as the sequential
	// SQL decrements require.
	requested := make(map[int64]int, len(o.Lines))
	for _, l := range o.Lines {
		requested[l.ProductID] += l.Quantity
		p, ok := db.products[l.ProductID]
		if !ok || !p.Active || p.Stock < requested[l.ProductID] {
			available := 0
			if ok {
				available = p.Stock
			}
			return &product.InsufficientStockError{
				ProductID: l.ProductID,
				Name:      l.ProductName,
				Available: available,
				Requested: l.Quantity,
			}
		}
	}
	if o.CouponID != nil {
		c, ok := db.coupons[*o.CouponID]
		if !ok || (c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit) {
			return ErrCouponExhausted
		}
	}

	for _, l := range o.Lines {
		db.products[l.ProductID].Stock -= l.Quantity
	}
	if o.CouponID != nil {
		db.coupons[*o.CouponID].UsageCount++
	}

	db.clock = db.clock.Add(time.Second)
	stored := *o
	stored.CreatedAt = db.clock
	stored.UpdatedAt = db.clock
	stored.Lines = append([]Line(nil), o.Lines...)
	db.orders[o.ID] = &stored
	return nil
}

func (db *memDB) Get(_ context.Context, id uuid.UUID) (*Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	o, ok := db.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (db *memDB) List(_ context.Context, f ListFilter) ([]Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]Order, 0, len(db.orders))
	for _, o := range db.orders {
		if f.Status != nil && o.FulfillmentStatus != *f.Status {
			continue
		}
		if f.Email != "" && o.Customer.Email != f.Email {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (db *memDB) UpdateStatus(_ context.Context, id uuid.UUID, u StatusUpdate) (*Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	o, ok := db.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if u.Fulfillment != nil {
		o.FulfillmentStatus = *u.Fulfillment
	}
	if u.Payment != nil {
		o.PaymentStatus = *u.Payment
	}
	if u.TrackingCode != nil {
		o.TrackingCode = *u.TrackingCode
	}
	cp := *o
	return &cp, nil
}

func (db *memDB) GetValue(_ context.Context, key string) (string, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	v, ok := db.settings[key]
	return v, ok, nil
}

type memCatalog struct{ db *memDB }

func (c memCatalog) GetActive(_ context.Context, id int64) (*product.Product, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	p, ok := c.db.products[id]
	if !ok || !p.Active {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (c memCatalog) List(context.Context) ([]product.Product, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	out := make([]product.Product, 0, len(c.db.products))
	for _, p := range c.db.products {
		out = append(out, *p)
	}
	return out, nil
}

type memCoupons struct{ db *memDB }

func (c memCoupons) FindByID(_ context.Context, id int64) (*coupon.Coupon, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	cp, ok := c.db.coupons[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	out := *cp
	return &out, nil
}

func (c memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	for _, cp := range c.db.coupons {
		if coupon.NormalizeCode(cp.Code) == coupon.NormalizeCode(code) {
			out := *cp
			return &out, nil
		}
	}
	return nil, coupon.ErrNotFound
}

func (c memCoupons) Create(context.Context, *coupon.Coupon) error { return nil }

func (c memCoupons) List(context.Context) ([]coupon.Coupon, error) { return nil, nil }

func (c memCoupons) Deactivate(context.Context, int64) error { return nil }

// newMemService wires a Service with the real resolver and evaluator over db.
func newMemService(db *memDB, opts Options) *Service {
	return NewService(
		product.NewResolver(memCatalog{db}),
		coupon.NewEvaluator(memCoupons{db}),
		db,
		db,
		opts,
	)
}
