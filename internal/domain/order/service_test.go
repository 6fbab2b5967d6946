package order

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"got %s, want %s", got, want}, msgAndArgs...)...)
}

func validCustomer() Customer {
	return Customer{Name: "Ana Souza", Email: "ana@example.com", Phone: "11 99999-0000"}
}

func seededDB() *memDB {
	db := newMemDB()
	db.addProduct(product.Product{ID: 1, Name: "Caixa de Bombons", Price: dec("89.90"), Stock: 10, Active: true})
	db.addProduct(product.Product{ID: 2, Name: "Trufa", Price: dec("12.50"), Stock: 100, Active: true})
	db.addProduct(product.Product{ID: 3, Name: "Fora de linha", Price: dec("5.00"), Stock: 10, Active: false})
	db.addProduct(product.Product{ID: 4, Name: "Barra 70%", Price: dec("25.00"), Stock: 40, Active: true})
	return db
}

func tenPercent(id int64) coupon.Coupon {
	return coupon.Coupon{
		ID:           id,
		Code:         "BEM-VINDO10",
		Kind:         coupon.KindPercentage,
		Value:        dec("10"),
		MinimumOrder: ptr(dec("50.00")),
		UsageLimit:   ptr(1000),
		Active:       true,
	}
}

// --- Stubs ---

type stubResolver struct {
	line *product.ResolvedLine
	err  error
}

func (s stubResolver) Resolve(_ context.Context, id int64, qty int) (*product.ResolvedLine, error) {
	if s.err != nil {
		return nil, s.err
	}
	l := *s.line
	l.ProductID = id
	l.Quantity = qty
	l.LineSubtotal = product.LineSubtotal(l.UnitPrice, qty)
	return &l, nil
}

type stubEvaluator struct {
	ev  *coupon.Evaluation
	err error
}

func (s stubEvaluator) Evaluate(context.Context, coupon.Ref, decimal.Decimal) (*coupon.Evaluation, error) {
	return s.ev, s.err
}

type failingStore struct {
	*memDB
	commitErr error
	block     bool
}

func (s *failingStore) Commit(ctx context.Context, o *Order) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.commitErr != nil {
		return s.commitErr
	}
	return s.memDB.Commit(ctx, o)
}

// --- Tests ---

func TestService_Checkout_WorkedExamples(t *testing.T) {
	t.Run("free shipping above threshold without coupon", func(t *testing.T) {
		db := seededDB()
		svc := newMemService(db, Options{})

		res, err := svc.Checkout(context.Background(), CheckoutRequest{
			Lines:    []CartLine{{ProductID: 1, Quantity: 2}},
			Customer: validCustomer(),
		})
		require.NoError(t, err)

		assertDecimal(t, "179.80", res.Subtotal)
		assertDecimal(t, "0", res.Discount)
		assertDecimal(t, "0", res.ShippingFee)
		assertDecimal(t, "179.80", res.Total)
		assert.Nil(t, res.CouponID)
		assert.Equal(t, 8, db.stock(1))
	})

	t.Run("percentage coupon with flat shipping", func(t *testing.T) {
		db := seededDB()
		db.addCoupon(tenPercent(5))
		svc := newMemService(db, Options{})

		res, err := svc.Checkout(context.Background(), CheckoutRequest{
			Lines:    []CartLine{{ProductID: 4, Quantity: 4}},
			Customer: validCustomer(),
			CouponID: ptr(int64(5)),
		})
		require.NoError(t, err)

		assertDecimal(t, "100.00", res.Subtotal)
		assertDecimal(t, "10.00", res.Discount)
		assertDecimal(t, "15.00", res.ShippingFee)
		assertDecimal(t, "105.00", res.Total)
		require.NotNil(t, res.CouponID)
		assert.Equal(t, int64(5), *res.CouponID)
		assert.Equal(t, 1, db.usage(5))
	})
}

func TestService_Checkout_PersistsSnapshot(t *testing.T) {
	db := seededDB()
	svc := newMemService(db, Options{})

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines: []CartLine{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 3},
		},
		Customer:      Customer{Name: "  Ana  ", Email: " ana@example.com "},
		Address:       Address{PostalCode: "01001-000", City: "São Paulo", State: "SP"},
		PaymentMethod: "PIX",
		Note:          "gift wrap",
	})
	require.NoError(t, err)

	o, err := svc.Get(context.Background(), res.OrderID)
	require.NoError(t, err)

	assert.Equal(t, "Ana", o.Customer.Name)
	assert.Equal(t, "ana@example.com", o.Customer.Email)
	assert.Equal(t, "São Paulo", o.Address.City)
	assert.Equal(t, PaymentPix, o.PaymentMethod)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, StatusAwaitingPayment, o.FulfillmentStatus)
	assert.Equal(t, "gift wrap", o.Note)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "Caixa de Bombons", o.Lines[0].ProductName)
	assertDecimal(t, "89.90", o.Lines[0].UnitPrice)
	assertDecimal(t, "37.50", o.Lines[1].LineSubtotal)
	assertDecimal(t, "127.40", o.Subtotal)
	assertDecimal(t, "142.40", o.Total)

	// Later catalog price changes do not alter the snapshot.
	db.addProduct(product.Product{ID: 1, Name: "Caixa de Bombons", Price: dec("99.90"), Stock: 9, Active: true})
	o, err = svc.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	assertDecimal(t, "89.90", o.Lines[0].UnitPrice)
}

func TestService_Checkout_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     CheckoutRequest
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "empty cart",
			req:  CheckoutRequest{Customer: validCustomer()},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyCart)
			},
		},
		{
			name: "missing name",
			req: CheckoutRequest{
				Lines:    []CartLine{{ProductID: 1, Quantity: 1}},
				Customer: Customer{Name: "   ", Email: "a@b.c"},
			},
			wantErr: func(t *testing.T, err error) {
				var ce *IncompleteCustomerError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "name", ce.Field)
			},
		},
		{
			name: "missing email",
			req: CheckoutRequest{
				Lines:    []CartLine{{ProductID: 1, Quantity: 1}},
				Customer: Customer{Name: "Ana"},
			},
			wantErr: func(t *testing.T, err error) {
				var ce *IncompleteCustomerError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "email", ce.Field)
			},
		},
		{
			name: "unknown payment method",
			req: CheckoutRequest{
				Lines:         []CartLine{{ProductID: 1, Quantity: 1}},
				Customer:      validCustomer(),
				PaymentMethod: "bitcoin",
			},
			wantErr: func(t *testing.T, err error) {
				var pe *InvalidPaymentMethodError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, "bitcoin", pe.Method)
			},
		},
		{
			name: "state longer than two characters",
			req: CheckoutRequest{
				Lines:    []CartLine{{ProductID: 1, Quantity: 1}},
				Customer: validCustomer(),
				Address:  Address{Street: "Rua A", State: "São Paulo"},
			},
			wantErr: func(t *testing.T, err error) {
				var fe *FieldTooLongError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, "state", fe.Field)
				assert.Equal(t, 2, fe.Max)
				assert.Equal(t, ClassValidation, ClassOf(err))
			},
		},
		{
			name: "postal code too long",
			req: CheckoutRequest{
				Lines:    []CartLine{{ProductID: 1, Quantity: 1}},
				Customer: validCustomer(),
				Address:  Address{PostalCode: "01000-000-1"},
			},
			wantErr: func(t *testing.T, err error) {
				var fe *FieldTooLongError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, "postal_code", fe.Field)
			},
		},
		{
			name: "customer name too long",
			req: CheckoutRequest{
				Lines:    []CartLine{{ProductID: 1, Quantity: 1}},
				Customer: Customer{Name: strings.Repeat("a", 161), Email: "a@b.c"},
			},
			wantErr: func(t *testing.T, err error) {
				var fe *FieldTooLongError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, "name", fe.Field)
				assert.Equal(t, 160, fe.Max)
			},
		},
		{
			name: "phone too long",
			req: CheckoutRequest{
				Lines:    []CartLine{{ProductID: 1, Quantity: 1}},
				Customer: Customer{Name: "Ana", Email: "a@b.c", Phone: strings.Repeat("9", 21)},
			},
			wantErr: func(t *testing.T, err error) {
				var fe *FieldTooLongError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, "phone", fe.Field)
			},
		},
		{
			name: "zero quantity",
			req: CheckoutRequest{
				Lines:    []CartLine{{ProductID: 1, Quantity: 0}},
				Customer: validCustomer(),
			},
			wantErr: func(t *testing.T, err error) {
				var qe *product.InvalidQuantityError
				require.ErrorAs(t, err, &qe)
			},
		},
		{
			name: "unknown product",
			req: CheckoutRequest{
				Lines:    []CartLine{{ProductID: 1, Quantity: 1}, {ProductID: 404, Quantity: 1}},
				Customer: validCustomer(),
			},
			wantErr: func(t *testing.T, err error) {
				var nf *product.ProductNotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, int64(404), nf.ProductID)
				assert.Equal(t, ClassNotFound, ClassOf(err))
			},
		},
		{
			name: "inactive product",
			req: CheckoutRequest{
				Lines:    []CartLine{{ProductID: 3, Quantity: 1}},
				Customer: validCustomer(),
			},
			wantErr: func(t *testing.T, err error) {
				var nf *product.ProductNotFoundError
				require.ErrorAs(t, err, &nf)
			},
		},
		{
			name: "insufficient stock",
			req: CheckoutRequest{
				Lines:    []CartLine{{ProductID: 1, Quantity: 11}},
				Customer: validCustomer(),
			},
			wantErr: func(t *testing.T, err error) {
				var se *product.InsufficientStockError
				require.ErrorAs(t, err, &se)
				assert.Contains(t, err.Error(), "Caixa de Bombons")
				assert.Equal(t, ClassConflict, ClassOf(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := seededDB()
			svc := newMemService(db, Options{})

			res, err := svc.Checkout(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			tt.wantErr(t, err)

			assert.Zero(t, db.commits, "nothing may reach the store")
			assert.Equal(t, 10, db.stock(1))
		})
	}
}

func TestService_Checkout_LengthsCountCharacters(t *testing.T) {
	db := seededDB()
	svc := newMemService(db, Options{})

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 2, Quantity: 1}},
		Customer: Customer{Name: strings.Repeat("é", 160), Email: "ana@example.com"},
		Address:  Address{City: "São Paulo", State: " SP "},
	})
	require.NoError(t, err)

	o, err := svc.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "SP", o.Address.State)
	assert.Equal(t, "São Paulo", o.Address.City)
}

func TestService_Checkout_RepeatedProductLines(t *testing.T) {
	db := seededDB()
	db.addProduct(product.Product{ID: 9, Name: "Última unidade", Price: dec("30.00"), Stock: 1, Active: true})
	svc := newMemService(db, Options{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 9, Quantity: 1}, {ProductID: 9, Quantity: 1}},
		Customer: validCustomer(),
	})
	var se *product.InsufficientStockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(9), se.ProductID)
	assert.Equal(t, 1, db.stock(9))
	assert.Zero(t, db.orderCount())

	db.addProduct(product.Product{ID: 10, Name: "Duas unidades", Price: dec("30.00"), Stock: 2, Active: true})
	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 10, Quantity: 1}, {ProductID: 10, Quantity: 1}},
		Customer: validCustomer(),
	})
	require.NoError(t, err)
	assertDecimal(t, "60.00", res.Subtotal)
	assert.Equal(t, 0, db.stock(10))
}

func TestService_Checkout_ZeroShippingConfig(t *testing.T) {
	db := seededDB()
	free := shipping.Config{FlatRate: decimal.Zero, FreeThreshold: decimal.Zero}
	svc := newMemService(db, Options{Shipping: &free})

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 2, Quantity: 1}},
		Customer: validCustomer(),
	})
	require.NoError(t, err)
	assertDecimal(t, "0", res.ShippingFee)
	assertDecimal(t, "12.50", res.Total)
}

func TestService_Checkout_DefaultPaymentMethod(t *testing.T) {
	db := seededDB()
	svc := newMemService(db, Options{})

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 2, Quantity: 1}},
		Customer: validCustomer(),
	})
	require.NoError(t, err)

	o, err := svc.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, PaymentWhatsApp, o.PaymentMethod)
}

func TestService_Checkout_CouponDegradesToZeroDiscount(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)

	tests := []struct {
		name   string
		coupon coupon.Coupon
	}{
		{
			name: "inactive",
			coupon: func() coupon.Coupon {
				c := tenPercent(9)
				c.Active = false
				return c
			}(),
		},
		{
			name: "expired",
			coupon: func() coupon.Coupon {
				c := tenPercent(9)
				c.ValidUntil = &past
				return c
			}(),
		},
		{
			name: "usage cap reached",
			coupon: func() coupon.Coupon {
				c := tenPercent(9)
				c.UsageLimit = ptr(2)
				c.UsageCount = 2
				return c
			}(),
		},
		{
			name: "below minimum",
			coupon: func() coupon.Coupon {
				c := tenPercent(9)
				c.MinimumOrder = ptr(dec("500.00"))
				return c
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := seededDB()
			db.addCoupon(tt.coupon)
			usageBefore := db.usage(9)
			svc := newMemService(db, Options{})

			res, err := svc.Checkout(context.Background(), CheckoutRequest{
				Lines:    []CartLine{{ProductID: 4, Quantity: 4}},
				Customer: validCustomer(),
				CouponID: ptr(int64(9)),
			})
			require.NoError(t, err)

			assertDecimal(t, "0", res.Discount)
			assertDecimal(t, "115.00", res.Total)
			assert.Nil(t, res.CouponID)
			assert.Equal(t, usageBefore, db.usage(9))
		})
	}

	t.Run("unknown coupon id", func(t *testing.T) {
		db := seededDB()
		svc := newMemService(db, Options{})

		res, err := svc.Checkout(context.Background(), CheckoutRequest{
			Lines:    []CartLine{{ProductID: 4, Quantity: 4}},
			Customer: validCustomer(),
			CouponID: ptr(int64(12345)),
		})
		require.NoError(t, err)
		assertDecimal(t, "0", res.Discount)
		assert.Nil(t, res.CouponID)
	})
}

func TestService_Checkout_CouponInfrastructureFailure(t *testing.T) {
	db := seededDB()
	boom := errors.New("coupon table locked")
	svc := NewService(product.NewResolver(memCatalog{db}), stubEvaluator{err: boom}, db, db, Options{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 4, Quantity: 4}},
		Customer: validCustomer(),
		CouponID: ptr(int64(1)),
	})

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, ClassServer, ClassOf(err))
	assert.Zero(t, db.commits)
}

func TestService_Checkout_CouponExhaustedAtCommit(t *testing.T) {
	db := seededDB()
	c := tenPercent(3)
	c.UsageLimit = ptr(1)
	c.UsageCount = 1
	db.addCoupon(c)

	// The evaluator saw the coupon before a concurrent order consumed it.
	stale := c
	stale.UsageCount = 0
	ev := stubEvaluator{ev: &coupon.Evaluation{Coupon: &stale, Discount: dec("10.00")}}
	svc := NewService(product.NewResolver(memCatalog{db}), ev, db, db, Options{})

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 4, Quantity: 4}},
		Customer: validCustomer(),
		CouponID: ptr(int64(3)),
	})
	require.NoError(t, err)

	assert.Nil(t, res.CouponID)
	assertDecimal(t, "0", res.Discount)
	assertDecimal(t, "115.00", res.Total)
	assert.Equal(t, 2, db.commits)
	assert.Equal(t, 1, db.usage(3))
	assert.Equal(t, 1, db.orderCount())
	assert.Equal(t, 36, db.stock(4))
}

func TestService_Checkout_StockConflictAtCommit(t *testing.T) {
	db := seededDB()
	db.addProduct(product.Product{ID: 7, Name: "Última unidade", Price: dec("30.00"), Stock: 0, Active: true})
	db.addCoupon(tenPercent(1))

	// The resolver saw stock before a concurrent order took it.
	resolver := stubResolver{line: &product.ResolvedLine{Name: "Última unidade", UnitPrice: dec("30.00")}}
	svc := NewService(resolver, coupon.NewEvaluator(memCoupons{db}), db, db, Options{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 7, Quantity: 2}},
		Customer: validCustomer(),
		CouponID: ptr(int64(1)),
	})

	var se *product.InsufficientStockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(7), se.ProductID)
	assert.Equal(t, ClassConflict, ClassOf(err))
	assert.Zero(t, db.orderCount())
	assert.Zero(t, db.usage(1))
}

func TestService_Checkout_CommitFailure(t *testing.T) {
	db := seededDB()
	boom := errors.New("connection reset by peer")
	store := &failingStore{memDB: db, commitErr: boom}
	svc := NewService(product.NewResolver(memCatalog{db}), coupon.NewEvaluator(memCoupons{db}), db, store, Options{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 1, Quantity: 1}},
		Customer: validCustomer(),
	})

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "commit order", pe.Op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 10, db.stock(1))
}

func TestService_Checkout_IgnoresCallerCancellation(t *testing.T) {
	db := seededDB()
	svc := newMemService(db, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Checkout(ctx, CheckoutRequest{
		Lines:    []CartLine{{ProductID: 2, Quantity: 2}},
		Customer: validCustomer(),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, res.OrderID)
	assert.Equal(t, 98, db.stock(2))
}

func TestService_Checkout_Timeout(t *testing.T) {
	db := seededDB()
	store := &failingStore{memDB: db, block: true}
	svc := NewService(
		product.NewResolver(memCatalog{db}),
		coupon.NewEvaluator(memCoupons{db}),
		db,
		store,
		Options{Timeout: 20 * time.Millisecond},
	)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 2, Quantity: 1}},
		Customer: validCustomer(),
	})

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_Checkout_ShippingFromSettings(t *testing.T) {
	db := seededDB()
	db.settings[shipping.KeyFlatRate] = "9.90"
	db.settings[shipping.KeyFreeThreshold] = "100.00"
	svc := newMemService(db, Options{})

	below, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 4, Quantity: 3}},
		Customer: validCustomer(),
	})
	require.NoError(t, err)
	assertDecimal(t, "9.90", below.ShippingFee)
	assertDecimal(t, "84.90", below.Total)

	at, err := svc.Checkout(context.Background(), CheckoutRequest{
		Lines:    []CartLine{{ProductID: 4, Quantity: 4}},
		Customer: validCustomer(),
	})
	require.NoError(t, err)
	assertDecimal(t, "0", at.ShippingFee)
}

func TestService_Checkout_TotalsInvariant(t *testing.T) {
	db := newMemDB()
	prices := []string{"0.01", "0.99", "3.33", "12.49", "49.95", "74.99", "149.99", "150.00"}
	for i, p := range prices {
		db.addProduct(product.Product{ID: int64(i + 1), Name: p, Price: dec(p), Stock: 1_000, Active: true})
	}
	db.addCoupon(coupon.Coupon{ID: 1, Code: "PCT", Kind: coupon.KindPercentage, Value: dec("12.5"), Active: true})
	db.addCoupon(coupon.Coupon{ID: 2, Code: "FIX", Kind: coupon.KindFixed, Value: dec("40.00"), Active: true})
	svc := newMemService(db, Options{})
	cfg := shipping.DefaultConfig()

	for i := range prices {
		for qty := 1; qty <= 3; qty++ {
			for _, couponID := range []*int64{nil, ptr(int64(1)), ptr(int64(2))} {
				res, err := svc.Checkout(context.Background(), CheckoutRequest{
					Lines:    []CartLine{{ProductID: int64(i + 1), Quantity: qty}, {ProductID: 1, Quantity: 1}},
					Customer: validCustomer(),
					CouponID: couponID,
				})
				require.NoError(t, err)

				post := res.Subtotal.Sub(res.Discount)
				assert.True(t, res.Discount.LessThanOrEqual(res.Subtotal))
				assert.True(t, res.Total.Equal(post.Add(res.ShippingFee).Round(2)))
				assert.True(t, res.ShippingFee.Equal(cfg.Calculate(post)))
				assert.True(t, res.Total.Equal(res.Total.Round(2)))
			}
		}
	}
}

func TestService_Get(t *testing.T) {
	db := seededDB()
	svc := newMemService(db, Options{})

	_, err := svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, ClassNotFound, ClassOf(err))
}

func TestService_List(t *testing.T) {
	db := seededDB()
	svc := newMemService(db, Options{})
	ctx := context.Background()

	var ids []uuid.UUID
	for i := range 3 {
		email := "ana@example.com"
		if i == 1 {
			email = "bia@example.com"
		}
		res, err := svc.Checkout(ctx, CheckoutRequest{
			Lines:    []CartLine{{ProductID: 2, Quantity: 1}},
			Customer: Customer{Name: "Cliente", Email: email},
		})
		require.NoError(t, err)
		ids = append(ids, res.OrderID)
	}

	all, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")

	limited, err := svc.List(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	byEmail, err := svc.List(ctx, ListFilter{Email: " bia@example.com "})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, ids[1], byEmail[0].ID)

	_, err = svc.UpdateStatus(ctx, ids[0], StatusUpdate{Fulfillment: ptr(StatusShipped)})
	require.NoError(t, err)
	shipped, err := svc.List(ctx, ListFilter{Status: ptr(StatusShipped)})
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, ids[0], shipped[0].ID)

	_, err = svc.List(ctx, ListFilter{Status: ptr(FulfillmentStatus("lost"))})
	var se *InvalidStatusError
	require.ErrorAs(t, err, &se)
}

func TestService_UpdateStatus(t *testing.T) {
	db := seededDB()
	db.addCoupon(tenPercent(1))
	svc := newMemService(db, Options{})
	ctx := context.Background()

	res, err := svc.Checkout(ctx, CheckoutRequest{
		Lines:    []CartLine{{ProductID: 4, Quantity: 4}},
		Customer: validCustomer(),
		CouponID: ptr(int64(1)),
	})
	require.NoError(t, err)

	t.Run("empty update rejected", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{})
		require.ErrorIs(t, err, ErrEmptyUpdate)
		assert.Equal(t, ClassValidation, ClassOf(err))
	})

	t.Run("unknown values rejected", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{Fulfillment: ptr(FulfillmentStatus("teleported"))})
		var se *InvalidStatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "status", se.Field)

		_, err = svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{Payment: ptr(PaymentStatus("maybe"))})
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "payment_status", se.Field)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, uuid.New(), StatusUpdate{Payment: ptr(PaymentApproved)})
		require.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("cancellation keeps totals and coupon usage", func(t *testing.T) {
		o, err := svc.UpdateStatus(ctx, res.OrderID, StatusUpdate{
			Fulfillment:  ptr(StatusCancelled),
			Payment:      ptr(PaymentRefunded),
			TrackingCode: ptr("  BR123456789  "),
		})
		require.NoError(t, err)

		assert.Equal(t, StatusCancelled, o.FulfillmentStatus)
		assert.Equal(t, PaymentRefunded, o.PaymentStatus)
		assert.Equal(t, "BR123456789", o.TrackingCode)
		assertDecimal(t, "105.00", o.Total)
		assert.Equal(t, 1, db.usage(1))
	})
}
