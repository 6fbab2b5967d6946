package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/product"
)

const orderColumns = `id, coupon_id, customer_name, customer_email, customer_phone,
	postal_code, street, number, complement, district, city, state,
	subtotal, discount, shipping_fee, total,
	payment_method, payment_status, fulfillment_status, note, tracking_code,
	created_at, updated_at`

const (
	insertOrderSQL = `INSERT INTO orders (
		id, coupon_id, customer_name, customer_email, customer_phone,
		postal_code, street, number, complement, district, city, state,
		subtotal, discount, shipping_fee, total,
		payment_method, payment_status, fulfillment_status, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at, updated_at`

	insertOrderLineSQL = `INSERT INTO order_lines
		(order_id, product_id, product_name, unit_price, quantity, line_subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`

	decrementStockSQL = `UPDATE products SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND active = TRUE AND stock >= $1`

	currentStockSQL = `SELECT stock FROM products WHERE id = $1`

	consumeCouponSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderLinesSQL = `SELECT product_id, product_name, unit_price, quantity, line_subtotal
		FROM order_lines WHERE order_id = $1 ORDER BY id`

	updateOrderStatusSQL = `UPDATE orders SET
		fulfillment_status = COALESCE($2, fulfillment_status),
		payment_status = COALESCE($3, payment_status),
		tracking_code = COALESCE($4, tracking_code),
		updated_at = NOW()
		WHERE id = $1
		RETURNING ` + orderColumns
)

var _ order.Store = (*OrderRepository)(nil)

// OrderRepository implements order.Store backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Commit persists the order with its lines, decrements stock and consumes a
// coupon use in a single transaction. Guard failures roll everything back.
func (r *OrderRepository) Commit(ctx context.Context, o *order.Order) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertOrderSQL,
			o.ID, o.CouponID,
			o.Customer.Name, o.Customer.Email, o.Customer.Phone,
			o.Address.PostalCode, o.Address.Street, o.Address.Number, o.Address.Complement,
			o.Address.District, o.Address.City, o.Address.State,
			o.Subtotal, o.Discount, o.ShippingFee, o.Total,
			string(o.PaymentMethod), string(o.PaymentStatus), string(o.FulfillmentStatus), o.Note,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting order %s: %w", o.ID, err)
		}

		batch := &pgx.Batch{}
		for _, l := range o.Lines {
			batch.Queue(insertOrderLineSQL, o.ID, l.ProductID, l.ProductName, l.UnitPrice, l.Quantity, l.LineSubtotal)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting lines of order %s: %w", o.ID, err)
		}

		// Lock product rows in id order so concurrent commits cannot deadlock.
		lines := append([]order.Line(nil), o.Lines...)
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
		for _, l := range lines {
			tag, err := tx.Exec(ctx, decrementStockSQL, l.Quantity, l.ProductID)
			if err != nil {
				return fmt.Errorf("decrementing stock of product %d: %w", l.ProductID, err)
			}
			if tag.RowsAffected() == 0 {
				return stockConflict(ctx, tx, l)
			}
		}

		if o.CouponID != nil {
			tag, err := tx.Exec(ctx, consumeCouponSQL, *o.CouponID)
			if err != nil {
				return fmt.Errorf("consuming coupon %d: %w", *o.CouponID, err)
			}
			if tag.RowsAffected() == 0 {
				return order.ErrCouponExhausted
			}
		}
		return nil
	})
}

func stockConflict(ctx context.Context, tx pgx.Tx, l order.Line) error {
	var available int
	if err := tx.QueryRow(ctx, currentStockSQL, l.ProductID).Scan(&available); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("reading stock of product %d: %w", l.ProductID, err)
	}
	return &product.InsufficientStockError{
		ProductID: l.ProductID,
		Name:      l.ProductName,
		Available: available,
		Requested: l.Quantity,
	}
}

// Get returns an order with its lines.
func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %s: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %s: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, getOrderLinesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %s: %w", id, err)
	}
	o.Lines, err = pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %s: %w", id, err)
	}
	return &o, nil
}

// List returns order headers, newest first. Lines are not loaded.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("fulfillment_status = $%d", len(args)))
	}
	if f.Email != "" {
		args = append(args, f.Email)
		where = append(where, fmt.Sprintf("LOWER(customer_email) = LOWER($%d)", len(args)))
	}
	args = append(args, f.Limit)

	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, " ORDER BY created_at DESC, id LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus applies the non-nil fields of u and returns the updated header.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, u order.StatusUpdate) (*order.Order, error) {
	var fulfillment, payment *string
	if u.Fulfillment != nil {
		s := string(*u.Fulfillment)
		fulfillment = &s
	}
	if u.Payment != nil {
		s := string(*u.Payment)
		payment = &s
	}

	rows, err := r.pool.Query(ctx, updateOrderStatusSQL, id, fulfillment, payment, u.TrackingCode)
	if err != nil {
		return nil, fmt.Errorf("updating order %s: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("updating order %s: %w", id, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                            order.Order
		method, payment, fulfillment string
	)
	err := row.Scan(
		&o.ID, &o.CouponID,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Address.PostalCode, &o.Address.Street, &o.Address.Number, &o.Address.Complement,
		&o.Address.District, &o.Address.City, &o.Address.State,
		&o.Subtotal, &o.Discount, &o.ShippingFee, &o.Total,
		&method, &payment, &fulfillment, &o.Note, &o.TrackingCode,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentStatus = order.PaymentStatus(payment)
	o.FulfillmentStatus = order.FulfillmentStatus(fulfillment)
	return o, err
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l         order.Line
		productID *int64
	)
	err := row.Scan(&productID, &l.ProductName, &l.UnitPrice, &l.Quantity, &l.LineSubtotal)
	if productID != nil {
		l.ProductID = *productID
	}
	return l, err
}
