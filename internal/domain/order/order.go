package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentPix        PaymentMethod = "pix"
	PaymentBoleto     PaymentMethod = "boleto"
	PaymentWhatsApp   PaymentMethod = "whatsapp"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentDebitCard, PaymentPix, PaymentBoleto, PaymentWhatsApp:
		return true
	}
	return false
}

// PaymentStatus is recorded only; no gateway is involved.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentDeclined PaymentStatus = "declined"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentApproved, PaymentDeclined, PaymentRefunded:
		return true
	}
	return false
}

// FulfillmentStatus tracks an order from payment to delivery.
type FulfillmentStatus string

const (
	StatusAwaitingPayment FulfillmentStatus = "awaiting_payment"
	StatusConfirmed       FulfillmentStatus = "confirmed"
	StatusPicking         FulfillmentStatus = "picking"
	StatusShipped         FulfillmentStatus = "shipped"
	StatusDelivered       FulfillmentStatus = "delivered"
	StatusCancelled       FulfillmentStatus = "cancelled"
)

// Valid reports whether s is a known fulfillment status.
func (s FulfillmentStatus) Valid() bool {
	switch s {
	case StatusAwaitingPayment, StatusConfirmed, StatusPicking, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Customer holds the buyer's contact details.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Address is the delivery address copied onto the order.
type Address struct {
	PostalCode string
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string
}

// Line is an immutable snapshot of a product at purchase time.
type Line struct {
	ProductID    int64
	ProductName  string
	UnitPrice    decimal.Decimal
	Quantity     int
	LineSubtotal decimal.Decimal
}

// Order is a committed purchase.
type Order struct {
	ID                uuid.UUID
	CouponID          *int64
	Customer          Customer
	Address           Address
	Subtotal          decimal.Decimal
	Discount          decimal.Decimal
	ShippingFee       decimal.Decimal
	Total             decimal.Decimal
	PaymentMethod     PaymentMethod
	PaymentStatus     PaymentStatus
	FulfillmentStatus FulfillmentStatus
	Note              string
	TrackingCode      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Lines             []Line
}

// ListFilter narrows an order listing.
type ListFilter struct {
	Status *FulfillmentStatus
	Email  string
	Limit  int
}

// StatusUpdate holds the administrative fields to change. Nil fields are
// left untouched.
type StatusUpdate struct {
	Fulfillment  *FulfillmentStatus
	Payment      *PaymentStatus
	TrackingCode *string
}

// Empty reports whether the update changes nothing.
func (u StatusUpdate) Empty() bool {
	return u.Fulfillment == nil && u.Payment == nil && u.TrackingCode == nil
}

// Store persists orders.
//
// Commit writes the header and lines, decrements stock for every line and,
// when CouponID is set, consumes one coupon use, all in one transaction. A
// stock guard failure returns *product.InsufficientStockError and a coupon
// guard failure returns ErrCouponExhausted; in both cases nothing is written.
type Store interface {
	Commit(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, u StatusUpdate) (*Order, error)
}
