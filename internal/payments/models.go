package payments

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusWaitingForCapture Status = "waiting_for_capture"
	StatusSucceeded         Status = "succeeded"
	StatusCanceled          Status = "canceled"
)

// Payment mirrors one gateway transaction for an order.
type Payment struct {
	ID              int64             `json:"id"`
	OrderID         int64             `json:"order_id"`
	RemoteID        string            `json:"remote_id"`        // Gateway transaction id
	IdempotencyKey  string            `json:"-"`                // Sent with the create call
	Amount          decimal.Decimal   `json:"amount"`           // Amount charged
	Currency        string            `json:"currency"`         // ISO code, lowercase
	Status          Status            `json:"status"`           // pending, succeeded, canceled, waiting_for_capture
	RefundAmount    decimal.Decimal   `json:"refund_amount"`    // Cumulative refunded amount
	ConfirmationURL string            `json:"confirmation_url"` // Where the customer completes payment
	Metadata        map[string]string `json:"metadata"`
	CapturedAt      *time.Time        `json:"captured_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Refundable is what can still be refunded on the payment.
func (p Payment) Refundable() decimal.Decimal {
	left := p.Amount.Sub(p.RefundAmount)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// Refund is one gateway refund against a payment.
type Refund struct {
	ID        int64           `json:"id"`
	PaymentID int64           `json:"payment_id"`
	RemoteID  string          `json:"remote_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

type Repository interface {
	InsertPayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p *Payment) error
	// LatestPayment returns the most recent payment of the order, or nil.
	LatestPayment(ctx context.Context, orderID int64) (*Payment, error)
	// FindPaymentByRemoteID reads without locking and returns nil when absent.
	FindPaymentByRemoteID(ctx context.Context, remoteID string) (*Payment, error)
	// LockPaymentByRemoteID returns nil when no payment has the remote id.
	LockPaymentByRemoteID(ctx context.Context, remoteID string) (*Payment, error)
	// LockSucceededPayment returns the order's succeeded payment, or nil.
	LockSucceededPayment(ctx context.Context, orderID int64) (*Payment, error)
	CountPayments(ctx context.Context, orderID int64) (int, error)

	InsertRefund(ctx context.Context, r *Refund) error
	ListRefunds(ctx context.Context, paymentID int64) ([]Refund, error)
}
