// Package gateway abstracts the external payment provider.
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"honnylove-backend/internal/payments"
)

type Gateway interface {
	CreatePayment(ctx context.Context, p CreatePaymentParams) (*RemotePayment, error)
	GetPayment(ctx context.Context, remoteID string) (*RemotePayment, error)
	CreateRefund(ctx context.Context, p CreateRefundParams) (*RemoteRefund, error)
}

type CreatePaymentParams struct {
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Metadata       map[string]string
	ReturnURL      string
	IdempotencyKey string
}

type RemotePayment struct {
	ID              string
	Status          payments.Status
	RawStatus       string
	ConfirmationURL string
	Amount          decimal.Decimal
	CapturedAt      *time.Time
}

type CreateRefundParams struct {
	RemotePaymentID string
	Amount          decimal.Decimal
	Currency        string
	Reason          string
	IdempotencyKey  string
}

type RemoteRefund struct {
	ID     string
	Status string
}

// ToMinorUnits converts an amount to the currency's smallest unit (two decimals).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
