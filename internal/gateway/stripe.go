package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"honnylove-backend/internal/payments"
)

// Stripe implements Gateway with Stripe Checkout sessions. The remote payment
// id is the checkout session id.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) (*Stripe, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is not set")
	}
	return &Stripe{api: client.New(secretKey, nil), webhookSecret: webhookSecret}, nil
}

func (s *Stripe) CreatePayment(ctx context.Context, p CreatePaymentParams) (*RemotePayment, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(ToMinorUnits(p.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.ReturnURL),
		CancelURL:  stripe.String(p.ReturnURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: p.Metadata,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeErr("create checkout session", err)
	}
	return sessionToRemote(sess), nil
}

func (s *Stripe) GetPayment(ctx context.Context, remoteID string) (*RemotePayment, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent.latest_charge")

	sess, err := s.api.CheckoutSessions.Get(remoteID, params)
	if err != nil {
		return nil, wrapStripeErr("get checkout session", err)
	}
	return sessionToRemote(sess), nil
}

func (s *Stripe) CreateRefund(ctx context.Context, p CreateRefundParams) (*RemoteRefund, error) {
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx
	getParams.AddExpand("payment_intent")
	sess, err := s.api.CheckoutSessions.Get(p.RemotePaymentID, getParams)
	if err != nil {
		return nil, wrapStripeErr("get checkout session", err)
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return nil, fmt.Errorf("checkout session %s has no payment intent", p.RemotePaymentID)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
		Amount:        stripe.Int64(ToMinorUnits(p.Amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)
	params.AddMetadata("reason", p.Reason)

	r, err := s.api.Refunds.New(params)
	if err != nil {
		return nil, wrapStripeErr("create refund", err)
	}
	return &RemoteRefund{ID: r.ID, Status: string(r.Status)}, nil
}

// VerifyWebhook checks the Stripe-Signature header. Without a configured
// secret every payload is accepted.
func (s *Stripe) VerifyWebhook(payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return nil
	}
	_, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	return err
}

func sessionToRemote(sess *stripe.CheckoutSession) *RemotePayment {
	raw := string(sess.Status)
	status := payments.NormalizeStatus(raw)
	if status == payments.StatusSucceeded && sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		status = payments.StatusPending
	}
	if pi := sess.PaymentIntent; pi != nil && pi.Status == stripe.PaymentIntentStatusRequiresCapture {
		status = payments.StatusWaitingForCapture
	}

	rp := &RemotePayment{
		ID:              sess.ID,
		Status:          status,
		RawStatus:       raw,
		ConfirmationURL: sess.URL,
		Amount:          FromMinorUnits(sess.AmountTotal),
	}
	if pi := sess.PaymentIntent; pi != nil && pi.LatestCharge != nil && pi.LatestCharge.Captured {
		captured := time.Unix(pi.LatestCharge.Created, 0).UTC()
		rp.CapturedAt = &captured
	}
	return rp
}

// wrapStripeErr keeps the gateway's message out of the returned error text;
// the stripe error stays reachable through errors.As.
func wrapStripeErr(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &Error{Op: op, Code: string(se.Code), HTTPStatus: se.HTTPStatusCode, Err: err}
	}
	return &Error{Op: op, Err: err}
}

// Error describes a failed gateway call.
type Error struct {
	Op         string
	Code       string
	HTTPStatus int
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment gateway: %s failed (%s)", e.Op, e.Code)
	}
	return fmt.Sprintf("payment gateway: %s failed", e.Op)
}

func (e *Error) Unwrap() error { return e.Err }
