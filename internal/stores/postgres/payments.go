package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/payments"
)

const paymentColumns = `id, order_id, remote_id, idempotency_key, amount, currency, status, refund_amount,
	confirmation_url, metadata, captured_at, created_at, updated_at`

func (t *tx) InsertPayment(ctx context.Context, p *payments.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode payment metadata: %w", err)
	}
	query := `
		INSERT INTO payments (order_id, remote_id, idempotency_key, amount, currency, status, refund_amount,
			confirmation_url, metadata, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err = t.tx.QueryRowContext(ctx, query,
		p.OrderID, p.RemoteID, p.IdempotencyKey, p.Amount, p.Currency, p.Status, p.RefundAmount,
		p.ConfirmationURL, metadata, p.CapturedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", translate(err, "payment"))
	}
	return nil
}

func (t *tx) UpdatePayment(ctx context.Context, p *payments.Payment) error {
	query := `
		UPDATE payments
		SET status = $2, refund_amount = $3, captured_at = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := t.tx.QueryRowContext(ctx, query, p.ID, p.Status, p.RefundAmount, p.CapturedAt).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("payment")
		}
		return fmt.Errorf("failed to update payment: %w", translate(err, "payment"))
	}
	return nil
}

func (t *tx) LatestPayment(ctx context.Context, orderID int64) (*payments.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY id DESC LIMIT 1`
	return t.optionalPayment(ctx, query, orderID)
}

func (t *tx) FindPaymentByRemoteID(ctx context.Context, remoteID string) (*payments.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE remote_id = $1`
	return t.optionalPayment(ctx, query, remoteID)
}

func (t *tx) LockPaymentByRemoteID(ctx context.Context, remoteID string) (*payments.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE remote_id = $1 FOR UPDATE`
	return t.optionalPayment(ctx, query, remoteID)
}

func (t *tx) LockSucceededPayment(ctx context.Context, orderID int64) (*payments.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE order_id = $1 AND status = 'succeeded'
		ORDER BY id DESC
		LIMIT 1
		FOR UPDATE
	`
	return t.optionalPayment(ctx, query, orderID)
}

func (t *tx) CountPayments(ctx context.Context, orderID int64) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT count(*) FROM payments WHERE order_id = $1`, orderID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return n, nil
}

func (t *tx) optionalPayment(ctx context.Context, query string, arg any) (*payments.Payment, error) {
	p, err := scanPayment(t.tx.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func scanPayment(row scanner) (*payments.Payment, error) {
	var (
		p        payments.Payment
		metadata []byte
		captured sql.NullTime
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.RemoteID, &p.IdempotencyKey, &p.Amount, &p.Currency, &p.Status, &p.RefundAmount,
		&p.ConfirmationURL, &metadata, &captured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode payment metadata: %w", err)
		}
	}
	if captured.Valid {
		p.CapturedAt = &captured.Time
	}
	return &p, nil
}

// refunds

func (t *tx) InsertRefund(ctx context.Context, r *payments.Refund) error {
	query := `
		INSERT INTO refunds (payment_id, remote_id, amount, status, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := t.tx.QueryRowContext(ctx, query, r.PaymentID, r.RemoteID, r.Amount, r.Status, r.Reason).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert refund: %w", translate(err, "refund"))
	}
	return nil
}

func (t *tx) ListRefunds(ctx context.Context, paymentID int64) ([]payments.Refund, error) {
	query := `
		SELECT id, payment_id, remote_id, amount, status, reason, created_at
		FROM refunds
		WHERE payment_id = $1
		ORDER BY id
	`
	rows, err := t.tx.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query refunds: %w", err)
	}
	defer rows.Close()

	var out []payments.Refund
	for rows.Next() {
		var r payments.Refund
		if err := rows.Scan(&r.ID, &r.PaymentID, &r.RemoteID, &r.Amount, &r.Status, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refunds: %w", err)
	}
	return out, nil
}
