package commerce

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/inventory"
	"honnylove-backend/internal/store"
	"honnylove-backend/pkg/logging"
	"honnylove-backend/pkg/logkey"
)

type StockLevels struct {
	ProductID int64              `json:"product_id"`
	Records   []inventory.Record `json:"records"`
	Available int                `json:"available"` // sum over active locations
}

func (s *Service) StockLevels(ctx context.Context, productID int64) (*StockLevels, error) {
	levels := &StockLevels{ProductID: productID}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			return err
		}
		records, err := tx.ListStock(ctx, productID)
		if err != nil {
			return err
		}
		levels.Records = records
		levels.Available = inventory.Available(activeRecords(records))
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "stock levels")
	}
	if levels.Records == nil {
		levels.Records = []inventory.Record{}
	}
	return levels, nil
}

// AdjustInventory applies a signed manual correction to one location.
func (s *Service) AdjustInventory(ctx context.Context, actor Actor, productID, locationID int64, delta int, reason string) (_ *inventory.Record, err error) {
	ctx, done := s.begin(ctx, "adjust_inventory",
		attribute.Int64("product.id", productID), attribute.Int64("location.id", locationID), attribute.Int("delta", delta))
	defer done(&err)

	if !actor.Staff {
		return nil, apperr.AccessDenied()
	}
	if delta == 0 {
		return nil, apperr.New(apperr.CodeValidation, "delta must not be zero")
	}
	var rec inventory.Record
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			return err
		}
		ok, err := tx.LocationExists(ctx, locationID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("location")
		}
		rec, err = inventory.Adjust(ctx, tx, productID, locationID, delta)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "adjust inventory")
	}
	logging.FromContext(ctx).Info("inventory adjusted",
		zap.Int64(logkey.ProductID, productID),
		zap.Int64("location_id", locationID),
		zap.Int("delta", delta),
		zap.Int("quantity", rec.Quantity),
		zap.String("reason", strings.TrimSpace(reason)))
	return &rec, nil
}

// LowStock lists records at active locations that are at or below their minimum.
func (s *Service) LowStock(ctx context.Context) ([]inventory.Record, error) {
	var records []inventory.Record
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		records, err = tx.LowStock(ctx)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "low stock")
	}
	if records == nil {
		records = []inventory.Record{}
	}
	return records, nil
}

func activeRecords(records []inventory.Record) []inventory.Record {
	out := make([]inventory.Record, 0, len(records))
	for _, rec := range records {
		if rec.LocationActive {
			out = append(out, rec)
		}
	}
	return out
}
