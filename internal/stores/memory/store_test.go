package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"honnylove-backend/internal/inventory"
	"honnylove-backend/internal/products"
	"honnylove-backend/internal/store"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	var productID int64
	err := s.WithTx(ctx, func(tx store.Tx) error {
		p := &products.Product{Name: "Lavender honey", Price: decimal.NewFromInt(500), Active: true}
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		productID = p.ID
		_, err := inventory.Adjust(ctx, tx, p.ID, inventory.DefaultLocationID, 5)
		return err
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx store.Tx) error {
		if _, err := inventory.Decrement(ctx, tx, productID, 4); err != nil {
			return err
		}
		if err := tx.SetCartItem(ctx, 1, productID, 2); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got: %v", err)
	}

	_ = s.WithTx(ctx, func(tx store.Tx) error {
		recs, _ := tx.LockStock(ctx, productID)
		if inventory.Available(recs) != 5 {
			t.Errorf("Expected stock 5 after rollback, got %d", inventory.Available(recs))
		}
		lines, _ := tx.CartLines(ctx, 1)
		if len(lines) != 0 {
			t.Errorf("Expected empty cart after rollback, got %+v", lines)
		}
		return nil
	})
}

func TestLockStockSkipsInactiveLocations(t *testing.T) {
	s := New()
	s.PutLocation(Location{ID: 2, Name: "closed", Active: false})
	s.PutLocation(Location{ID: 3, Name: "north", Active: true})
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		p := &products.Product{Name: "Comb honey", Price: decimal.NewFromInt(100), Active: true}
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		for loc, qty := range map[int64]int{1: 1, 2: 50, 3: 4} {
			if _, err := inventory.Adjust(ctx, tx, p.ID, loc, qty); err != nil {
				return err
			}
		}
		recs, err := tx.LockStock(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(recs) != 2 || recs[0].LocationID != 3 || inventory.Available(recs) != 5 {
			t.Errorf("Expected active locations 3 then 1 with 5 units, got %+v", recs)
		}
		all, _ := tx.ListStock(ctx, p.ID)
		if len(all) != 3 {
			t.Errorf("Expected 3 records in full listing, got %d", len(all))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

func TestSaveRecordUnknownLocation(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx store.Tx) error {
		p := &products.Product{Name: "Propolis", Price: decimal.NewFromInt(100), Active: true}
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		_, err := inventory.Adjust(ctx, tx, p.ID, 99, 1)
		return err
	})
	if err == nil {
		t.Fatal("Expected error for unknown location")
	}
}
