// Package inventory implements the per-location stock ledger.
package inventory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"honnylove-backend/internal/apperr"
)

// DefaultLocationID receives all returned stock.
const DefaultLocationID int64 = 1

// Record is the stock of one product at one location.
type Record struct {
	ProductID      int64     `json:"product_id"`
	LocationID     int64     `json:"location_id"`
	LocationName   string    `json:"location_name,omitempty"`
	LocationActive bool      `json:"location_active"`
	Quantity       int       `json:"quantity"`
	MinStock       int       `json:"min_stock"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Allocation is the quantity taken from one location by a decrement.
type Allocation struct {
	LocationID int64 `json:"location_id"`
	Taken      int   `json:"taken"`
}

// Repository is the persistence the ledger needs, scoped to a transaction.
type Repository interface {
	// LockStock returns the product's records at active locations, highest
	// quantity first, locked until the transaction ends.
	LockStock(ctx context.Context, productID int64) ([]Record, error)
	// LockRecord returns the record for one location, or nil when none exists.
	LockRecord(ctx context.Context, productID, locationID int64) (*Record, error)
	SaveRecord(ctx context.Context, rec Record) error
}

// Available sums quantities across the records.
func Available(records []Record) int {
	total := 0
	for _, rec := range records {
		total += rec.Quantity
	}
	return total
}

// Plan allocates qty largest-stock-first across records. It does not modify
// records; the caller applies the allocations.
func Plan(productID int64, records []Record, qty int) ([]Allocation, error) {
	if qty <= 0 {
		return nil, apperr.Newf(apperr.CodeValidation, "quantity must be positive, got %d", qty)
	}
	if avail := Available(records); avail < qty {
		return nil, apperr.InsufficientStock(productID, qty, avail)
	}

	ordered := sortByQuantityDesc(records)
	remaining := qty
	var plan []Allocation
	for _, rec := range ordered {
		if remaining == 0 {
			break
		}
		if rec.Quantity <= 0 {
			continue
		}
		take := min(rec.Quantity, remaining)
		plan = append(plan, Allocation{LocationID: rec.LocationID, Taken: take})
		remaining -= take
	}
	return plan, nil
}

// Decrement reserves qty units of the product, failing before any write when
// stock across active locations is short.
func Decrement(ctx context.Context, repo Repository, productID int64, qty int) ([]Allocation, error) {
	records, err := repo.LockStock(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("lock stock of product %d: %w", productID, err)
	}
	plan, err := Plan(productID, records, qty)
	if err != nil {
		return nil, err
	}

	byLocation := make(map[int64]Record, len(records))
	for _, rec := range records {
		byLocation[rec.LocationID] = rec
	}
	now := time.Now().UTC()
	for _, a := range plan {
		rec := byLocation[a.LocationID]
		rec.Quantity -= a.Taken
		rec.UpdatedAt = now
		if err := repo.SaveRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("save stock of product %d at location %d: %w", productID, a.LocationID, err)
		}
	}
	return plan, nil
}

// Increment returns qty units of the product to the default location.
func Increment(ctx context.Context, repo Repository, productID int64, qty int) error {
	if qty <= 0 {
		return apperr.Newf(apperr.CodeValidation, "quantity must be positive, got %d", qty)
	}
	_, err := applyDelta(ctx, repo, productID, DefaultLocationID, qty)
	return err
}

// Adjust applies a signed delta to one location, starting from zero when the
// product has no record there yet.
func Adjust(ctx context.Context, repo Repository, productID, locationID int64, delta int) (Record, error) {
	return applyDelta(ctx, repo, productID, locationID, delta)
}

func applyDelta(ctx context.Context, repo Repository, productID, locationID int64, delta int) (Record, error) {
	current, err := repo.LockRecord(ctx, productID, locationID)
	if err != nil {
		return Record{}, fmt.Errorf("lock stock of product %d at location %d: %w", productID, locationID, err)
	}
	rec := Record{ProductID: productID, LocationID: locationID}
	if current != nil {
		rec = *current
	}
	next := rec.Quantity + delta
	if next < 0 {
		return Record{}, apperr.InsufficientStock(productID, -delta, rec.Quantity)
	}
	rec.Quantity = next
	rec.UpdatedAt = time.Now().UTC()
	if err := repo.SaveRecord(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("save stock of product %d at location %d: %w", productID, locationID, err)
	}
	return rec, nil
}

func sortByQuantityDesc(records []Record) []Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b Record) int {
		return cmp.Compare(b.Quantity, a.Quantity)
	})
	return out
}
