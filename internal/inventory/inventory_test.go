package inventory

import (
	"context"
	"testing"

	"honnylove-backend/internal/apperr"
)

type fakeRepo struct {
	records map[int64]Record // by location
	saves   int
}

func newFakeRepo(qty map[int64]int) *fakeRepo {
	r := &fakeRepo{records: map[int64]Record{}}
	for loc, q := range qty {
		r.records[loc] = Record{ProductID: 1, LocationID: loc, Quantity: q, LocationActive: true}
	}
	return r
}

func (r *fakeRepo) LockStock(_ context.Context, _ int64) ([]Record, error) {
	var out []Record
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return sortByQuantityDesc(out), nil
}

func (r *fakeRepo) LockRecord(_ context.Context, _ int64, locationID int64) (*Record, error) {
	rec, ok := r.records[locationID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *fakeRepo) SaveRecord(_ context.Context, rec Record) error {
	r.saves++
	r.records[rec.LocationID] = rec
	return nil
}

func TestPlanLargestFirst(t *testing.T) {
	records := []Record{
		{LocationID: 1, Quantity: 2},
		{LocationID: 2, Quantity: 10},
		{LocationID: 3, Quantity: 5},
	}
	plan, err := Plan(1, records, 13)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	want := []Allocation{{LocationID: 2, Taken: 10}, {LocationID: 3, Taken: 3}}
	if len(plan) != len(want) {
		t.Fatalf("Expected %d allocations, got %d: %+v", len(want), len(plan), plan)
	}
	for i := range want {
		if plan[i] != want[i] {
			t.Errorf("Allocation %d: expected %+v, got %+v", i, want[i], plan[i])
		}
	}
}

func TestPlanInsufficient(t *testing.T) {
	_, err := Plan(9, []Record{{LocationID: 1, Quantity: 2}, {LocationID: 2, Quantity: 1}}, 4)
	coded, ok := apperr.As(err)
	if !ok || coded.Code != apperr.CodeInsufficientStock {
		t.Fatalf("Expected insufficient stock error, got: %v", err)
	}
	if coded.Details["shortfall"] != 1 {
		t.Errorf("Expected shortfall 1, got %v", coded.Details["shortfall"])
	}
}

func TestDecrementFailsWithoutWrites(t *testing.T) {
	repo := newFakeRepo(map[int64]int{1: 1, 2: 1})
	if _, err := Decrement(context.Background(), repo, 1, 3); !apperr.Is(err, apperr.CodeInsufficientStock) {
		t.Fatalf("Expected insufficient stock error, got: %v", err)
	}
	if repo.saves != 0 {
		t.Errorf("Expected no writes, got %d", repo.saves)
	}
}

func TestDecrementDrainsLocations(t *testing.T) {
	repo := newFakeRepo(map[int64]int{1: 3, 2: 4})
	plan, err := Decrement(context.Background(), repo, 1, 6)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("Expected 2 allocations, got %+v", plan)
	}
	if repo.records[2].Quantity != 0 || repo.records[1].Quantity != 1 {
		t.Errorf("Unexpected stock after decrement: %+v", repo.records)
	}
}

func TestIncrementGoesToDefaultLocation(t *testing.T) {
	repo := newFakeRepo(map[int64]int{2: 4})
	if err := Increment(context.Background(), repo, 1, 3); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := repo.records[DefaultLocationID].Quantity; got != 3 {
		t.Errorf("Expected 3 units at location 1, got %d", got)
	}
	if got := repo.records[2].Quantity; got != 4 {
		t.Errorf("Expected location 2 untouched, got %d", got)
	}
}

func TestAdjust(t *testing.T) {
	repo := newFakeRepo(map[int64]int{1: 5})
	ctx := context.Background()

	rec, err := Adjust(ctx, repo, 1, 1, -5)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if rec.Quantity != 0 {
		t.Errorf("Expected quantity 0, got %d", rec.Quantity)
	}
	if _, err := Adjust(ctx, repo, 1, 1, -1); !apperr.Is(err, apperr.CodeInsufficientStock) {
		t.Errorf("Expected insufficient stock error, got: %v", err)
	}
	rec, err = Adjust(ctx, repo, 1, 7, 4)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if rec.Quantity != 4 || rec.LocationID != 7 {
		t.Errorf("Expected new record with 4 units at location 7, got %+v", rec)
	}
}
