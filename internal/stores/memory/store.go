// Package memory is an in-process implementation of store.Store. A
// transaction works on a copy of the state and swaps it in on commit, so
// transactions are serialized and rollback discards every write.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"honnylove-backend/internal/inventory"
	"honnylove-backend/internal/orders"
	"honnylove-backend/internal/payments"
	"honnylove-backend/internal/products"
	"honnylove-backend/internal/store"
	"honnylove-backend/internal/users"
)

type Location struct {
	ID     int64
	Name   string
	Active bool
}

type stockKey struct {
	productID  int64
	locationID int64
}

type cartKey struct {
	userID    int64
	productID int64
}

type state struct {
	users     map[int64]users.User
	products  map[int64]products.Product
	locations map[int64]Location
	stock     map[stockKey]inventory.Record
	cart      map[cartKey]int
	orders    map[int64]orders.Order
	items     map[int64]orders.Item
	history   []orders.StatusHistory
	payments  map[int64]payments.Payment
	refunds   []payments.Refund
	seq       map[string]int64
}

func (s *state) clone() *state {
	return &state{
		users:     maps.Clone(s.users),
		products:  maps.Clone(s.products),
		locations: maps.Clone(s.locations),
		stock:     maps.Clone(s.stock),
		cart:      maps.Clone(s.cart),
		orders:    maps.Clone(s.orders),
		items:     maps.Clone(s.items),
		history:   slices.Clone(s.history),
		payments:  maps.Clone(s.payments),
		refunds:   slices.Clone(s.refunds),
		seq:       maps.Clone(s.seq),
	}
}

func (s *state) next(name string) int64 {
	s.seq[name]++
	return s.seq[name]
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ store.Store = (*Store)(nil)

// New returns an empty store with the default location already present.
func New() *Store {
	st := &state{
		users:     map[int64]users.User{},
		products:  map[int64]products.Product{},
		locations: map[int64]Location{},
		stock:     map[stockKey]inventory.Record{},
		cart:      map[cartKey]int{},
		orders:    map[int64]orders.Order{},
		items:     map[int64]orders.Item{},
		payments:  map[int64]payments.Payment{},
		seq:       map[string]int64{},
	}
	st.locations[inventory.DefaultLocationID] = Location{ID: inventory.DefaultLocationID, Name: "main", Active: true}
	return &Store{st: st}
}

// PutLocation creates or replaces a stock location.
func (s *Store) PutLocation(loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.locations[loc.ID] = loc
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{st: work, now: time.Now().UTC()}); err != nil {
		return err
	}
	s.st = work
	return nil
}
