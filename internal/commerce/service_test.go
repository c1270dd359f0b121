package commerce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/auth"
	"honnylove-backend/internal/gateway"
	"honnylove-backend/internal/orders"
	"honnylove-backend/internal/payments"
	"honnylove-backend/internal/products"
	"honnylove-backend/internal/store"
	"honnylove-backend/internal/stores/memory"
	"honnylove-backend/internal/users"
)

var (
	staff    = Actor{UserID: 900, Staff: true}
	customer = Actor{UserID: 1}
	stranger = Actor{UserID: 2}
)

type stubGateway struct {
	mu      sync.Mutex
	creates int
	gets    int
	refunds int
	remote  map[string]gateway.RemotePayment
}

func newStubGateway() *stubGateway {
	return &stubGateway{remote: map[string]gateway.RemotePayment{}}
}

func (g *stubGateway) CreatePayment(_ context.Context, p gateway.CreatePaymentParams) (*gateway.RemotePayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	rp := gateway.RemotePayment{
		ID:              fmt.Sprintf("cs_test_%d", g.creates),
		Status:          payments.StatusPending,
		RawStatus:       "open",
		ConfirmationURL: "https://pay.example/" + p.IdempotencyKey,
		Amount:          p.Amount,
	}
	g.remote[rp.ID] = rp
	return &rp, nil
}

func (g *stubGateway) GetPayment(_ context.Context, remoteID string) (*gateway.RemotePayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gets++
	rp, ok := g.remote[remoteID]
	if !ok {
		return nil, errors.New("no such payment")
	}
	return &rp, nil
}

func (g *stubGateway) CreateRefund(_ context.Context, p gateway.CreateRefundParams) (*gateway.RemoteRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return &gateway.RemoteRefund{ID: fmt.Sprintf("re_test_%d", g.refunds), Status: "succeeded"}, nil
}

func (g *stubGateway) setRemoteStatus(remoteID string, status payments.Status, raw string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rp := g.remote[remoteID]
	rp.Status = status
	rp.RawStatus = raw
	g.remote[remoteID] = rp
}

func (g *stubGateway) refundCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunds
}

type fixture struct {
	svc   *Service
	store *memory.Store
	gw    *stubGateway
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	keys, err := auth.NewKeys("test-secret-test-secret-test-secret", "honnylove-test", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	st := memory.New()
	gw := newStubGateway()
	return &fixture{svc: New(st, gw, keys, opts...), store: st, gw: gw}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) product(t *testing.T, name, price string) int64 {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), staff, products.NewProduct{Name: name, Price: dec(price)})
	if err != nil {
		t.Fatalf("Expected no error creating product, got: %v", err)
	}
	return p.ID
}

func (f *fixture) stock(t *testing.T, productID, locationID int64, qty int) {
	t.Helper()
	if _, err := f.svc.AdjustInventory(context.Background(), staff, productID, locationID, qty, "seed"); err != nil {
		t.Fatalf("Expected no error seeding stock, got: %v", err)
	}
}

func (f *fixture) stockAt(t *testing.T, productID, locationID int64) int {
	t.Helper()
	levels, err := f.svc.StockLevels(context.Background(), productID)
	if err != nil {
		t.Fatalf("Expected no error reading stock, got: %v", err)
	}
	for _, rec := range levels.Records {
		if rec.LocationID == locationID {
			return rec.Quantity
		}
	}
	return 0
}

func (f *fixture) addToCart(t *testing.T, userID, productID int64, qty int) {
	t.Helper()
	if _, err := f.svc.AddToCart(context.Background(), userID, productID, qty); err != nil {
		t.Fatalf("Expected no error adding to cart, got: %v", err)
	}
}

func (f *fixture) checkout(t *testing.T, userID int64, shipping string) *orders.Details {
	t.Helper()
	d, err := f.svc.Checkout(context.Background(), userID, CheckoutInput{
		ShippingAddress: "221B Baker Street, London",
		PaymentMethod:   orders.PaymentCard,
		ShippingCost:    dec(shipping),
	})
	if err != nil {
		t.Fatalf("Expected no error on checkout, got: %v", err)
	}
	return d
}

// pay creates a payment for the order and delivers a succeeded webhook.
func (f *fixture) pay(t *testing.T, actor Actor, orderID int64) *payments.Payment {
	t.Helper()
	p, _, err := f.svc.CreatePayment(context.Background(), actor, orderID, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("Expected no error creating payment, got: %v", err)
	}
	if _, err := f.svc.HandleNotification(context.Background(), payments.Notification{
		Event: "payment.succeeded", RemoteID: p.RemoteID, Status: payments.StatusSucceeded,
	}); err != nil {
		t.Fatalf("Expected no error handling webhook, got: %v", err)
	}
	return p
}

func (f *fixture) order(t *testing.T, id int64) *orders.Details {
	t.Helper()
	d, err := f.svc.GetOrder(context.Background(), staff, id)
	if err != nil {
		t.Fatalf("Expected no error loading order, got: %v", err)
	}
	return d
}

func historyCount(d *orders.Details, status orders.Status) int {
	n := 0
	for _, h := range d.History {
		if h.Status == status {
			n++
		}
	}
	return n
}

func expectCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", code)
	}
	if got := apperr.CodeOf(err); got != code {
		t.Fatalf("Expected %s error, got %s: %v", code, got, err)
	}
}

// failingStore fails ClearCart to simulate a store error late in checkout.
type failingStore struct {
	*memory.Store
}

type failingTx struct {
	store.Tx
}

func (s failingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(failingTx{tx})
	})
}

func (failingTx) ClearCart(context.Context, int64) error {
	return errors.New("connection reset")
}

// lockRecorder logs which rows a transaction locks, in order.
type lockRecorder struct {
	*memory.Store
	mu    sync.Mutex
	locks []string
}

type lockRecorderTx struct {
	store.Tx
	r *lockRecorder
}

func (r *lockRecorder) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return r.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(lockRecorderTx{Tx: tx, r: r})
	})
}

func (r *lockRecorder) record(row string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = append(r.locks, row)
}

// take returns the locks recorded since the last call.
func (r *lockRecorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.locks
	r.locks = nil
	return out
}

func (t lockRecorderTx) LockOrder(ctx context.Context, id int64) (*orders.Order, error) {
	t.r.record("order")
	return t.Tx.LockOrder(ctx, id)
}

func (t lockRecorderTx) LockPaymentByRemoteID(ctx context.Context, remoteID string) (*payments.Payment, error) {
	t.r.record("payment")
	return t.Tx.LockPaymentByRemoteID(ctx, remoteID)
}

func (t lockRecorderTx) LockSucceededPayment(ctx context.Context, orderID int64) (*payments.Payment, error) {
	t.r.record("payment")
	return t.Tx.LockSucceededPayment(ctx, orderID)
}

type memoryReplay struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryReplay) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryReplay) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = true
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingEvents) ProduceMessage(_ context.Context, topic string, _, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return nil
}

func memoryLocation(id int64, name string) memory.Location {
	return memory.Location{ID: id, Name: name, Active: true}
}

func usersNew(email, name, password string) users.NewUser {
	return users.NewUser{Email: email, Name: name, Password: password}
}

func usersCreds(email, password string) users.Credentials {
	return users.Credentials{Email: email, Password: password}
}
