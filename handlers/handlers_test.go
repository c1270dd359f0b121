package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/auth"
	"honnylove-backend/internal/commerce"
	"honnylove-backend/internal/gateway"
	"honnylove-backend/internal/metrics"
	"honnylove-backend/internal/payments"
	"honnylove-backend/internal/products"
	"honnylove-backend/internal/stores/memory"
)

type fakeGateway struct {
	mu sync.Mutex
	n  int
}

func (g *fakeGateway) CreatePayment(_ context.Context, p gateway.CreatePaymentParams) (*gateway.RemotePayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return &gateway.RemotePayment{
		ID:              fmt.Sprintf("cs_test_%d", g.n),
		Status:          payments.StatusPending,
		RawStatus:       "open",
		ConfirmationURL: "https://pay.example/session",
		Amount:          p.Amount,
	}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, remoteID string) (*gateway.RemotePayment, error) {
	return nil, errors.New("not found")
}

func (g *fakeGateway) CreateRefund(_ context.Context, _ gateway.CreateRefundParams) (*gateway.RemoteRefund, error) {
	return &gateway.RemoteRefund{ID: "re_test_1", Status: "succeeded"}, nil
}

type rejectAll struct{}

func (rejectAll) VerifyWebhook([]byte, string) error { return errors.New("bad signature") }

type testAPI struct {
	router *gin.Engine
	keys   *auth.Keys
	svc    *commerce.Service
}

func newTestAPI(t *testing.T, verifier WebhookVerifier) *testAPI {
	t.Helper()
	keys, err := auth.NewKeys("test-secret-test-secret-test-secret", "honnylove-test", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	svc := commerce.New(memory.New(), &fakeGateway{}, keys)
	r := API("/api", Deps{
		Keys:     keys,
		Service:  svc,
		Logger:   zap.NewNop(),
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Verifier: verifier,
		GinMode:  gin.TestMode,
	})
	return &testAPI{router: r, keys: keys, svc: svc}
}

func (a *testAPI) token(t *testing.T, userID int64, role string) string {
	t.Helper()
	pair, err := a.keys.IssuePair(userID, role)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return pair.AccessToken
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Expected JSON body, got %q: %v", w.Body.String(), err)
	}
}

func TestPing(t *testing.T) {
	a := newTestAPI(t, nil)
	w := a.do(t, http.MethodGet, "/ping", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
}

func TestAuthentication(t *testing.T) {
	a := newTestAPI(t, nil)
	customer := a.token(t, 1, auth.RoleCustomer)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"missing token", http.MethodGet, "/api/cart", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/cart", "not-a-jwt", http.StatusUnauthorized},
		{"customer on staff route", http.MethodGet, "/api/inventory/low-stock", customer, http.StatusForbidden},
		{"customer creating product", http.MethodPost, "/api/products", customer, http.StatusForbidden},
		{"customer reads own cart", http.MethodGet, "/api/cart", customer, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, tt.method, tt.path, tt.token, nil)
			if w.Code != tt.want {
				t.Fatalf("Expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestRefreshTokenIsNotAccessToken(t *testing.T) {
	a := newTestAPI(t, nil)
	pair, err := a.keys.IssuePair(1, auth.RoleCustomer)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	w := a.do(t, http.MethodGet, "/api/cart", pair.RefreshToken, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for refresh token, got %d", w.Code)
	}
}

// placeOrder runs signup, stocking and checkout through the HTTP surface and
// returns the customer token and order id.
func placeOrder(t *testing.T, a *testAPI) (string, int64) {
	t.Helper()
	staffToken := a.token(t, 900, auth.RoleAdmin)

	w := a.do(t, http.MethodPost, "/api/products", staffToken, map[string]any{"name": "Rose cream", "price": "1000.00"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating product, got %d: %s", w.Code, w.Body.String())
	}
	var product struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &product)

	w = a.do(t, http.MethodPost, "/api/inventory/adjust", staffToken, map[string]any{"product_id": product.ID, "delta": 3, "reason": "delivery"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 adjusting stock, got %d: %s", w.Code, w.Body.String())
	}

	w = a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{"email": "Ann@Example.com", "name": "Ann", "password": "correct-horse"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on signup, got %d: %s", w.Code, w.Body.String())
	}
	var sess commerce.Session
	decode(t, w, &sess)
	token := sess.Tokens.AccessToken

	w = a.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": product.ID, "quantity": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 adding to cart, got %d: %s", w.Code, w.Body.String())
	}

	w = a.do(t, http.MethodPost, "/api/checkout", token, map[string]any{
		"shipping_address": "221B Baker Street, London",
		"payment_method":   "card",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on checkout, got %d: %s", w.Code, w.Body.String())
	}
	var details struct {
		Order struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
			Total  string `json:"total"`
		} `json:"order"`
	}
	decode(t, w, &details)
	if details.Order.Status != "pending" {
		t.Fatalf("Expected pending order, got %s", details.Order.Status)
	}
	if total, err := decimal.NewFromString(details.Order.Total); err != nil || !total.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("Expected total 2000, got %s", details.Order.Total)
	}
	return token, details.Order.ID
}

func TestCheckoutPaymentAndWebhook(t *testing.T) {
	a := newTestAPI(t, nil)
	token, orderID := placeOrder(t, a)
	paymentsPath := fmt.Sprintf("/api/orders/%d/payments", orderID)

	w := a.do(t, http.MethodPost, paymentsPath, token, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating payment, got %d: %s", w.Code, w.Body.String())
	}
	var p payments.Payment
	decode(t, w, &p)

	w = a.do(t, http.MethodPost, paymentsPath, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for existing payment, got %d", w.Code)
	}

	body := fmt.Sprintf(`{"event":"payment.succeeded","object":{"id":%q,"status":"succeeded"}}`, p.RemoteID)
	w = a.do(t, http.MethodPost, "/api/webhook", "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from webhook, got %d", w.Code)
	}
	var res struct {
		Status string `json:"status"`
	}
	decode(t, w, &res)
	if res.Status != commerce.OutcomeApplied {
		t.Fatalf("Expected outcome %s, got %s", commerce.OutcomeApplied, res.Status)
	}

	w = a.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", orderID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 reading order, got %d", w.Code)
	}
	var details struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
	}
	decode(t, w, &details)
	if details.Order.Status != "paid" {
		t.Fatalf("Expected paid order, got %s", details.Order.Status)
	}

	// a paid order can no longer be cancelled by its customer
	w = a.do(t, http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", orderID), token, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 on cancel, got %d", w.Code)
	}
}

func TestOtherCustomerCannotReadOrder(t *testing.T) {
	a := newTestAPI(t, nil)
	_, orderID := placeOrder(t, a)

	w := a.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", orderID), a.token(t, 4242, auth.RoleCustomer), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", w.Code)
	}
}

func TestWebhookAlwaysAnswers200(t *testing.T) {
	tests := []struct {
		name     string
		verifier WebhookVerifier
		body     string
		want     string
	}{
		{"malformed json", nil, "{not json", "ignored"},
		{"missing id", nil, `{"event":"payment.succeeded","object":{}}`, "ignored"},
		{"unknown payment", nil, `{"event":"payment.succeeded","object":{"id":"cs_unknown","status":"succeeded"}}`, commerce.OutcomeUnknownPayment},
		{"bad signature", rejectAll{}, `{"event":"payment.succeeded","object":{"id":"cs_test_1","status":"succeeded"}}`, "ignored"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t, tt.verifier)
			w := a.do(t, http.MethodPost, "/api/webhook", "", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", w.Code)
			}
			var res struct {
				Status string `json:"status"`
			}
			decode(t, w, &res)
			if res.Status != tt.want {
				t.Fatalf("Expected status %q, got %q", tt.want, res.Status)
			}
		})
	}
}

func TestInsufficientStockResponse(t *testing.T) {
	a := newTestAPI(t, nil)
	p, err := a.svc.CreateProduct(context.Background(), commerce.Actor{UserID: 900, Staff: true},
		products.NewProduct{Name: "Lip balm", Price: decimal.RequireFromString("300")})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	customer := a.token(t, 7, auth.RoleCustomer)
	w := a.do(t, http.MethodPost, "/api/cart/items", customer, map[string]any{"product_id": p.ID, "quantity": 1})
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	}
	decode(t, w, &body)
	if body.Code != string(apperr.CodeInsufficientStock) {
		t.Fatalf("Expected %s, got %s", apperr.CodeInsufficientStock, body.Code)
	}
	if body.Details == nil {
		t.Fatalf("Expected stock details in the response")
	}
}

func TestBadBodies(t *testing.T) {
	a := newTestAPI(t, nil)
	customer := a.token(t, 1, auth.RoleCustomer)

	w := a.do(t, http.MethodPost, "/api/cart/items", customer, `{"product_id": "x"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	w = a.do(t, http.MethodGet, "/api/orders/abc", customer, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for non-numeric id, got %d", w.Code)
	}
	w = a.do(t, http.MethodPost, "/api/auth/login", "", strings.Repeat("a", 5000))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for oversized body, got %d", w.Code)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[apperr.Code]int{
		apperr.CodeValidation:        http.StatusBadRequest,
		apperr.CodeUnauthorized:      http.StatusUnauthorized,
		apperr.CodeAccessDenied:      http.StatusForbidden,
		apperr.CodeNotFound:          http.StatusNotFound,
		apperr.CodeInsufficientStock: http.StatusConflict,
		apperr.CodeGateway:           http.StatusBadGateway,
		apperr.Code("mystery"):       http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := HTTPStatus(code); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
}
