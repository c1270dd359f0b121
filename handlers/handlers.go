package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"honnylove-backend/internal/auth"
	"honnylove-backend/internal/commerce"
	"honnylove-backend/internal/metrics"
	"honnylove-backend/middleware"
)

// WebhookVerifier checks a gateway signature. gateway.Stripe implements it.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) error
}

type Handler struct {
	keys     *auth.Keys
	svc      *commerce.Service
	verifier WebhookVerifier
	dev      bool
}

// Deps carries what the HTTP surface needs. Verifier may be nil.
type Deps struct {
	Keys        *auth.Keys
	Service     *commerce.Service
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Verifier    WebhookVerifier
	GinMode     string
	Development bool
}

func API(endpointPrefix string, d Deps) *gin.Engine {
	if d.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if d.GinMode != "" {
		gin.SetMode(d.GinMode)
	}
	r := gin.New()
	m, err := middleware.NewMid(d.Keys)
	if err != nil {
		panic(err)
	}
	h := &Handler{keys: d.Keys, svc: d.Service, verifier: d.Verifier, dev: d.Development}

	r.Use(middleware.Logger(d.Logger, d.Metrics), gin.Recovery())
	r.GET("/ping", HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	staff := []string{auth.RoleManager, auth.RoleAdmin}

	public := r.Group(endpointPrefix)
	{
		public.POST("/auth/signup", h.Signup)
		public.POST("/auth/login", h.Login)
		public.POST("/auth/refresh", h.Refresh)
		public.GET("/products", h.ListProducts)
		public.GET("/products/:id", h.GetProduct)
		public.POST("/webhook", h.Webhook)
	}

	v1 := r.Group(endpointPrefix)
	{
		v1.Use(m.Authentication())

		v1.POST("/products", m.Authorize(h.CreateProduct, staff...))
		v1.PATCH("/products/:id", m.Authorize(h.UpdateProduct, staff...))

		v1.GET("/cart", h.GetCart)
		v1.POST("/cart/items", h.AddToCart)
		v1.PUT("/cart/items/:productId", h.SetCartQuantity)
		v1.DELETE("/cart/items/:productId", h.RemoveFromCart)
		v1.POST("/checkout", h.Checkout)

		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/:id", h.GetOrder)
		v1.GET("/orders/:id/history", h.OrderHistory)
		v1.POST("/orders/:id/cancel", h.CancelOrder)
		v1.PATCH("/orders/:id", m.Authorize(h.PatchOrder, staff...))
		v1.PATCH("/orders/:id/status", m.Authorize(h.UpdateOrderStatus, staff...))
		v1.POST("/orders/:id/items", m.Authorize(h.AddOrderItem, staff...))
		v1.DELETE("/orders/:id/items/:itemId", m.Authorize(h.RemoveOrderItem, staff...))
		v1.DELETE("/orders/:id", m.Authorize(h.DeleteOrder, staff...))

		v1.POST("/orders/:id/payments", h.CreatePayment)
		v1.GET("/orders/:id/payments/status", h.CheckPaymentStatus)
		v1.POST("/orders/:id/refunds", m.Authorize(h.Refund, staff...))
		v1.GET("/orders/:id/refunds", h.ListRefunds)
		v1.POST("/orders/:id/cancel-paid", h.CancelPaidOrder)

		v1.GET("/inventory/low-stock", m.Authorize(h.LowStock, staff...))
		v1.GET("/inventory/products/:id", m.Authorize(h.StockLevels, staff...))
		v1.POST("/inventory/adjust", m.Authorize(h.AdjustInventory, staff...))
	}
	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}
