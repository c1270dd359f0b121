package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"honnylove-backend/internal/payments"
	"honnylove-backend/pkg/ctxmanage"
	"honnylove-backend/pkg/logging"
	"honnylove-backend/pkg/logkey"
)

const webhookBodyLimit = 64 << 10

// Webhook always answers 200 so the gateway stops redelivering; problems are
// logged and the outcome is returned for diagnostics.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	ctx := c.Request.Context()
	log := logging.FromContext(ctx).With(zap.String(logkey.TraceID, traceId))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn("webhook body unreadable", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if h.verifier != nil {
		if err := h.verifier.VerifyWebhook(body, c.GetHeader("Stripe-Signature")); err != nil {
			log.Warn("webhook signature rejected", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
	}

	n, err := payments.ParseNotification(body)
	if err != nil {
		log.Warn("webhook payload rejected", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	outcome, err := h.svc.HandleNotification(ctx, n)
	if err != nil {
		log.Error("webhook processing failed", zap.String(logkey.RemoteID, n.RemoteID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": outcome})
}
