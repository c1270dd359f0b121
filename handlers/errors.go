package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/auth"
	"honnylove-backend/internal/commerce"
	"honnylove-backend/pkg/ctxmanage"
	"honnylove-backend/pkg/logging"
	"honnylove-backend/pkg/logkey"
)

var statusByCode = map[apperr.Code]int{
	apperr.CodeValidation:        http.StatusBadRequest,
	apperr.CodeEmptyCart:         http.StatusBadRequest,
	apperr.CodeUnauthorized:      http.StatusUnauthorized,
	apperr.CodeAccessDenied:      http.StatusForbidden,
	apperr.CodeNotFound:          http.StatusNotFound,
	apperr.CodeInsufficientStock: http.StatusConflict,
	apperr.CodeInvalidTransition: http.StatusConflict,
	apperr.CodeConflict:          http.StatusConflict,
	apperr.CodeGateway:           http.StatusBadGateway,
	apperr.CodeInternal:          http.StatusInternalServerError,
}

// HTTPStatus maps an error code to its response status.
func HTTPStatus(code apperr.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// abortWithError writes the error body. Internal errors keep their message
// only in development; gateway errors never carry the provider's text.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	log := logging.FromContext(c.Request.Context())

	code := apperr.CodeOf(err)
	status := HTTPStatus(code)
	body := gin.H{"code": code, "trace_id": traceId}

	coded, ok := apperr.As(err)
	switch {
	case code == apperr.CodeInternal:
		log.Error("request failed", zap.String(logkey.TraceID, traceId), zap.Error(err))
		body["error"] = "internal server error"
		if h.dev {
			body["error"] = err.Error()
		}
	case code == apperr.CodeGateway:
		log.Error("payment gateway failure", zap.String(logkey.TraceID, traceId), zap.Error(err))
		body["error"] = coded.Message
	case ok:
		body["error"] = coded.Message
		if len(coded.Details) > 0 {
			body["details"] = coded.Details
		}
	default:
		body["error"] = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, body)
}

func (h *Handler) abortBadRequest(c *gin.Context, err error) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	logging.FromContext(c.Request.Context()).Info("json validation error",
		zap.String(logkey.TraceID, traceId), zap.String(logkey.ERROR, err.Error()))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": apperr.CodeValidation, "error": "invalid request body", "trace_id": traceId})
}

// actor builds the service actor from the token claims.
func (h *Handler) actor(c *gin.Context) (commerce.Actor, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		logging.FromContext(c.Request.Context()).Error("claims not found", zap.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return commerce.Actor{}, false
	}
	userID, err := claims.UserID()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusText(http.StatusUnauthorized)})
		return commerce.Actor{}, false
	}
	return commerce.Actor{UserID: userID, Staff: claims.IsStaff()}, true
}

func (h *Handler) idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": apperr.CodeValidation, "error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}
