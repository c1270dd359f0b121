// Package commerce orchestrates carts, orders, inventory, payments and
// refunds. Every operation that touches more than one entity runs inside a
// single store transaction.
package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/auth"
	"honnylove-backend/internal/gateway"
	"honnylove-backend/internal/metrics"
	"honnylove-backend/internal/orders"
	"honnylove-backend/internal/store"
	"honnylove-backend/internal/stores/kafka"
	"honnylove-backend/pkg/logging"
	"honnylove-backend/pkg/logkey"
)

// EventPublisher delivers order lifecycle events. kafka.Conf implements it.
type EventPublisher interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte) error
}

// ReplayCache short-circuits webhook notifications that were already applied.
type ReplayCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int64
	Staff  bool
}

func (a Actor) canAccess(ownerID int64) bool {
	return a.Staff || a.UserID == ownerID
}

func (a Actor) id() *int64 {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

type Service struct {
	store    store.Store
	gateway  gateway.Gateway
	keys     *auth.Keys
	events   EventPublisher
	replay   ReplayCache
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	validate *validator.Validate

	currency  string
	returnURL string
}

type Option func(*Service)

func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithReplayCache(c ReplayCache) Option {
	return func(s *Service) { s.replay = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPaymentSettings sets the currency and the URL customers return to
// after paying.
func WithPaymentSettings(currency, returnURL string) Option {
	return func(s *Service) {
		s.currency = strings.ToLower(currency)
		s.returnURL = returnURL
	}
}

func New(st store.Store, gw gateway.Gateway, keys *auth.Keys, opts ...Option) *Service {
	s := &Service{
		store:     st,
		gateway:   gw,
		keys:      keys,
		tracer:    otel.Tracer("honnylove-backend/commerce"),
		validate:  NewValidator(),
		currency:  "rub",
		returnURL: "http://localhost:3000/orders",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewValidator returns a validator reporting json field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return ValidationError(err)
	}
	return nil
}

// checkMoney rejects amounts finer than one cent. Stored columns and gateway
// minor units both have two decimal places.
func checkMoney(field string, v decimal.Decimal) error {
	if v.Equal(v.Truncate(2)) {
		return nil
	}
	msg := field + " must have at most two decimal places"
	return &apperr.Error{
		Code:    apperr.CodeValidation,
		Message: msg,
		Details: map[string]any{"fields": map[string]any{field: msg}},
	}
}

// ValidationError converts validator output into an apperr validation error
// with one message per field.
func ValidationError(err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) || len(vErrs) == 0 {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request")
	}
	fields := make(map[string]any, len(vErrs))
	var first string
	for _, vErr := range vErrs {
		var msg string
		switch vErr.Tag() {
		case "required":
			msg = vErr.Field() + " value missing"
		case "min":
			msg = vErr.Field() + " value is shorter than " + vErr.Param()
		case "max":
			msg = vErr.Field() + " value is longer than " + vErr.Param()
		case "oneof":
			msg = vErr.Field() + " must be one of: " + strings.ReplaceAll(vErr.Param(), " ", ", ")
		case "email":
			msg = vErr.Field() + " must be a valid email"
		default:
			msg = vErr.Field() + " is invalid"
		}
		if first == "" {
			first = msg
		}
		fields[vErr.Field()] = msg
	}
	return &apperr.Error{Code: apperr.CodeValidation, Message: first, Details: map[string]any{"fields": fields}}
}

// begin opens a span for the operation and returns a func that records the
// outcome in the span, the metrics and the log.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, "commerce."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		outcome := "success"
		log := logging.FromContext(ctx).With(zap.String(logkey.Operation, op))
		if err != nil {
			code := apperr.CodeOf(err)
			outcome = string(code)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			switch code {
			case apperr.CodeInternal, apperr.CodeGateway:
				log.Error("operation failed", zap.String(logkey.Outcome, outcome), zap.Error(err))
			default:
				log.Info("operation rejected", zap.String(logkey.Outcome, outcome), zap.String(logkey.ERROR, err.Error()))
			}
		} else {
			log.Debug("operation finished", zap.Duration("elapsed", time.Since(start)))
		}
		span.End()
		s.metrics.ObserveOperation(op, outcome, time.Since(start))
	}
}

// publish emits an order event after commit. Failures are logged only.
func (s *Service) publish(ctx context.Context, topic string, o orders.Order, refunded decimal.Decimal) {
	if s.events == nil {
		return
	}
	log := logging.FromContext(ctx)
	payload, err := json.Marshal(kafka.OrderEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(o.Status),
		Total:      o.Total,
		Refunded:   refunded,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error("failed to marshal order event", zap.Int64(logkey.OrderID, o.ID), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.ProduceMessage(ctx, topic, []byte(strconv.FormatInt(o.ID, 10)), payload); err != nil {
		s.metrics.EventPublishFailed(topic)
		log.Error("failed to publish order event", zap.String("topic", topic), zap.Int64(logkey.OrderID, o.ID), zap.Error(err))
		return
	}
	log.Debug("order event published", zap.String("topic", topic), zap.Int64(logkey.OrderID, o.ID))
}

// transition moves o to target and appends the history row. Re-setting the
// current status is a no-op and reports changed=false.
func transition(ctx context.Context, tx store.Tx, o *orders.Order, target orders.Status, actor *int64) (bool, error) {
	if o.Status == target {
		return false, nil
	}
	if !o.Status.CanTransitionTo(target) {
		return false, apperr.InvalidTransition(string(o.Status), string(target), orders.StatusStrings(o.Status.Next()))
	}
	o.Status = target
	if err := tx.UpdateOrder(ctx, o); err != nil {
		return false, apperr.Wrap(apperr.CodeInternal, err, "update order status")
	}
	h := &orders.StatusHistory{OrderID: o.ID, Status: target, ActorID: actor}
	if err := tx.AppendStatusHistory(ctx, h); err != nil {
		return false, apperr.Wrap(apperr.CodeInternal, err, "append status history")
	}
	return true, nil
}
