package logkey

// Field names used for structured logs across the service.
const (
	TraceID   = "trace_id"
	SpanID    = "span_id"
	ERROR     = "error"
	UserID    = "user_id"
	OrderID   = "order_id"
	ProductID = "product_id"
	PaymentID = "payment_id"
	RemoteID  = "remote_id"
	Event     = "event"
	Status    = "status"
	Operation = "operation"
	Outcome   = "outcome"
)
