package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusCancelled, StatusReturned},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusReturned},
	StatusShipped:    {StatusDelivered, StatusReturned},
	StatusDelivered:  {StatusCompleted, StatusReturned},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
	StatusReturned:   nil,
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Next lists the statuses reachable from s in one step.
func (s Status) Next() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Cancellable reports whether the order can still be cancelled and restocked.
func (s Status) Cancellable() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// Refundable reports whether a refund may be issued in status s.
func (s Status) Refundable() bool {
	return s.CanTransitionTo(StatusReturned)
}

func StatusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
