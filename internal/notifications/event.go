package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher sends keyed domain events.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, value any) error
}

// Event is the payload of payment.<status> events.
type Event struct {
	InvoiceNumber string      `json:"invoice_number"`
	UserID        uuid.UUID   `json:"user_id"`
	Status        string      `json:"status"`
	CourseIDs     []uuid.UUID `json:"course_ids"`
	Amount        int64       `json:"amount"`
	Channel       string      `json:"channel,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// EventSink publishes payment.paid, payment.failed and payment.expired keyed by buyer.
type EventSink struct {
	pub Publisher
}

// NewEventSink creates an EventSink.
func NewEventSink(pub Publisher) *EventSink { return &EventSink{pub: pub} }

func (s *EventSink) Name() string { return "event" }

func (s *EventSink) Deliver(ctx context.Context, o Outcome) error {
	return s.pub.Publish(ctx, "payment."+string(o.Status), o.UserID.String(), Event{
		InvoiceNumber: o.InvoiceNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		CourseIDs:     o.CourseIDs,
		Amount:        o.Amount,
		Channel:       o.Channel,
		OccurredAt:    o.At.UTC(),
	})
}
