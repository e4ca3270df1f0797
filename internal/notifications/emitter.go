// Package notifications tells buyers about settled payments. Delivery is
// detached from the request that settled the payment and never reports back.
package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kelasvisa/payments/internal/metrics"
	"github.com/kelasvisa/payments/internal/models"
)

const defaultTimeout = 10 * time.Second

// Outcome is a status transition that actually changed stored state.
type Outcome struct {
	UserID        uuid.UUID
	InvoiceNumber string
	Status        models.PaymentStatus
	CourseIDs     []uuid.UUID
	Amount        int64 // gateway-reported invoice total
	Channel       string
	At            time.Time
}

// Sink delivers an outcome to one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, o Outcome) error
}

// Emitter fans an outcome out to every sink in a background goroutine.
type Emitter struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewEmitter creates an Emitter. timeout bounds one Notify across all sinks;
// zero uses 10s.
func NewEmitter(logger *zap.Logger, timeout time.Duration, sinks ...Sink) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Emitter{sinks: sinks, timeout: timeout, logger: logger}
}

// Notify returns immediately. Sink failures and panics are logged only.
func (e *Emitter) Notify(o Outcome) {
	if e == nil || len(e.sinks) == 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		for _, s := range e.sinks {
			e.deliver(ctx, s, o)
		}
	}()
}

func (e *Emitter) deliver(ctx context.Context, s Sink, o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			metrics.NotificationFailures.WithLabelValues(s.Name()).Inc()
			e.logger.Error("notification sink panicked",
				zap.String("sink", s.Name()),
				zap.String("invoice", o.InvoiceNumber),
				zap.Any("panic", r),
			)
		}
	}()
	if err := s.Deliver(ctx, o); err != nil {
		metrics.NotificationFailures.WithLabelValues(s.Name()).Inc()
		e.logger.Warn("notification failed",
			zap.String("sink", s.Name()),
			zap.String("invoice", o.InvoiceNumber),
			zap.String("user_id", o.UserID.String()),
			zap.Error(err),
		)
		return
	}
	e.logger.Debug("notification delivered", zap.String("sink", s.Name()), zap.String("invoice", o.InvoiceNumber))
}

// Wait blocks until every Notify started so far has finished.
func (e *Emitter) Wait() {
	if e == nil {
		return
	}
	e.wg.Wait()
}

// Message is the user-facing text for an outcome.
type Message struct {
	Type  string
	Title string
	Body  string
}

// Compose returns the message for o. ok is false for statuses that are
// never announced.
func Compose(o Outcome) (Message, bool) {
	switch o.Status {
	case models.PaymentStatusPaid:
		body := "Your payment was received and your course is now unlocked."
		if len(o.CourseIDs) > 1 {
			body = fmt.Sprintf("Your payment was received and %d courses are now unlocked.", len(o.CourseIDs))
		}
		return Message{Type: models.NotificationTypePaymentPaid, Title: "Payment successful", Body: body}, true
	case models.PaymentStatusFailed:
		return Message{
			Type:  models.NotificationTypePaymentFailed,
			Title: "Payment failed",
			Body:  "Your payment could not be completed. You can place the order again at any time.",
		}, true
	case models.PaymentStatusExpired:
		return Message{
			Type:  models.NotificationTypePaymentExpired,
			Title: "Payment expired",
			Body:  "The payment window closed before payment was received. Place a new order to continue.",
		}, true
	}
	return Message{}, false
}
