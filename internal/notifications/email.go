package notifications

import (
	"context"
	"fmt"
	"html"

	"github.com/google/uuid"

	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/pkg/queue"
)

// UserLookup resolves the buyer's contact details.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// EmailQueue accepts email jobs for the worker.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// EmailSink queues an email for the worker process to send.
type EmailSink struct {
	users UserLookup
	queue EmailQueue
}

// NewEmailSink creates an EmailSink.
func NewEmailSink(users UserLookup, q EmailQueue) *EmailSink {
	return &EmailSink{users: users, queue: q}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, o Outcome) error {
	msg, ok := Compose(o)
	if !ok {
		return nil
	}
	u, err := s.users.GetByID(ctx, o.UserID)
	if err != nil {
		return fmt.Errorf("lookup buyer: %w", err)
	}
	if u.Email == "" {
		return nil
	}
	return s.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      msg.Type,
		UserID:         o.UserID,
		Reference:      o.InvoiceNumber,
		RecipientEmail: u.Email,
		Subject:        msg.Title,
		BodyHTML:       emailBody(u.FullName, o.InvoiceNumber, msg),
	})
}

func emailBody(name, invoice string, msg Message) string {
	greeting := "Hello"
	if name != "" {
		greeting += " " + html.EscapeString(name)
	}
	return fmt.Sprintf("<p>%s,</p><p>%s</p><p>Invoice: <strong>%s</strong></p>",
		greeting, html.EscapeString(msg.Body), html.EscapeString(invoice))
}
