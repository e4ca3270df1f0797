package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType for in-app messages emitted after a payment settles.
const (
	NotificationTypePaymentPaid    = "payment_paid"
	NotificationTypePaymentFailed  = "payment_failed"
	NotificationTypePaymentExpired = "payment_expired"
)

// Notification is a user-facing in-app message.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Reference string     `json:"reference,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
