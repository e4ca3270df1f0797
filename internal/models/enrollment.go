package models

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment is one (buyer, course) row. It is created as a pending draft when
// an order is placed and settled by reconciliation.
type Enrollment struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	CourseID         uuid.UUID      `json:"course_id"`
	PaymentStatus    PaymentStatus  `json:"payment_status"`
	PaymentMethod    *PaymentMethod `json:"payment_method,omitempty"`
	PaymentReference string         `json:"payment_reference"`
	PaymentChannel   *string        `json:"payment_channel,omitempty"`
	AmountPaid       int64          `json:"amount_paid"`
	PurchasedAt      *time.Time     `json:"purchased_at,omitempty"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
