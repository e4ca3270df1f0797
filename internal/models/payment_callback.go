package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Callback outcomes recorded for each gateway notification.
const (
	CallbackOutcomeChanged  = "changed"
	CallbackOutcomeNoop     = "noop"
	CallbackOutcomeNotFound = "enrollment_not_found"
	CallbackOutcomeInvalid  = "invalid"
	CallbackOutcomeError    = "error"
)

// PaymentCallback is the stored history of one gateway notification delivery.
type PaymentCallback struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	RequestID     string          `json:"request_id,omitempty"`
	GatewayStatus string          `json:"gateway_status,omitempty"`
	Outcome       string          `json:"outcome"`
	Payload       json.RawMessage `json:"payload"`
	ArchiveKey    string          `json:"archive_key,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
