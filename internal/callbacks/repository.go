// Package callbacks keeps the history of gateway notification deliveries.
package callbacks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/pkg/database"
)

// Repository handles payment_callbacks persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a callbacks repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores one delivery. A payload that is not valid JSON is wrapped as
// {"raw": "<body>"} so the jsonb column always accepts it.
func (r *Repository) Insert(ctx context.Context, cb *models.PaymentCallback) error {
	payload := cb.Payload
	if !json.Valid(payload) {
		wrapped, err := json.Marshal(map[string]string{"raw": string(payload)})
		if err != nil {
			return fmt.Errorf("wrap payload: %w", err)
		}
		payload = wrapped
	}
	const q = `INSERT INTO payment_callbacks (invoice_number, request_id, gateway_status, outcome, payload, archive_key)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, $5::jsonb, NULLIF($6,''))
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, cb.InvoiceNumber, cb.RequestID, cb.GatewayStatus, cb.Outcome, string(payload), cb.ArchiveKey).
		Scan(&cb.ID, &cb.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment callback: %w", err)
	}
	cb.Payload = payload
	return nil
}

// ListByInvoice returns the deliveries for an invoice, newest first.
func (r *Repository) ListByInvoice(ctx context.Context, invoiceNumber string) ([]*models.PaymentCallback, error) {
	const q = `SELECT id, invoice_number, COALESCE(request_id,''), COALESCE(gateway_status,''), outcome, payload::text, COALESCE(archive_key,''), created_at
		FROM payment_callbacks
		WHERE invoice_number = $1
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, invoiceNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.PaymentCallback
	for rows.Next() {
		var cb models.PaymentCallback
		var payload string
		if err := rows.Scan(&cb.ID, &cb.InvoiceNumber, &cb.RequestID, &cb.GatewayStatus, &cb.Outcome, &payload, &cb.ArchiveKey, &cb.CreatedAt); err != nil {
			return nil, err
		}
		cb.Payload = json.RawMessage(payload)
		list = append(list, &cb)
	}
	return list, rows.Err()
}
