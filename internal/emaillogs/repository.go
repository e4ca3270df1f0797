package emaillogs

import (
	"context"
	"fmt"

	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/pkg/database"
)

// Repository handles email_logs persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an email logs repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Insert records one delivery attempt.
func (r *Repository) Insert(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (user_id, reference, email_type, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, NULLIF($2,''), $3, $4, NULLIF($5,''), $6, $7, NULLIF($8,''))
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, el.UserID, el.Reference, el.EmailType, el.RecipientEmail, el.Subject, el.Status, el.SentAt, el.ErrorMessage).
		Scan(&el.ID, &el.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// ListByReference returns the email attempts for an invoice, newest first.
func (r *Repository) ListByReference(ctx context.Context, reference string) ([]*models.EmailLog, error) {
	const q = `SELECT id, user_id, COALESCE(reference,''), email_type, recipient_email, COALESCE(subject,''), status, sent_at, COALESCE(error_message,''), created_at
		FROM email_logs
		WHERE reference = $1
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.UserID, &el.Reference, &el.EmailType, &el.RecipientEmail, &el.Subject, &el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
