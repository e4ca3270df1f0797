package notifications

import (
	"context"
	"fmt"

	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/pkg/database"
)

// Repository handles notifications persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a notifications repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores an in-app notification.
func (r *Repository) Insert(ctx context.Context, n *models.Notification) error {
	const q = `INSERT INTO notifications (user_id, type, title, message, reference)
		VALUES ($1, $2, $3, $4, NULLIF($5,''))
		RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, q, n.UserID, n.Type, n.Title, n.Message, n.Reference).Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Inserter stores in-app notifications.
type Inserter interface {
	Insert(ctx context.Context, n *models.Notification) error
}

// StoreSink writes the in-app notification row.
type StoreSink struct {
	store Inserter
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(store Inserter) *StoreSink { return &StoreSink{store: store} }

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Deliver(ctx context.Context, o Outcome) error {
	msg, ok := Compose(o)
	if !ok {
		return nil
	}
	return s.store.Insert(ctx, &models.Notification{
		UserID:    o.UserID,
		Type:      msg.Type,
		Title:     msg.Title,
		Message:   msg.Body,
		Reference: o.InvoiceNumber,
	})
}
