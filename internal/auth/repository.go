package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/pkg/database"
)

// ErrUserNotFound is returned when no user has the id.
var ErrUserNotFound = errors.New("user not found")

// Repository reads buyer profiles.
type Repository struct {
	db database.DB
}

// NewRepository creates an auth repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, full_name, role, created_at FROM users WHERE id = $1`
	var u models.User
	var role string
	err := r.db.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.FullName, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}
