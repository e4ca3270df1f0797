package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/pkg/database"
)

var (
	// ErrCourseNotFound is returned when no published course has the id.
	ErrCourseNotFound = errors.New("course not found")
	// ErrBundleNotFound is returned when no published bundle row exists.
	ErrBundleNotFound = errors.New("bundle not found")
)

const courseColumns = `id, slug, title, price, is_bundle, is_published, created_at, updated_at`

// Repository reads the course catalog.
type Repository struct {
	db database.DB
}

// NewRepository creates a catalog repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// GetCourse returns a published course by ID.
func (r *Repository) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 AND is_published = TRUE`
	c, err := scanCourse(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

// GetBundle returns the published all-access bundle. When more than one is
// published the most recently created wins.
func (r *Repository) GetBundle(ctx context.Context) (*models.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses WHERE is_bundle = TRUE AND is_published = TRUE
		ORDER BY created_at DESC LIMIT 1`
	c, err := scanCourse(r.db.QueryRow(ctx, q))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBundleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bundle: %w", err)
	}
	return c, nil
}

// ListCourseIDs returns the ids of every published, non-bundle course.
func (r *Repository) ListCourseIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM courses WHERE is_published = TRUE AND is_bundle = FALSE ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCourse(row pgx.Row) (*models.Course, error) {
	var c models.Course
	if err := row.Scan(&c.ID, &c.Slug, &c.Title, &c.Price, &c.IsBundle, &c.IsPublished, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
