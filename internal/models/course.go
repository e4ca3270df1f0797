package models

import (
	"time"

	"github.com/google/uuid"
)

// Course is a catalog entry. The all-access bundle is stored as a course row
// with IsBundle set; its Price is the bundle's own listed price.
type Course struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Price       int64     `json:"price"`
	IsBundle    bool      `json:"is_bundle"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
