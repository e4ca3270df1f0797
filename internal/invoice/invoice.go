// Package invoice allocates invoice numbers and the pending enrollment drafts
// bound to them.
package invoice

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kelasvisa/payments/internal/models"
)

// Kind is the purchase type encoded in an invoice number.
type Kind string

const (
	KindSingle Kind = "single"
	KindBundle Kind = "bundle"
)

const (
	prefix       = "INV-"
	bundlePrefix = "INV-BUNDLE-"
	courseIDLen  = 8
)

// ErrAlreadyOwnsAll is returned when a bundle would not add any course.
var ErrAlreadyOwnsAll = errors.New("buyer already owns every course in the bundle")

// Allocator issues invoice numbers. The timestamp component is strictly
// increasing within one process.
type Allocator struct {
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewAllocator creates an Allocator. A nil clock uses time.Now.
func NewAllocator(now func() time.Time) *Allocator {
	if now == nil {
		now = time.Now
	}
	return &Allocator{now: now}
}

// Now returns the allocator's clock reading.
func (a *Allocator) Now() time.Time { return a.now() }

// New returns a fresh invoice number: INV-BUNDLE-<ms> for bundles and
// INV-<ms>-<first 8 chars of the course id> for single courses.
func (a *Allocator) New(kind Kind, courseID uuid.UUID) string {
	ts := strconv.FormatInt(a.tick(), 10)
	if kind == KindBundle {
		return bundlePrefix + ts
	}
	return prefix + ts + "-" + courseIDPrefix(courseID)
}

func (a *Allocator) tick() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	ms := a.now().UnixMilli()
	if ms <= a.last {
		ms = a.last + 1
	}
	a.last = ms
	return ms
}

func courseIDPrefix(id uuid.UUID) string {
	s := strings.ReplaceAll(id.String(), "-", "")
	return s[:courseIDLen]
}

// KindOf reports the purchase type encoded in an invoice number.
func KindOf(invoiceID string) (Kind, bool) {
	switch {
	case strings.HasPrefix(invoiceID, bundlePrefix):
		return KindBundle, true
	case strings.HasPrefix(invoiceID, prefix):
		return KindSingle, true
	}
	return "", false
}

// Drafts builds one pending enrollment per course, all referencing invoiceID
// and expiring ttl from now.
func (a *Allocator) Drafts(invoiceID string, buyerID uuid.UUID, courseIDs []uuid.UUID, pricePerCourse int64, ttl time.Duration) []models.Enrollment {
	now := a.now().UTC()
	expires := now.Add(ttl)
	drafts := make([]models.Enrollment, 0, len(courseIDs))
	for _, courseID := range courseIDs {
		exp := expires
		drafts = append(drafts, models.Enrollment{
			ID:               uuid.New(),
			UserID:           buyerID,
			CourseID:         courseID,
			PaymentStatus:    models.PaymentStatusPending,
			PaymentReference: invoiceID,
			AmountPaid:       pricePerCourse,
			ExpiresAt:        &exp,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return drafts
}

// UnownedCourses returns the catalog courses a bundle purchase should cover:
// every course except the bundle's own row and the ones already paid for.
func UnownedCourses(catalog []uuid.UUID, bundleID uuid.UUID, paid []uuid.UUID) ([]uuid.UUID, error) {
	owned := make(map[uuid.UUID]struct{}, len(paid)+1)
	for _, id := range paid {
		owned[id] = struct{}{}
	}
	owned[bundleID] = struct{}{}

	var out []uuid.UUID
	for _, id := range catalog {
		if _, ok := owned[id]; ok {
			continue
		}
		owned[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, ErrAlreadyOwnsAll
	}
	return out, nil
}

// SplitAmount divides total evenly across n rows, rounded to the nearest unit.
// The per-row amounts may not sum exactly to total.
func SplitAmount(total int64, n int) int64 {
	if n <= 1 {
		return total
	}
	return int64(math.Round(float64(total) / float64(n)))
}
