// Package payments creates gateway orders for course purchases and
// reconciles gateway outcomes into enrollments.
package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kelasvisa/payments/internal/enrollments"
	"github.com/kelasvisa/payments/internal/gateway"
	"github.com/kelasvisa/payments/internal/invoice"
	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/internal/notifications"
)

// Catalog looks up courses and the bundle.
type Catalog interface {
	GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetBundle(ctx context.Context) (*models.Course, error)
	ListCourseIDs(ctx context.Context) ([]uuid.UUID, error)
}

// EnrollmentStore is the durable enrollment table.
type EnrollmentStore interface {
	UpsertDrafts(ctx context.Context, drafts []models.Enrollment) error
	PaidCourseIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListByReference(ctx context.Context, reference string, userID *uuid.UUID) ([]models.Enrollment, error)
	ApplyTransition(ctx context.Context, t enrollments.Transition) (*enrollments.TransitionResult, error)
}

// Gateway creates checkout sessions and reports invoice status.
type Gateway interface {
	CreateSession(ctx context.Context, req gateway.OrderRequest) (*gateway.Session, error)
	PollStatus(ctx context.Context, invoiceNumber string) (*gateway.StatusSnapshot, error)
}

// Notifier receives outcomes that changed stored state. Notify must not block.
type Notifier interface {
	Notify(o notifications.Outcome)
}

// Config holds service settings.
type Config struct {
	AppBaseURL  string        // storefront origin for callback URLs
	PaymentDue  time.Duration // checkout lifetime and draft TTL
	PollTimeout time.Duration // bound on the gateway status call in Verify
}

// Service is the payment order lifecycle.
type Service struct {
	catalog  Catalog
	store    EnrollmentStore
	gateway  Gateway
	alloc    *invoice.Allocator
	builder  *OrderBuilder
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a payment service. notifier may be nil.
func NewService(cat Catalog, store EnrollmentStore, gw Gateway, alloc *invoice.Allocator, notifier Notifier, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if alloc == nil {
		alloc = invoice.NewAllocator(nil)
	}
	if cfg.PaymentDue <= 0 {
		cfg.PaymentDue = 60 * time.Minute
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 15 * time.Second
	}
	return &Service{
		catalog:  cat,
		store:    store,
		gateway:  gw,
		alloc:    alloc,
		builder:  NewOrderBuilder(cfg.AppBaseURL, cfg.PaymentDue),
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}
