package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kelasvisa/payments/internal/catalog"
	"github.com/kelasvisa/payments/internal/gateway"
	"github.com/kelasvisa/payments/internal/invoice"
)

const currencyIDR = "IDR"

// PurchaseIntent is what a buyer asked to pay for. It lives for one request.
type PurchaseIntent struct {
	Kind       invoice.Kind
	CourseID   uuid.UUID
	CourseSlug string
	Price      int64
	Title      string
	BuyerID    uuid.UUID
	BuyerEmail string
	BuyerName  string
}

// OrderBuilder turns an intent into the gateway checkout request.
type OrderBuilder struct {
	appBaseURL string
	due        time.Duration
}

// NewOrderBuilder creates an OrderBuilder.
func NewOrderBuilder(appBaseURL string, due time.Duration) *OrderBuilder {
	return &OrderBuilder{appBaseURL: strings.TrimRight(appBaseURL, "/"), due: due}
}

// Build returns the checkout request for invoiceNumber. The amount is the
// intent's price: for a bundle that is the bundle's own listed price.
func (b *OrderBuilder) Build(intent PurchaseIntent, invoiceNumber string) (gateway.OrderRequest, error) {
	if intent.BuyerID == uuid.Nil {
		return gateway.OrderRequest{}, ErrNotAuthenticated
	}
	if intent.Price <= 0 {
		return gateway.OrderRequest{}, ErrInvalidAmount
	}
	success, cancel := b.callbackURLs(intent, invoiceNumber)
	return gateway.OrderRequest{
		Order: gateway.Order{
			Amount:            intent.Price,
			InvoiceNumber:     invoiceNumber,
			Currency:          currencyIDR,
			CallbackURL:       success,
			CallbackURLCancel: cancel,
			LineItems: []gateway.LineItem{{
				Name:     SanitizeItemName(intent.Title),
				Price:    intent.Price,
				Quantity: 1,
			}},
		},
		Payment: gateway.Payment{PaymentDueDate: int(b.due / time.Minute)},
		Customer: gateway.Customer{
			ID:    intent.BuyerID.String(),
			Name:  intent.BuyerName,
			Email: intent.BuyerEmail,
		},
	}, nil
}

func (b *OrderBuilder) callbackURLs(intent PurchaseIntent, invoiceNumber string) (success, cancel string) {
	q := url.Values{}
	q.Set("invoice", invoiceNumber)
	if intent.Kind == invoice.KindBundle {
		q.Set("type", "bundle")
		return b.appBaseURL + "/payment/success?" + q.Encode(), b.appBaseURL + "/pricing"
	}
	q.Set("type", "course")
	q.Set("slug", intent.CourseSlug)
	return b.appBaseURL + "/payment/success?" + q.Encode(), b.appBaseURL + "/courses/" + url.PathEscape(intent.CourseSlug)
}

// Buyer is the authenticated identity placing an order.
type Buyer struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// OrderInput selects what to buy. CourseID is ignored for bundles.
type OrderInput struct {
	IsBundle bool
	CourseID uuid.UUID
}

// OrderResult is the created checkout.
type OrderResult struct {
	PaymentURL    string
	InvoiceNumber string
}

// CreateOrder allocates an invoice, stores pending drafts and opens a
// checkout session. When the gateway call fails the drafts stay pending; a
// retry upserts onto the same rows.
func (s *Service) CreateOrder(ctx context.Context, buyer Buyer, in OrderInput) (*OrderResult, error) {
	if buyer.ID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	var (
		intent    PurchaseIntent
		courseIDs []uuid.UUID
		perCourse int64
		err       error
	)
	if in.IsBundle {
		intent, courseIDs, err = s.bundleIntent(ctx, buyer)
		if err != nil {
			return nil, err
		}
		perCourse = invoice.SplitAmount(intent.Price, len(courseIDs))
	} else {
		intent, err = s.courseIntent(ctx, buyer, in.CourseID)
		if err != nil {
			return nil, err
		}
		courseIDs = []uuid.UUID{intent.CourseID}
		perCourse = intent.Price
	}

	invoiceNumber := s.alloc.New(intent.Kind, intent.CourseID)
	req, err := s.builder.Build(intent, invoiceNumber)
	if err != nil {
		return nil, err
	}

	drafts := s.alloc.Drafts(invoiceNumber, buyer.ID, courseIDs, perCourse, s.cfg.PaymentDue)
	if err := s.store.UpsertDrafts(ctx, drafts); err != nil {
		return nil, fmt.Errorf("store drafts: %w", err)
	}

	session, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		var gerr *gateway.GatewayError
		s.logger.Error("create checkout failed",
			zap.String("invoice", invoiceNumber),
			zap.String("user_id", buyer.ID.String()),
			zap.Bool("retryable", errors.As(err, &gerr) && gerr.Temporary()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("checkout created",
		zap.String("invoice", invoiceNumber),
		zap.String("kind", string(intent.Kind)),
		zap.Int("courses", len(courseIDs)),
		zap.Int64("amount", intent.Price),
		zap.String("user_id", buyer.ID.String()),
	)
	return &OrderResult{PaymentURL: session.CheckoutURL, InvoiceNumber: invoiceNumber}, nil
}

func (s *Service) courseIntent(ctx context.Context, buyer Buyer, courseID uuid.UUID) (PurchaseIntent, error) {
	if courseID == uuid.Nil {
		return PurchaseIntent{}, ErrCourseNotFound
	}
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, catalog.ErrCourseNotFound) {
			return PurchaseIntent{}, ErrCourseNotFound
		}
		return PurchaseIntent{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if course.IsBundle {
		return PurchaseIntent{}, ErrCourseNotFound
	}
	paid, err := s.store.PaidCourseIDs(ctx, buyer.ID)
	if err != nil {
		return PurchaseIntent{}, fmt.Errorf("load paid courses: %w", err)
	}
	for _, id := range paid {
		if id == course.ID {
			return PurchaseIntent{}, ErrAlreadyEnrolled
		}
	}
	return PurchaseIntent{
		Kind:       invoice.KindSingle,
		CourseID:   course.ID,
		CourseSlug: course.Slug,
		Price:      course.Price,
		Title:      course.Title,
		BuyerID:    buyer.ID,
		BuyerEmail: buyer.Email,
		BuyerName:  buyer.Name,
	}, nil
}

func (s *Service) bundleIntent(ctx context.Context, buyer Buyer) (PurchaseIntent, []uuid.UUID, error) {
	bundle, err := s.catalog.GetBundle(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrBundleNotFound) {
			return PurchaseIntent{}, nil, ErrBundleNotFound
		}
		return PurchaseIntent{}, nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	all, err := s.catalog.ListCourseIDs(ctx)
	if err != nil {
		return PurchaseIntent{}, nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	paid, err := s.store.PaidCourseIDs(ctx, buyer.ID)
	if err != nil {
		return PurchaseIntent{}, nil, fmt.Errorf("load paid courses: %w", err)
	}
	courseIDs, err := invoice.UnownedCourses(all, bundle.ID, paid)
	if err != nil {
		return PurchaseIntent{}, nil, err
	}
	return PurchaseIntent{
		Kind:       invoice.KindBundle,
		CourseSlug: bundle.Slug,
		Price:      bundle.Price,
		Title:      bundle.Title,
		BuyerID:    buyer.ID,
		BuyerEmail: buyer.Email,
		BuyerName:  buyer.Name,
	}, courseIDs, nil
}
