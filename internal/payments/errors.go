package payments

import (
	"errors"

	"github.com/kelasvisa/payments/internal/catalog"
	"github.com/kelasvisa/payments/internal/enrollments"
	"github.com/kelasvisa/payments/internal/invoice"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this course")
	ErrAlreadyOwnsAll     = invoice.ErrAlreadyOwnsAll
	ErrBundleNotFound     = catalog.ErrBundleNotFound
	ErrCourseNotFound     = catalog.ErrCourseNotFound
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidInvoice     = errors.New("invalid invoice number")
	ErrEnrollmentNotFound = enrollments.ErrNotFound
)
