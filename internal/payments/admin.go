package payments

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kelasvisa/payments/internal/enrollments"
	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/pkg/response"
)

// CallbackLister reads the delivery history of an invoice.
type CallbackLister interface {
	ListByInvoice(ctx context.Context, invoiceNumber string) ([]*models.PaymentCallback, error)
}

// InvoiceDetail is the operator view of one invoice.
type InvoiceDetail struct {
	InvoiceNumber string                    `json:"invoice_number"`
	Status        models.PaymentStatus      `json:"status"`
	Enrollments   []models.Enrollment       `json:"enrollments"`
	Callbacks     []*models.PaymentCallback `json:"callbacks"`
}

// AdminHandler serves operator endpoints for investigating payments.
type AdminHandler struct {
	store     EnrollmentStore
	callbacks CallbackLister
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(store EnrollmentStore, callbacks CallbackLister) *AdminHandler {
	return &AdminHandler{store: store, callbacks: callbacks}
}

// GetInvoice handles GET /admin/payments/:invoice. Mount behind RequireRole(admin).
func (h *AdminHandler) GetInvoice(c *gin.Context) {
	inv := c.Param("invoice")
	ctx := c.Request.Context()

	rows, err := h.store.ListByReference(ctx, inv, nil)
	if err != nil {
		response.Internal(c, "failed to load enrollments")
		return
	}
	cbs, err := h.callbacks.ListByInvoice(ctx, inv)
	if err != nil {
		response.Internal(c, "failed to load callbacks")
		return
	}
	if len(rows) == 0 && len(cbs) == 0 {
		response.NotFound(c, "invoice not found")
		return
	}

	detail := InvoiceDetail{InvoiceNumber: inv, Enrollments: rows, Callbacks: cbs}
	for _, e := range rows {
		detail.Status = enrollments.Settled(detail.Status, e.PaymentStatus)
	}
	response.OK(c, detail)
}
