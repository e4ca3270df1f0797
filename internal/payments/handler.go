package payments

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kelasvisa/payments/internal/gateway"
	"github.com/kelasvisa/payments/internal/middleware"
	"github.com/kelasvisa/payments/pkg/response"
)

// CreateOrderRequest is the body for POST /payments/orders. Slug, name and
// price are what the storefront displayed; the catalog is authoritative.
type CreateOrderRequest struct {
	IsBundle    bool   `json:"isBundle"`
	CourseID    string `json:"courseId"`
	CourseSlug  string `json:"courseSlug"`
	CourseName  string `json:"courseName"`
	CoursePrice int64  `json:"coursePrice"`
}

// CreateOrderResponse is the success body for POST /payments/orders.
type CreateOrderResponse struct {
	Success       bool   `json:"success"`
	PaymentURL    string `json:"paymentUrl,omitempty"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
}

// VerifyRequest is the body for POST /payments/verify.
type VerifyRequest struct {
	InvoiceNumber string `json:"invoiceNumber" binding:"required"`
}

// VerifyResponse is the success body for POST /payments/verify.
type VerifyResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Handler serves the buyer-facing payment endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateOrder handles POST /payments/orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	buyerID, email, name, ok := middleware.Buyer(c)
	if !ok {
		h.fail(c, ErrNotAuthenticated)
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in := OrderInput{IsBundle: req.IsBundle}
	if !req.IsBundle {
		id, err := uuid.Parse(strings.TrimSpace(req.CourseID))
		if err != nil {
			response.BadRequest(c, "invalid courseId")
			return
		}
		in.CourseID = id
	}

	res, err := h.svc.CreateOrder(c.Request.Context(), Buyer{ID: buyerID, Email: email, Name: name}, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CreateOrderResponse{Success: true, PaymentURL: res.PaymentURL, InvoiceNumber: res.InvoiceNumber})
}

// Verify handles POST /payments/verify, called when the buyer is redirected
// back from checkout.
func (h *Handler) Verify(c *gin.Context) {
	buyerID, _, _, ok := middleware.Buyer(c)
	if !ok {
		h.fail(c, ErrNotAuthenticated)
		return
	}
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invoiceNumber is required")
		return
	}
	res, err := h.svc.Verify(c.Request.Context(), buyerID, req.InvoiceNumber)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, VerifyResponse{Success: true, Status: string(res.Status), Message: res.Message})
}

func (h *Handler) fail(c *gin.Context, err error) {
	var gerr *gateway.GatewayError
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		response.Unauthorized(c, "please sign in to continue")
	case errors.Is(err, ErrAlreadyEnrolled):
		response.Conflict(c, "you are already enrolled in this course")
	case errors.Is(err, ErrAlreadyOwnsAll):
		response.Conflict(c, "you already own every course in the bundle")
	case errors.Is(err, ErrCourseNotFound):
		response.NotFound(c, "course not found")
	case errors.Is(err, ErrBundleNotFound):
		response.NotFound(c, "bundle not found")
	case errors.Is(err, ErrEnrollmentNotFound):
		response.NotFound(c, "order not found")
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(c, "this course is not available for purchase")
	case errors.Is(err, ErrInvalidInvoice):
		response.BadRequest(c, "invalid invoice number")
	case errors.Is(err, ErrCatalogUnavailable):
		h.logger.Error("catalog lookup failed", zap.Error(err))
		response.ServiceUnavailable(c, "catalog is temporarily unavailable, please try again")
	case errors.As(err, &gerr):
		response.BadGateway(c, "payment gateway is unavailable, please try again")
	default:
		h.logger.Error("payment request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "something went wrong, please try again")
	}
}
