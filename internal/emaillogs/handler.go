package emaillogs

import (
	"github.com/gin-gonic/gin"

	"github.com/kelasvisa/payments/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListByInvoice handles GET /admin/payments/:invoice/emails.
// Mount behind RequireRole(admin).
func (h *Handler) ListByInvoice(c *gin.Context) {
	invoice := c.Param("invoice")
	if invoice == "" {
		response.BadRequest(c, "invoice is required")
		return
	}
	logs, err := h.repo.ListByReference(c.Request.Context(), invoice)
	if err != nil {
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
