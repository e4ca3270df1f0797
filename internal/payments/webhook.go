package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kelasvisa/payments/internal/gateway"
	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/internal/signature"
)

const (
	maxNotificationBytes = 1 << 20
	recordTimeout        = 5 * time.Second
)

// NotificationVerifier authenticates inbound gateway notifications.
type NotificationVerifier interface {
	VerifyRequest(h http.Header, target string, body []byte) bool
}

// CallbackRecorder keeps the delivery history. RecordRejected is used for
// deliveries that failed authentication and must not store their body.
type CallbackRecorder interface {
	Record(ctx context.Context, cb *models.PaymentCallback)
	RecordRejected(ctx context.Context, cb *models.PaymentCallback)
}

// WebhookHandler serves POST /payments/notification.
//
// Business outcomes, including an unknown invoice or an unreadable body,
// answer 200 so the gateway does not retry them. Only a store failure
// answers 500, which asks the gateway to deliver again.
type WebhookHandler struct {
	svc      *Service
	verifier NotificationVerifier // nil disables signature checks
	target   string
	recorder CallbackRecorder
	logger   *zap.Logger
}

// NewWebhookHandler creates the notification handler. target is the
// Request-Target the gateway signs, normally the notification path.
func NewWebhookHandler(svc *Service, verifier NotificationVerifier, target string, recorder CallbackRecorder, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, verifier: verifier, target: target, recorder: recorder, logger: logger}
}

// Notification handles one gateway delivery.
func (h *WebhookHandler) Notification(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := c.GetHeader(signature.HeaderRequestID)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBytes))
	if err != nil {
		h.logger.Warn("read notification body failed", zap.String("request_id", requestID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "unreadable body"})
		return
	}

	cb := &models.PaymentCallback{RequestID: requestID, Payload: body}
	var n gateway.Notification
	parseErr := json.Unmarshal(body, &n)
	snap := n.Snapshot()
	cb.InvoiceNumber = snap.InvoiceNumber
	cb.GatewayStatus = snap.Status

	if h.verifier != nil && !h.verifier.VerifyRequest(c.Request.Header, h.target, body) {
		h.logger.Warn("notification signature rejected",
			zap.String("request_id", requestID),
			zap.String("invoice", snap.InvoiceNumber),
			zap.String("client_ip", c.ClientIP()),
		)
		h.recordRejected(c, cb)
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid signature"})
		return
	}
	if parseErr != nil || snap.InvoiceNumber == "" {
		h.logger.Warn("malformed notification", zap.String("request_id", requestID), zap.Error(parseErr))
		h.record(c, cb, models.CallbackOutcomeInvalid)
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "malformed notification"})
		return
	}

	res, err := h.svc.Reconcile(ctx, ReconcileRequest{
		InvoiceNumber: snap.InvoiceNumber,
		GatewayStatus: snap.Status,
		ChannelID:     snap.ChannelID,
		Amount:        snap.Amount,
		Source:        SourceWebhook,
	})
	switch {
	case errors.Is(err, ErrEnrollmentNotFound):
		h.logger.Warn("notification for unknown invoice",
			zap.String("invoice", snap.InvoiceNumber),
			zap.String("gateway_status", snap.Status),
			zap.String("request_id", requestID),
			zap.String("outcome", OutcomeNotFound),
		)
		h.record(c, cb, models.CallbackOutcomeNotFound)
		c.JSON(http.StatusOK, gin.H{"status": OutcomeNotFound, "invoice_number": snap.InvoiceNumber})
	case err != nil:
		h.logger.Error("notification reconciliation failed",
			zap.String("invoice", snap.InvoiceNumber),
			zap.String("request_id", requestID),
			zap.String("outcome", OutcomeError),
			zap.Error(err),
		)
		h.record(c, cb, models.CallbackOutcomeError)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "internal error"})
	default:
		outcome := models.CallbackOutcomeNoop
		if res.Changed {
			outcome = models.CallbackOutcomeChanged
		}
		h.record(c, cb, outcome)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "invoice_number": snap.InvoiceNumber, "payment_status": res.Status})
	}
}

func (h *WebhookHandler) record(c *gin.Context, cb *models.PaymentCallback, outcome string) {
	if h.recorder == nil {
		return
	}
	cb.Outcome = outcome
	ctx, cancel := context.WithTimeout(c.Request.Context(), recordTimeout)
	defer cancel()
	h.recorder.Record(ctx, cb)
}

func (h *WebhookHandler) recordRejected(c *gin.Context, cb *models.PaymentCallback) {
	if h.recorder == nil {
		return
	}
	cb.Outcome = models.CallbackOutcomeInvalid
	ctx, cancel := context.WithTimeout(c.Request.Context(), recordTimeout)
	defer cancel()
	h.recorder.RecordRejected(ctx, cb)
}
