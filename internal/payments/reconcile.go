package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kelasvisa/payments/internal/enrollments"
	"github.com/kelasvisa/payments/internal/gateway"
	"github.com/kelasvisa/payments/internal/metrics"
	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/internal/notifications"
)

// Source names the entry point that reported an outcome.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
)

// Outcome labels for logs and metrics.
const (
	OutcomeChanged  = "changed"
	OutcomeNoop     = "noop"
	OutcomeNotFound = "enrollment_not_found"
	OutcomeError    = "error"
)

// MapGatewayStatus translates gateway vocabulary. Anything other than
// SUCCESS, FAILED or EXPIRED is pending, which reconciles to a no-op.
func MapGatewayStatus(status string) models.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case gateway.StatusSuccess:
		return models.PaymentStatusPaid
	case gateway.StatusFailed:
		return models.PaymentStatusFailed
	case gateway.StatusExpired:
		return models.PaymentStatusExpired
	default:
		return models.PaymentStatusPending
	}
}

// ReconcileRequest is one gateway-reported outcome for an invoice.
type ReconcileRequest struct {
	InvoiceNumber string
	GatewayStatus string
	ChannelID     string
	Amount        int64      // invoice total reported by the gateway
	BuyerID       *uuid.UUID // set on the poll path only
	Source        Source
}

// ReconcileResult is the invoice status after reconciliation.
type ReconcileResult struct {
	Status  models.PaymentStatus
	Changed bool
}

// Reconcile applies a gateway outcome to every enrollment of the invoice.
// Webhook and poll requests for the same invoice may run concurrently, in
// any process; the store serializes them and only the first one to move the
// rows reports Changed and triggers a notification.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	status := MapGatewayStatus(req.GatewayStatus)
	if status == models.PaymentStatusPending {
		metrics.ObserveReconciliation(string(req.Source), string(status), OutcomeNoop)
		return &ReconcileResult{Status: status}, nil
	}

	t := enrollments.Transition{
		Reference:   req.InvoiceNumber,
		UserID:      req.BuyerID,
		Status:      status,
		At:          s.alloc.Now().UTC(),
		Channel:     req.ChannelID,
		TotalAmount: req.Amount,
	}
	if status == models.PaymentStatusPaid {
		t.Method = MapChannel(req.ChannelID)
	}

	res, err := s.store.ApplyTransition(ctx, t)
	if err != nil {
		if errors.Is(err, enrollments.ErrNotFound) {
			metrics.ObserveReconciliation(string(req.Source), string(status), OutcomeNotFound)
			return nil, ErrEnrollmentNotFound
		}
		metrics.ObserveReconciliation(string(req.Source), string(status), OutcomeError)
		return nil, fmt.Errorf("apply %s to %s: %w", status, req.InvoiceNumber, err)
	}

	outcome := OutcomeNoop
	if res.Updated > 0 {
		outcome = OutcomeChanged
	}
	metrics.ObserveReconciliation(string(req.Source), string(status), outcome)
	s.logger.Info("payment reconciled",
		zap.String("invoice", req.InvoiceNumber),
		zap.String("source", string(req.Source)),
		zap.String("gateway_status", req.GatewayStatus),
		zap.String("status", string(res.Status)),
		zap.String("outcome", outcome),
		zap.Int("rows", res.Matched),
		zap.Int("updated", res.Updated),
	)

	if res.Updated > 0 && s.notifier != nil {
		s.notifier.Notify(notifications.Outcome{
			UserID:        res.UserID,
			InvoiceNumber: req.InvoiceNumber,
			Status:        res.Status,
			CourseIDs:     res.CourseIDs,
			Amount:        req.Amount,
			Channel:       req.ChannelID,
			At:            t.At,
		})
	}
	return &ReconcileResult{Status: res.Status, Changed: res.Updated > 0}, nil
}
