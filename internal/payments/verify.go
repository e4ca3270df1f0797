package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kelasvisa/payments/internal/enrollments"
	"github.com/kelasvisa/payments/internal/invoice"
	"github.com/kelasvisa/payments/internal/models"
)

// VerifyResult is what the buyer sees after returning from checkout.
type VerifyResult struct {
	Status  models.PaymentStatus
	Message string
}

var statusMessages = map[models.PaymentStatus]string{
	models.PaymentStatusPaid:     "Payment successful. Your course is now available.",
	models.PaymentStatusPending:  "Your payment is still being processed. This can take a few minutes.",
	models.PaymentStatusFailed:   "Payment failed. Please try again.",
	models.PaymentStatusExpired:  "Payment expired. Please place a new order.",
	models.PaymentStatusRefunded: "This payment has been refunded.",
}

func verifyResult(status models.PaymentStatus) *VerifyResult {
	return &VerifyResult{Status: status, Message: statusMessages[status]}
}

// Verify reports the buyer's invoice status, asking the gateway when the
// stored rows are still pending. Only the buyer's own rows are read and
// updated, so an invoice placed by someone else reads as pending. A gateway
// that is slow, unreachable or still pending also yields pending, never an
// error; the notification settles the invoice later.
func (s *Service) Verify(ctx context.Context, buyerID uuid.UUID, invoiceNumber string) (*VerifyResult, error) {
	if buyerID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if _, ok := invoice.KindOf(invoiceNumber); !ok {
		return nil, ErrInvalidInvoice
	}

	rows, err := s.store.ListByReference(ctx, invoiceNumber, &buyerID)
	if err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	if len(rows) == 0 {
		s.logger.Warn("verify found no rows for buyer, reporting pending",
			zap.String("invoice", invoiceNumber),
			zap.String("user_id", buyerID.String()),
		)
		return verifyResult(models.PaymentStatusPending), nil
	}
	var current models.PaymentStatus
	for _, e := range rows {
		current = enrollments.Settled(current, e.PaymentStatus)
	}
	if current.Terminal() {
		return verifyResult(current), nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	defer cancel()
	snap, err := s.gateway.PollStatus(pollCtx, invoiceNumber)
	if err != nil {
		s.logger.Warn("status poll failed, reporting pending",
			zap.String("invoice", invoiceNumber),
			zap.String("user_id", buyerID.String()),
			zap.Error(err),
		)
		return verifyResult(models.PaymentStatusPending), nil
	}

	res, err := s.Reconcile(ctx, ReconcileRequest{
		InvoiceNumber: invoiceNumber,
		GatewayStatus: snap.Status,
		ChannelID:     snap.ChannelID,
		Amount:        snap.Amount,
		BuyerID:       &buyerID,
		Source:        SourcePoll,
	})
	if err != nil {
		if !errors.Is(err, ErrEnrollmentNotFound) {
			s.logger.Error("poll reconciliation failed, reporting pending",
				zap.String("invoice", invoiceNumber),
				zap.Error(err),
			)
		}
		return verifyResult(models.PaymentStatusPending), nil
	}
	return verifyResult(res.Status), nil
}
