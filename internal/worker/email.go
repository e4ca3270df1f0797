package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kelasvisa/payments/internal/metrics"
	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/pkg/queue"
)

// JobQueue is the email job queue.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Sender delivers one HTML email.
type Sender interface {
	Send(to, subject, html string) error
}

// LogStore records delivery attempts.
type LogStore interface {
	Insert(ctx context.Context, el *models.EmailLog) error
}

// EmailProcessor sends queued payment emails and logs every attempt.
type EmailProcessor struct {
	queue   JobQueue
	sender  Sender
	logs    LogStore
	backoff time.Duration
	logger  *zap.Logger
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(q JobQueue, sender Sender, logs LogStore, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{queue: q, sender: sender, logs: logs, backoff: queue.RetryBackoff, logger: logger}
}

// SetBackoff overrides the pause after a failed job.
func (p *EmailProcessor) SetBackoff(d time.Duration) { p.backoff = d }

// Process sends one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypePaymentEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RecipientEmail == "" {
		p.logger.Warn("email job without recipient", zap.String("job_id", job.ID), zap.String("reference", payload.Reference))
		return nil
	}

	sendErr := p.sender.Send(payload.RecipientEmail, payload.Subject, payload.BodyHTML)

	entry := &models.EmailLog{
		Reference:      payload.Reference,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
		Status:         models.EmailLogStatusSent,
	}
	if payload.UserID != uuid.Nil {
		uid := payload.UserID
		entry.UserID = &uid
	}
	if sendErr != nil {
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = sendErr.Error()
	} else {
		now := time.Now().UTC()
		entry.SentAt = &now
	}
	if err := p.logs.Insert(ctx, entry); err != nil {
		p.logger.Warn("email log insert failed", zap.String("reference", payload.Reference), zap.Error(err))
	}

	if sendErr != nil {
		metrics.EmailDeliveries.WithLabelValues(models.EmailLogStatusFailed).Inc()
		return fmt.Errorf("send %s to %s: %w", payload.EmailType, payload.RecipientEmail, sendErr)
	}
	metrics.EmailDeliveries.WithLabelValues(models.EmailLogStatusSent).Inc()
	p.logger.Info("payment email sent",
		zap.String("reference", payload.Reference),
		zap.String("email_type", payload.EmailType),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}
		if !p.step(ctx) {
			p.sleep(ctx)
		}
	}
}

// step handles at most one job. It returns false when the loop should pause.
func (p *EmailProcessor) step(ctx context.Context) bool {
	job, _, err := p.queue.Dequeue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("dequeue error", zap.Error(err))
		}
		return false
	}
	if job == nil {
		return true
	}

	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	if err := p.Process(ctx, job); err != nil {
		p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		if reErr := p.queue.Retry(ctx, job); reErr != nil {
			p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		}
		return false
	}
	return true
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
