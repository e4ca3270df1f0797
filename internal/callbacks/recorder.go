package callbacks

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/pkg/storage"
)

// Store persists callback rows.
type Store interface {
	Insert(ctx context.Context, cb *models.PaymentCallback) error
}

// Archive stores raw payloads outside the database.
type Archive interface {
	PutJSON(ctx context.Context, key string, body []byte) error
}

// Recorder writes the delivery history. Recording is best-effort: failures
// are logged and never change the response sent to the gateway.
type Recorder struct {
	store   Store
	archive Archive
	logger  *zap.Logger
}

// NewRecorder creates a Recorder. archive may be nil to skip S3.
func NewRecorder(store Store, archive Archive, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, archive: archive, logger: logger}
}

// Record archives the raw body (when configured) and stores the history row.
func (r *Recorder) Record(ctx context.Context, cb *models.PaymentCallback) {
	if r == nil {
		return
	}
	if r.archive != nil && cb.InvoiceNumber != "" {
		key := storage.CallbackKey(cb.InvoiceNumber, cb.RequestID)
		if err := r.archive.PutJSON(ctx, key, cb.Payload); err != nil {
			r.logger.Warn("archive callback failed", zap.String("invoice", cb.InvoiceNumber), zap.Error(err))
		} else {
			cb.ArchiveKey = key
		}
	}
	r.insert(ctx, cb)
}

// RecordRejected stores a history row for a delivery that failed
// authentication. The body is neither archived nor stored.
func (r *Recorder) RecordRejected(ctx context.Context, cb *models.PaymentCallback) {
	if r == nil {
		return
	}
	cb.Payload = json.RawMessage(`{}`)
	cb.ArchiveKey = ""
	r.insert(ctx, cb)
}

func (r *Recorder) insert(ctx context.Context, cb *models.PaymentCallback) {
	if err := r.store.Insert(ctx, cb); err != nil {
		r.logger.Warn("record callback failed",
			zap.String("invoice", cb.InvoiceNumber),
			zap.String("outcome", cb.Outcome),
			zap.Error(err),
		)
	}
}
