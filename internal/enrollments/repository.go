package enrollments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kelasvisa/payments/internal/invoice"
	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/pkg/database"
)

// ErrNotFound is returned when no enrollment row references an invoice.
var ErrNotFound = errors.New("enrollment not found")

// Transition is a gateway-reported terminal status applied to every row of an invoice.
type Transition struct {
	Reference   string
	UserID      *uuid.UUID // scopes the update to one buyer; nil for system-trusted callers
	Status      models.PaymentStatus
	At          time.Time
	Method      models.PaymentMethod
	Channel     string
	TotalAmount int64 // gateway-reported invoice total; <= 0 keeps the drafted amounts
}

// TransitionResult describes what the store did.
type TransitionResult struct {
	Matched   int                  // rows referencing the invoice (within scope)
	Updated   int                  // rows whose status actually changed
	Status    models.PaymentStatus // status now stored for the invoice
	UserID    uuid.UUID
	CourseIDs []uuid.UUID
	PerRow    int64 // amount_paid written per row when paid
}

// Repository handles enrollment persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an enrollments repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const upsertDraftSQL = `INSERT INTO enrollments
		(id, user_id, course_id, payment_status, payment_reference, amount_paid, expires_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	ON CONFLICT (user_id, course_id) DO UPDATE SET
		payment_status = EXCLUDED.payment_status,
		payment_reference = EXCLUDED.payment_reference,
		amount_paid = EXCLUDED.amount_paid,
		expires_at = EXCLUDED.expires_at,
		payment_method = NULL,
		payment_channel = NULL,
		purchased_at = NULL,
		updated_at = EXCLUDED.updated_at
	WHERE enrollments.payment_status NOT IN ('paid', 'refunded')`

// UpsertDrafts inserts pending drafts, overwriting any unpaid row for the same
// (user, course). A paid row is never touched. All drafts commit together.
// Rows are written in (user, course) order, the order ApplyTransition locks in.
func (r *Repository) UpsertDrafts(ctx context.Context, drafts []models.Enrollment) error {
	if len(drafts) == 0 {
		return nil
	}
	drafts = slices.Clone(drafts)
	slices.SortFunc(drafts, func(a, b models.Enrollment) int {
		if c := bytes.Compare(a.UserID[:], b.UserID[:]); c != 0 {
			return c
		}
		return bytes.Compare(a.CourseID[:], b.CourseID[:])
	})
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, d := range drafts {
		if _, err := tx.Exec(ctx, upsertDraftSQL,
			d.ID, d.UserID, d.CourseID, string(d.PaymentStatus), d.PaymentReference, d.AmountPaid, d.ExpiresAt, d.CreatedAt,
		); err != nil {
			return fmt.Errorf("upsert enrollment %s: %w", d.CourseID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// PaidCourseIDs returns the courses userID has paid for.
func (r *Repository) PaidCourseIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT course_id FROM enrollments WHERE user_id = $1 AND payment_status = 'paid'`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByReference returns the rows of an invoice, optionally scoped to one buyer.
func (r *Repository) ListByReference(ctx context.Context, reference string, userID *uuid.UUID) ([]models.Enrollment, error) {
	q := `SELECT id, user_id, course_id, payment_status, payment_method, payment_reference, payment_channel,
		amount_paid, purchased_at, expires_at, created_at, updated_at
		FROM enrollments WHERE payment_reference = $1`
	args := []any{reference}
	if userID != nil {
		q += ` AND user_id = $2`
		args = append(args, *userID)
	}
	q += ` ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Enrollment
	for rows.Next() {
		var e models.Enrollment
		var status string
		var method *string
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &status, &method, &e.PaymentReference, &e.PaymentChannel,
			&e.AmountPaid, &e.PurchasedAt, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.PaymentStatus = models.PaymentStatus(status)
		if method != nil {
			m := models.PaymentMethod(*method)
			e.PaymentMethod = &m
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// ApplyTransition moves every row of t.Reference to t.Status in one
// transaction. The rows are locked first. Paid applies to any row that is not
// already paid or refunded; failed and expired apply only to pending rows. A
// repeated delivery changes nothing and a settled row never moves sideways.
func (r *Repository) ApplyTransition(ctx context.Context, t Transition) (*TransitionResult, error) {
	if !t.Status.Terminal() {
		return nil, fmt.Errorf("transition to non-terminal status %q", t.Status)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := lockRows(ctx, tx, t)
	if err != nil {
		return nil, err
	}
	if res.Matched == 0 {
		return nil, ErrNotFound
	}

	var (
		q    string
		args []any
	)
	if t.Status == models.PaymentStatusPaid {
		var amount *int64
		if t.TotalAmount > 0 {
			per := invoice.SplitAmount(t.TotalAmount, res.Matched)
			amount = &per
			res.PerRow = per
		}
		q = `UPDATE enrollments SET payment_status = $1, purchased_at = $2, expires_at = NULL,
			payment_method = $3, payment_channel = $4, amount_paid = COALESCE($5, amount_paid), updated_at = $2
			WHERE payment_reference = $6 AND payment_status NOT IN ($1, 'paid', 'refunded')`
		args = []any{string(t.Status), t.At, string(t.Method), t.Channel, amount, t.Reference}
	} else {
		q = `UPDATE enrollments SET payment_status = $1, updated_at = $2
			WHERE payment_reference = $3 AND payment_status = 'pending'`
		args = []any{string(t.Status), t.At, t.Reference}
	}
	if t.UserID != nil {
		q += fmt.Sprintf(" AND user_id = $%d", len(args)+1)
		args = append(args, *t.UserID)
	}

	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("update enrollments: %w", err)
	}
	res.Updated = int(tag.RowsAffected())
	if res.Updated > 0 {
		res.Status = t.Status
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func lockRows(ctx context.Context, tx pgx.Tx, t Transition) (*TransitionResult, error) {
	q := `SELECT user_id, course_id, payment_status FROM enrollments WHERE payment_reference = $1`
	args := []any{t.Reference}
	if t.UserID != nil {
		q += ` AND user_id = $2`
		args = append(args, *t.UserID)
	}
	q += ` ORDER BY user_id, course_id FOR UPDATE`

	rows, err := tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("lock enrollments: %w", err)
	}
	defer rows.Close()

	res := &TransitionResult{}
	for rows.Next() {
		var userID, courseID uuid.UUID
		var status string
		if err := rows.Scan(&userID, &courseID, &status); err != nil {
			return nil, err
		}
		res.Matched++
		res.UserID = userID
		res.CourseIDs = append(res.CourseIDs, courseID)
		res.Status = Settled(res.Status, models.PaymentStatus(status))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Settled folds row statuses into the invoice status: paid wins, then any
// other terminal status, then pending.
func Settled(current, next models.PaymentStatus) models.PaymentStatus {
	switch {
	case current == "":
		return next
	case current == models.PaymentStatusPaid || next == models.PaymentStatusPaid:
		return models.PaymentStatusPaid
	case current == models.PaymentStatusPending:
		return next
	}
	return current
}
