package payments

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kelasvisa/payments/internal/catalog"
	"github.com/kelasvisa/payments/internal/enrollments"
	"github.com/kelasvisa/payments/internal/gateway"
	"github.com/kelasvisa/payments/internal/invoice"
	"github.com/kelasvisa/payments/internal/models"
	"github.com/kelasvisa/payments/internal/notifications"
)

type enrollmentKey struct {
	user, course uuid.UUID
}

// memStore mirrors the SQL repository: drafts never overwrite paid rows, paid
// settles anything unpaid and failed or expired only settle pending rows.
type memStore struct {
	mu          sync.Mutex
	rows        map[enrollmentKey]*models.Enrollment
	transitions atomic.Int32
	applyErr    error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[enrollmentKey]*models.Enrollment)}
}

func (m *memStore) UpsertDrafts(_ context.Context, drafts []models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range drafts {
		k := enrollmentKey{d.UserID, d.CourseID}
		if cur, ok := m.rows[k]; ok && (cur.PaymentStatus == models.PaymentStatusPaid || cur.PaymentStatus == models.PaymentStatusRefunded) {
			continue
		}
		d := d
		m.rows[k] = &d
	}
	return nil
}

func (m *memStore) PaidCourseIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for k, e := range m.rows {
		if k.user == userID && e.PaymentStatus == models.PaymentStatusPaid {
			ids = append(ids, k.course)
		}
	}
	return ids, nil
}

func (m *memStore) ListByReference(_ context.Context, ref string, userID *uuid.UUID) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.rows {
		if e.PaymentReference == ref && (userID == nil || e.UserID == *userID) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) ApplyTransition(_ context.Context, t enrollments.Transition) (*enrollments.TransitionResult, error) {
	m.transitions.Add(1)
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.Enrollment
	for _, e := range m.rows {
		if e.PaymentReference == t.Reference && (t.UserID == nil || e.UserID == *t.UserID) {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return nil, enrollments.ErrNotFound
	}
	res := &enrollments.TransitionResult{Matched: len(matched)}
	for _, e := range matched {
		res.UserID = e.UserID
		res.CourseIDs = append(res.CourseIDs, e.CourseID)
		res.Status = enrollments.Settled(res.Status, e.PaymentStatus)
	}
	var per int64
	if t.Status == models.PaymentStatusPaid && t.TotalAmount > 0 {
		per = invoice.SplitAmount(t.TotalAmount, len(matched))
		res.PerRow = per
	}
	for _, e := range matched {
		if e.PaymentStatus == t.Status || e.PaymentStatus == models.PaymentStatusPaid || e.PaymentStatus == models.PaymentStatusRefunded {
			continue
		}
		if t.Status != models.PaymentStatusPaid && e.PaymentStatus != models.PaymentStatusPending {
			continue
		}
		e.PaymentStatus = t.Status
		e.UpdatedAt = t.At
		if t.Status == models.PaymentStatusPaid {
			at, method, channel := t.At, t.Method, t.Channel
			e.PurchasedAt = &at
			e.ExpiresAt = nil
			e.PaymentMethod = &method
			e.PaymentChannel = &channel
			if per > 0 {
				e.AmountPaid = per
			}
		}
		res.Updated++
	}
	if res.Updated > 0 {
		res.Status = t.Status
	}
	return res, nil
}

func (m *memStore) byReference(ref string) []models.Enrollment {
	rows, _ := m.ListByReference(context.Background(), ref, nil)
	return rows
}

type fakeCatalog struct {
	courses map[uuid.UUID]*models.Course
	bundle  *models.Course
	err     error
}

func (f *fakeCatalog) GetCourse(_ context.Context, id uuid.UUID) (*models.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.courses[id]
	if !ok {
		return nil, catalog.ErrCourseNotFound
	}
	return c, nil
}

func (f *fakeCatalog) GetBundle(context.Context) (*models.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.bundle == nil {
		return nil, catalog.ErrBundleNotFound
	}
	return f.bundle, nil
}

func (f *fakeCatalog) ListCourseIDs(context.Context) ([]uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	var ids []uuid.UUID
	for id := range f.courses {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeGateway struct {
	CreateSessionFunc func(ctx context.Context, req gateway.OrderRequest) (*gateway.Session, error)
	PollStatusFunc    func(ctx context.Context, invoiceNumber string) (*gateway.StatusSnapshot, error)
	polls             atomic.Int32
}

func (f *fakeGateway) CreateSession(ctx context.Context, req gateway.OrderRequest) (*gateway.Session, error) {
	return f.CreateSessionFunc(ctx, req)
}

func (f *fakeGateway) PollStatus(ctx context.Context, invoiceNumber string) (*gateway.StatusSnapshot, error) {
	f.polls.Add(1)
	return f.PollStatusFunc(ctx, invoiceNumber)
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []notifications.Outcome
}

func (r *recordingNotifier) Notify(o notifications.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}
