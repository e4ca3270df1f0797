package payments

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kelasvisa/payments/internal/gateway"
	"github.com/kelasvisa/payments/internal/invoice"
	"github.com/kelasvisa/payments/internal/models"
)

type fixture struct {
	svc      *Service
	store    *memStore
	catalog  *fakeCatalog
	gw       *fakeGateway
	notifier *recordingNotifier
	now      time.Time
	buyer    Buyer
	course   *models.Course
	lastReq  gateway.OrderRequest
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		notifier: &recordingNotifier{},
		now:      time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		buyer:    Buyer{ID: uuid.New(), Email: "budi@example.com", Name: "Budi"},
		course: &models.Course{
			ID:          uuid.New(),
			Slug:        "belajar-visa",
			Title:       "Belajar Visa & Imigrasi",
			Price:       99000,
			IsPublished: true,
		},
	}
	f.catalog = &fakeCatalog{courses: map[uuid.UUID]*models.Course{f.course.ID: f.course}}
	f.gw = &fakeGateway{
		CreateSessionFunc: func(_ context.Context, req gateway.OrderRequest) (*gateway.Session, error) {
			f.lastReq = req
			return &gateway.Session{
				CheckoutURL:   "https://sandbox.doku.com/checkout-link-v2/" + req.Order.InvoiceNumber,
				InvoiceNumber: req.Order.InvoiceNumber,
			}, nil
		},
		PollStatusFunc: func(_ context.Context, inv string) (*gateway.StatusSnapshot, error) {
			return &gateway.StatusSnapshot{InvoiceNumber: inv, Status: gateway.StatusPending}, nil
		},
	}
	alloc := invoice.NewAllocator(func() time.Time { return f.now })
	f.svc = NewService(f.catalog, f.store, f.gw, alloc, f.notifier, Config{
		AppBaseURL:  "https://kelasvisa.id",
		PaymentDue:  60 * time.Minute,
		PollTimeout: time.Second,
	}, nil)
	return f
}

func (f *fixture) addBundle(price int64, courses int) []uuid.UUID {
	var ids []uuid.UUID
	for i := 0; i < courses; i++ {
		c := &models.Course{ID: uuid.New(), Slug: "course-" + string(rune('a'+i)), Title: "Course", Price: 99000}
		f.catalog.courses[c.ID] = c
		ids = append(ids, c.ID)
	}
	f.catalog.bundle = &models.Course{ID: uuid.New(), Slug: "all-access", Title: "All Access Bundle", Price: price, IsBundle: true}
	return ids
}

func (f *fixture) markPaid(courseID uuid.UUID) {
	paid := models.Enrollment{
		ID: uuid.New(), UserID: f.buyer.ID, CourseID: courseID,
		PaymentStatus: models.PaymentStatusPaid, PaymentReference: "INV-OLD",
	}
	f.store.rows[enrollmentKey{f.buyer.ID, courseID}] = &paid
}

var singleInvoicePattern = regexp.MustCompile(`^INV-\d+-[0-9a-f]{1,8}$`)

func TestCreateOrderSingle(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{CourseID: f.course.ID})
	require.NoError(t, err)

	assert.Regexp(t, singleInvoicePattern, res.InvoiceNumber)
	assert.True(t, strings.HasSuffix(res.InvoiceNumber, strings.ReplaceAll(f.course.ID.String(), "-", "")[:8]))
	assert.Equal(t, "https://sandbox.doku.com/checkout-link-v2/"+res.InvoiceNumber, res.PaymentURL)

	rows := f.store.byReference(res.InvoiceNumber)
	require.Len(t, rows, 1)
	assert.Equal(t, models.PaymentStatusPending, rows[0].PaymentStatus)
	assert.Equal(t, int64(99000), rows[0].AmountPaid)
	require.NotNil(t, rows[0].ExpiresAt)
	assert.Equal(t, f.now.Add(60*time.Minute), *rows[0].ExpiresAt)

	req := f.lastReq
	assert.Equal(t, int64(99000), req.Order.Amount)
	assert.Equal(t, "IDR", req.Order.Currency)
	assert.Equal(t, 60, req.Payment.PaymentDueDate)
	assert.Equal(t, "Belajar Visa and Imigrasi", req.Order.LineItems[0].Name)
	assert.Equal(t, "https://kelasvisa.id/payment/success?invoice="+res.InvoiceNumber+"&slug=belajar-visa&type=course", req.Order.CallbackURL)
	assert.Equal(t, "https://kelasvisa.id/courses/belajar-visa", req.Order.CallbackURLCancel)
	assert.Equal(t, f.buyer.ID.String(), req.Customer.ID)
	assert.Equal(t, "budi@example.com", req.Customer.Email)
}

func TestCreateOrderBundleSkipsOwnedCourses(t *testing.T) {
	f := newFixture(t)
	delete(f.catalog.courses, f.course.ID)
	ids := f.addBundle(999000, 3)
	f.markPaid(ids[1])

	res, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{IsBundle: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.InvoiceNumber, "INV-BUNDLE-"))

	rows := f.store.byReference(res.InvoiceNumber)
	require.Len(t, rows, 2)
	var got []uuid.UUID
	for _, r := range rows {
		got = append(got, r.CourseID)
		assert.Equal(t, int64(499500), r.AmountPaid)
	}
	assert.ElementsMatch(t, []uuid.UUID{ids[0], ids[2]}, got)

	assert.Equal(t, int64(999000), f.lastReq.Order.Amount)
	assert.Equal(t, "https://kelasvisa.id/pricing", f.lastReq.Order.CallbackURLCancel)
	assert.Contains(t, f.lastReq.Order.CallbackURL, "type=bundle")
}

func TestCreateOrderBundleAlreadyOwnsAll(t *testing.T) {
	f := newFixture(t)
	delete(f.catalog.courses, f.course.ID)
	for _, id := range f.addBundle(999000, 2) {
		f.markPaid(id)
	}

	_, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{IsBundle: true})
	assert.ErrorIs(t, err, ErrAlreadyOwnsAll)
}

func TestCreateOrderErrors(t *testing.T) {
	t.Run("not authenticated", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateOrder(context.Background(), Buyer{}, OrderInput{CourseID: f.course.ID})
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
	t.Run("already enrolled", func(t *testing.T) {
		f := newFixture(t)
		f.markPaid(f.course.ID)
		_, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{CourseID: f.course.ID})
		assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	})
	t.Run("unknown course", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{CourseID: uuid.New()})
		assert.ErrorIs(t, err, ErrCourseNotFound)
	})
	t.Run("no bundle", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{IsBundle: true})
		assert.ErrorIs(t, err, ErrBundleNotFound)
	})
	t.Run("catalog down", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.err = errors.New("connection refused")
		_, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{IsBundle: true})
		assert.ErrorIs(t, err, ErrCatalogUnavailable)
	})
	t.Run("free course", func(t *testing.T) {
		f := newFixture(t)
		f.course.Price = 0
		_, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{CourseID: f.course.ID})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestCreateOrderGatewayFailureLeavesDraftForRetry(t *testing.T) {
	f := newFixture(t)
	fail := &gateway.GatewayError{Op: "create_session", StatusCode: 502}
	ok := f.gw.CreateSessionFunc
	f.gw.CreateSessionFunc = func(context.Context, gateway.OrderRequest) (*gateway.Session, error) { return nil, fail }

	_, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{CourseID: f.course.ID})
	var gerr *gateway.GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Len(t, f.store.rows, 1)

	f.gw.CreateSessionFunc = ok
	f.now = f.now.Add(time.Minute)
	res, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{CourseID: f.course.ID})
	require.NoError(t, err)

	require.Len(t, f.store.rows, 1)
	rows := f.store.byReference(res.InvoiceNumber)
	require.Len(t, rows, 1)
	assert.Equal(t, models.PaymentStatusPending, rows[0].PaymentStatus)
}

func TestCreateOrderLogsWhetherGatewayFailureIsRetryable(t *testing.T) {
	for _, tt := range []struct {
		status    int
		retryable bool
	}{
		{status: 503, retryable: true},
		{status: 400, retryable: false},
	} {
		f := newFixture(t)
		core, logs := observer.New(zap.ErrorLevel)
		svc := NewService(f.catalog, f.store, f.gw, invoice.NewAllocator(func() time.Time { return f.now }), f.notifier, Config{
			AppBaseURL: "https://kelasvisa.id",
			PaymentDue: 60 * time.Minute,
		}, zap.New(core))
		f.gw.CreateSessionFunc = func(context.Context, gateway.OrderRequest) (*gateway.Session, error) {
			return nil, &gateway.GatewayError{Op: "create_session", StatusCode: tt.status}
		}

		_, err := svc.CreateOrder(context.Background(), f.buyer, OrderInput{CourseID: f.course.ID})
		require.Error(t, err)

		entries := logs.FilterMessage("create checkout failed").All()
		require.Len(t, entries, 1)
		assert.Equal(t, tt.retryable, entries[0].ContextMap()["retryable"], "status %d", tt.status)
	}
}

func (f *fixture) order(t *testing.T) string {
	t.Helper()
	res, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{CourseID: f.course.ID})
	require.NoError(t, err)
	return res.InvoiceNumber
}

func TestReconcilePaid(t *testing.T) {
	f := newFixture(t)
	inv := f.order(t)
	f.now = f.now.Add(5 * time.Minute)

	res, err := f.svc.Reconcile(context.Background(), ReconcileRequest{
		InvoiceNumber: inv, GatewayStatus: "SUCCESS", ChannelID: "QRIS", Amount: 99000, Source: SourceWebhook,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, models.PaymentStatusPaid, res.Status)

	row := f.store.byReference(inv)[0]
	assert.Equal(t, models.PaymentStatusPaid, row.PaymentStatus)
	require.NotNil(t, row.PaymentMethod)
	assert.Equal(t, models.PaymentMethodEWallet, *row.PaymentMethod)
	assert.Equal(t, "QRIS", *row.PaymentChannel)
	assert.Equal(t, f.now, *row.PurchasedAt)
	assert.Nil(t, row.ExpiresAt)
	assert.Equal(t, int64(99000), row.AmountPaid)

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, f.buyer.ID, f.notifier.outcomes[0].UserID)
}

func TestReconcileDuplicateDeliveryIsNoop(t *testing.T) {
	f := newFixture(t)
	inv := f.order(t)
	req := ReconcileRequest{InvoiceNumber: inv, GatewayStatus: "SUCCESS", ChannelID: "QRIS", Amount: 99000, Source: SourceWebhook}

	_, err := f.svc.Reconcile(context.Background(), req)
	require.NoError(t, err)
	first := f.store.byReference(inv)[0]

	f.now = f.now.Add(10 * time.Minute)
	req.Amount = 1
	res, err := f.svc.Reconcile(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, models.PaymentStatusPaid, res.Status)

	assert.Equal(t, first, f.store.byReference(inv)[0])
	assert.Equal(t, 1, f.notifier.count())
}

func TestReconcileBundleSplitsAmount(t *testing.T) {
	f := newFixture(t)
	delete(f.catalog.courses, f.course.ID)
	f.addBundle(999000, 3)
	res, err := f.svc.CreateOrder(context.Background(), f.buyer, OrderInput{IsBundle: true})
	require.NoError(t, err)

	_, err = f.svc.Reconcile(context.Background(), ReconcileRequest{
		InvoiceNumber: res.InvoiceNumber, GatewayStatus: "SUCCESS", ChannelID: "VIRTUAL_ACCOUNT_BCA", Amount: 999000, Source: SourceWebhook,
	})
	require.NoError(t, err)

	rows := f.store.byReference(res.InvoiceNumber)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, int64(333000), r.AmountPaid)
		assert.Equal(t, models.PaymentMethodBankTransfer, *r.PaymentMethod)
	}
	require.Equal(t, 1, f.notifier.count())
	assert.Len(t, f.notifier.outcomes[0].CourseIDs, 3)
}

func TestReconcileConcurrentDeliveriesChangeOnce(t *testing.T) {
	f := newFixture(t)
	inv := f.order(t)

	var wg sync.WaitGroup
	changed := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		src := SourceWebhook
		var buyer *uuid.UUID
		if i%2 == 0 {
			src, buyer = SourcePoll, &f.buyer.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Reconcile(context.Background(), ReconcileRequest{
				InvoiceNumber: inv, GatewayStatus: "SUCCESS", ChannelID: "QRIS", Amount: 99000, BuyerID: buyer, Source: src,
			})
			if assert.NoError(t, err) {
				changed <- res.Changed
			}
		}()
	}
	wg.Wait()
	close(changed)

	n := 0
	for c := range changed {
		if c {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.notifier.count())
}

func TestReconcilePendingDoesNotTouchStore(t *testing.T) {
	f := newFixture(t)
	inv := f.order(t)

	for _, status := range []string{"PENDING", "REDIRECT", ""} {
		res, err := f.svc.Reconcile(context.Background(), ReconcileRequest{InvoiceNumber: inv, GatewayStatus: status, Source: SourceWebhook})
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPending, res.Status)
		assert.False(t, res.Changed)
	}
	assert.Zero(t, f.store.transitions.Load())
	assert.Zero(t, f.notifier.count())
}

func TestReconcileFailedThenLateSuccess(t *testing.T) {
	f := newFixture(t)
	inv := f.order(t)

	res, err := f.svc.Reconcile(context.Background(), ReconcileRequest{InvoiceNumber: inv, GatewayStatus: "FAILED", Source: SourceWebhook})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, res.Status)
	row := f.store.byReference(inv)[0]
	assert.Nil(t, row.PurchasedAt)
	assert.NotNil(t, row.ExpiresAt)

	res, err = f.svc.Reconcile(context.Background(), ReconcileRequest{InvoiceNumber: inv, GatewayStatus: "EXPIRED", Source: SourceWebhook})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, models.PaymentStatusFailed, res.Status)
	assert.Equal(t, 1, f.notifier.count())

	res, err = f.svc.Reconcile(context.Background(), ReconcileRequest{InvoiceNumber: inv, GatewayStatus: "SUCCESS", ChannelID: "QRIS", Amount: 99000, Source: SourceWebhook})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, res.Status)

	res, err = f.svc.Reconcile(context.Background(), ReconcileRequest{InvoiceNumber: inv, GatewayStatus: "EXPIRED", Source: SourceWebhook})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, models.PaymentStatusPaid, res.Status)
	assert.Equal(t, 2, f.notifier.count())
}

func TestReconcileUnknownInvoice(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Reconcile(context.Background(), ReconcileRequest{InvoiceNumber: "INV-1-deadbeef", GatewayStatus: "SUCCESS", Source: SourceWebhook})
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
	assert.Empty(t, f.store.rows)
}

func TestReconcileStoreFailure(t *testing.T) {
	f := newFixture(t)
	inv := f.order(t)
	f.store.applyErr = errors.New("deadlock detected")

	_, err := f.svc.Reconcile(context.Background(), ReconcileRequest{InvoiceNumber: inv, GatewayStatus: "SUCCESS", Source: SourceWebhook})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestVerifyPendingAtGateway(t *testing.T) {
	f := newFixture(t)
	inv := f.order(t)
	before := f.store.byReference(inv)

	res, err := f.svc.Verify(context.Background(), f.buyer.ID, inv)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, res.Status)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, before, f.store.byReference(inv))
	assert.Zero(t, f.store.transitions.Load())
}

func TestVerifyGatewayErrorReportsPending(t *testing.T) {
	f := newFixture(t)
	inv := f.order(t)
	f.gw.PollStatusFunc = func(ctx context.Context, _ string) (*gateway.StatusSnapshot, error) {
		<-ctx.Done()
		return nil, &gateway.GatewayError{Op: "poll_status", Err: ctx.Err()}
	}
	f.svc.cfg.PollTimeout = 10 * time.Millisecond

	res, err := f.svc.Verify(context.Background(), f.buyer.ID, inv)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, res.Status)
}

func TestVerifySettlesFromGateway(t *testing.T) {
	f := newFixture(t)
	inv := f.order(t)
	f.gw.PollStatusFunc = func(_ context.Context, inv string) (*gateway.StatusSnapshot, error) {
		return &gateway.StatusSnapshot{InvoiceNumber: inv, Status: "SUCCESS", ChannelID: "QRIS", Amount: 99000}, nil
	}

	res, err := f.svc.Verify(context.Background(), f.buyer.ID, inv)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, res.Status)
	assert.Equal(t, models.PaymentStatusPaid, f.store.byReference(inv)[0].PaymentStatus)

	res, err = f.svc.Verify(context.Background(), f.buyer.ID, inv)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, res.Status)
	assert.Equal(t, int32(1), f.gw.polls.Load())
}

func TestVerifyOtherBuyerSeesPending(t *testing.T) {
	f := newFixture(t)
	inv := f.order(t)
	f.gw.PollStatusFunc = func(_ context.Context, inv string) (*gateway.StatusSnapshot, error) {
		return &gateway.StatusSnapshot{InvoiceNumber: inv, Status: "SUCCESS", ChannelID: "QRIS"}, nil
	}

	res, err := f.svc.Verify(context.Background(), uuid.New(), inv)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, res.Status)
	assert.Equal(t, models.PaymentStatusPending, f.store.byReference(inv)[0].PaymentStatus)
}

func TestVerifyInputErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Verify(context.Background(), uuid.Nil, "INV-1-abc")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.svc.Verify(context.Background(), f.buyer.ID, "ORDER-1")
	assert.ErrorIs(t, err, ErrInvalidInvoice)
}
