package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelasvisa/payments/internal/signature"
)

const (
	testClientID = "BRN-0001"
	testSecret   = "SK-test"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, signature.NewSigner(testClientID, testSecret), 5*time.Second, nil)
}

func sampleOrder() OrderRequest {
	return OrderRequest{
		Order: Order{
			Amount:        99000,
			InvoiceNumber: "INV-1714550400000-3f1c9a7e",
			Currency:      "IDR",
			CallbackURL:   "https://kelasvisa.test/payment/success",
			LineItems:     []LineItem{{Name: "Belajar Visa", Price: 99000, Quantity: 1}},
		},
		Payment:  Payment{PaymentDueDate: 60},
		Customer: Customer{ID: "u-1", Email: "buyer@example.com"},
	}
}

func TestCreateSessionSignsExactBody(t *testing.T) {
	verifier := signature.NewSigner(testClientID, testSecret)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/v1/payment", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(signature.HeaderRequestID))
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, r.Header.Get(signature.HeaderRequestTimestamp))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.True(t, verifier.VerifyRequest(r.Header, "/checkout/v1/payment", body), "signature must cover transmitted bytes")

		var got OrderRequest
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, int64(99000), got.Order.Amount)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":["SUCCESS"],"response":{"order":{"invoice_number":"INV-1714550400000-3f1c9a7e"},"payment":{"url":"https://checkout.test/pay/abc","token_id":"abc","expired_date":"20240501090000"}}}`))
	})

	sess, err := c.CreateSession(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/pay/abc", sess.CheckoutURL)
	assert.Equal(t, "INV-1714550400000-3f1c9a7e", sess.InvoiceNumber)
	assert.Equal(t, "abc", sess.TokenID)
}

func TestCreateSessionGatewayRejects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":["Invalid Signature"]}`))
	})

	_, err := c.CreateSession(context.Background(), sampleOrder())
	require.Error(t, err)

	var gerr *GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, http.StatusBadRequest, gerr.StatusCode)
	assert.Equal(t, []string{"Invalid Signature"}, gerr.Messages)
	assert.False(t, gerr.Temporary())
	assert.Contains(t, gerr.Error(), "Invalid Signature")
}

func TestCreateSessionServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down"}}`))
	})

	_, err := c.CreateSession(context.Background(), sampleOrder())
	var gerr *GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.True(t, gerr.Temporary())
	assert.Equal(t, []string{"upstream down"}, gerr.Messages)
}

func TestCreateSessionMissingURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":["SUCCESS"],"response":{}}`))
	})

	_, err := c.CreateSession(context.Background(), sampleOrder())
	var gerr *GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "create_session", gerr.Op)
}

func TestPollStatusUnsignedDigest(t *testing.T) {
	verifier := signature.NewSigner(testClientID, testSecret)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/orders/v1/status/INV-1", r.URL.Path)
		assert.True(t, verifier.VerifyRequest(r.Header, "/orders/v1/status/INV-1", nil))

		_, _ = w.Write([]byte(`{"order":{"invoice_number":"INV-1","amount":99000},"transaction":{"status":"SUCCESS","date":"2024-05-01T08:10:00Z","original_request_id":"r-1"},"channel":{"id":"QRIS"}}`))
	})

	snap, err := c.PollStatus(context.Background(), "INV-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSnapshot{InvoiceNumber: "INV-1", Status: "SUCCESS", ChannelID: "QRIS", Amount: 99000}, *snap)
}

func TestPollStatusTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, signature.NewSigner(testClientID, testSecret), 20*time.Millisecond, nil)

	_, err := c.PollStatus(context.Background(), "INV-1")
	var gerr *GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Zero(t, gerr.StatusCode)
	assert.True(t, gerr.Temporary())
}
