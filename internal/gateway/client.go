// Package gateway is the signed HTTP client for the DOKU Checkout API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kelasvisa/payments/internal/metrics"
	"github.com/kelasvisa/payments/internal/signature"
)

const (
	checkoutPath = "/checkout/v1/payment"
	statusPath   = "/orders/v1/status/"

	maxResponseBytes = 1 << 20
)

// Client performs signed calls against the gateway.
type Client struct {
	baseURL    string
	signer     *signature.Signer
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a gateway client. timeout bounds every call.
func NewClient(baseURL string, signer *signature.Signer, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		signer:     signer,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CreateSession creates a hosted checkout for req and returns its URL.
// The body is serialized once; the Digest is computed over those exact bytes.
func (c *Client) CreateSession(ctx context.Context, req OrderRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	raw, err := c.do(ctx, "create_session", http.MethodPost, checkoutPath, body)
	if err != nil {
		return nil, err
	}

	var resp checkoutResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &GatewayError{Op: "create_session", Body: raw, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Response.Payment.URL == "" {
		return nil, &GatewayError{Op: "create_session", Body: raw, Messages: resp.Message, Err: errors.New("response has no payment url")}
	}

	invoice := resp.Response.Order.InvoiceNumber
	if invoice == "" {
		invoice = req.Order.InvoiceNumber
	}
	return &Session{
		CheckoutURL:   resp.Response.Payment.URL,
		InvoiceNumber: invoice,
		TokenID:       resp.Response.Payment.TokenID,
		ExpiredDate:   resp.Response.Payment.ExpiredDate,
	}, nil
}

// PollStatus returns the gateway's current status for invoiceNumber.
func (c *Client) PollStatus(ctx context.Context, invoiceNumber string) (*StatusSnapshot, error) {
	raw, err := c.do(ctx, "poll_status", http.MethodGet, statusPath+url.PathEscape(invoiceNumber), nil)
	if err != nil {
		return nil, err
	}
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, &GatewayError{Op: "poll_status", Body: raw, Err: fmt.Errorf("decode response: %w", err)}
	}
	snap := n.Snapshot()
	if snap.InvoiceNumber == "" {
		snap.InvoiceNumber = invoiceNumber
	}
	return &snap, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	sig := c.signer.Sign(req, body)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveGatewayRequest(op, "error", time.Since(start))
		c.logger.Error("gateway request failed", zap.String("op", op), zap.String("request_id", sig.RequestID), zap.Error(err))
		return nil, &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveGatewayRequest(op, strconv.Itoa(resp.StatusCode), time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := &GatewayError{Op: op, StatusCode: resp.StatusCode, Messages: errorMessages(raw), Body: raw}
		c.logger.Error("gateway rejected request",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", sig.RequestID),
			zap.Strings("messages", gerr.Messages),
		)
		return nil, gerr
	}
	c.logger.Debug("gateway request ok", zap.String("op", op), zap.String("request_id", sig.RequestID))
	return raw, nil
}
