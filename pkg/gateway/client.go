package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	"github.com/mahima-medicare/healthstack-backend/pkg/metrics"
)

var (
	errBaseURLRequired       = errors.New("gateway base url is required")
	errKeyRequired           = errors.New("gateway key id and secret are required")
	errWebhookSecretRequired = errors.New("gateway webhook secret is required")
	errLoggerRequired        = errors.New("gateway logger is required")
)

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client exposes the payment gateway primitives with centralized auth,
// logging, signature verification, and error mapping.
type Client struct {
	http          httpDoer
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *logger.Logger
	metrics       *metrics.PaymentMetrics
}

// WithMetrics attaches outbound-call duration metrics. Safe to skip; a nil
// receiver on PaymentMetrics is a no-op.
func (c *Client) WithMetrics(m *metrics.PaymentMetrics) *Client {
	c.metrics = m
	return c
}

// OrderCreateParams describes an order registration on the gateway.
type OrderCreateParams struct {
	AmountPaise int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Order is the gateway-side order record.
type Order struct {
	ID          string `json:"id"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, errKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		http:          &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		logger:        logg,
	}

	logg.Info(ctx, "payment gateway client initialized")
	return c, nil
}

// KeyID returns the public gateway key for browser widgets.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// NewReceiptID returns a unique receipt reference for order registration.
func (c *Client) NewReceiptID() string {
	return fmt.Sprintf("rcpt-%s", uuid.NewString())
}

// CreateOrder registers an order on the gateway and returns its id.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*Order, error) {
	if params.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order amount must be positive")
	}
	currency := params.Currency
	if currency == "" {
		currency = "INR"
	}
	receipt := params.Receipt
	if receipt == "" {
		receipt = c.NewReceiptID()
	}

	body := map[string]any{
		"amount":   params.AmountPaise,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(params.Notes) > 0 {
		body["notes"] = params.Notes
	}

	c.log(ctx, "request", "create_order", map[string]any{
		"amount":   params.AmountPaise,
		"currency": currency,
		"receipt":  receipt,
	})

	var order Order
	if err := c.post(ctx, "create_order", "/orders", body, &order); err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}
	if order.ID == "" {
		err := pkgerrors.New(pkgerrors.CodeUpstream, "gateway returned an order without an id")
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_order", map[string]any{
		"gateway_order_id": order.ID,
		"status":           order.Status,
	})
	return &order, nil
}

// VerifyPaymentSignature checks the browser-confirm signature computed over
// "{gateway_order_id}|{gateway_payment_id}" with the key secret.
func (c *Client) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if c == nil || gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return false
	}
	payload := fmt.Sprintf("%s|%s", gatewayOrderID, gatewayPaymentID)
	return verifyHMAC([]byte(payload), signature, c.keySecret)
}

// VerifyWebhookSignature checks the webhook signature computed over the raw
// request body with the webhook secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c == nil || len(body) == 0 || signature == "" {
		return false
	}
	return verifyHMAC(body, signature, c.webhookSecret)
}

func verifyHMAC(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

func (c *Client) post(ctx context.Context, op, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding gateway request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveGateway(op, time.Since(start).Seconds())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "gateway request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "reading gateway response")
	}
	if resp.StatusCode >= 400 {
		return c.mapGatewayError(resp.StatusCode, payload)
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decoding gateway response")
		}
	}
	return nil
}

func (c *Client) mapGatewayError(status int, payload []byte) error {
	var parsed struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	description := strings.TrimSpace(string(payload))
	if err := json.Unmarshal(payload, &parsed); err == nil && parsed.Error.Description != "" {
		description = parsed.Error.Description
	}
	code := pkgerrors.CodeUpstream
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = pkgerrors.CodeDependency
	case status >= 400 && status < 500:
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.New(code, fmt.Sprintf("gateway rejected the request (%d): %s", status, description))
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "token", "signature", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
