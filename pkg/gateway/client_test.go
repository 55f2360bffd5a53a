package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	"github.com/mahima-medicare/healthstack-backend/pkg/metrics"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{Level: zerolog.Disabled})
	client, err := NewClient(context.Background(), config.GatewayConfig{
		BaseURL:       baseURL,
		KeyID:         "key_test",
		KeySecret:     "secret_test",
		WebhookSecret: "whsec_test",
		Timeout:       2 * time.Second,
	}, logg)
	require.NoError(t, err)
	return client
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNewClientValidation(t *testing.T) {
	logg := logger.New(logger.Options{Level: zerolog.Disabled})

	_, err := NewClient(context.Background(), config.GatewayConfig{}, nil)
	require.Error(t, err)

	_, err = NewClient(context.Background(), config.GatewayConfig{KeyID: "k", KeySecret: "s", WebhookSecret: "w"}, logg)
	require.ErrorIs(t, err, errBaseURLRequired)

	_, err = NewClient(context.Background(), config.GatewayConfig{BaseURL: "https://gw", WebhookSecret: "w"}, logg)
	require.ErrorIs(t, err, errKeyRequired)

	_, err = NewClient(context.Background(), config.GatewayConfig{BaseURL: "https://gw", KeyID: "k", KeySecret: "s"}, logg)
	require.ErrorIs(t, err, errWebhookSecretRequired)
}

func TestCreateOrder(t *testing.T) {
	var captured struct {
		Amount   int64             `json:"amount"`
		Currency string            `json:"currency"`
		Receipt  string            `json:"receipt"`
		Notes    map[string]string `json:"notes"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key_test", user)
		require.Equal(t, "secret_test", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_abc123",
			"amount":   captured.Amount,
			"currency": captured.Currency,
			"receipt":  captured.Receipt,
			"status":   "created",
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	order, err := client.CreateOrder(context.Background(), OrderCreateParams{
		AmountPaise: 52500,
		Receipt:     "rcpt-1",
		Notes:       map[string]string{"order_id": "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_abc123", order.ID)
	assert.Equal(t, int64(52500), order.AmountPaise)
	assert.Equal(t, "INR", captured.Currency)
	assert.Equal(t, "42", captured.Notes["order_id"])
}

func TestCreateOrderObservesDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "order_xyz", "status": "created"})
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	client := newTestClient(t, srv.URL).WithMetrics(metrics.NewPaymentMetrics(registry))

	_, err := client.CreateOrder(context.Background(), OrderCreateParams{AmountPaise: 10000})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(registry, "gateway_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")
	_, err := client.CreateOrder(context.Background(), OrderCreateParams{AmountPaise: 0})
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, pkgerrors.CodeValidation, domainErr.Code())
}

func TestCreateOrderUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "SERVER_ERROR", "description": "gateway exploded"},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.CreateOrder(context.Background(), OrderCreateParams{AmountPaise: 100})
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, pkgerrors.CodeUpstream, domainErr.Code())
	assert.Contains(t, domainErr.Message(), "gateway exploded")
}

func TestCreateOrderUnreachableGateway(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")
	_, err := client.CreateOrder(context.Background(), OrderCreateParams{AmountPaise: 100})
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, pkgerrors.CodeUpstream, domainErr.Code())
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")

	valid := sign("order_abc|pay_xyz", "secret_test")
	assert.True(t, client.VerifyPaymentSignature("order_abc", "pay_xyz", valid))
	assert.True(t, client.VerifyPaymentSignature("order_abc", "pay_xyz", "  "+valid+"\n"))
	assert.False(t, client.VerifyPaymentSignature("order_abc", "pay_xyz", sign("order_abc|pay_other", "secret_test")))
	assert.False(t, client.VerifyPaymentSignature("order_abc", "pay_xyz", sign("order_abc|pay_xyz", "wrong_secret")))
	assert.False(t, client.VerifyPaymentSignature("", "pay_xyz", valid))
	assert.False(t, client.VerifyPaymentSignature("order_abc", "pay_xyz", ""))
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")

	body := []byte(`{"event":"payment.captured"}`)
	assert.True(t, client.VerifyWebhookSignature(body, sign(string(body), "whsec_test")))
	assert.False(t, client.VerifyWebhookSignature(body, sign(string(body), "secret_test")))
	assert.False(t, client.VerifyWebhookSignature(nil, sign("", "whsec_test")))
}
