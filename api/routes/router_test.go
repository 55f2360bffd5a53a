package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/cart"
	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	checkoutsvc "github.com/mahima-medicare/healthstack-backend/internal/checkout"
	"github.com/mahima-medicare/healthstack-backend/internal/fulfillment"
	"github.com/mahima-medicare/healthstack-backend/internal/invoices"
	ordersrepo "github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/internal/payments"
	"github.com/mahima-medicare/healthstack-backend/internal/prescriptions"
	gatewaywebhook "github.com/mahima-medicare/healthstack-backend/internal/webhooks/gateway"
	pkgauth "github.com/mahima-medicare/healthstack-backend/pkg/auth"
	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	"github.com/mahima-medicare/healthstack-backend/pkg/gateway"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

type stubVerifier struct{}

func (stubVerifier) VerifyWebhookSignature([]byte, string) bool { return true }

type stubGateway struct{}

func (stubGateway) CreateOrder(_ context.Context, params gateway.OrderCreateParams) (*gateway.Order, error) {
	return &gateway.Order{
		ID:          "gwo_" + uuid.NewString(),
		AmountPaise: params.AmountPaise,
		Currency:    params.Currency,
		Receipt:     params.Receipt,
		Status:      "created",
	}, nil
}

func (stubGateway) VerifyPaymentSignature(string, string, string) bool { return true }

func (stubGateway) KeyID() string { return "key_test" }

func (stubGateway) NewReceiptID() string { return "rcpt-" + uuid.NewString() }

type routerFixture struct {
	handler http.Handler
	conn    *gorm.DB
	cfg     *config.Config
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{}, &models.CartLine{}, &models.Order{},
		&models.PaymentIntent{}, &models.Invoice{}, &models.InvoiceItem{},
		&models.InvoiceSequence{}, &models.Blob{},
		&models.PrescriptionUpload{}, &models.PrescriptionMedicine{},
	))

	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "healthstack-test",
			ExpirationMinutes: 60,
		},
		Policy: config.PolicyConfig{
			PharmacyGSTPercent:    5,
			AppointmentGSTPercent: 18,
			DeliveryFeePaise:      4000,
			HomeCollectionPaise:   9900,
			ExpiryWarningDays:     90,
		},
	}

	logg := logger.New(logger.Options{Level: zerolog.Disabled})
	client := db.NewFromGorm(conn)
	policies := ordersrepo.NewPolicies(cfg.Policy)
	orderRepo := ordersrepo.NewRepository(conn)
	catalogRepo := catalog.NewRepository(conn)

	catalogSvc, err := catalog.NewService(catalogRepo, cfg.Policy.ExpiryWarningDays)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(client, cart.NewRepository(conn), catalogRepo)
	require.NoError(t, err)
	checkoutSvc, err := checkoutsvc.NewService(client, cart.NewRepository(conn), orderRepo, policies, logg, nil)
	require.NoError(t, err)
	invoiceSvc, err := invoices.NewService(client, invoices.NewRepository(conn), policies, nil, logg)
	require.NoError(t, err)
	paymentSvc, err := payments.NewService(client, payments.NewRepository(conn), orderRepo, policies, stubGateway{}, invoiceSvc, nil, nil, logg)
	require.NoError(t, err)
	fulfillSvc, err := fulfillment.NewService(client, orderRepo, policies, paymentSvc, nil, logg)
	require.NoError(t, err)
	presSvc, err := prescriptions.NewService(client, prescriptions.NewRepository(conn), catalogRepo, orderRepo, policies, logg, nil)
	require.NoError(t, err)
	webhookSvc, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		Verifier: stubVerifier{},
		Payments: paymentSvc,
		Logger:   logg,
	})
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            client,
		Catalog:       catalogSvc,
		Cart:          cartSvc,
		Checkout:      checkoutSvc,
		Orders:        orderRepo,
		Payments:      paymentSvc,
		Invoices:      invoiceSvc,
		Fulfillment:   fulfillSvc,
		Prescriptions: presSvc,
		Webhook:       webhookSvc,
	})
	return &routerFixture{handler: handler, conn: conn, cfg: cfg}
}

func (f *routerFixture) tokenFor(t *testing.T, userID uuid.UUID, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(f.cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		Name:   "Test Caller",
		Email:  "caller@example.com",
	})
	require.NoError(t, err)
	return token
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func seedCatalogProduct(t *testing.T, conn *gorm.DB, available int, pricePaise int64) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:           uuid.New(),
		Name:         "Dolo 650",
		Kind:         enums.ProductKindMedicine,
		PricePaise:   pricePaise,
		AvailableQty: available,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

func TestHealthLive(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-HealthStack-Env"))
}

func TestHealthReady(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRejectsMissingToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/cart?kind=pharmacy", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIRejectsForeignToken(t *testing.T) {
	f := newRouterFixture(t)

	foreign := config.JWTConfig{Secret: "some-other-secret", Issuer: f.cfg.JWT.Issuer, ExpirationMinutes: 60}
	token, err := pkgauth.MintAccessToken(foreign, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRolePatient,
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/v1/cart?kind=pharmacy", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartCheckoutOrderFlow(t *testing.T) {
	f := newRouterFixture(t)
	product := seedCatalogProduct(t, f.conn, 10, 12000)
	patient := uuid.New()
	token := f.tokenFor(t, patient, enums.ActorRolePatient)

	rec := f.do(t, http.MethodPost, "/api/v1/cart/add/"+product.ID.String(), token, map[string]any{"quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/cart?kind=pharmacy", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), product.ID.String())

	rec = f.do(t, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"kind":            "pharmacy",
		"delivery_method": "pickup",
		"payment_method":  "cod",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(enums.OrderStatusConfirmed))

	var stock models.Product
	require.NoError(t, f.conn.First(&stock, "id = ?", product.ID).Error)
	assert.Equal(t, 8, stock.AvailableQty)
}

func TestOrderDetailHiddenFromStrangers(t *testing.T) {
	f := newRouterFixture(t)
	product := seedCatalogProduct(t, f.conn, 5, 9000)
	owner := uuid.New()
	ownerToken := f.tokenFor(t, owner, enums.ActorRolePatient)

	rec := f.do(t, http.MethodPost, "/api/v1/cart/add/"+product.ID.String(), ownerToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/v1/checkout", ownerToken, map[string]any{
		"kind":            "pharmacy",
		"delivery_method": "pickup",
		"payment_method":  "cod",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "user_id = ?", owner).Error)

	stranger := f.tokenFor(t, uuid.New(), enums.ActorRolePatient)
	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), stranger, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), ownerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaffRoutesRequireStaffRole(t *testing.T) {
	f := newRouterFixture(t)

	patient := f.tokenFor(t, uuid.New(), enums.ActorRolePatient)
	rec := f.do(t, http.MethodGet, "/api/v1/staff/catalog/expiring", patient, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	pharmacist := f.tokenFor(t, uuid.New(), enums.ActorRolePharmacist)
	rec = f.do(t, http.MethodGet, "/api/v1/staff/catalog/expiring", pharmacist, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGatewayWebhookSkipsAuth(t *testing.T) {
	f := newRouterFixture(t)

	// A malformed payload is acknowledged, not retried; the point here is
	// that the route answers without a bearer token.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewBufferString("not-json"))
	req.Header.Set("X-Gateway-Signature", "sig")
	req.Header.Set("X-Gateway-Event-Id", "evt_"+uuid.NewString())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "received")
}
