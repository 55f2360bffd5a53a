package fulfillment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/internal/payments"
	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/gateway"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

type stubGateway struct{}

func (stubGateway) CreateOrder(context.Context, gateway.OrderCreateParams) (*gateway.Order, error) {
	return &gateway.Order{ID: "gwo_" + uuid.NewString(), Status: "created"}, nil
}
func (stubGateway) VerifyPaymentSignature(string, string, string) bool { return false }
func (stubGateway) KeyID() string                                      { return "key_test" }
func (stubGateway) NewReceiptID() string                               { return "rcpt-" + uuid.NewString() }

type stubInvoices struct {
	generated []uuid.UUID
}

func (s *stubInvoices) GenerateForIntent(_ context.Context, _ *gorm.DB, intentID uuid.UUID) (*models.Invoice, error) {
	s.generated = append(s.generated, intentID)
	return &models.Invoice{ID: uuid.New(), PaymentIntentID: intentID}, nil
}

type transitionRecorder struct {
	moves []string
}

func (r *transitionRecorder) NotifyOrderTransition(_ context.Context, _ *models.Order, from, to, _ string) {
	r.moves = append(r.moves, from+">"+to)
}

type fulfillmentFixture struct {
	svc      Service
	conn     *gorm.DB
	notifier *transitionRecorder
	invoices *stubInvoices
}

func newFulfillmentFixture(t *testing.T) *fulfillmentFixture {
	t.Helper()
	dsn := "file:fulfillment_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.CartLine{}, &models.Order{}, &models.PaymentIntent{}))

	logg := logger.New(logger.Options{Level: zerolog.Disabled})
	policies := orders.NewPolicies(config.PolicyConfig{
		PharmacyGSTPercent:  5,
		DeliveryFeePaise:    4000,
		HomeCollectionPaise: 9900,
	})
	client := db.NewFromGorm(conn)
	orderRepo := orders.NewRepository(conn)
	inv := &stubInvoices{}
	paySvc, err := payments.NewService(client, payments.NewRepository(conn), orderRepo, policies, stubGateway{}, inv, nil, nil, logg)
	require.NoError(t, err)

	rec := &transitionRecorder{}
	svc, err := NewService(client, orderRepo, policies, paySvc, rec, logg)
	require.NoError(t, err)
	return &fulfillmentFixture{svc: svc, conn: conn, notifier: rec, invoices: inv}
}

// seedOrder plants a settled order ready for fulfillment.
func seedOrder(f *fulfillmentFixture, t *testing.T, kind enums.OrderKind, method enums.DeliveryMethod, payment enums.PaymentStatus) (*models.Order, *models.Product) {
	t.Helper()
	product := &models.Product{
		ID:           uuid.New(),
		Name:         "Seeded Product",
		Kind:         enums.ProductKindMedicine,
		PricePaise:   10000,
		AvailableQty: 8,
	}
	if kind == enums.OrderKindTest {
		product.Kind = enums.ProductKindTest
	}
	require.NoError(t, f.conn.Create(product).Error)

	order := &models.Order{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Kind:           kind,
		Ordered:        true,
		DeliveryMethod: method,
		OrderStatus:    enums.OrderStatusConfirmed,
		PaymentStatus:  payment,
		SubtotalPaise:  20000,
		TaxPaise:       1000,
		TotalPaise:     21000,
	}
	if kind == enums.OrderKindTest {
		order.OrderStatus = enums.OrderStatusPending
		order.CollectionStatus = enums.CollectionStatusPending
	}
	require.NoError(t, f.conn.Create(order).Error)

	line := &models.CartLine{
		ID:             uuid.New(),
		UserID:         order.UserID,
		ProductID:      product.ID,
		Kind:           kind,
		Quantity:       2,
		Purchased:      true,
		OrderID:        &order.ID,
		UnitPricePaise: 10000,
		PayStatus:      enums.TestPayStatusUnpaid,
	}
	require.NoError(t, f.conn.Create(line).Error)
	return order, product
}

func pharmacist() Actor {
	return Actor{StaffID: uuid.New(), Role: enums.ActorRolePharmacist}
}

func labTech() Actor {
	return Actor{StaffID: uuid.New(), Role: enums.ActorRoleLabTechnician}
}

func TestPharmacyHappyPathToCompleted(t *testing.T) {
	t.Parallel()

	f := newFulfillmentFixture(t)
	ctx := context.Background()
	order, _ := seedOrder(f, t, enums.OrderKindPharmacy, enums.DeliveryMethodHomeDelivery, enums.PaymentStatusPaid)
	actor := pharmacist()

	for _, to := range []string{"preparing", "ready", "out_for_delivery", "delivered", "completed"} {
		updated, err := f.svc.Transition(ctx, order.ID, to, actor, "")
		require.NoError(t, err, "transition to %s", to)
		assert.Equal(t, to, updated.OrderStatus.String())
	}

	var got models.Order
	require.NoError(t, f.conn.First(&got, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusCompleted, got.OrderStatus)
	require.Len(t, got.AuditLog, 5)
	assert.Equal(t, "confirmed", got.AuditLog[0].From)
	assert.Equal(t, "preparing", got.AuditLog[0].To)
	assert.Equal(t, actor.StaffID, got.AuditLog[0].StaffID)
	assert.Len(t, f.notifier.moves, 5)
}

func TestTransitionSkippingStatesRejected(t *testing.T) {
	t.Parallel()

	f := newFulfillmentFixture(t)
	ctx := context.Background()
	order, _ := seedOrder(f, t, enums.OrderKindPharmacy, enums.DeliveryMethodPickup, enums.PaymentStatusPaid)

	_, err := f.svc.Transition(ctx, order.ID, "delivered", pharmacist(), "")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestTransitionWrongRoleForbidden(t *testing.T) {
	t.Parallel()

	f := newFulfillmentFixture(t)
	ctx := context.Background()
	order, _ := seedOrder(f, t, enums.OrderKindPharmacy, enums.DeliveryMethodPickup, enums.PaymentStatusPaid)

	_, err := f.svc.Transition(ctx, order.ID, "preparing", labTech(), "")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	// admin may drive any kind
	_, err = f.svc.Transition(ctx, order.ID, "preparing", Actor{StaffID: uuid.New(), Role: enums.ActorRoleAdmin}, "")
	require.NoError(t, err)
}

func TestOutForDeliveryRequiresHomeDelivery(t *testing.T) {
	t.Parallel()

	f := newFulfillmentFixture(t)
	ctx := context.Background()
	order, _ := seedOrder(f, t, enums.OrderKindPharmacy, enums.DeliveryMethodPickup, enums.PaymentStatusPaid)
	actor := pharmacist()

	_, err := f.svc.Transition(ctx, order.ID, "preparing", actor, "")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, order.ID, "ready", actor, "")
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, order.ID, "out_for_delivery", actor, "")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCancelRestoresCommittedStock(t *testing.T) {
	t.Parallel()

	f := newFulfillmentFixture(t)
	ctx := context.Background()
	order, product := seedOrder(f, t, enums.OrderKindPharmacy, enums.DeliveryMethodPickup, enums.PaymentStatusPaid)

	updated, err := f.svc.Transition(ctx, order.ID, "cancelled", pharmacist(), "customer request")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, updated.OrderStatus)

	var got models.Product
	require.NoError(t, f.conn.First(&got, "id = ?", product.ID).Error)
	assert.Equal(t, 10, got.AvailableQty)
	assert.Zero(t, got.ReservedQty)

	var reloaded models.Order
	require.NoError(t, f.conn.First(&reloaded, "id = ?", order.ID).Error)
	require.Len(t, reloaded.AuditLog, 1)
	assert.Equal(t, "customer request", reloaded.AuditLog[0].Note)
}

func TestCancelAfterDeliveredRejected(t *testing.T) {
	t.Parallel()

	f := newFulfillmentFixture(t)
	ctx := context.Background()
	order, _ := seedOrder(f, t, enums.OrderKindPharmacy, enums.DeliveryMethodPickup, enums.PaymentStatusPaid)
	actor := pharmacist()

	for _, to := range []string{"preparing", "ready", "delivered"} {
		_, err := f.svc.Transition(ctx, order.ID, to, actor, "")
		require.NoError(t, err)
	}

	_, err := f.svc.Transition(ctx, order.ID, "cancelled", actor, "")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestTestOrderLifecycle(t *testing.T) {
	t.Parallel()

	f := newFulfillmentFixture(t)
	ctx := context.Background()
	order, _ := seedOrder(f, t, enums.OrderKindTest, enums.DeliveryMethodHomeCollection, enums.PaymentStatusPaid)
	actor := labTech()

	for _, to := range []string{"scheduled", "in_progress", "collected", "processing", "completed"} {
		updated, err := f.svc.Transition(ctx, order.ID, to, actor, "")
		require.NoError(t, err, "transition to %s", to)
		assert.Equal(t, to, updated.CollectionStatus.String())
	}
}

func TestCollectCODRecordsCashAndAdvances(t *testing.T) {
	t.Parallel()

	f := newFulfillmentFixture(t)
	ctx := context.Background()
	order, _ := seedOrder(f, t, enums.OrderKindTest, enums.DeliveryMethodHomeCollection, enums.PaymentStatusCODPending)

	updated, err := f.svc.CollectCOD(ctx, order.ID, labTech(), order.TotalPaise, "")
	require.NoError(t, err)
	assert.Equal(t, enums.CollectionStatusCollected, updated.CollectionStatus)
	assert.Equal(t, enums.PaymentStatusPaid, updated.PaymentStatus)

	var intent models.PaymentIntent
	require.NoError(t, f.conn.First(&intent, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.IntentStatusCaptured, intent.Status)
	require.NotNil(t, intent.Signature)
	assert.Equal(t, "COD", *intent.Signature)

	require.Len(t, f.invoices.generated, 1)
}

func TestCollectCODFromScheduledCollection(t *testing.T) {
	t.Parallel()

	// Home-collection COD checkouts land at scheduled; cash handover must
	// advance straight to collected without an in_progress detour.
	f := newFulfillmentFixture(t)
	ctx := context.Background()
	order, _ := seedOrder(f, t, enums.OrderKindTest, enums.DeliveryMethodHomeCollection, enums.PaymentStatusCODPending)
	require.NoError(t, f.conn.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("collection_status", enums.CollectionStatusScheduled).Error)

	updated, err := f.svc.CollectCOD(ctx, order.ID, labTech(), order.TotalPaise, "")
	require.NoError(t, err)
	assert.Equal(t, enums.CollectionStatusCollected, updated.CollectionStatus)
	assert.Equal(t, enums.PaymentStatusPaid, updated.PaymentStatus)
}

func TestCollectCODWrongAmountRejected(t *testing.T) {
	t.Parallel()

	f := newFulfillmentFixture(t)
	ctx := context.Background()
	order, _ := seedOrder(f, t, enums.OrderKindTest, enums.DeliveryMethodHomeCollection, enums.PaymentStatusCODPending)

	_, err := f.svc.CollectCOD(ctx, order.ID, labTech(), order.TotalPaise-100, "")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	var reloaded models.Order
	require.NoError(t, f.conn.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusCODPending, reloaded.PaymentStatus)
}
