package prescriptions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	"github.com/mahima-medicare/healthstack-backend/internal/checkout"
	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

type recordingNotifier struct {
	codOrders []uuid.UUID
}

func (r *recordingNotifier) NotifyStaffCOD(_ context.Context, order *models.Order) {
	r.codOrders = append(r.codOrders, order.ID)
}

func newTestService(t *testing.T) (Service, *gorm.DB, *recordingNotifier) {
	t.Helper()
	dsn := "file:prescriptions_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.CartLine{},
		&models.Order{},
		&models.Blob{},
		&models.PrescriptionUpload{},
		&models.PrescriptionMedicine{},
	))

	policies := orders.NewPolicies(config.PolicyConfig{
		PharmacyGSTPercent:  5,
		DeliveryFeePaise:    4000,
		HomeCollectionPaise: 9900,
	})
	notifier := &recordingNotifier{}
	logg := logger.New(logger.Options{Level: zerolog.Disabled})
	svc, err := NewService(
		db.NewFromGorm(conn),
		NewRepository(conn),
		catalog.NewRepository(conn),
		orders.NewRepository(conn),
		policies,
		logg,
		notifier,
	)
	require.NoError(t, err)
	return svc, conn, notifier
}

func seedProduct(t *testing.T, conn *gorm.DB, available int, pricePaise int64) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:           uuid.New(),
		Name:         "Azithral 500",
		Kind:         enums.ProductKindMedicine,
		PricePaise:   pricePaise,
		AvailableQty: available,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

func uploadFor(t *testing.T, svc Service, user uuid.UUID) *models.PrescriptionUpload {
	t.Helper()
	upload, err := svc.Upload(context.Background(), UploadParams{
		UserID:      user,
		Image:       []byte("fake-image-bytes"),
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)
	return upload
}

func TestUploadStoresImageAndStartsPending(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	user := uuid.New()

	upload := uploadFor(t, svc, user)
	assert.Equal(t, enums.PrescriptionStatusPending, upload.Status)
	require.NotNil(t, upload.ImageBlobID)

	var blob models.Blob
	require.NoError(t, conn.First(&blob, "id = ?", *upload.ImageBlobID).Error)
	assert.Equal(t, []byte("fake-image-bytes"), blob.Data)
	assert.Equal(t, "image/jpeg", blob.ContentType)
}

func TestUploadRequiresImage(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	_, err := svc.Upload(context.Background(), UploadParams{UserID: uuid.New()})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestApproveAttachesPricedMedicines(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	user := uuid.New()
	reviewer := uuid.New()
	product := seedProduct(t, conn, 10, 12000)
	upload := uploadFor(t, svc, user)

	approved, err := svc.Approve(context.Background(), upload.ID, reviewer, []MedicineParam{
		{ProductID: product.ID, Quantity: 2, UnitPricePaise: 11500},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.PrescriptionStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewerID)
	assert.Equal(t, reviewer, *approved.ReviewerID)
	// estimate uses the pharmacist's price, not the catalog price
	assert.Equal(t, int64(23000), approved.EstimatedPaise)
	require.Len(t, approved.Medicines, 1)
	assert.Equal(t, int64(11500), approved.Medicines[0].UnitPricePaise)
}

func TestApproveUnknownProductRejected(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	upload := uploadFor(t, svc, uuid.New())

	_, err := svc.Approve(context.Background(), upload.ID, uuid.New(), []MedicineParam{
		{ProductID: uuid.New(), Quantity: 1, UnitPricePaise: 100},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestReviewIsOneShot(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	product := seedProduct(t, conn, 10, 12000)
	upload := uploadFor(t, svc, uuid.New())

	_, err := svc.Approve(context.Background(), upload.ID, uuid.New(), []MedicineParam{
		{ProductID: product.ID, Quantity: 1, UnitPricePaise: 10000},
	})
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), upload.ID, uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCheckoutOnlineReservesStockAtPharmacistPrices(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	user := uuid.New()
	product := seedProduct(t, conn, 10, 12000)
	upload := uploadFor(t, svc, user)
	_, err := svc.Approve(context.Background(), upload.ID, uuid.New(), []MedicineParam{
		{ProductID: product.ID, Quantity: 2, UnitPricePaise: 11500},
	})
	require.NoError(t, err)

	order, err := svc.Checkout(context.Background(), CheckoutParams{
		UploadID:      upload.ID,
		UserID:        user,
		PaymentMethod: checkout.PaymentMethodOnline,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderKindPrescription, order.Kind)
	assert.False(t, order.Ordered)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, int64(23000), order.SubtotalPaise)
	assert.Equal(t, int64(1150), order.TaxPaise) // 5% GST
	assert.Equal(t, int64(24150), order.TotalPaise)

	var got models.Product
	require.NoError(t, conn.First(&got, "id = ?", product.ID).Error)
	assert.Equal(t, 8, got.AvailableQty)
	assert.Equal(t, 2, got.ReservedQty)

	var line models.CartLine
	require.NoError(t, conn.First(&line, "order_id = ?", order.ID).Error)
	assert.Equal(t, int64(11500), line.UnitPricePaise)

	reloaded, err := svc.Get(context.Background(), upload.ID, user)
	require.NoError(t, err)
	assert.Equal(t, enums.PrescriptionStatusPaidPending, reloaded.Status)
	require.NotNil(t, reloaded.RelatedOrderID)
	assert.Equal(t, order.ID, *reloaded.RelatedOrderID)
}

func TestCheckoutCODCommitsStockAndNotifiesStaff(t *testing.T) {
	t.Parallel()

	svc, conn, notifier := newTestService(t)
	user := uuid.New()
	product := seedProduct(t, conn, 10, 12000)
	upload := uploadFor(t, svc, user)
	_, err := svc.Approve(context.Background(), upload.ID, uuid.New(), []MedicineParam{
		{ProductID: product.ID, Quantity: 2, UnitPricePaise: 11500},
	})
	require.NoError(t, err)

	order, err := svc.Checkout(context.Background(), CheckoutParams{
		UploadID:       upload.ID,
		UserID:         user,
		PaymentMethod:  checkout.PaymentMethodCOD,
		DeliveryMethod: enums.DeliveryMethodHomeDelivery,
		Address:        "12 Lake Road, Rourkela",
		Phone:          "9999999999",
	})
	require.NoError(t, err)

	assert.True(t, order.Ordered)
	assert.Equal(t, enums.PaymentStatusCODPending, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, order.OrderStatus)
	assert.Equal(t, int64(4000), order.DeliveryFeePaise)

	var got models.Product
	require.NoError(t, conn.First(&got, "id = ?", product.ID).Error)
	assert.Equal(t, 8, got.AvailableQty)
	assert.Zero(t, got.ReservedQty)

	require.Len(t, notifier.codOrders, 1)
	assert.Equal(t, order.ID, notifier.codOrders[0])
}

func TestCheckoutRequiresApproval(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	user := uuid.New()
	upload := uploadFor(t, svc, user)

	_, err := svc.Checkout(context.Background(), CheckoutParams{
		UploadID:      upload.ID,
		UserID:        user,
		PaymentMethod: checkout.PaymentMethodOnline,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCheckoutByStrangerLooksMissing(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	owner := uuid.New()
	product := seedProduct(t, conn, 10, 12000)
	upload := uploadFor(t, svc, owner)
	_, err := svc.Approve(context.Background(), upload.ID, uuid.New(), []MedicineParam{
		{ProductID: product.ID, Quantity: 1, UnitPricePaise: 11500},
	})
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), CheckoutParams{
		UploadID:      upload.ID,
		UserID:        uuid.New(),
		PaymentMethod: checkout.PaymentMethodOnline,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestMarkFulfilledRequiresPayment(t *testing.T) {
	t.Parallel()

	svc, conn, _ := newTestService(t)
	user := uuid.New()
	product := seedProduct(t, conn, 10, 12000)
	upload := uploadFor(t, svc, user)
	_, err := svc.Approve(context.Background(), upload.ID, uuid.New(), []MedicineParam{
		{ProductID: product.ID, Quantity: 1, UnitPricePaise: 11500},
	})
	require.NoError(t, err)

	_, err = svc.MarkFulfilled(context.Background(), upload.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	_, err = svc.Checkout(context.Background(), CheckoutParams{
		UploadID:      upload.ID,
		UserID:        user,
		PaymentMethod: checkout.PaymentMethodCOD,
	})
	require.NoError(t, err)

	done, err := svc.MarkFulfilled(context.Background(), upload.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PrescriptionStatusFulfilled, done.Status)
}
