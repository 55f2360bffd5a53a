package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.CartLine{}))

	client := db.NewFromGorm(conn)
	svc, err := NewService(client, NewRepository(conn), catalog.NewRepository(conn))
	require.NoError(t, err)
	return svc, conn
}

func seedProduct(t *testing.T, conn *gorm.DB, kind enums.ProductKind, available int, pricePaise int64) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:           uuid.New(),
		Name:         "Paracetamol 500mg",
		Kind:         kind,
		PricePaise:   pricePaise,
		AvailableQty: available,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

func TestAddCreatesLine(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, conn, enums.ProductKindMedicine, 10, 10000)

	line, err := svc.Add(ctx, user, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, enums.OrderKindPharmacy, line.Kind)
	assert.False(t, line.Purchased)
}

func TestAddExistingLineIncrementsQuantity(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, conn, enums.ProductKindMedicine, 10, 10000)

	_, err := svc.Add(ctx, user, product.ID, 1)
	require.NoError(t, err)
	line, err := svc.Add(ctx, user, product.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)

	var count int64
	require.NoError(t, conn.Model(&models.CartLine{}).Where("user_id = ?", user).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddBeyondAvailabilityRejected(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, conn, enums.ProductKindMedicine, 3, 10000)

	_, err := svc.Add(ctx, user, product.ID, 4)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())

	var count int64
	require.NoError(t, conn.Model(&models.CartLine{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAddExpiredMedicineRejected(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, conn, enums.ProductKindMedicine, 3, 10000)
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	require.NoError(t, conn.Model(product).Update("expiry_date", yesterday).Error)

	_, err := svc.Add(ctx, user, product.ID, 1)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestIncrementDecrementRemove(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, conn, enums.ProductKindTest, 5, 50000)

	line, err := svc.Add(ctx, user, product.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderKindTest, line.Kind)

	line, err = svc.Increment(ctx, user, line.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)

	line, err = svc.Decrement(ctx, user, line.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)

	// decrement below one deletes the line
	gone, err := svc.Decrement(ctx, user, line.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var count int64
	require.NoError(t, conn.Model(&models.CartLine{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRemoveOtherUsersLineNotFound(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	intruder := uuid.New()
	product := seedProduct(t, conn, enums.ProductKindMedicine, 5, 10000)

	line, err := svc.Add(ctx, owner, product.ID, 1)
	require.NoError(t, err)

	err = svc.Remove(ctx, intruder, line.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestFrozenLineCannotBeMutated(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, conn, enums.ProductKindMedicine, 5, 10000)

	line, err := svc.Add(ctx, user, product.ID, 1)
	require.NoError(t, err)

	orderID := uuid.New()
	require.NoError(t, conn.Model(&models.CartLine{}).Where("id = ?", line.ID).
		Update("order_id", orderID).Error)

	_, err = svc.Increment(ctx, user, line.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestListComputesAdvisorySubtotal(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	user := uuid.New()
	a := seedProduct(t, conn, enums.ProductKindMedicine, 10, 10000)
	b := seedProduct(t, conn, enums.ProductKindMedicine, 10, 2500)

	_, err := svc.Add(ctx, user, a.ID, 2)
	require.NoError(t, err)
	_, err = svc.Add(ctx, user, b.ID, 1)
	require.NoError(t, err)

	summary, err := svc.List(ctx, user, enums.OrderKindPharmacy)
	require.NoError(t, err)
	assert.Len(t, summary.Lines, 2)
	assert.Equal(t, int64(22500), summary.SubtotalPaise)
}
