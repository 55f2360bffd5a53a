package invoices

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
	"github.com/mahima-medicare/healthstack-backend/pkg/enums"
	pkgerrors "github.com/mahima-medicare/healthstack-backend/pkg/errors"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

type invoiceFixture struct {
	svc    Service
	conn   *gorm.DB
	client *db.Client
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()
	dsn := "file:invoices_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{}, &models.CartLine{}, &models.Order{},
		&models.PaymentIntent{}, &models.Invoice{}, &models.InvoiceItem{},
		&models.InvoiceSequence{}, &models.Blob{},
	))

	logg := logger.New(logger.Options{Level: zerolog.Disabled})
	policies := orders.NewPolicies(config.PolicyConfig{
		PharmacyGSTPercent:    5,
		AppointmentGSTPercent: 18,
		DeliveryFeePaise:      4000,
		HomeCollectionPaise:   9900,
	})
	client := db.NewFromGorm(conn)
	svc, err := NewService(client, NewRepository(conn), policies, nil, logg)
	require.NoError(t, err)
	return &invoiceFixture{svc: svc, conn: conn, client: client}
}

// seedCapturedIntent plants a paid pharmacy order with one frozen line and
// its captured intent.
func seedCapturedIntent(f *invoiceFixture, t *testing.T) *models.PaymentIntent {
	t.Helper()
	composition := "Paracetamol IP 500mg"
	product := &models.Product{
		ID:          uuid.New(),
		Name:        "Calpol 500",
		Kind:        enums.ProductKindMedicine,
		Composition: &composition,
		PricePaise:  10000,
	}
	require.NoError(t, f.conn.Create(product).Error)

	order := &models.Order{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Kind:           enums.OrderKindPharmacy,
		DeliveryMethod: enums.DeliveryMethodPickup,
		Ordered:        true,
		OrderStatus:    enums.OrderStatusConfirmed,
		PaymentStatus:  enums.PaymentStatusPaid,
		SubtotalPaise:  20000,
		TaxPaise:       1000,
		TotalPaise:     21000,
	}
	require.NoError(t, f.conn.Create(order).Error)

	line := &models.CartLine{
		ID:             uuid.New(),
		UserID:         order.UserID,
		ProductID:      product.ID,
		Kind:           enums.OrderKindPharmacy,
		Quantity:       2,
		Purchased:      true,
		OrderID:        &order.ID,
		UnitPricePaise: 10000,
		PayStatus:      enums.TestPayStatusUnpaid,
	}
	require.NoError(t, f.conn.Create(line).Error)

	paymentID := "pay_" + uuid.NewString()
	sig := "sig"
	intent := &models.PaymentIntent{
		ID:               uuid.New(),
		OrderID:          &order.ID,
		GatewayOrderID:   "gwo_" + uuid.NewString(),
		GatewayPaymentID: &paymentID,
		Signature:        &sig,
		AmountPaise:      21000,
		Currency:         "INR",
		Status:           enums.IntentStatusCaptured,
		Kind:             enums.PaymentKindPharmacy,
		Live:             true,
		CustomerName:     "Asha Rao",
		CustomerEmail:    "asha@example.com",
		ReceiptID:        "rcpt-" + uuid.NewString(),
	}
	require.NoError(t, f.conn.Create(intent).Error)
	return intent
}

func generate(f *invoiceFixture, t *testing.T, intentID uuid.UUID) *models.Invoice {
	t.Helper()
	var invoice *models.Invoice
	err := f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		invoice, err = f.svc.GenerateForIntent(context.Background(), tx, intentID)
		return err
	})
	require.NoError(t, err)
	return invoice
}

func TestGenerateForIntentProducesNumberedInvoice(t *testing.T) {
	t.Parallel()

	f := newInvoiceFixture(t)
	intent := seedCapturedIntent(f, t)

	invoice := generate(f, t, intent.ID)

	assert.Regexp(t, `^INV-\d{4}-\d{2}-\d{5}$`, invoice.InvoiceNumber)
	assert.True(t, strings.HasSuffix(invoice.InvoiceNumber, "-00001"))
	assert.Equal(t, "M/S MAHIMA MEDICARE", invoice.CompanyName)
	assert.Equal(t, "21AXRPN9340C1ZH", invoice.GSTIN)
	assert.Equal(t, "Asha Rao", invoice.CustomerName)
	assert.Equal(t, int64(20000), invoice.SubtotalPaise)
	assert.Equal(t, int64(1000), invoice.TaxPaise)
	assert.Equal(t, int64(21000), invoice.TotalPaise)

	require.Len(t, invoice.Items, 1)
	assert.Equal(t, "Calpol 500 (Paracetamol IP 500mg)", invoice.Items[0].Description)
	assert.Equal(t, 2, invoice.Items[0].Quantity)

	require.NotNil(t, invoice.PDFBlobID)
	var blob models.Blob
	require.NoError(t, f.conn.First(&blob, "id = ?", *invoice.PDFBlobID).Error)
	assert.Equal(t, "application/pdf", blob.ContentType)
	assert.True(t, strings.HasPrefix(string(blob.Data), "%PDF"))
}

func TestGenerateForIntentIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newInvoiceFixture(t)
	intent := seedCapturedIntent(f, t)

	first := generate(f, t, intent.ID)
	second := generate(f, t, intent.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.InvoiceNumber, second.InvoiceNumber)

	var count int64
	require.NoError(t, f.conn.Model(&models.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGenerateNumbersAreMonotonic(t *testing.T) {
	t.Parallel()

	f := newInvoiceFixture(t)
	a := seedCapturedIntent(f, t)
	b := seedCapturedIntent(f, t)

	first := generate(f, t, a.ID)
	second := generate(f, t, b.ID)
	assert.True(t, strings.HasSuffix(first.InvoiceNumber, "-00001"))
	assert.True(t, strings.HasSuffix(second.InvoiceNumber, "-00002"))
}

func TestGenerateRejectsUncapturedIntent(t *testing.T) {
	t.Parallel()

	f := newInvoiceFixture(t)
	intent := seedCapturedIntent(f, t)
	require.NoError(t, f.conn.Model(&models.PaymentIntent{}).
		Where("id = ?", intent.ID).
		Update("status", enums.IntentStatusCreated).Error)

	err := f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := f.svc.GenerateForIntent(context.Background(), tx, intent.ID)
		return err
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestRegenerateRetiresOldNumberAndBlob(t *testing.T) {
	t.Parallel()

	f := newInvoiceFixture(t)
	intent := seedCapturedIntent(f, t)
	original := generate(f, t, intent.ID)
	oldBlobID := *original.PDFBlobID

	fresh, err := f.svc.Regenerate(context.Background(), original.ID)
	require.NoError(t, err)

	assert.NotEqual(t, original.InvoiceNumber, fresh.InvoiceNumber)
	assert.True(t, strings.HasSuffix(fresh.InvoiceNumber, "-00002"))

	var count int64
	require.NoError(t, f.conn.Model(&models.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	err = f.conn.First(&models.Blob{}, "id = ?", oldBlobID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = f.conn.First(&models.Invoice{}, "invoice_number = ?", original.InvoiceNumber).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGenerateAppointmentSplitsInclusiveGST(t *testing.T) {
	t.Parallel()

	f := newInvoiceFixture(t)
	sig := "sig"
	paymentID := "pay_" + uuid.NewString()
	intent := &models.PaymentIntent{
		ID:               uuid.New(),
		GatewayOrderID:   "gwo_" + uuid.NewString(),
		GatewayPaymentID: &paymentID,
		Signature:        &sig,
		AmountPaise:      118000,
		Currency:         "INR",
		Status:           enums.IntentStatusCaptured,
		Kind:             enums.PaymentKindAppointment,
		Live:             true,
		CustomerName:     "Ravi Das",
		CustomerEmail:    "ravi@example.com",
		ReceiptID:        "rcpt-" + uuid.NewString(),
	}
	require.NoError(t, f.conn.Create(intent).Error)

	invoice := generate(f, t, intent.ID)
	assert.Equal(t, int64(100000), invoice.SubtotalPaise)
	assert.Equal(t, int64(18000), invoice.TaxPaise)
	assert.Equal(t, int64(118000), invoice.TotalPaise)
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, "Appointment consultation fee", invoice.Items[0].Description)
}

func TestGetPDFEnforcesOwnership(t *testing.T) {
	t.Parallel()

	f := newInvoiceFixture(t)
	intent := seedCapturedIntent(f, t)
	invoice := generate(f, t, intent.ID)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", *intent.OrderID).Error)

	blob, err := f.svc.GetPDF(context.Background(), invoice.ID, order.UserID)
	require.NoError(t, err)
	assert.NotEmpty(t, blob.Data)

	_, err = f.svc.GetPDF(context.Background(), invoice.ID, uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	// staff path skips the ownership check
	_, err = f.svc.GetPDF(context.Background(), invoice.ID, uuid.Nil)
	require.NoError(t, err)
}
