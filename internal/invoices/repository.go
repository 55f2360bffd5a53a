package invoices

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
)

// Repository wires invoice persistence helpers. It also reads intents and
// frozen lines directly so the package stays self-contained.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads one invoice with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByIntent returns the invoice for a payment intent, if one exists.
func (r *Repository) FindByIntent(ctx context.Context, intentID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&invoice, "payment_intent_id = ?", intentID).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindIntent loads the payment intent an invoice bills.
func (r *Repository) FindIntent(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).First(&intent, "id = ?", intentID).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindOrder loads the order with its frozen lines and products.
func (r *Repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Lines.Product").
		First(&order, "id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Create inserts the invoice and its items.
func (r *Repository) Create(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	for i := range invoice.Items {
		if invoice.Items[i].ID == uuid.Nil {
			invoice.Items[i].ID = uuid.New()
		}
		invoice.Items[i].InvoiceID = invoice.ID
	}
	return r.db.WithContext(ctx).Create(invoice).Error
}

// SetPDFBlob points the invoice at its rendered artifact.
func (r *Repository) SetPDFBlob(ctx context.Context, invoiceID, blobID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", invoiceID).
		Update("pdf_blob_id", blobID).Error
}

// Delete removes the invoice, its items, and the PDF blob if present.
// Numbers are never reissued; the sequence only moves forward.
func (r *Repository) Delete(ctx context.Context, invoice *models.Invoice) error {
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoice.ID).
		Delete(&models.InvoiceItem{}).Error; err != nil {
		return err
	}
	if invoice.PDFBlobID != nil {
		if err := r.db.WithContext(ctx).
			Where("id = ?", *invoice.PDFBlobID).
			Delete(&models.Blob{}).Error; err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).Delete(&models.Invoice{}, "id = ?", invoice.ID).Error
}

// CreateBlob stores a rendered artifact.
func (r *Repository) CreateBlob(ctx context.Context, blob *models.Blob) error {
	if blob.ID == uuid.Nil {
		blob.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(blob).Error
}

// FindBlob loads a stored artifact.
func (r *Repository) FindBlob(ctx context.Context, id uuid.UUID) (*models.Blob, error) {
	var blob models.Blob
	if err := r.db.WithContext(ctx).First(&blob, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &blob, nil
}

// NextSequence hands out the next per-period counter value. The row is
// locked for the rest of the transaction so numbering stays monotonic.
func (r *Repository) NextSequence(ctx context.Context, period string) (int64, error) {
	tx := r.db.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var seq models.InvoiceSequence
	err := tx.First(&seq, "period = ?", period).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = models.InvoiceSequence{Period: period, NextValue: 2}
		if err := r.db.WithContext(ctx).Create(&seq).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	value := seq.NextValue
	err = r.db.WithContext(ctx).
		Model(&models.InvoiceSequence{}).
		Where("period = ?", period).
		Update("next_value", value+1).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
